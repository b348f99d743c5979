// Package connector executes ad-hoc data fetches against stored connections.
// A connection is dispatched by kind: inline CSV is parsed in memory, REST
// endpoints are called over HTTP, and SQL databases are queried through an
// ephemeral pool scoped to the call. The executor holds no durable state.
package connector

import (
	"context"
	"net/http"
)

// Executor fetches rows from connections. Its collaborators are injected at
// construction; it is safe for concurrent use.
type Executor struct {
	client   *http.Client
	openPool PoolOpener
}

// NewExecutor creates an Executor. A nil client falls back to
// http.DefaultClient and a nil opener to the pgx pool opener.
func NewExecutor(client *http.Client, openPool PoolOpener) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	if openPool == nil {
		openPool = OpenPgxPool
	}
	return &Executor{client: client, openPool: openPool}
}

// FetchRows returns the rows a connection yields for the given dataset and
// optional override query. The dataset and override only matter for sql
// connections; csv and rest connections are fully described by their config.
func (e *Executor) FetchRows(ctx context.Context, conn Connection, ds *Dataset, overrideQuery string) ([]map[string]interface{}, error) {
	switch conn.Type {
	case TypeCSV:
		return fetchCSV(conn.CSV)
	case TypeREST:
		return e.fetchREST(ctx, conn.REST)
	case TypeSQL:
		return e.fetchSQL(ctx, conn.SQL, ds, overrideQuery)
	}
	return nil, configErrorf("unsupported connection type %q", conn.Type)
}

// Test probes whether the connection is reachable with its stored config.
// For csv it parses the inline data, for rest it performs the configured
// request, and for sql it opens a pool and pings.
func (e *Executor) Test(ctx context.Context, conn Connection) error {
	switch conn.Type {
	case TypeCSV:
		_, err := fetchCSV(conn.CSV)
		return err
	case TypeREST:
		_, err := e.fetchREST(ctx, conn.REST)
		return err
	case TypeSQL:
		connString, err := resolveConnString(conn.SQL)
		if err != nil {
			return err
		}
		pool, err := e.openPool(ctx, connString)
		if err != nil {
			return &UpstreamError{Message: "failed to open database connection: " + err.Error(), Err: err}
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return &UpstreamError{Message: err.Error(), Err: err}
		}
		return nil
	}
	return configErrorf("unsupported connection type %q", conn.Type)
}
