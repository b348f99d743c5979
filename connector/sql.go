package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the slice of a connection pool the executor needs. The production
// implementation wraps pgxpool; tests substitute a fake.
type Pool interface {
	Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
	Ping(ctx context.Context) error
	Close()
}

// PoolOpener opens an ephemeral pool for a single executor invocation.
type PoolOpener func(ctx context.Context, connString string) (Pool, error)

// OpenPgxPool is the production PoolOpener.
func OpenPgxPool(ctx context.Context, connString string) (Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &pgxPool{pool: pool}, nil
}

type pgxPool struct {
	pool *pgxpool.Pool
}

func (p *pgxPool) Close() {
	p.pool.Close()
}

func (p *pgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *pgxPool) Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rowData := make(map[string]interface{}, len(fields))
		for i, field := range fields {
			value := values[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			rowData[field.Name] = value
		}
		results = append(results, rowData)
	}
	return results, rows.Err()
}

// resolveConnString resolves the libpq connection string for a sql config.
// A stored connectionString wins verbatim; otherwise one is synthesized from
// the discrete fields. Neither resolvable is a ConfigError.
func resolveConnString(cfg *SQLConfig) (string, error) {
	if cfg == nil {
		return "", configErrorf("sql connection has no config")
	}
	if s := strings.TrimSpace(cfg.ConnectionString); s != "" {
		return s, nil
	}
	if cfg.Host == "" || cfg.Database == "" || cfg.User == "" {
		return "", configErrorf("sql connection needs a connectionString or host/database/user fields")
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Database, sslMode), nil
}

// buildSQLStatement picks the statement to execute. Precedence: the caller's
// override query, then the dataset's stored query, then a default scan of
// the dataset's table.
//
// When both a stored query and an override are present, the stored query is
// exposed to the override as a CTE named dataset_<id>. The override is
// expected to reference that alias by convention; if it does not, the CTE
// simply goes unread.
func buildSQLStatement(ds *Dataset, override string) (string, error) {
	override = strings.TrimSpace(override)
	var stored, table string
	if ds != nil {
		stored = strings.TrimSpace(ds.Query)
		table = strings.TrimSpace(ds.Table)
	}

	switch {
	case override != "" && stored != "":
		return fmt.Sprintf("WITH dataset_%d AS (%s) %s", ds.ID, stored, override), nil
	case override != "":
		return override, nil
	case stored != "":
		return stored, nil
	case table != "":
		return fmt.Sprintf("SELECT * FROM %q LIMIT 100", table), nil
	}
	return "", configErrorf("no query or table to execute")
}

// fetchSQL resolves the connection string, opens an ephemeral pool and runs
// the selected statement. All configuration checks happen before the pool is
// opened.
func (e *Executor) fetchSQL(ctx context.Context, cfg *SQLConfig, ds *Dataset, override string) ([]map[string]interface{}, error) {
	statement, err := buildSQLStatement(ds, override)
	if err != nil {
		return nil, err
	}
	connString, err := resolveConnString(cfg)
	if err != nil {
		return nil, err
	}
	return e.withPool(ctx, connString, func(ctx context.Context, pool Pool) ([]map[string]interface{}, error) {
		return pool.Query(ctx, statement)
	})
}

// withPool opens an ephemeral pool for the duration of fn and closes it on
// every exit path, including panics, before returning.
func (e *Executor) withPool(ctx context.Context, connString string, fn func(context.Context, Pool) ([]map[string]interface{}, error)) ([]map[string]interface{}, error) {
	pool, err := e.openPool(ctx, connString)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to open database connection: %v", err), Err: err}
	}
	defer pool.Close()

	results, err := fn(ctx, pool)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error(), Err: err}
	}
	return results, nil
}

const (
	listTablesStatement = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`

	tableColumnsStatement = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`
)

// ListTables lists the tables in the target database's public schema. Only
// sql connections support it.
func (e *Executor) ListTables(ctx context.Context, conn Connection) ([]string, error) {
	if conn.Type != TypeSQL {
		return nil, configErrorf("%s connection cannot list tables", conn.Type)
	}
	connString, err := resolveConnString(conn.SQL)
	if err != nil {
		return nil, err
	}
	rows, err := e.withPool(ctx, connString, func(ctx context.Context, pool Pool) ([]map[string]interface{}, error) {
		return pool.Query(ctx, listTablesStatement)
	})
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["table_name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

// TableColumns fetches name/type pairs for a named table in the public
// schema. Only sql connections support it.
func (e *Executor) TableColumns(ctx context.Context, conn Connection, table string) ([]Column, error) {
	if conn.Type != TypeSQL {
		return nil, configErrorf("%s connection cannot describe tables", conn.Type)
	}
	if strings.TrimSpace(table) == "" {
		return nil, configErrorf("table name is required")
	}
	connString, err := resolveConnString(conn.SQL)
	if err != nil {
		return nil, err
	}
	rows, err := e.withPool(ctx, connString, func(ctx context.Context, pool Pool) ([]map[string]interface{}, error) {
		return pool.Query(ctx, tableColumnsStatement, table)
	})
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(rows))
	for _, row := range rows {
		column := Column{}
		if name, ok := row["column_name"].(string); ok {
			column.Name = name
		}
		if dataType, ok := row["data_type"].(string); ok {
			column.Type = dataType
		}
		columns = append(columns, column)
	}
	return columns, nil
}
