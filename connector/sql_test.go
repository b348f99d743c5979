package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool stands in for a pgx pool and counts lifecycle calls.
type fakePool struct {
	rows       []map[string]interface{}
	queryErr   error
	pingErr    error
	lastSQL    string
	lastArgs   []interface{}
	closeCalls int
}

func (p *fakePool) Query(_ context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	p.lastSQL = sql
	p.lastArgs = args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return p.rows, nil
}

func (p *fakePool) Ping(_ context.Context) error { return p.pingErr }

func (p *fakePool) Close() { p.closeCalls++ }

// fakeOpener returns the given pool and records how often and with which
// connection string it was asked to open one.
type fakeOpener struct {
	pool     *fakePool
	openErr  error
	opens    int
	lastConn string
}

func (o *fakeOpener) open(_ context.Context, connString string) (Pool, error) {
	o.opens++
	o.lastConn = connString
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.pool, nil
}

func newSQLExecutor(pool *fakePool) (*Executor, *fakeOpener) {
	opener := &fakeOpener{pool: pool}
	return NewExecutor(nil, opener.open), opener
}

func TestResolveConnString(t *testing.T) {
	t.Run("Stored Connection String Wins Verbatim", func(t *testing.T) {
		connString, err := resolveConnString(&SQLConfig{
			ConnectionString: "postgres://u:p@db:5432/app",
			Host:             "ignored",
			Database:         "ignored",
			User:             "ignored",
		})
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@db:5432/app", connString)
	})

	t.Run("Synthesized From Discrete Fields", func(t *testing.T) {
		connString, err := resolveConnString(&SQLConfig{
			Host:     "db.internal",
			Port:     5433,
			User:     "beak",
			Password: "pw",
			Database: "dash",
		})
		require.NoError(t, err)
		assert.Equal(t, "host=db.internal port=5433 user=beak password=pw dbname=dash sslmode=disable", connString)
	})

	t.Run("Port And SSLMode Defaults", func(t *testing.T) {
		connString, err := resolveConnString(&SQLConfig{Host: "db", User: "u", Database: "d"})
		require.NoError(t, err)
		assert.Contains(t, connString, "port=5432")
		assert.Contains(t, connString, "sslmode=disable")
	})

	t.Run("Neither Resolvable Is A Config Error", func(t *testing.T) {
		for _, cfg := range []*SQLConfig{nil, {}, {Host: "db"}, {Host: "db", User: "u"}} {
			_, err := resolveConnString(cfg)
			var configErr *ConfigError
			require.ErrorAs(t, err, &configErr)
		}
	})
}

func TestBuildSQLStatement(t *testing.T) {
	t.Run("Override Wraps Dataset Query As CTE", func(t *testing.T) {
		statement, err := buildSQLStatement(&Dataset{ID: 5, Query: "SELECT a FROM t"}, "SELECT * FROM dataset_5")
		require.NoError(t, err)
		assert.Equal(t, "WITH dataset_5 AS (SELECT a FROM t) SELECT * FROM dataset_5", statement)
	})

	t.Run("Override Alone Runs As-Is", func(t *testing.T) {
		statement, err := buildSQLStatement(&Dataset{ID: 5, Table: "users"}, "SELECT count(*) FROM users")
		require.NoError(t, err)
		assert.Equal(t, "SELECT count(*) FROM users", statement)
	})

	t.Run("Dataset Query Alone", func(t *testing.T) {
		statement, err := buildSQLStatement(&Dataset{ID: 5, Query: "SELECT a FROM t"}, "")
		require.NoError(t, err)
		assert.Equal(t, "SELECT a FROM t", statement)
	})

	t.Run("Table Falls Back To Default Scan", func(t *testing.T) {
		statement, err := buildSQLStatement(&Dataset{ID: 5, Table: "users"}, "")
		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "users" LIMIT 100`, statement)
	})

	t.Run("Nothing To Execute Is A Config Error", func(t *testing.T) {
		_, err := buildSQLStatement(nil, "")
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)

		_, err = buildSQLStatement(&Dataset{ID: 5}, "   ")
		require.ErrorAs(t, err, &configErr)
	})
}

func TestFetchSQL(t *testing.T) {
	validConfig := func() Connection {
		return Connection{
			ID:   1,
			Type: TypeSQL,
			SQL:  &SQLConfig{ConnectionString: "postgres://u:p@db/app"},
		}
	}

	t.Run("Executes The CTE-Wrapped Statement", func(t *testing.T) {
		pool := &fakePool{rows: []map[string]interface{}{{"a": int64(1)}}}
		executor, opener := newSQLExecutor(pool)

		conn := validConfig()
		rows, err := executor.FetchRows(context.Background(), conn,
			&Dataset{ID: 5, Query: "SELECT a FROM t"}, "SELECT * FROM dataset_5")
		require.NoError(t, err)
		assert.Equal(t, "WITH dataset_5 AS (SELECT a FROM t) SELECT * FROM dataset_5", pool.lastSQL)
		assert.Equal(t, "postgres://u:p@db/app", opener.lastConn)
		require.Len(t, rows, 1)
	})

	t.Run("Pool Closed Exactly Once On Success", func(t *testing.T) {
		pool := &fakePool{}
		executor, _ := newSQLExecutor(pool)

		_, err := executor.FetchRows(context.Background(), validConfig(), &Dataset{ID: 2, Table: "users"}, "")
		require.NoError(t, err)
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("Pool Closed Exactly Once On Query Failure", func(t *testing.T) {
		pool := &fakePool{queryErr: errors.New(`relation "nope" does not exist`)}
		executor, _ := newSQLExecutor(pool)

		_, err := executor.FetchRows(context.Background(), validConfig(), &Dataset{ID: 2, Table: "nope"}, "")
		var upstreamErr *UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, `relation "nope" does not exist`, upstreamErr.Message)
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("Config Error Before Any Pool Opens", func(t *testing.T) {
		pool := &fakePool{}
		executor, opener := newSQLExecutor(pool)

		conn := Connection{ID: 1, Type: TypeSQL, SQL: &SQLConfig{Host: "db"}}
		_, err := executor.FetchRows(context.Background(), conn, &Dataset{ID: 2, Table: "users"}, "")
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, 0, opener.opens)
		assert.Equal(t, 0, pool.closeCalls)
	})

	t.Run("Open Failure Is An Upstream Error", func(t *testing.T) {
		opener := &fakeOpener{openErr: errors.New("connection refused")}
		executor := NewExecutor(nil, opener.open)

		_, err := executor.FetchRows(context.Background(), validConfig(), &Dataset{ID: 2, Table: "users"}, "")
		var upstreamErr *UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
	})
}

func TestListTables(t *testing.T) {
	t.Run("Maps Table Names", func(t *testing.T) {
		pool := &fakePool{rows: []map[string]interface{}{
			{"table_name": "orders"},
			{"table_name": "users"},
		}}
		executor, _ := newSQLExecutor(pool)

		conn := Connection{Type: TypeSQL, SQL: &SQLConfig{ConnectionString: "postgres://db"}}
		tables, err := executor.ListTables(context.Background(), conn)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders", "users"}, tables)
		assert.Contains(t, pool.lastSQL, "information_schema.tables")
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("Non-SQL Connection Is A Config Error", func(t *testing.T) {
		executor, opener := newSQLExecutor(&fakePool{})
		conn := Connection{Type: TypeCSV, CSV: &CSVConfig{Data: "a\n1"}}
		_, err := executor.ListTables(context.Background(), conn)
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, 0, opener.opens)
	})
}

func TestTableColumns(t *testing.T) {
	t.Run("Maps Name And Type Pairs", func(t *testing.T) {
		pool := &fakePool{rows: []map[string]interface{}{
			{"column_name": "id", "data_type": "integer"},
			{"column_name": "email", "data_type": "text"},
		}}
		executor, _ := newSQLExecutor(pool)

		conn := Connection{Type: TypeSQL, SQL: &SQLConfig{ConnectionString: "postgres://db"}}
		columns, err := executor.TableColumns(context.Background(), conn, "users")
		require.NoError(t, err)
		require.Len(t, columns, 2)
		assert.Equal(t, Column{Name: "id", Type: "integer"}, columns[0])
		assert.Equal(t, []interface{}{"users"}, pool.lastArgs)
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("Empty Table Name Is A Config Error", func(t *testing.T) {
		executor, opener := newSQLExecutor(&fakePool{})
		conn := Connection{Type: TypeSQL, SQL: &SQLConfig{ConnectionString: "postgres://db"}}
		_, err := executor.TableColumns(context.Background(), conn, "  ")
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, 0, opener.opens)
	})
}

func TestExecutorTest(t *testing.T) {
	t.Run("SQL Ping Closes The Pool", func(t *testing.T) {
		pool := &fakePool{}
		executor, _ := newSQLExecutor(pool)

		conn := Connection{Type: TypeSQL, SQL: &SQLConfig{ConnectionString: "postgres://db"}}
		require.NoError(t, executor.Test(context.Background(), conn))
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("SQL Ping Failure Is Upstream And Still Closes", func(t *testing.T) {
		pool := &fakePool{pingErr: errors.New("password authentication failed")}
		executor, _ := newSQLExecutor(pool)

		conn := Connection{Type: TypeSQL, SQL: &SQLConfig{ConnectionString: "postgres://db"}}
		err := executor.Test(context.Background(), conn)
		var upstreamErr *UpstreamError
		require.ErrorAs(t, err, &upstreamErr)
		assert.Equal(t, 1, pool.closeCalls)
	})

	t.Run("CSV Test Parses The Inline Data", func(t *testing.T) {
		executor, _ := newSQLExecutor(&fakePool{})
		require.NoError(t, executor.Test(context.Background(), Connection{Type: TypeCSV, CSV: &CSVConfig{Data: "a\n1"}}))

		err := executor.Test(context.Background(), Connection{Type: TypeCSV, CSV: &CSVConfig{}})
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
	})
}

func TestFromRecord(t *testing.T) {
	t.Run("SQL Config Decodes", func(t *testing.T) {
		conn, err := FromRecord(3, "sql", []byte(`{"host":"db","port":5432,"user":"u","database":"d"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeSQL, conn.Type)
		require.NotNil(t, conn.SQL)
		assert.Equal(t, "db", conn.SQL.Host)
		assert.Nil(t, conn.CSV)
		assert.Nil(t, conn.REST)
	})

	t.Run("Type Is Case Insensitive", func(t *testing.T) {
		conn, err := FromRecord(1, "CSV", []byte(`{"csvData":"a\n1"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeCSV, conn.Type)
	})

	t.Run("Unknown Type Is A Config Error", func(t *testing.T) {
		_, err := FromRecord(1, "mongodb", []byte(`{}`))
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
	})

	t.Run("Malformed Config Is A Config Error", func(t *testing.T) {
		_, err := FromRecord(1, "rest", []byte(`{"url":`))
		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
	})
}
