// Package postgres implements the target storage interface
// backed by PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/storage"
)

const (
	moduleName = "postgres"
)

// Client is a client for connecting to PostgreSQL.
type Client struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ storage.TargetStorage = (*Client)(nil)

// pgxLogger is a pgx-compatible logger interface that uses obscura's standard
// logger as the backend.
type pgxLogger struct {
	logger *log.Logger
}

// logFuncForLevel maps a pgx log severity level to a corresponding logger function.
func (l *pgxLogger) logFuncForLevel(level tracelog.LogLevel) func(string, ...interface{}) {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return l.logger.Debug
	case tracelog.LogLevelInfo:
		return l.logger.Info
	case tracelog.LogLevelWarn:
		return l.logger.Warn
	case tracelog.LogLevelError, tracelog.LogLevelNone:
		return l.logger.Error
	default:
		l.logger.Warn("Unknown log level", "unknown_level", level)
		return l.logger.Info
	}
}

// Log implements tracelog.Logger.
func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	args := []interface{}{}
	for k, v := range data {
		args = append(args, k, v)
	}

	logFunc := l.logFuncForLevel(level)
	logFunc(msg, args...)
}

// NewClient creates a new PostgreSQL client.
func NewClient(connString string, l *log.Logger) (*Client, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	// For a log line to be produced, it needs to be >= the level specified
	// here, and >= the level of the underlying logger. "Info" level logs
	// every SQL statement executed.
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		LogLevel: tracelog.LogLevelWarn,
		Logger: &pgxLogger{
			logger: l.WithModule(moduleName).With("db", config.ConnConfig.Database),
		},
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:   pool,
		logger: l.WithModule(moduleName),
	}, nil
}

// SendBatch submits a new batch of queries as an atomic transaction to PostgreSQL.
//
// Updated row counts are discarded. We only care about atomic success or
// failure of the batch.
func (c *Client) SendBatch(ctx context.Context, batch *storage.QueryBatch) error {
	if err := c.sendBatchFast(ctx, batch); err == nil {
		return nil
	}
	// The tx was reverted, so we can resubmit. This time, use the slow method for better error msgs.
	return c.sendBatchSlow(ctx, batch)
}

// Submits the batch in a single roundtrip using the implicit tx of
// `pool.SendBatch`. If any query is malformed, pgx reports the _first_ query
// as failing.
func (c *Client) sendBatchFast(ctx context.Context, batch *storage.QueryBatch) error {
	pgxBatch := batch.AsPgxBatch()
	batchResults := c.pool.SendBatch(ctx, &pgxBatch)
	defer common.CloseOrLog(batchResults, c.logger)

	for i := 0; i < pgxBatch.Len(); i++ {
		if _, err := batchResults.Exec(); err != nil {
			return fmt.Errorf("query %d %v: %w", i, batch.Queries()[i], err)
		}
	}
	return nil
}

// Submits the batch one query at a time. Slower than `sendBatchFast`, but
// reports the query that actually failed.
func (c *Client) sendBatchSlow(ctx context.Context, batch *storage.QueryBatch) error {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	for i, q := range batch.Queries() {
		if _, err2 := tx.Exec(ctx, q.Cmd, q.Args...); err2 != nil {
			rollbackErr := ""
			if err3 := tx.Rollback(ctx); err3 != nil {
				rollbackErr = fmt.Sprintf("; also failed to rollback tx: %s", err3.Error())
			}
			return fmt.Errorf("query %d %v: %w%s", i, q, err2, rollbackErr)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		c.logger.Error("failed to submit tx",
			"error", err,
			"batch", batch.Queries(),
		)
		return err
	}
	return nil
}

// Query submits a new read query to PostgreSQL.
func (c *Client) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.logger.Error("failed to query db",
			"error", err,
			"query_cmd", sql,
			"query_args", args,
		)
		return nil, err
	}
	return rows, nil
}

// QueryRow submits a new read query for a single row to PostgreSQL.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Begin implements the storage.TargetStorage interface for Client.
func (c *Client) Begin(ctx context.Context) (storage.Tx, error) {
	return c.pool.Begin(ctx)
}

// Close implements the storage.TargetStorage interface for Client.
func (c *Client) Close() {
	c.pool.Close()
}

// Name implements the storage.TargetStorage interface for Client.
func (c *Client) Name() string {
	return moduleName
}

// Returns all tables that are not internal to Postgres. Table names are fully-qualified,
// i.e. of the form "<schema>.<table>".
func (c *Client) listTables(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, `
		SELECT schemaname, tablename
		FROM pg_tables
		WHERE schemaname != 'information_schema' AND schemaname NOT LIKE 'pg_%'
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := []string{}
	defer rows.Close()
	for rows.Next() {
		var schema, table string
		if err = rows.Scan(&schema, &table); err != nil {
			return nil, err
		}
		tables = append(tables, fmt.Sprintf("%s.%s", schema, table))
	}
	return tables, rows.Err()
}

func (c *Client) listTypes(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, `
		SELECT      n.nspname as schema, t.typname as type
		FROM        pg_type t
		LEFT JOIN   pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE       (t.typrelid = 0 OR (SELECT c.relkind = 'c' FROM pg_catalog.pg_class c WHERE c.oid = t.typrelid))
		AND     NOT EXISTS(SELECT 1 FROM pg_catalog.pg_type el WHERE el.oid = t.typelem AND el.typarray = t.oid)
		AND     n.nspname != 'information_schema' AND n.nspname NOT LIKE 'pg_%';
	`)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}

	types := []string{}
	defer rows.Close()
	for rows.Next() {
		var schema, typ string
		if err = rows.Scan(&schema, &typ); err != nil {
			return nil, err
		}
		types = append(types, fmt.Sprintf("%s.%s", schema, typ))
	}
	return types, rows.Err()
}

// Wipe removes all contents of the database.
func (c *Client) Wipe(ctx context.Context) error {
	tables, err := c.listTables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		c.logger.Info("dropping table", "table", table)
		if _, err = c.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %s CASCADE;", table)); err != nil {
			return err
		}
	}

	// Query from https://stackoverflow.com/questions/3660787/how-to-list-custom-types-using-postgres-information-schema
	types, err := c.listTypes(ctx)
	if err != nil {
		return err
	}
	for _, typ := range types {
		c.logger.Info("dropping type", "type", typ)
		if _, err = c.pool.Exec(ctx, fmt.Sprintf("DROP TYPE %s CASCADE;", typ)); err != nil {
			return err
		}
	}
	return nil
}
