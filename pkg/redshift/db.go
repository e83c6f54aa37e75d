package redshift

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/helpers"
	"github.com/sparkify/sparkify-etl/pkg/query"
)

type connection interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type Client struct {
	connection connection
	config     *Config
}

func NewClient(ctx context.Context, config *Config) (*Client, error) {
	conn, err := pgxpool.New(ctx, config.ToDBConnectionURI())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create the Redshift connection pool for %s", config)
	}

	return &Client{
		connection: conn,
		config:     config,
	}, nil
}

func (c *Client) RunQueryWithoutResult(ctx context.Context, query *query.Query) error {
	_, err := c.connection.Exec(ctx, query.String())
	return err
}

// Select runs a query and returns the results.
func (c *Client) Select(ctx context.Context, query *query.Query) ([][]interface{}, error) {
	rows, err := c.connection.Query(ctx, query.String())
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	collectedRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]interface{}, error) {
		return row.Values()
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect row values")
	}

	if len(collectedRows) == 0 {
		return make([][]interface{}, 0), nil
	}

	return collectedRows, nil
}

// RunInTransaction executes the queries in order inside a single transaction. The transaction is
// rolled back as soon as one of them fails, leaving the tables as they were.
func (c *Client) RunInTransaction(ctx context.Context, queries ...*query.Query) (err error) {
	tx, err := c.connection.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if err == nil {
			return
		}

		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			err = errors.Wrapf(err, "rollback failed as well: %s", rollbackErr)
		}
	}()

	for i, q := range queries {
		if _, err = tx.Exec(ctx, q.String()); err != nil {
			return errors.Wrapf(err, "statement %d of %d failed", i+1, len(queries))
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// Ping runs a simple query to validate the connection.
func (c *Client) Ping(ctx context.Context) error {
	err := c.RunQueryWithoutResult(ctx, &query.Query{Query: "SELECT 1"})
	if err != nil {
		return errors.Wrap(err, "failed to run test query on Redshift connection")
	}

	return nil
}

func BuildTableExistsQuery(tableName string) (string, error) {
	tableComponents := strings.Split(tableName, ".")
	for _, component := range tableComponents {
		if component == "" {
			return "", fmt.Errorf("table name must be in format schema.table or table, '%s' given", tableName)
		}
	}

	var schemaName string
	switch len(tableComponents) {
	case 1:
		schemaName = "public"
		tableName = tableComponents[0]
	case 2:
		schemaName = tableComponents[0]
		tableName = tableComponents[1]
	default:
		return "", fmt.Errorf("table name must be in format schema.table or table, '%s' given", tableName)
	}

	return fmt.Sprintf(
		"SELECT COUNT(*) FROM SVV_TABLES WHERE schemaname = '%s' AND tablename = '%s'",
		strings.Trim(schemaName, `"`),
		strings.Trim(tableName, `"`),
	), nil
}

// TableExists reports whether the table is visible in SVV_TABLES.
func (c *Client) TableExists(ctx context.Context, tableName string) (bool, error) {
	q, err := BuildTableExistsQuery(tableName)
	if err != nil {
		return false, err
	}

	rows, err := c.Select(ctx, &query.Query{Query: q})
	if err != nil {
		return false, errors.Wrapf(err, "failed to check if table '%s' exists", tableName)
	}

	count, err := helpers.CastResultToInteger(rows)
	if err != nil {
		return false, errors.Wrapf(err, "unexpected result while checking table '%s'", tableName)
	}

	return count > 0, nil
}

func (c *Client) Close() {
	c.connection.Close()
}
