package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type PostgresManager struct {
	DB *sql.DB
}

func (p *PostgresManager) log() *logrus.Entry {
	return logrus.WithField("dialect", "postgres")
}

func (p *PostgresManager) Dialect() string {
	return "postgres"
}

func (p *PostgresManager) ConnectWithDSN(dsn string) error {
	// Add sslmode=disable to PostgreSQL connection if not present
	if !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return err
	}
	p.DB = conn
	return nil
}

func (p *PostgresManager) Close() error {
	if p.DB == nil {
		return nil
	}
	err := p.DB.Close()
	p.DB = nil
	return err
}

func (p *PostgresManager) ListTables(ctx context.Context) ([]string, error) {
	if p.DB == nil {
		return nil, errors.New("no database connection")
	}

	rows, err := p.DB.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_type = 'BASE TABLE'
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (p *PostgresManager) CountRows(ctx context.Context, table string) (int64, error) {
	if p.DB == nil {
		return 0, errors.New("no database connection")
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	if err := p.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *PostgresManager) Columns(ctx context.Context, table string) ([]Column, error) {
	if p.DB == nil {
		return nil, errors.New("no database connection")
	}
	return probeColumns(ctx, p.DB, fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table)))
}

func (p *PostgresManager) SelectRows(ctx context.Context, table string, limit int64) (*sql.Rows, error) {
	if p.DB == nil {
		return nil, errors.New("no database connection")
	}

	query := fmt.Sprintf("SELECT * FROM %s%s", pq.QuoteIdentifier(table), limitClause(limit))
	p.log().Debugf("select: %s", query)
	return p.DB.QueryContext(ctx, query)
}
