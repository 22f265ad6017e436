package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`       // Database type as reported by the source driver
	SystemType string `json:"systemType"` // SQLite column type used in the subset file
	Nullable   bool   `json:"nullable"`
}

type Table struct {
	Name    string   `json:"name"`
	Dialect string   `json:"dialect"` // Dialect of the database the rows come from
	Columns []Column `json:"columns"`
}

// ColumnNames returns the column names in declaration order
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

type TableInfo struct {
	Name     string
	RowCount int64
}

// SQLiteType maps a source column type onto the SQLite type affinity it
// should carry in the subset file.
func SQLiteType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "BOOL"):
		return "INTEGER"
	case strings.Contains(t, "INTERVAL"), strings.Contains(t, "POINT"):
		return "TEXT"
	case strings.Contains(t, "INT"):
		return "INTEGER"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"),
		strings.Contains(t, "JSON"), t == "UUID":
		return "TEXT"
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BYTEA"), strings.Contains(t, "BINARY"):
		return "BLOB"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "REAL"
	case strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

// probeColumns runs query and reads the column metadata of its result set.
// No rows are consumed.
func probeColumns(ctx context.Context, conn *sql.DB, query string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}

	columns := make([]Column, len(colTypes))
	for i, ct := range colTypes {
		nullable, ok := ct.Nullable()
		columns[i] = Column{
			Name:       ct.Name(),
			Type:       ct.DatabaseTypeName(),
			SystemType: SQLiteType(ct.DatabaseTypeName()),
			Nullable:   !ok || nullable,
		}
	}
	return columns, nil
}

func limitClause(limit int64) string {
	if limit < 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
