// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectors exposes external data sources as agent functions.
package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/rpcagent/pkg/core"
)

// SQLConnector introspects a database and registers table models as
// functions.
type SQLConnector struct {
	db          *sql.DB
	driver      string
	tables      map[string]*SQLTable
	tableFilter map[string]bool
	toolPrefix  string
	readOnly    bool
}

// SQLTable represents a database table.
type SQLTable struct {
	Name       string
	Schema     string
	Columns    []SQLColumn
	PrimaryKey []string
}

// Column returns the column called name.
func (t *SQLTable) Column(name string) (SQLColumn, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return SQLColumn{}, false
}

// ColumnNames returns the column names in table order.
func (t *SQLTable) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// SQLColumn represents a column in a table.
type SQLColumn struct {
	Name       string
	Type       string
	Nullable   bool
	IsPrimary  bool
	MaxLength  int
	HasDefault bool
}

// SQLOption configures the SQLConnector.
type SQLOption func(*SQLConnector)

// WithSQLTables limits introspection to specific tables.
func WithSQLTables(tables ...string) SQLOption {
	return func(c *SQLConnector) {
		if len(tables) == 0 {
			return
		}
		c.tableFilter = make(map[string]bool, len(tables))
		for _, t := range tables {
			c.tableFilter[t] = true
		}
	}
}

// WithSQLToolPrefix prefixes generated function names.
func WithSQLToolPrefix(prefix string) SQLOption {
	return func(c *SQLConnector) {
		c.toolPrefix = prefix
	}
}

// WithSQLReadOnly registers only the find functions.
func WithSQLReadOnly() SQLOption {
	return func(c *SQLConnector) {
		c.readOnly = true
	}
}

// NewSQLConnector creates a SQL connector from a database connection.
func NewSQLConnector(ctx context.Context, db *sql.DB, driver string, opts ...SQLOption) (*SQLConnector, error) {
	c := &SQLConnector{
		db:     db,
		driver: driver,
		tables: make(map[string]*SQLTable),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.introspect(ctx); err != nil {
		return nil, fmt.Errorf("introspection failed: %w", err)
	}

	return c, nil
}

func (c *SQLConnector) wanted(table string) bool {
	return c.tableFilter == nil || c.tableFilter[table]
}

// introspect discovers tables and columns from the database.
func (c *SQLConnector) introspect(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var query string
	switch c.driver {
	case "postgres", "postgresql", "pgx":
		query = `
			SELECT
				table_name,
				column_name,
				data_type,
				is_nullable,
				character_maximum_length,
				column_default
			FROM information_schema.columns
			WHERE table_schema = 'public'
			ORDER BY table_name, ordinal_position
		`
	case "mysql":
		query = `
			SELECT
				table_name,
				column_name,
				data_type,
				is_nullable,
				character_maximum_length,
				column_default
			FROM information_schema.columns
			WHERE table_schema = DATABASE()
			ORDER BY table_name, ordinal_position
		`
	case "sqlite", "sqlite3":
		return c.introspectSQLite(ctx)
	default:
		query = `
			SELECT
				table_name,
				column_name,
				data_type,
				is_nullable,
				character_maximum_length,
				column_default
			FROM information_schema.columns
			ORDER BY table_name, ordinal_position
		`
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var maxLength sql.NullInt64
		var columnDefault sql.NullString

		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &maxLength, &columnDefault); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if !c.wanted(tableName) {
			continue
		}

		table, ok := c.tables[tableName]
		if !ok {
			table = &SQLTable{Name: tableName}
			c.tables[tableName] = table
		}

		col := SQLColumn{
			Name:       columnName,
			Type:       dataType,
			Nullable:   strings.ToUpper(isNullable) == "YES",
			HasDefault: columnDefault.Valid,
		}
		if maxLength.Valid {
			col.MaxLength = int(maxLength.Int64)
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Tables without primary key information fall back to "id".
	_ = c.introspectPrimaryKeys(ctx)
	return nil
}

// introspectSQLite handles SQLite-specific introspection.
func (c *SQLConnector) introspectSQLite(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		if c.wanted(name) {
			tableNames = append(tableNames, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tableName := range tableNames {
		table := &SQLTable{Name: tableName}

		pragmaRows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", c.quoteIdentifier(tableName)))
		if err != nil {
			return fmt.Errorf("failed to describe %s: %w", tableName, err)
		}

		for pragmaRows.Next() {
			var cid int
			var name, dataType string
			var notNull, pk int
			var dfltValue sql.NullString

			if err := pragmaRows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
				pragmaRows.Close()
				return fmt.Errorf("failed to describe %s: %w", tableName, err)
			}

			table.Columns = append(table.Columns, SQLColumn{
				Name:       name,
				Type:       dataType,
				Nullable:   notNull == 0,
				IsPrimary:  pk > 0,
				HasDefault: dfltValue.Valid,
			})
			if pk > 0 {
				table.PrimaryKey = append(table.PrimaryKey, name)
			}
		}
		pragmaRows.Close()

		c.tables[tableName] = table
	}

	return nil
}

// introspectPrimaryKeys gets primary key information.
func (c *SQLConnector) introspectPrimaryKeys(ctx context.Context) error {
	var query string
	switch c.driver {
	case "postgres", "postgresql", "pgx":
		query = `
			SELECT
				kcu.table_name,
				kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = 'public'
		`
	case "mysql":
		query = `
			SELECT
				table_name,
				column_name
			FROM information_schema.key_column_usage
			WHERE constraint_name = 'PRIMARY'
			AND table_schema = DATABASE()
		`
	default:
		return nil
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			continue
		}

		if table, ok := c.tables[tableName]; ok {
			table.PrimaryKey = append(table.PrimaryKey, columnName)
			for i := range table.Columns {
				if table.Columns[i].Name == columnName {
					table.Columns[i].IsPrimary = true
				}
			}
		}
	}

	return rows.Err()
}

// Tables returns the discovered tables.
func (c *SQLConnector) Tables() map[string]*SQLTable {
	return c.tables
}

// Table returns the discovered table called name.
func (c *SQLConnector) Table(name string) (*SQLTable, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// TableNames returns the discovered table names in sorted order.
func (c *SQLConnector) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check pings the database. It implements core.HealthChecker.
func (c *SQLConnector) Check(ctx context.Context) core.HealthResult {
	result := core.HealthResult{
		Component: "sql:" + c.driver,
		LastCheck: time.Now(),
		Status:    core.HealthHealthy,
		Message:   fmt.Sprintf("%d tables", len(c.tables)),
	}
	if c.db == nil {
		result.Status = core.HealthUnhealthy
		result.Message = "database connection is nil"
		return result
	}
	if err := c.db.PingContext(ctx); err != nil {
		result.Status = core.HealthUnhealthy
		result.Message = "ping failed"
		result.Error = err
	}
	return result
}

// Close closes the database connection.
func (c *SQLConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// rowsToMaps converts sql.Rows to a slice of maps. It never returns a nil
// slice so that empty results encode as [].
func (c *SQLConnector) rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// quoteIdentifier quotes a SQL identifier.
func (c *SQLConnector) quoteIdentifier(name string) string {
	switch c.driver {
	case "mysql":
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// placeholder returns the bind parameter for position n (1-based).
func (c *SQLConnector) placeholder(n int) string {
	switch c.driver {
	case "postgres", "postgresql", "pgx":
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}
