// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jllopis/rpcagent/pkg/core"
	"github.com/jllopis/rpcagent/pkg/errors"
	"github.com/jllopis/rpcagent/pkg/registry"
	"github.com/jllopis/rpcagent/pkg/schema"
)

// Default paging for the findAll function.
const (
	DefaultFindAllLimit = 100
)

// ModelSpec selects a table and the attributes exposed for it. Empty
// attribute lists default to every column; FindByAttributes defaults to
// ReadAttributes.
type ModelSpec struct {
	Table            string
	Name             string
	ReadAttributes   []string
	WriteAttributes  []string
	FindByAttributes []string
}

// model is a resolved ModelSpec bound to an introspected table.
type model struct {
	conn   *SQLConnector
	table  *SQLTable
	name   string
	pk     string
	read   []string
	write  []string
	findBy []string
}

// RegisterModel registers the CRUD functions for spec on reg. Function names
// take the form "<Model> > <operation>", where <Model> is the capitalized
// model name prefixed with the connector tool prefix. Read-only connectors
// only register the find functions.
func (c *SQLConnector) RegisterModel(reg *registry.Registry, spec ModelSpec) error {
	m, err := c.resolve(spec)
	if err != nil {
		return err
	}

	defs := []registry.Definition{
		m.definition("findAll", schema.Schema{
			{Name: "offset", Type: schema.TypeNumber},
			{Name: "limit", Type: schema.TypeNumber},
		}, m.findAll),
		m.definition("findByPk", schema.Schema{
			{Name: "primaryKey", Type: schema.TypeString, Required: true},
		}, m.findByPk),
		m.definition("findBy", m.attributeArgs(m.findBy), m.findByAttributes),
	}
	if !c.readOnly {
		writeArgs := m.attributeArgs(m.write)
		defs = append(defs,
			m.definition("create", writeArgs, m.create),
			m.definition("update", append(schema.Schema{
				{Name: "primaryKey", Type: schema.TypeString, Required: true},
			}, writeArgs...), m.update),
			m.definition("createOrUpdate", append(schema.Schema{
				{Name: "findAttributes", Type: schema.TypeDict, Required: true},
			}, writeArgs...), m.createOrUpdate),
		)
	}

	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLConnector) resolve(spec ModelSpec) (*model, error) {
	table, ok := c.tables[spec.Table]
	if !ok {
		return nil, fmt.Errorf("table %q not found", spec.Table)
	}

	name := spec.Name
	if name == "" {
		name = spec.Table
	}

	m := &model{
		conn:  c,
		table: table,
		name:  c.toolPrefix + capitalize(name),
		pk:    "id",
	}
	if len(table.PrimaryKey) > 0 {
		m.pk = table.PrimaryKey[0]
	}

	var err error
	if m.read, err = m.attributes(spec.ReadAttributes, table.ColumnNames()); err != nil {
		return nil, err
	}
	if m.write, err = m.attributes(spec.WriteAttributes, table.ColumnNames()); err != nil {
		return nil, err
	}
	if m.findBy, err = m.attributes(spec.FindByAttributes, m.read); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *model) attributes(names, fallback []string) ([]string, error) {
	if len(names) == 0 {
		return append([]string(nil), fallback...), nil
	}
	for _, name := range names {
		if _, ok := m.table.Column(name); !ok {
			return nil, fmt.Errorf("table %q has no column %q", m.table.Name, name)
		}
	}
	return append([]string(nil), names...), nil
}

func (m *model) definition(op string, args schema.Schema, fn registry.FunctionFunc) registry.Definition {
	return registry.Definition{
		Name:           m.name + " > " + op,
		Arguments:      args,
		Implementation: fn,
	}
}

func (m *model) attributeArgs(names []string) schema.Schema {
	args := make(schema.Schema, 0, len(names))
	for _, name := range names {
		col, _ := m.table.Column(name)
		args = append(args, schema.Argument{Name: name, Type: columnArgumentType(col.Type)})
	}
	return args
}

var numericTypes = map[string]bool{
	"INT": true, "INTEGER": true, "TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true,
	"INT2": true, "INT4": true, "INT8": true, "SERIAL": true, "SMALLSERIAL": true, "BIGSERIAL": true,
	"REAL": true, "NUMERIC": true, "DECIMAL": true, "FLOAT": true, "FLOAT4": true, "FLOAT8": true,
	"DOUBLE": true,
}

// columnArgumentType maps a database column type to an argument type by its
// base type name: "numeric(10,2)" is NUMERIC, "double precision" is DOUBLE.
// Array types are exchanged as strings.
func columnArgumentType(dbType string) schema.ArgumentType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if strings.HasSuffix(t, "]") {
		return schema.TypeString
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	base, _, _ := strings.Cut(strings.TrimSpace(t), " ")
	switch {
	case base == "BOOL" || base == "BOOLEAN":
		return schema.TypeBoolean
	case base == "JSON" || base == "JSONB":
		return schema.TypeJSON
	case numericTypes[base]:
		return schema.TypeNumber
	default:
		return schema.TypeString
	}
}

func (m *model) create(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	id, err := m.insert(ctx, pick(args, m.write))
	if err != nil {
		return nil, err
	}
	return m.fetchOne(ctx, m.pk, id)
}

func (m *model) update(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	n, err := m.updateWhere(ctx, pick(args, m.write), map[string]any{m.pk: args["primaryKey"]})
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": n}, nil
}

func (m *model) createOrUpdate(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	find, ok := args["findAttributes"].(map[string]any)
	if !ok {
		return nil, errors.New(errors.CodeAgentServer, "findAttributes must be an object", nil)
	}
	for key := range find {
		if _, ok := m.table.Column(key); !ok {
			return nil, errors.New(errors.CodeAgentServer, fmt.Sprintf("unknown attribute %q", key), nil)
		}
	}
	values := pick(args, m.write)

	rows, err := m.selectWhere(ctx, []string{m.pk}, find, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		key := rows[0][m.pk]
		if _, err := m.updateWhere(ctx, values, map[string]any{m.pk: key}); err != nil {
			return nil, err
		}
		return m.fetchOne(ctx, m.pk, key)
	}

	merged := make(map[string]any, len(find)+len(values))
	for k, v := range find {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	id, err := m.insert(ctx, merged)
	if err != nil {
		return nil, err
	}
	return m.fetchOne(ctx, m.pk, id)
}

func (m *model) findAll(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	offset := intArg(args["offset"], 0)
	limit := intArg(args["limit"], DefaultFindAllLimit)
	return m.selectWhere(ctx, m.read, nil, limit, offset)
}

func (m *model) findByPk(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	row, err := m.fetchOne(ctx, m.pk, args["primaryKey"])
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row, nil
}

func (m *model) findByAttributes(ctx context.Context, args map[string]any, _ core.InvocationContext) (any, error) {
	return m.selectWhere(ctx, m.read, pick(args, m.findBy), 0, 0)
}

// fetchOne returns the read attributes of the first row where column equals
// value, or nil when there is none.
func (m *model) fetchOne(ctx context.Context, column string, value any) (map[string]any, error) {
	rows, err := m.selectWhere(ctx, m.read, map[string]any{column: value}, 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (m *model) selectWhere(ctx context.Context, columns []string, where map[string]any, limit, offset int) ([]map[string]any, error) {
	c := m.conn
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.quoteIdentifier(col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoted, ", "), c.quoteIdentifier(m.table.Name))
	clause, params := m.whereClause(where, 0)
	b.WriteString(clause)
	fmt.Fprintf(&b, " ORDER BY %s", c.quoteIdentifier(m.pk))
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
		if offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, queryError(m.table.Name, err)
	}
	defer rows.Close()
	return c.rowsToMaps(rows)
}

func (m *model) insert(ctx context.Context, values map[string]any) (any, error) {
	c := m.conn
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return nil, errors.New(errors.CodeAgentServer, "attributes must not be empty", nil)
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	params := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = c.quoteIdentifier(col)
		marks[i] = c.placeholder(i + 1)
		params[i] = values[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.quoteIdentifier(m.table.Name), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	if key, ok := values[m.pk]; ok && key != nil {
		if _, err := c.db.ExecContext(ctx, query, params...); err != nil {
			return nil, queryError(m.table.Name, err)
		}
		return key, nil
	}

	switch c.driver {
	case "postgres", "postgresql", "pgx":
		var id any
		row := c.db.QueryRowContext(ctx, query+" RETURNING "+c.quoteIdentifier(m.pk), params...)
		if err := row.Scan(&id); err != nil {
			return nil, queryError(m.table.Name, err)
		}
		return id, nil
	default:
		res, err := c.db.ExecContext(ctx, query, params...)
		if err != nil {
			return nil, queryError(m.table.Name, err)
		}
		return lastInsertID(res, m.table.Name)
	}
}

func (m *model) updateWhere(ctx context.Context, values, where map[string]any) (int64, error) {
	c := m.conn
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return 0, nil
	}

	sets := make([]string, len(cols))
	params := make([]any, 0, len(cols)+len(where))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c.quoteIdentifier(col), c.placeholder(i+1))
		params = append(params, values[col])
	}
	clause, whereParams := m.whereClause(where, len(cols))
	params = append(params, whereParams...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", c.quoteIdentifier(m.table.Name), strings.Join(sets, ", "), clause)
	res, err := c.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, queryError(m.table.Name, err)
	}
	return res.RowsAffected()
}

// whereClause builds an AND-joined equality filter. Placeholders are numbered
// after the first offset parameters.
func (m *model) whereClause(where map[string]any, offset int) (string, []any) {
	cols := sortedKeys(where)
	if len(cols) == 0 {
		return "", nil
	}
	conds := make([]string, len(cols))
	params := make([]any, len(cols))
	for i, col := range cols {
		conds[i] = fmt.Sprintf("%s = %s", m.conn.quoteIdentifier(col), m.conn.placeholder(offset+i+1))
		params[i] = where[col]
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

func lastInsertID(res sql.Result, table string) (any, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return nil, queryError(table, err)
	}
	return id, nil
}

func queryError(table string, err error) error {
	return errors.New(errors.CodeAgentServer, err.Error(), err).WithContext("table", table)
}

// pick returns the entries of args named in keys, skipping nil values.
func pick(args map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := args[key]; ok && v != nil {
			out[key] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intArg(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	}
	return fallback
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
