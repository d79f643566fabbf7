// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MagicOwO/pipo-agent/pkg/action"
	"github.com/MagicOwO/pipo-agent/pkg/errors"
)

// SQLConnector generates CRUD actions from a database schema.
type SQLConnector struct {
	db           *sql.DB
	driver       string
	tables       map[string]*SQLTable
	actionPrefix string
	readOnly     bool
}

// SQLTable describes one introspected table.
type SQLTable struct {
	Name       string
	Columns    []SQLColumn
	PrimaryKey []string
}

// SQLColumn describes one column.
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

// WithSQLActionPrefix prefixes generated action names.
func WithSQLActionPrefix(prefix string) SQLOption {
	return func(c *SQLConnector) {
		c.actionPrefix = prefix
	}
}

// WithSQLReadOnly generates only read actions, no INSERT, UPDATE, or DELETE.
func WithSQLReadOnly() SQLOption {
	return func(c *SQLConnector) {
		c.readOnly = true
	}
}

// NewSQLConnector introspects the database and builds a connector.
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
		return nil, errors.New(errors.CodeExecution, "database introspection failed", err)
	}
	return c, nil
}

// NewSQLConnectorFromTables builds a connector from pre-defined tables,
// skipping introspection.
func NewSQLConnectorFromTables(db *sql.DB, driver string, tables map[string]*SQLTable, opts ...SQLOption) *SQLConnector {
	c := &SQLConnector{
		db:     db,
		driver: driver,
		tables: tables,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SQLConnector) introspect(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	switch c.driver {
	case "sqlite", "sqlite3":
		return c.introspectSQLite(ctx)
	}

	var query string
	switch c.driver {
	case "postgres", "postgresql":
		query = `
			SELECT table_name, column_name, data_type, is_nullable,
			       character_maximum_length, column_default
			FROM information_schema.columns
			WHERE table_schema = 'public'
			ORDER BY table_name, ordinal_position`
	case "mysql":
		query = `
			SELECT table_name, column_name, data_type, is_nullable,
			       character_maximum_length, column_default
			FROM information_schema.columns
			WHERE table_schema = DATABASE()
			ORDER BY table_name, ordinal_position`
	default:
		query = `
			SELECT table_name, column_name, data_type, is_nullable,
			       character_maximum_length, column_default
			FROM information_schema.columns
			ORDER BY table_name, ordinal_position`
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("column query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var maxLength sql.NullInt64
		var columnDefault sql.NullString

		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &maxLength, &columnDefault); err != nil {
			return fmt.Errorf("column scan failed: %w", err)
		}

		table, ok := c.tables[tableName]
		if !ok {
			table = &SQLTable{Name: tableName}
			c.tables[tableName] = table
		}

		col := SQLColumn{
			Name:       columnName,
			Type:       dataType,
			Nullable:   strings.EqualFold(isNullable, "YES"),
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

	// PK info is best-effort; tables without it fall back to an "id" param.
	c.introspectPrimaryKeys(ctx)
	return nil
}

func (c *SQLConnector) introspectSQLite(ctx context.Context) error {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return fmt.Errorf("table listing failed: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tableName := range tableNames {
		table := &SQLTable{Name: tableName}

		pragmaRows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", tableName))
		if err != nil {
			continue
		}
		for pragmaRows.Next() {
			var cid int
			var name, dataType string
			var notNull, pk int
			var dfltValue sql.NullString

			if err := pragmaRows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
				continue
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

func (c *SQLConnector) introspectPrimaryKeys(ctx context.Context) {
	var query string
	switch c.driver {
	case "postgres", "postgresql":
		query = `
			SELECT kcu.table_name, kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = 'public'`
	case "mysql":
		query = `
			SELECT table_name, column_name
			FROM information_schema.key_column_usage
			WHERE constraint_name = 'PRIMARY'
			AND table_schema = DATABASE()`
	default:
		return
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return
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
}

// Specs generates CRUD action specs for every discovered table.
func (c *SQLConnector) Specs() []action.Spec {
	var specs []action.Spec
	for _, table := range c.tables {
		specs = append(specs, c.listSpec(table), c.getSpec(table))
		if !c.readOnly {
			specs = append(specs, c.createSpec(table), c.updateSpec(table), c.deleteSpec(table))
		}
	}
	return specs
}

func (c *SQLConnector) actionName(operation string, table *SQLTable) string {
	name := fmt.Sprintf("%s_%s", operation, toSnakeCase(table.Name))
	if c.actionPrefix != "" {
		name = c.actionPrefix + "_" + name
	}
	return name
}

func (c *SQLConnector) listSpec(table *SQLTable) action.Spec {
	return action.Spec{
		Name:        c.actionName("list", table),
		Description: fmt.Sprintf("List records from the %s table with optional filters", table.Name),
		Params: []action.ParamSpec{
			{Name: "filters", Type: action.ParamObject, Description: "Filter conditions as column to value pairs"},
			{Name: "limit", Type: action.ParamInt, Description: "Maximum number of records to return", Default: 100},
			{Name: "offset", Type: action.ParamInt, Description: "Number of records to skip", Default: 0},
			{Name: "order_by", Type: action.ParamString, Description: "Column to order by"},
			{Name: "order_desc", Type: action.ParamBool, Description: "Order descending", Default: false},
		},
	}
}

func (c *SQLConnector) getSpec(table *SQLTable) action.Spec {
	return action.Spec{
		Name:        c.actionName("get", table),
		Description: fmt.Sprintf("Get a single record from %s by primary key", table.Name),
		Params:      c.keyParams(table),
	}
}

func (c *SQLConnector) createSpec(table *SQLTable) action.Spec {
	var params []action.ParamSpec
	for _, col := range table.Columns {
		if col.IsPrimary && col.HasDefault {
			continue
		}
		params = append(params, action.ParamSpec{
			Name:     col.Name,
			Type:     columnParamType(col),
			Required: !col.Nullable && !col.HasDefault && !col.IsPrimary,
		})
	}
	return action.Spec{
		Name:        c.actionName("create", table),
		Description: fmt.Sprintf("Create a new record in %s", table.Name),
		Params:      params,
	}
}

func (c *SQLConnector) updateSpec(table *SQLTable) action.Spec {
	params := c.keyParams(table)
	for _, col := range table.Columns {
		if col.IsPrimary {
			continue
		}
		params = append(params, action.ParamSpec{
			Name: col.Name,
			Type: columnParamType(col),
		})
	}
	return action.Spec{
		Name:        c.actionName("update", table),
		Description: fmt.Sprintf("Update a record in %s by primary key", table.Name),
		Params:      params,
	}
}

func (c *SQLConnector) deleteSpec(table *SQLTable) action.Spec {
	return action.Spec{
		Name:        c.actionName("delete", table),
		Description: fmt.Sprintf("Delete a record from %s by primary key", table.Name),
		Params:      c.keyParams(table),
	}
}

// keyParams returns the required primary key parameters, or a generic "id"
// when the table has no declared key.
func (c *SQLConnector) keyParams(table *SQLTable) []action.ParamSpec {
	if len(table.PrimaryKey) == 0 {
		return []action.ParamSpec{{Name: "id", Type: action.ParamString, Description: "Record ID", Required: true}}
	}
	var params []action.ParamSpec
	for _, pk := range table.PrimaryKey {
		p := action.ParamSpec{Name: pk, Type: action.ParamString, Required: true}
		for _, col := range table.Columns {
			if col.Name == pk {
				p.Type = columnParamType(col)
				break
			}
		}
		params = append(params, p)
	}
	return params
}

func columnParamType(col SQLColumn) action.ParamType {
	sqlType := strings.ToUpper(col.Type)
	switch {
	case strings.Contains(sqlType, "INT"):
		return action.ParamInt
	case strings.Contains(sqlType, "FLOAT"), strings.Contains(sqlType, "DOUBLE"),
		strings.Contains(sqlType, "DECIMAL"), strings.Contains(sqlType, "NUMERIC"),
		strings.Contains(sqlType, "REAL"):
		return action.ParamFloat
	case strings.Contains(sqlType, "BOOL"):
		return action.ParamBool
	case strings.Contains(sqlType, "JSON"):
		return action.ParamObject
	case strings.Contains(sqlType, "ARRAY"):
		return action.ParamList
	default:
		return action.ParamString
	}
}

// Execute dispatches by action name: the leading segment is the operation,
// the rest names the table.
func (c *SQLConnector) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if c.db == nil {
		return nil, errors.New(errors.CodeExecution, "database connection is nil", nil)
	}

	trimmed := name
	if c.actionPrefix != "" && strings.HasPrefix(name, c.actionPrefix+"_") {
		trimmed = strings.TrimPrefix(name, c.actionPrefix+"_")
	}
	parts := strings.SplitN(trimmed, "_", 2)
	if len(parts) != 2 {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid action name %q", name), nil)
	}
	operation, tableName := parts[0], parts[1]

	var table *SQLTable
	for _, t := range c.tables {
		if toSnakeCase(t.Name) == tableName {
			table = t
			break
		}
	}
	if table == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("table %q not found", tableName), nil)
	}

	switch operation {
	case "list":
		return c.executeList(ctx, table, args)
	case "get":
		return c.executeGet(ctx, table, args)
	case "create", "update", "delete":
		if c.readOnly {
			return nil, errors.New(errors.CodeInvalidInput, "connector is read-only", nil)
		}
		switch operation {
		case "create":
			return c.executeCreate(ctx, table, args)
		case "update":
			return c.executeUpdate(ctx, table, args)
		default:
			return c.executeDelete(ctx, table, args)
		}
	default:
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown operation %q", operation), nil)
	}
}

func (c *SQLConnector) executeList(ctx context.Context, table *SQLTable, args map[string]any) (any, error) {
	query := fmt.Sprintf("SELECT * FROM %s", c.quoteIdentifier(table.Name))
	var queryArgs []any

	if filters, ok := args["filters"].(map[string]any); ok && len(filters) > 0 {
		var conditions []string
		for col, val := range filters {
			conditions = append(conditions, fmt.Sprintf("%s = ?", c.quoteIdentifier(col)))
			queryArgs = append(queryArgs, val)
		}
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if orderBy, ok := args["order_by"].(string); ok && orderBy != "" {
		query += fmt.Sprintf(" ORDER BY %s", c.quoteIdentifier(orderBy))
		if desc, ok := args["order_desc"].(bool); ok && desc {
			query += " DESC"
		}
	}

	limit := 100
	if l, ok := toInt64(args["limit"]); ok {
		limit = int(l)
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if offset, ok := toInt64(args["offset"]); ok && offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := c.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "query failed", err)
	}
	defer rows.Close()

	return rowsToMaps(rows)
}

func (c *SQLConnector) executeGet(ctx context.Context, table *SQLTable, args map[string]any) (any, error) {
	conditions, queryArgs, err := c.keyConditions(table, args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT 1",
		c.quoteIdentifier(table.Name), strings.Join(conditions, " AND "))

	rows, err := c.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "query failed", err)
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New(errors.CodeNotFound, "record not found", nil)
	}
	return results[0], nil
}

func (c *SQLConnector) executeCreate(ctx context.Context, table *SQLTable, args map[string]any) (any, error) {
	var columns, placeholders []string
	var values []any

	for col, val := range args {
		columns = append(columns, c.quoteIdentifier(col))
		placeholders = append(placeholders, "?")
		values = append(values, val)
	}
	if len(columns) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no fields to insert", nil)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.quoteIdentifier(table.Name),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))

	result, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "insert failed", err)
	}

	lastID, _ := result.LastInsertId()
	rowsAffected, _ := result.RowsAffected()
	return map[string]any{
		"last_insert_id": lastID,
		"rows_affected":  rowsAffected,
	}, nil
}

func (c *SQLConnector) executeUpdate(ctx context.Context, table *SQLTable, args map[string]any) (any, error) {
	pkSet := make(map[string]bool, len(table.PrimaryKey))
	for _, pk := range table.PrimaryKey {
		pkSet[pk] = true
	}

	var setClauses, whereClauses []string
	var setValues, whereValues []any
	for col, val := range args {
		if pkSet[col] {
			whereClauses = append(whereClauses, fmt.Sprintf("%s = ?", c.quoteIdentifier(col)))
			whereValues = append(whereValues, val)
		} else {
			setClauses = append(setClauses, fmt.Sprintf("%s = ?", c.quoteIdentifier(col)))
			setValues = append(setValues, val)
		}
	}
	if len(whereClauses) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "missing primary key for update", nil)
	}
	if len(setClauses) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no fields to update", nil)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		c.quoteIdentifier(table.Name),
		strings.Join(setClauses, ", "),
		strings.Join(whereClauses, " AND "))

	result, err := c.db.ExecContext(ctx, query, append(setValues, whereValues...)...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "update failed", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return map[string]any{"rows_affected": rowsAffected}, nil
}

func (c *SQLConnector) executeDelete(ctx context.Context, table *SQLTable, args map[string]any) (any, error) {
	conditions, values, err := c.keyConditions(table, args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		c.quoteIdentifier(table.Name), strings.Join(conditions, " AND "))

	result, err := c.db.ExecContext(ctx, query, values...)
	if err != nil {
		return nil, errors.New(errors.CodeExecution, "delete failed", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return map[string]any{"rows_affected": rowsAffected}, nil
}

func (c *SQLConnector) keyConditions(table *SQLTable, args map[string]any) ([]string, []any, error) {
	pkCols := table.PrimaryKey
	if len(pkCols) == 0 {
		pkCols = []string{"id"}
	}

	var conditions []string
	var values []any
	for _, pk := range pkCols {
		val, ok := args[pk]
		if !ok {
			return nil, nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("missing primary key %q", pk), nil)
		}
		conditions = append(conditions, fmt.Sprintf("%s = ?", c.quoteIdentifier(pk)))
		values = append(values, val)
	}
	return conditions, values, nil
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
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

func (c *SQLConnector) quoteIdentifier(name string) string {
	if c.driver == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// Tables returns the introspected tables.
func (c *SQLConnector) Tables() map[string]*SQLTable {
	return c.tables
}

// Close closes the database connection.
func (c *SQLConnector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
