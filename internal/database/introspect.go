package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/conn"
)

type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspector lists tables and captures each table's definition in the dialect's own DDL.
type Introspector interface {
	ListTables(ctx context.Context, q Queryer) ([]string, error)
	TableDefinition(ctx context.Context, q Queryer, table string) (string, error)
}

func IntrospectorFor(dialect conn.Dialect) (Introspector, error) {
	switch dialect {
	case conn.DialectMySQL:
		return mysqlIntrospector{}, nil
	case conn.DialectSQLite:
		return sqliteIntrospector{}, nil
	case conn.DialectDuckDB:
		return duckdbIntrospector{}, nil
	case conn.DialectPostgres:
		return infoSchemaIntrospector{schemaExpr: "current_schema()", placeholder: "$1", quote: quoteDouble}, nil
	case conn.DialectSQLServer:
		return infoSchemaIntrospector{schemaExpr: "SCHEMA_NAME()", placeholder: "@p1", quote: quoteBracket}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

type mysqlIntrospector struct{}

func (mysqlIntrospector) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	return listNames(ctx, q, "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME")
}

func (mysqlIntrospector) TableDefinition(ctx context.Context, q Queryer, table string) (string, error) {
	rows, err := q.QueryContext(ctx, "SHOW CREATE TABLE "+quoteBacktick(table))
	if err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("show create table %s columns: %w", table, err)
	}
	if len(columns) < 2 {
		return "", fmt.Errorf("show create table %s returned %d columns", table, len(columns))
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("show create table %s: %w", table, err)
		}
		return "", fmt.Errorf("show create table %s returned no rows", table)
	}
	values := make([]sql.NullString, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return "", fmt.Errorf("scan create table %s: %w", table, err)
	}
	return values[1].String, nil
}

type sqliteIntrospector struct{}

func (sqliteIntrospector) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	return listNames(ctx, q, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

func (sqliteIntrospector) TableDefinition(ctx context.Context, q Queryer, table string) (string, error) {
	var definition sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&definition); err != nil {
		return "", fmt.Errorf("read definition of %s: %w", table, err)
	}
	return definition.String, nil
}

type duckdbIntrospector struct{}

func (duckdbIntrospector) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	return listNames(ctx, q, "SELECT table_name FROM duckdb_tables() WHERE NOT internal ORDER BY table_name")
}

func (duckdbIntrospector) TableDefinition(ctx context.Context, q Queryer, table string) (string, error) {
	var definition sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT sql FROM duckdb_tables() WHERE table_name = ?", table).Scan(&definition); err != nil {
		return "", fmt.Errorf("read definition of %s: %w", table, err)
	}
	return definition.String, nil
}

// infoSchemaIntrospector synthesizes CREATE TABLE text for engines without a native
// "show create" statement.
type infoSchemaIntrospector struct {
	schemaExpr  string
	placeholder string
	quote       func(string) string
}

func (i infoSchemaIntrospector) ListTables(ctx context.Context, q Queryer) ([]string, error) {
	return listNames(ctx, q, fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = %s AND table_type = 'BASE TABLE' ORDER BY table_name",
		i.schemaExpr,
	))
}

func (i infoSchemaIntrospector) TableDefinition(ctx context.Context, q Queryer, table string) (string, error) {
	columns, err := i.columns(ctx, q, table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %s has no visible columns", table)
	}
	primaryKey, err := listNames(ctx, q, i.primaryKeyQuery(), table)
	if err != nil {
		return "", fmt.Errorf("read primary key of %s: %w", table, err)
	}
	foreignKeys, err := i.foreignKeys(ctx, q, table)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(columns)+1+len(foreignKeys))
	lines = append(lines, columns...)
	if len(primaryKey) > 0 {
		lines = append(lines, "PRIMARY KEY ("+i.quoteAll(primaryKey)+")")
	}
	lines = append(lines, foreignKeys...)
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", i.quote(table), strings.Join(lines, ",\n  ")), nil
}

func (i infoSchemaIntrospector) columns(ctx context.Context, q Queryer, table string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, i.schemaExpr, i.placeholder)

	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]string, 0)
	for rows.Next() {
		var (
			name, dataType, nullable string
			maxLength                sql.NullInt64
			defaultValue             sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &maxLength, &nullable, &defaultValue); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		line := i.quote(name) + " " + dataType
		if maxLength.Valid && maxLength.Int64 > 0 {
			line += fmt.Sprintf("(%d)", maxLength.Int64)
		}
		if strings.EqualFold(nullable, "NO") {
			line += " NOT NULL"
		}
		if defaultValue.Valid && defaultValue.String != "" {
			line += " DEFAULT " + defaultValue.String
		}
		columns = append(columns, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

func (i infoSchemaIntrospector) primaryKeyQuery() string {
	return fmt.Sprintf(`
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = %s AND tc.table_name = %s
ORDER BY kcu.ordinal_position`, i.schemaExpr, i.placeholder)
}

func (i infoSchemaIntrospector) foreignKeys(ctx context.Context, q Queryer, table string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT kcu.constraint_name, kcu.column_name, rkcu.table_name, rkcu.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = rc.constraint_name AND kcu.constraint_schema = rc.constraint_schema
JOIN information_schema.key_column_usage rkcu
  ON rkcu.constraint_name = rc.unique_constraint_name
 AND rkcu.constraint_schema = rc.unique_constraint_schema
 AND rkcu.ordinal_position = kcu.ordinal_position
WHERE kcu.table_schema = %s AND kcu.table_name = %s
ORDER BY kcu.constraint_name, kcu.ordinal_position`, i.schemaExpr, i.placeholder)

	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("read foreign keys of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	type foreignKey struct {
		columns    []string
		refTable   string
		refColumns []string
	}
	order := make([]string, 0)
	byName := map[string]*foreignKey{}
	for rows.Next() {
		var name, column, refTable, refColumn string
		if err := rows.Scan(&name, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key of %s: %w", table, err)
		}
		fk, ok := byName[name]
		if !ok {
			fk = &foreignKey{refTable: refTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.columns = append(fk.columns, column)
		fk.refColumns = append(fk.refColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys of %s: %w", table, err)
	}

	lines := make([]string, 0, len(order))
	for _, name := range order {
		fk := byName[name]
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", i.quoteAll(fk.columns), i.quote(fk.refTable), i.quoteAll(fk.refColumns)))
	}
	return lines, nil
}

func (i infoSchemaIntrospector) quoteAll(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, i.quote(name))
	}
	return strings.Join(quoted, ", ")
}

func listNames(ctx context.Context, q Queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return names, nil
}

func quoteBacktick(value string) string {
	return "`" + strings.ReplaceAll(value, "`", "``") + "`"
}

func quoteDouble(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteBracket(value string) string {
	return "[" + strings.ReplaceAll(value, "]", "]]") + "]"
}
