package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/querypilot/querypilot/internal/conn"
)

func TestMySQLIntrospector(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector, err := IntrospectorFor(conn.DialectMySQL)
	if err != nil {
		t.Fatalf("IntrospectorFor() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE()")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("users", "CREATE TABLE `users` (`id` int NOT NULL)"))

	tables, err := introspector.ListTables(context.Background(), db)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "orders" || tables[1] != "users" {
		t.Fatalf("tables = %#v", tables)
	}
	definition, err := introspector.TableDefinition(context.Background(), db, "users")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if definition != "CREATE TABLE `users` (`id` int NOT NULL)" {
		t.Fatalf("definition = %q", definition)
	}
	assertSQLMock(t, mock)
}

func TestMySQLIntrospectorPropagatesPermissionError(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `secret`")).
		WillReturnError(errors.New("SHOW command denied to user"))

	_, err := mysqlIntrospector{}.TableDefinition(context.Background(), db, "secret")
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestPostgresIntrospectorSynthesizesCreateTable(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector, err := IntrospectorFor(conn.DialectPostgres)
	if err != nil {
		t.Fatalf("IntrospectorFor() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default"}).
			AddRow("id", "integer", nil, "NO", "nextval('orders_id_seq'::regclass)").
			AddRow("user_id", "integer", nil, "YES", nil).
			AddRow("note", "character varying", int64(200), "YES", nil))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = current_schema() AND tc.table_name = $1")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.referential_constraints rc")).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "table_name", "column_name"}).
			AddRow("orders_user_fk", "user_id", "users", "id"))

	definition, err := introspector.TableDefinition(context.Background(), db, "orders")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	want := "CREATE TABLE \"orders\" (\n" +
		"  \"id\" integer NOT NULL DEFAULT nextval('orders_id_seq'::regclass),\n" +
		"  \"user_id\" integer,\n" +
		"  \"note\" character varying(200),\n" +
		"  PRIMARY KEY (\"id\"),\n" +
		"  FOREIGN KEY (\"user_id\") REFERENCES \"users\" (\"id\")\n" +
		")"
	if definition != want {
		t.Fatalf("definition =\n%s\nwant\n%s", definition, want)
	}
	assertSQLMock(t, mock)
}

func TestSQLServerIntrospectorUsesNamedPlaceholder(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector, err := IntrospectorFor(conn.DialectSQLServer)
	if err != nil {
		t.Fatalf("IntrospectorFor() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE table_schema = SCHEMA_NAME() AND table_name = @p1")).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default"}).
			AddRow("id", "int", nil, "NO", nil))
	mock.ExpectQuery(regexp.QuoteMeta("tc.table_name = @p1")).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
	mock.ExpectQuery(regexp.QuoteMeta("kcu.table_name = @p1")).
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "table_name", "column_name"}))

	definition, err := introspector.TableDefinition(context.Background(), db, "users")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if definition != "CREATE TABLE [users] (\n  [id] int NOT NULL\n)" {
		t.Fatalf("definition = %q", definition)
	}
	assertSQLMock(t, mock)
}

func TestSQLiteIntrospectorReadsStoredDefinitions(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("ExecContext(%q) error = %v", stmt, err)
		}
	}

	introspector, err := IntrospectorFor(conn.DialectSQLite)
	if err != nil {
		t.Fatalf("IntrospectorFor() error = %v", err)
	}
	tables, err := introspector.ListTables(ctx, db)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "orders" || tables[1] != "users" {
		t.Fatalf("tables = %#v", tables)
	}
	definition, err := introspector.TableDefinition(ctx, db, "users")
	if err != nil {
		t.Fatalf("TableDefinition() error = %v", err)
	}
	if definition != "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)" {
		t.Fatalf("definition = %q", definition)
	}
}

func TestIntrospectorForRejectsUnknownDialect(t *testing.T) {
	if _, err := IntrospectorFor(conn.Dialect("oracle")); err == nil {
		t.Fatal("expected error")
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
