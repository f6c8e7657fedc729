package database

import (
	"strings"
	"testing"

	"github.com/querypilot/querypilot/internal/conn"
)

func TestDriverDSNMySQL(t *testing.T) {
	uri, err := conn.ResolveURI(conn.Details{Username: "app", Password: "p@ss/word", Hostname: "db:3307", Database: "shop"})
	if err != nil {
		t.Fatalf("ResolveURI() error = %v", err)
	}
	driver, dsn, err := DriverDSN(conn.DialectMySQL, uri)
	if err != nil {
		t.Fatalf("DriverDSN() error = %v", err)
	}
	if driver != "mysql" {
		t.Fatalf("driver = %q", driver)
	}
	if !strings.HasPrefix(dsn, "app:p@ss/word@tcp(db:3307)/shop") {
		t.Fatalf("dsn = %q", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("dsn = %q, want parseTime", dsn)
	}
}

func TestDriverDSNPostgresKeepsURI(t *testing.T) {
	uri := "postgres://app:p%40ss@db/shop"
	driver, dsn, err := DriverDSN(conn.DialectPostgres, uri)
	if err != nil {
		t.Fatalf("DriverDSN() error = %v", err)
	}
	if driver != "pgx" || dsn != uri {
		t.Fatalf("driver/dsn = %q/%q", driver, dsn)
	}
}

func TestDriverDSNSQLServerMovesDatabaseToQuery(t *testing.T) {
	driver, dsn, err := DriverDSN(conn.DialectSQLServer, "sqlserver://sa:p%3Aw@db:1433/shop")
	if err != nil {
		t.Fatalf("DriverDSN() error = %v", err)
	}
	if driver != "sqlserver" {
		t.Fatalf("driver = %q", driver)
	}
	if dsn != "sqlserver://sa:p%3Aw@db:1433?database=shop" {
		t.Fatalf("dsn = %q", dsn)
	}
}

func TestDriverDSNFileDialectsUseDatabasePath(t *testing.T) {
	driver, dsn, err := DriverDSN(conn.DialectSQLite, "sqlite://u:p@local//var/lib/app.db")
	if err != nil {
		t.Fatalf("DriverDSN() error = %v", err)
	}
	if driver != "sqlite3" || dsn != "/var/lib/app.db" {
		t.Fatalf("driver/dsn = %q/%q", driver, dsn)
	}

	driver, dsn, err = DriverDSN(conn.DialectDuckDB, "duckdb://u:p@local/warehouse.duckdb")
	if err != nil {
		t.Fatalf("DriverDSN() error = %v", err)
	}
	if driver != "duckdb" || dsn != "warehouse.duckdb" {
		t.Fatalf("driver/dsn = %q/%q", driver, dsn)
	}
}

func TestDriverDSNRejectsUnknownDialect(t *testing.T) {
	if _, _, err := DriverDSN(conn.Dialect("oracle"), "oracle://u:p@h/d"); err == nil {
		t.Fatal("expected unsupported dialect error")
	}
}
