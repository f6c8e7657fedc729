package database

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/querypilot/querypilot/internal/conn"
)

// DriverDSN converts a resolved connection URI into the database/sql driver name and DSN.
func DriverDSN(dialect conn.Dialect, uri string) (string, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse connection uri: %w", err)
	}
	if parsed.User == nil {
		return "", "", fmt.Errorf("connection uri has no credentials")
	}
	username := parsed.User.Username()
	password, _ := parsed.User.Password()
	database := strings.TrimPrefix(parsed.Path, "/")

	switch dialect {
	case conn.DialectMySQL:
		cfg := mysql.NewConfig()
		cfg.User = username
		cfg.Passwd = password
		cfg.Net = "tcp"
		cfg.Addr = parsed.Host
		cfg.DBName = database
		cfg.ParseTime = true
		cfg.AllowNativePasswords = true
		return "mysql", cfg.FormatDSN(), nil
	case conn.DialectPostgres:
		return "pgx", uri, nil
	case conn.DialectSQLServer:
		target := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(username, password),
			Host:     parsed.Host,
			RawQuery: url.Values{"database": []string{database}}.Encode(),
		}
		return "sqlserver", target.String(), nil
	case conn.DialectSQLite:
		return "sqlite3", database, nil
	case conn.DialectDuckDB:
		return "duckdb", database, nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}
