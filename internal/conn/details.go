package conn

import (
	"fmt"
	"strings"
)

type Dialect string

const (
	DialectMySQL     Dialect = "mysql"
	DialectPostgres  Dialect = "postgres"
	DialectSQLite    Dialect = "sqlite"
	DialectDuckDB    Dialect = "duckdb"
	DialectSQLServer Dialect = "sqlserver"
)

// DefaultDialect is used when a request does not name one.
const DefaultDialect = DialectMySQL

type Details struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Hostname string  `json:"hostname"`
	Database string  `json:"database"`
	Dialect  Dialect `json:"dialect,omitempty"`
}

func ParseDialect(raw string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return DefaultDialect, nil
	case "postgresql":
		return DialectPostgres, nil
	case "mssql":
		return DialectSQLServer, nil
	case "sqlite3":
		return DialectSQLite, nil
	case DialectMySQL, DialectPostgres, DialectSQLite, DialectDuckDB, DialectSQLServer:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", raw)
	}
}

// WithDefaults returns a copy whose dialect is normalized, falling back to fallback when unset.
func (d Details) WithDefaults(fallback Dialect) (Details, error) {
	if strings.TrimSpace(string(d.Dialect)) == "" {
		d.Dialect = fallback
	}
	dialect, err := ParseDialect(string(d.Dialect))
	if err != nil {
		return Details{}, err
	}
	d.Dialect = dialect
	return d, nil
}

func (d Details) Validate() error {
	missing := make([]string, 0, 4)
	if d.Username == "" {
		missing = append(missing, "username")
	}
	if d.Password == "" {
		missing = append(missing, "password")
	}
	if d.Hostname == "" {
		missing = append(missing, "hostname")
	}
	if d.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing connection fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SessionKey identifies the target database without the password.
func (d Details) SessionKey() string {
	dialect := d.Dialect
	if dialect == "" {
		dialect = DefaultDialect
	}
	return fmt.Sprintf("%s|%s@%s/%s", dialect, d.Username, d.Hostname, d.Database)
}

// DisplayName is the product name used when addressing a language model.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectPostgres:
		return "PostgreSQL"
	case DialectSQLite:
		return "SQLite"
	case DialectDuckDB:
		return "DuckDB"
	case DialectSQLServer:
		return "SQL Server"
	default:
		return "MySQL"
	}
}
