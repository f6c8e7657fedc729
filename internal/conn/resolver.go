package conn

import (
	"fmt"
	"net/url"
	"strings"
)

var schemes = map[Dialect]string{
	DialectMySQL:     "mysql",
	DialectPostgres:  "postgres",
	DialectSQLite:    "sqlite",
	DialectDuckDB:    "duckdb",
	DialectSQLServer: "sqlserver",
}

func Scheme(dialect Dialect) (string, bool) {
	scheme, ok := schemes[dialect]
	return scheme, ok
}

// ResolveURI renders <scheme>://<username>:<password>@<hostname>/<database>.
// Only the password is escaped; the other fields are inserted verbatim.
func ResolveURI(details Details) (string, error) {
	if err := details.Validate(); err != nil {
		return "", err
	}
	dialect := details.Dialect
	if dialect == "" {
		dialect = DefaultDialect
	}
	scheme, ok := Scheme(dialect)
	if !ok {
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
	return fmt.Sprintf("%s://%s:%s@%s/%s",
		scheme,
		details.Username,
		EscapePassword(details.Password),
		details.Hostname,
		details.Database,
	), nil
}

// EscapePassword percent-encodes everything outside the URI unreserved set.
func EscapePassword(password string) string {
	return strings.ReplaceAll(url.QueryEscape(password), "+", "%20")
}
