package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/querypilot/querypilot/internal/conn"
)

// Opener opens a fresh, single-connection handle for one request. Callers own the
// returned handle and must close it.
type Opener interface {
	Open(ctx context.Context, details conn.Details) (*sql.DB, error)
}

type DriverOpener struct {
	PingTimeout     time.Duration
	ConnMaxLifetime time.Duration
}

func (o DriverOpener) Open(ctx context.Context, details conn.Details) (*sql.DB, error) {
	uri, err := conn.ResolveURI(details)
	if err != nil {
		return nil, err
	}
	driverName, dsn, err := DriverDSN(details.Dialect, uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", details.Dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if o.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.ConnMaxLifetime)
	}

	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", details.Dialect, err)
	}

	return db, nil
}
