package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"
)

// Session is the part of *sql.DB the executor needs.
type Session interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Executor struct {
	// MaxRows caps returned rows for reads. Zero means unlimited.
	MaxRows int
}

// Execute runs statement as given. Mutating statements run inside a transaction that is
// committed on success; reads run without a transaction and are never committed.
func (e Executor) Execute(ctx context.Context, session Session, statement string) (Result, error) {
	if session == nil {
		return Result{}, fmt.Errorf("database session is required")
	}
	start := time.Now()
	category := Classify(statement)

	var (
		result Result
		err    error
	)
	if category == CategoryMutating {
		result, err = e.executeMutating(ctx, session, statement)
	} else {
		result, err = e.executeRead(ctx, session, statement)
	}
	if err != nil {
		return Result{}, &ExecutionError{Category: category, Err: err}
	}
	result.Category = category
	result.Duration = time.Since(start)
	return result, nil
}

func (e Executor) executeMutating(ctx context.Context, session Session, statement string) (Result, error) {
	tx, err := session.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	if returnsRows(statement) {
		return e.queryMutating(ctx, tx, statement)
	}
	res, err := tx.ExecContext(ctx, statement)
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}

	result := noResultSet()
	if affected, err := res.RowsAffected(); err == nil {
		result.RowsAffected = &affected
	}
	return result, nil
}

// queryMutating runs a mutating statement that yields rows. The rows are read and
// closed before the commit.
func (e Executor) queryMutating(ctx context.Context, tx *sql.Tx, statement string) (Result, error) {
	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	result, err := e.collect(rows)
	closeErr := rows.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (e Executor) executeRead(ctx context.Context, session Session, statement string) (Result, error) {
	rows, err := session.QueryContext(ctx, statement)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rows.Close() }()
	return e.collect(rows)
}

func (e Executor) collect(rows *sql.Rows) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	if len(columns) == 0 {
		// Some drivers only run the statement while stepping.
		for rows.Next() {
		}
		if err := rows.Err(); err != nil {
			return Result{}, err
		}
		return noResultSet(), nil
	}

	result := Result{Columns: columns, Rows: make([]Row, 0)}
	for rows.Next() {
		if e.MaxRows > 0 && len(result.Rows) >= e.MaxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, err
		}
		result.Rows = append(result.Rows, Row{Columns: columns, Values: normalizeValues(values)})
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	if len(result.Rows) == 0 {
		result.Message = MessageZeroRows
	}
	return result, nil
}

// returningClause matches the clauses that make INSERT, UPDATE and DELETE yield rows:
// RETURNING on postgres and sqlite, OUTPUT on sqlserver.
var returningClause = regexp.MustCompile(`(?i)\b(returning|output)\b`)

func returnsRows(statement string) bool {
	return returningClause.MatchString(statement)
}

func noResultSet() Result {
	return Result{Columns: []string{}, Rows: []Row{}, Message: MessageNoResultSet}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
