package query

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Category string

const (
	CategoryRead     Category = "read"
	CategoryMutating Category = "mutating"
)

const (
	MessageNoResultSet = "Query executed successfully; no result set returned"
	MessageZeroRows    = "Query executed successfully, 0 rows returned"
)

var mutatingPrefixes = []string{"insert", "update", "delete", "alter", "drop", "create"}

// Classify reports whether a statement mutates data or schema, judged only by its
// leading keyword.
func Classify(statement string) Category {
	lowered := strings.ToLower(strings.TrimSpace(statement))
	for _, prefix := range mutatingPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return CategoryMutating
		}
	}
	return CategoryRead
}

// Row is one result row. It marshals as a JSON object whose keys follow column order.
type Row struct {
	Columns []string
	Values  []any
}

func (r Row) Get(column string) (any, bool) {
	for i := len(r.Columns) - 1; i >= 0; i-- {
		if r.Columns[i] == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]struct{}, len(r.Columns))
	for _, column := range r.Columns {
		if _, dup := written[column]; dup {
			continue
		}
		written[column] = struct{}{}
		value, _ := r.Get(column)
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if len(written) > 1 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type Result struct {
	Category     Category      `json:"category"`
	Columns      []string      `json:"columns"`
	Rows         []Row         `json:"rows"`
	Message      string        `json:"message,omitempty"`
	RowsAffected *int64        `json:"rows_affected,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
	Duration     time.Duration `json:"-"`
}

// ExecutionError carries the database's own error text for a failed statement.
type ExecutionError struct {
	Category Category
	Err      error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
