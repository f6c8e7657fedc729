package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/querypilot/querypilot/internal/database"
)

type Builder struct {
	Now func() time.Time
}

// Build lists every table and captures its definition. Any failure aborts the whole
// build and no partial snapshot is returned.
func (b Builder) Build(ctx context.Context, q database.Queryer, introspector database.Introspector) (Snapshot, error) {
	if introspector == nil {
		return Snapshot{}, fmt.Errorf("introspector is required")
	}
	names, err := introspector.ListTables(ctx, q)
	if err != nil {
		return Snapshot{}, err
	}

	seen := make(map[string]struct{}, len(names))
	tables := make([]Table, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		definition, err := introspector.TableDefinition(ctx, q, name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("describe table %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Definition: definition})
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return Snapshot{Tables: tables, CapturedAt: now().UTC()}, nil
}
