package schema

import "time"

type Table struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// Snapshot is the captured structure of one database. Tables keep the order in which
// they were listed. A Snapshot is not modified after it is installed in a Store.
type Snapshot struct {
	Tables     []Table   `json:"tables"`
	CapturedAt time.Time `json:"captured_at"`
}

func NewSnapshot(tables []Table, capturedAt time.Time) Snapshot {
	copied := make([]Table, len(tables))
	copy(copied, tables)
	return Snapshot{Tables: copied, CapturedAt: capturedAt}
}

func (s Snapshot) Len() int {
	return len(s.Tables)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Tables) == 0
}

func (s Snapshot) Definition(table string) (string, bool) {
	for _, candidate := range s.Tables {
		if candidate.Name == table {
			return candidate.Definition, true
		}
	}
	return "", false
}

func (s Snapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}
