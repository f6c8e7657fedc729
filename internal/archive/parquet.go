package archive

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/querypilot/querypilot/internal/schema"
)

type snapshotRow struct {
	Position         int32  `parquet:"position"`
	TableName        string `parquet:"table_name"`
	Definition       string `parquet:"definition"`
	CapturedAtUnixMs int64  `parquet:"captured_at_unix_ms"`
}

// EncodeSnapshot writes one parquet row per table in snapshot order.
func EncodeSnapshot(snapshot schema.Snapshot) ([]byte, error) {
	capturedAt := snapshot.CapturedAt.UTC().UnixMilli()
	rows := make([]snapshotRow, 0, len(snapshot.Tables))
	for i, table := range snapshot.Tables {
		rows = append(rows, snapshotRow{
			Position:         int32(i),
			TableName:        table.Name,
			Definition:       table.Definition,
			CapturedAtUnixMs: capturedAt,
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[snapshotRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (schema.Snapshot, error) {
	rows, err := parquet.Read[snapshotRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("read parquet rows: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	tables := make([]schema.Table, 0, len(rows))
	var capturedAt time.Time
	for _, row := range rows {
		tables = append(tables, schema.Table{Name: row.TableName, Definition: row.Definition})
		capturedAt = time.UnixMilli(row.CapturedAtUnixMs).UTC()
	}
	return schema.Snapshot{Tables: tables, CapturedAt: capturedAt}, nil
}
