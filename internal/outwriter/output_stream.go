package outwriter

import (
	"encoding/csv"
	"io"
	"sync"
	"time"

	"github.com/huangsam/reposcore/schema"
)

// StreamWriter emits CSV rows as repositories finish scoring.
// The header is written once, on creation. Write is safe for concurrent use.
type StreamWriter struct {
	mu    sync.Mutex
	csv   *csv.Writer
	stamp *string
	rows  int
}

// NewStreamWriter writes the canonical header to w and returns the stream.
// A non-nil createdAt adds the created_at column.
func NewStreamWriter(w io.Writer, createdAt *time.Time) (*StreamWriter, error) {
	sw := &StreamWriter{csv: csv.NewWriter(w)}
	if createdAt != nil {
		stamp := formatCreatedAt(*createdAt)
		sw.stamp = &stamp
	}
	if err := sw.write(withCreatedAt(createdAt, schema.FieldTime, schema.CanonicalHeader())); err != nil {
		return nil, err
	}
	return sw, nil
}

// Write emits one result row and flushes it.
func (sw *StreamWriter) Write(result schema.ScoreResult) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	row := result.Row()
	if sw.stamp != nil {
		row = append([]string{*sw.stamp}, row...)
	}
	if err := sw.write(row); err != nil {
		return err
	}
	sw.rows++
	return nil
}

// Rows returns the number of result rows written.
func (sw *StreamWriter) Rows() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.rows
}

func (sw *StreamWriter) write(record []string) error {
	if err := sw.csv.Write(record); err != nil {
		return err
	}
	sw.csv.Flush()
	return sw.csv.Error()
}
