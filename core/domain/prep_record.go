package domain

import (
	"fmt"
	"time"
)

// EmptyURL is stored in place of a missing post URL.
const EmptyURL = "empty"

// Column names addressable on a RecordTable.
const (
	ColumnID        = "id"
	ColumnText      = "text"
	ColumnURL       = "url"
	ColumnType      = "type"
	ColumnScore     = "score"
	ColumnTimestamp = "timestamp"
	ColumnLabel     = "label"
)

// Record is one labeled post. Text is the only field transforms rewrite.
type Record struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	URL       string     `json:"url"`
	Type      string     `json:"type,omitempty"`
	Score     int        `json:"score"`
	Timestamp time.Time  `json:"timestamp"`
	Label     ClassLabel `json:"label,omitempty"`
}

// HasURL reports whether the record points somewhere other than the "empty" sentinel.
func (r Record) HasURL() bool {
	return r.URL != "" && r.URL != EmptyURL
}

// RecordTable is an ordered, read-only sequence of records.
// Transforms never modify a table in place; they return a new one.
type RecordTable struct {
	rows []Record
}

// NewRecordTable copies rows into a new table.
func NewRecordTable(rows []Record) RecordTable {
	cp := make([]Record, len(rows))
	copy(cp, rows)
	return RecordTable{rows: cp}
}

// Len returns the number of rows.
func (t RecordTable) Len() int {
	return len(t.rows)
}

// Row returns the record at index i.
func (t RecordTable) Row(i int) (Record, bool) {
	if i < 0 || i >= len(t.rows) {
		return Record{}, false
	}
	return t.rows[i], true
}

// Rows returns a copy of all rows in order.
func (t RecordTable) Rows() []Record {
	cp := make([]Record, len(t.rows))
	copy(cp, t.rows)
	return cp
}

// Map applies fn to every row and returns a table of the same length and order.
func (t RecordTable) Map(fn func(Record) Record) RecordTable {
	out := make([]Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = fn(r)
	}
	return RecordTable{rows: out}
}

// Filter keeps rows for which keep returns true, preserving relative order.
func (t RecordTable) Filter(keep func(i int, r Record) bool) RecordTable {
	out := make([]Record, 0, len(t.rows))
	for i, r := range t.rows {
		if keep(i, r) {
			out = append(out, r)
		}
	}
	return RecordTable{rows: out}
}

// Texts returns the text column.
func (t RecordTable) Texts() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Text
	}
	return out
}

// Labels returns the label column. Unbucketed rows yield empty labels.
func (t RecordTable) Labels() []ClassLabel {
	out := make([]ClassLabel, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Label
	}
	return out
}

// Labeled reports whether every row carries a valid class label.
func (t RecordTable) Labeled() bool {
	for _, r := range t.rows {
		if !r.Label.Valid() {
			return false
		}
	}
	return true
}

// Column returns the named column as a slice of values.
func (t RecordTable) Column(name string) ([]any, error) {
	var get func(Record) any
	switch name {
	case ColumnID:
		get = func(r Record) any { return r.ID }
	case ColumnText:
		get = func(r Record) any { return r.Text }
	case ColumnURL:
		get = func(r Record) any { return r.URL }
	case ColumnType:
		get = func(r Record) any { return r.Type }
	case ColumnScore:
		get = func(r Record) any { return r.Score }
	case ColumnTimestamp:
		get = func(r Record) any { return r.Timestamp }
	case ColumnLabel:
		get = func(r Record) any { return r.Label }
	default:
		return nil, fmt.Errorf("unknown column %q", name)
	}

	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = get(r)
	}
	return out, nil
}
