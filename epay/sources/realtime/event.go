// Package realtime is the live event bus the chat controllers subscribe to.
// Only insert events exist; a subscription selects one table and optionally
// one column equality filter, mirroring "user_id=eq.<id>".
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const TableMessages = "messages"

// InsertEvent announces a newly inserted row.
type InsertEvent struct {
	Table           string          `json:"table"`
	Record          json.RawMessage `json:"record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewInsertEvent encodes record as the event payload.
func NewInsertEvent(table string, record interface{}) (*InsertEvent, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return &InsertEvent{
		Table:           table,
		Record:          data,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the record into v.
func (e *InsertEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.Record, v)
}

// Filter restricts a subscription to rows whose Column equals Value.
// The zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// Eq builds a column equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

// ParseFilter reads the "column=eq.value" form. An empty string is the
// match-all filter.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("unsupported filter operator in %q", s)
	}
	return Filter{Column: column, Value: value}, nil
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches reports whether the event record satisfies the filter. Records
// that are not JSON objects never match a non-zero filter.
func (f Filter) Matches(e *InsertEvent) bool {
	if f.IsZero() {
		return true
	}
	var row map[string]interface{}
	if err := json.Unmarshal(e.Record, &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == f.Value
}
