// Package dataset reads the raw ball-by-ball delivery log that every query is derived from.
package dataset

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrDataNotFound is returned when the dataset file or database cannot be reached.
	ErrDataNotFound = errors.New("dataset not found")
	// ErrDataFormat is returned when required columns are absent or rows cannot be parsed.
	ErrDataFormat = errors.New("dataset format invalid")
)

// Required column names, shared by the CSV and SQL sources.
const (
	ColumnMatchID     = "match_id"
	ColumnBattingTeam = "batting_team"
	ColumnBowlingTeam = "bowling_team"
	ColumnMatchWonBy  = "match_won_by"
)

// RequiredColumns lists the columns a dataset must carry, in reporting order.
var RequiredColumns = []string{ColumnMatchID, ColumnBattingTeam, ColumnBowlingTeam, ColumnMatchWonBy}

// Delivery is one ball bowled. Team fields hold "" when the source value is null.
type Delivery struct {
	MatchID     string
	BattingTeam string
	BowlingTeam string
	MatchWonBy  string
}

// Table is an in-memory delivery log in source order.
type Table struct {
	Source     string
	Deliveries []Delivery
}

// Len returns the number of deliveries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Deliveries)
}

// Source loads deliveries and reports a fingerprint that changes whenever the
// underlying data changes.
type Source interface {
	Load(ctx context.Context) (*Table, error)
	Fingerprint(ctx context.Context) (string, error)
	Describe() string
}

// DefaultNullValues are the tokens treated as null in addition to the empty string.
var DefaultNullValues = []string{
	"NA", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan",
	"null", "NULL", "None", "<NA>", "#N/A", "#NA",
}

// NullSet decides which raw cell values count as null.
type NullSet map[string]struct{}

// NewNullSet builds a NullSet; nil values falls back to DefaultNullValues.
func NewNullSet(values []string) NullSet {
	if values == nil {
		values = DefaultNullValues
	}
	set := make(NullSet, len(values)+1)
	set[""] = struct{}{}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Value returns raw, or "" when raw is a null token.
func (n NullSet) Value(raw string) string {
	if n == nil {
		return raw
	}
	if _, ok := n[raw]; ok {
		return ""
	}
	return raw
}
