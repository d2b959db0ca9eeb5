// Package filter implements metadata and timestamp predicates over
// passages, with a roaring-bitmap-backed inverted index for the equality
// terms that dominate real query filters, and a selectivity-driven
// brute-force fallback for sparse predicates.
package filter

import (
	"fmt"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterEqual
	OpLessThan
	OpLessEqual
	OpIn
	OpContains
)

// Filter is a single metadata predicate: metadata[Key] Op Value.
type Filter struct {
	Key   string
	Op    Op
	Value any
}

// FilterSet is a conjunction (AND) of Filters.
type FilterSet struct {
	Filters []Filter
}

// Matches reports whether metadata satisfies every filter in fs.
func (fs FilterSet) Matches(metadata map[string]any) bool {
	for _, f := range fs.Filters {
		if !f.Matches(metadata) {
			return false
		}
	}
	return true
}

// Matches reports whether metadata satisfies f.
func (f Filter) Matches(metadata map[string]any) bool {
	value, exists := metadata[f.Key]
	switch f.Op {
	case OpEqual:
		return exists && compareEqual(value, f.Value)
	case OpNotEqual:
		return !exists || !compareEqual(value, f.Value)
	case OpGreaterThan:
		return exists && compareLess(f.Value, value)
	case OpGreaterEqual:
		return exists && (compareLess(f.Value, value) || compareEqual(value, f.Value))
	case OpLessThan:
		return exists && compareLess(value, f.Value)
	case OpLessEqual:
		return exists && (compareLess(value, f.Value) || compareEqual(value, f.Value))
	case OpIn:
		return exists && compareIn(value, f.Value)
	case OpContains:
		return exists && compareContains(value, f.Value)
	default:
		return false
	}
}

// isEquality reports whether f can be served from the inverted equality
// index without a residual scan.
func (f Filter) isEquality() bool { return f.Op == OpEqual }

func compareEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return a == b
}

func compareLess(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}

func compareIn(value, set any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareEqual(value, item) {
			return true
		}
	}
	return false
}

func compareContains(value, needle any) bool {
	s, ok := value.(string)
	n, ok2 := needle.(string)
	if ok && ok2 {
		return strings.Contains(s, n)
	}
	items, ok := value.([]any)
	if ok {
		for _, item := range items {
			if compareEqual(item, needle) {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// TimeRange constrains the optional "timestamp" metadata key to [From, To],
// either bound optional. It is evaluated alongside a FilterSet but kept
// separate because it is always a range, never an equality, term.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Matches reports whether metadata's timestamp falls within the range.
// Metadata without a parseable "timestamp" key never matches a non-zero
// TimeRange.
func (r TimeRange) Matches(metadata map[string]any) bool {
	if r.From.IsZero() && r.To.IsZero() {
		return true
	}
	ts, ok := parseTimestamp(metadata)
	if !ok {
		return false
	}
	if !r.From.IsZero() && ts.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && ts.After(r.To) {
		return false
	}
	return true
}

func parseTimestamp(metadata map[string]any) (time.Time, bool) {
	raw, ok := metadata["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Timestamp extracts and parses metadata's "timestamp" key, for the
// searcher's post-sort-by-date step. ok is false if absent or unparseable.
func Timestamp(metadata map[string]any) (time.Time, bool) { return parseTimestamp(metadata) }

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessEqual:
		return "<="
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}
