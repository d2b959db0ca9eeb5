package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	md := map[string]any{"tag": "pinned", "score": 4.0, "active": true}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"equal match", Filter{"tag", OpEqual, "pinned"}, true},
		{"equal mismatch", Filter{"tag", OpEqual, "other"}, false},
		{"not equal", Filter{"tag", OpNotEqual, "other"}, true},
		{"greater than", Filter{"score", OpGreaterThan, 3.0}, true},
		{"greater equal boundary", Filter{"score", OpGreaterEqual, 4.0}, true},
		{"less than", Filter{"score", OpLessThan, 4.0}, false},
		{"in set", Filter{"tag", OpIn, []any{"pinned", "other"}}, true},
		{"contains substring", Filter{"tag", OpContains, "pin"}, true},
		{"missing key", Filter{"missing", OpEqual, "x"}, false},
		{"bool equal", Filter{"active", OpEqual, true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Matches(md))
		})
	}
}

func TestFilterSet_Matches_Conjunction(t *testing.T) {
	md := map[string]any{"tag": "pinned", "score": 4.0}
	fs := FilterSet{Filters: []Filter{
		{"tag", OpEqual, "pinned"},
		{"score", OpGreaterThan, 1.0},
	}}
	assert.True(t, fs.Matches(md))

	fs.Filters = append(fs.Filters, Filter{"score", OpGreaterThan, 100.0})
	assert.False(t, fs.Matches(md))
}

func TestTimeRange_Matches(t *testing.T) {
	ts := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	md := map[string]any{"timestamp": ts.Format(time.RFC3339)}

	assert.True(t, TimeRange{}.Matches(md), "zero range matches everything")

	in := TimeRange{From: ts.Add(-time.Hour), To: ts.Add(time.Hour)}
	assert.True(t, in.Matches(md))

	out := TimeRange{From: ts.Add(time.Hour)}
	assert.False(t, out.Matches(md))
}

func TestTimeRange_FromAfterTo_NeverMatches(t *testing.T) {
	ts := time.Now()
	md := map[string]any{"timestamp": ts.Format(time.RFC3339)}
	r := TimeRange{From: ts.Add(time.Hour), To: ts.Add(-time.Hour)}
	assert.False(t, r.Matches(md))
}

func TestTimeRange_MissingTimestamp(t *testing.T) {
	r := TimeRange{From: time.Now()}
	assert.False(t, r.Matches(map[string]any{}))
}
