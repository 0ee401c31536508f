package timestamp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testNormalizer() Normalizer {
	return Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestParseEpochMillis(t *testing.T) {
	const ms = int64(1718000000123)
	want := time.UnixMilli(ms)

	tests := []struct {
		name string
		raw  any
	}{
		{name: "float64 from json", raw: float64(ms)},
		{name: "int64", raw: ms},
		{name: "int", raw: int(ms)},
		{name: "digit string", raw: "1718000000123"},
		{name: "digit string with whitespace", raw: " 1718000000123\n"},
		{name: "json number", raw: json.Number("1718000000123")},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Parse(tt.raw)
			assert.True(t, want.Equal(got.Time), "got %s", got.Time)
			assert.Equal(t, SourceMillis, got.Source)
			assert.False(t, got.Epoch)
		})
	}
}

func TestParseISO(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "utc designator",
			raw:  "2024-06-10T08:15:30Z",
			want: time.Date(2024, 6, 10, 8, 15, 30, 0, time.UTC),
		},
		{
			name: "explicit offset",
			raw:  "2024-06-10T10:15:30+02:00",
			want: time.Date(2024, 6, 10, 8, 15, 30, 0, time.UTC),
		},
		{
			name: "milliseconds and offset without colon",
			raw:  "2024-06-10T10:15:30.250+0200",
			want: time.Date(2024, 6, 10, 8, 15, 30, 250_000_000, time.UTC),
		},
		{
			name: "no offset is read as utc",
			raw:  "2024-06-10T08:15:30",
			want: time.Date(2024, 6, 10, 8, 15, 30, 0, time.UTC),
		},
		{
			name: "date only",
			raw:  "2024-06-10",
			want: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Parse(tt.raw)
			assert.True(t, tt.want.Equal(got.Time), "got %s want %s", got.Time, tt.want)
			assert.Equal(t, SourceISO, got.Source)
		})
	}
}

func TestParseISORoundTrip(t *testing.T) {
	instant := time.Date(2023, 11, 5, 23, 59, 58, 123_000_000, time.FixedZone("EST", -5*3600))
	got := testNormalizer().Normalize(instant.Format(time.RFC3339Nano))
	assert.True(t, instant.Equal(got))
}

func TestParseFallsBackToNow(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{name: "nil", raw: nil},
		{name: "empty string", raw: ""},
		{name: "blank string", raw: "   "},
		{name: "garbage", raw: "yesterday-ish"},
		{name: "invalid date", raw: "2024-13-45T99:00:00Z"},
		{name: "digit overflow", raw: "99999999999999999999999"},
		{name: "out of range number", raw: 1e300},
		{name: "bool", raw: true},
		{name: "object", raw: map[string]any{"seconds": 1}},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Parse(tt.raw)
			require.Equal(t, SourceFallback, got.Source)
			assert.True(t, fixedNow.Equal(got.Time))
			assert.False(t, got.Epoch)
		})
	}
}

func TestParseKeepsUnixEpoch(t *testing.T) {
	n := testNormalizer()

	for _, raw := range []any{float64(0), "0", "1970-01-01T00:00:00Z"} {
		got := n.Parse(raw)
		assert.True(t, time.UnixMilli(0).Equal(got.Time), "raw %v", raw)
		assert.True(t, got.Epoch, "raw %v", raw)
	}
}

func TestNormalizeUsesWallClockByDefault(t *testing.T) {
	before := time.Now()
	got := Normalize(nil)
	assert.False(t, got.Before(before))
	assert.False(t, got.IsZero())
}
