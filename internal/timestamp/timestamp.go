// Package timestamp turns the timestamp encodings the advisor backend emits
// (epoch milliseconds as number or digit string, ISO-8601 with offset) into time.Time.
package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxMillis mirrors the range of a valid ECMAScript date (±100,000,000 days).
const maxMillis = 8_640_000_000_000_000

// Source tells which rule produced a Result.
type Source int

const (
	SourceFallback Source = iota
	SourceMillis
	SourceISO
)

// Result is a normalized instant plus diagnostics for the caller.
type Result struct {
	Time   time.Time
	Source Source
	// Epoch is set when a value parsed successfully to 1970-01-01T00:00:00Z.
	// The value is kept; callers decide whether to flag it.
	Epoch bool
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalizer converts raw timestamp values. The zero value uses time.Now.
type Normalizer struct {
	Now func() time.Time
}

// Normalize converts raw with the wall clock as fallback.
func Normalize(raw any) time.Time {
	return Normalizer{}.Normalize(raw)
}

// Parse converts raw with the wall clock as fallback and reports diagnostics.
func Parse(raw any) Result {
	return Normalizer{}.Parse(raw)
}

// Normalize never fails; unusable input yields the current time.
func (n Normalizer) Normalize(raw any) time.Time {
	return n.Parse(raw).Time
}

// Parse applies, in order: number as epoch ms, digit string as epoch ms,
// other non-empty string as ISO-8601, otherwise now.
func (n Normalizer) Parse(raw any) Result {
	if t, ok := parse(raw); ok {
		return Result{Time: t, Source: sourceOf(raw), Epoch: t.Equal(time.UnixMilli(0))}
	}
	return Result{Time: n.now(), Source: SourceFallback}
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func parse(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return fromMillis(int64(v))
	case int32:
		return fromMillis(int64(v))
	case int64:
		return fromMillis(v)
	case uint64:
		if v > math.MaxInt64 {
			return time.Time{}, false
		}
		return fromMillis(int64(v))
	case json.Number:
		if isDigits(string(v)) {
			return parseString(string(v))
		}
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromFloat(f)
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		return parseString(v)
	default:
		return time.Time{}, false
	}
}

func sourceOf(raw any) Source {
	switch v := raw.(type) {
	case string:
		if isDigits(strings.TrimSpace(v)) {
			return SourceMillis
		}
		return SourceISO
	case time.Time, *time.Time:
		return SourceISO
	default:
		return SourceMillis
	}
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromMillis(ms)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromFloat(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)), true
}

func fromMillis(ms int64) (time.Time, bool) {
	if ms > maxMillis || ms < -maxMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
