// Package markettime normalizes feed timestamps into canonical IST
// wall-clock strings and computes whole-day spans between them. All
// holding-period math in the journal runs on these canonical strings.
package markettime

import (
	"encoding/json"
	"log"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30, no DST).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Layout is the canonical timestamp format, second precision.
const Layout = "2006-01-02 15:04:05"

// Now returns the current instant as a canonical IST string.
func Now() string {
	return time.Now().In(IST).Format(Layout)
}

// Normalize converts a raw event timestamp into a canonical IST string.
// The feed delivers either a Unix epoch in milliseconds (JSON number),
// an already-formatted IST wall-clock string, or nothing at all.
// Malformed input falls back to the current instant — timestamp noise
// must never block fill processing.
func Normalize(raw any) string {
	switch v := raw.(type) {
	case nil:
		return Now()
	case float64:
		return FromEpochMillis(int64(v))
	case int64:
		return FromEpochMillis(v)
	case int:
		return FromEpochMillis(int64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			log.Printf("[markettime] unparseable numeric timestamp %q, using now", v)
			return Now()
		}
		return FromEpochMillis(int64(f))
	case string:
		if v == "" {
			return Now()
		}
		t, err := time.ParseInLocation(Layout, v, IST)
		if err != nil {
			log.Printf("[markettime] unparseable timestamp %q, using now", v)
			return Now()
		}
		return t.Format(Layout)
	default:
		log.Printf("[markettime] unsupported timestamp type %T, using now", raw)
		return Now()
	}
}

// FromEpochMillis converts a Unix epoch in milliseconds to a canonical
// IST string.
func FromEpochMillis(ms int64) string {
	return time.UnixMilli(ms).In(IST).Format(Layout)
}

// WholeDaysBetween returns the number of whole days elapsed between two
// canonical IST strings, floored by duration (not calendar dates) and
// clamped to zero. A sell recorded before its matched buy, from feed
// jitter, must not yield a negative holding period. Unparseable input
// also yields zero.
func WholeDaysBetween(earlier, later string) int {
	b, err := time.ParseInLocation(Layout, earlier, IST)
	if err != nil {
		return 0
	}
	s, err := time.ParseInLocation(Layout, later, IST)
	if err != nil {
		return 0
	}
	d := s.Sub(b)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
