// Package chronoutil formats timestamps for the file signal sink: ISO-8601
// UTC with exactly six fractional-second digits.
package chronoutil

import (
	"fmt"
	"time"
)

// ToISO8601UTC renders secondsSinceEpoch/microseconds as
// "YYYY-MM-DDTHH:MM:SS.uuuuuuZ" — always 27 characters, always 6 fractional
// digits. microseconds must be in [0, 999999]; callers that hold a
// time.Time should split it with SplitUnix first.
func ToISO8601UTC(secondsSinceEpoch int64, microseconds int64) string {
	t := time.Unix(secondsSinceEpoch, 0).UTC()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%06dZ",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), microseconds)
}

// SplitUnix decomposes t into whole seconds since the epoch and the
// remaining microseconds, the inputs ToISO8601UTC expects.
func SplitUnix(t time.Time) (seconds int64, microseconds int64) {
	u := t.UTC()
	return u.Unix(), int64(u.Nanosecond() / 1000)
}

// Format is a convenience wrapper combining SplitUnix and ToISO8601UTC.
func Format(t time.Time) string {
	s, us := SplitUnix(t)
	return ToISO8601UTC(s, us)
}
