// Package timeutil formats instants in a user's preferred zone with a
// process-wide fallback, and renders durations in the app's Korean style.
package timeutil

import (
	"fmt"
	"time"
)

// Layout is the short month/day hour:minute format used in every
// user-facing timestamp.
const Layout = "01/02 15:04"

// FormatInZone renders t in the IANA zone tzName. An unknown or empty zone
// falls back to defaultTZ, and UTC if even that fails to load.
func FormatInZone(t time.Time, tzName, defaultTZ string) string {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc, err = time.LoadLocation(defaultTZ)
		if err != nil {
			loc = time.UTC
		}
	}
	return t.In(loc).Format(Layout)
}

// Humanize renders a duration as "N시간 M분", dropping the hour part when
// zero. Non-positive durations render as "0분".
func Humanize(d time.Duration) string {
	if d <= 0 {
		return "0분"
	}
	m := int(d.Minutes())
	h, m := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%d시간 %d분", h, m)
	}
	return fmt.Sprintf("%d분", m)
}
