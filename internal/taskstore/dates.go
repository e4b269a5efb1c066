package taskstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WireDateLayout renders UTC instants as "2019-11-13T03:00:00+0000", the
// only form the remote API accepts.
const WireDateLayout = "2006-01-02T15:04:05-0700"

// FormatWireDate converts t to UTC and renders it in the wire layout.
func FormatWireDate(t time.Time) string {
	return t.UTC().Format(WireDateLayout)
}

// ParseWireDate parses a wire-format date. It accepts both "+0000" and
// RFC3339-style offsets since the API is not consistent about which it emits.
func ParseWireDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{WireDateLayout, time.RFC3339, "2006-01-02T15:04:05Z0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseUserDate parses a date written without a zone and anchors it to the
// configured local offset. Accepted shapes range from bare dates to full
// timestamps.
func ParseUserDate(s string, offsetHours int) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := ParseWireDate(s); err == nil {
		return t, nil
	}
	loc := time.FixedZone("local", offsetHours*3600)
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// BuildTrigger renders the reminder offset ahead of the target time in the
// API trigger syntax, e.g. "TRIGGER:P0DT9H0M0S" nine hours before. Offsets
// that are zero or negative collapse to "at time".
func BuildTrigger(before time.Duration) string {
	if before <= 0 {
		return "TRIGGER:PT0S"
	}
	total := int64(before.Seconds())
	days := total / 86400
	rem := total % 86400
	hours := rem / 3600
	minutes := (rem % 3600) / 60
	seconds := rem % 60
	return fmt.Sprintf("TRIGGER:P%dDT%dH%dM%dS", days, hours, minutes, seconds)
}

// BuildRepeatFlag renders the recurrence rule for daily, weekly or monthly
// repetition.
func BuildRepeatFlag(frequency string, interval int) (string, error) {
	freq := strings.ToUpper(strings.TrimSpace(frequency))
	switch freq {
	case "DAILY", "WEEKLY", "MONTHLY":
	default:
		return "", fmt.Errorf("unsupported frequency %q", frequency)
	}
	if interval < 1 {
		interval = 1
	}
	return "RRULE:FREQ=" + freq + ";INTERVAL=" + strconv.Itoa(interval), nil
}

// idTimestamp extracts the creation timestamp encoded in the first 8 hex
// characters of a remote id. Falls back to sortOrder when the id does not
// carry one.
func idTimestamp(t Task) int64 {
	if len(t.ID) >= 8 {
		if n, err := strconv.ParseInt(t.ID[:8], 16, 64); err == nil {
			return n
		}
	}
	return t.SortOrder
}

// SortNewestFirst orders tasks by the timestamp embedded in their ids,
// newest first.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return idTimestamp(tasks[i]) > idTimestamp(tasks[j])
	})
}
