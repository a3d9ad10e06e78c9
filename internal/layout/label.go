package layout

import (
	"regexp"
	"strconv"
)

var trayNumberPattern = regexp.MustCompile(`(?i)(?:tray|t)?\s*#?\s*(\d{1,4})\s*$`)

// TrayNumber extracts a trailing number from a free-text tray label, e.g.
// "Tray 7", "T-12", or "veg tray #3". It is a best-effort display normalizer
// only; ordering and grouping never depend on it.
func TrayNumber(label string) (int, bool) {
	m := trayNumberPattern.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
