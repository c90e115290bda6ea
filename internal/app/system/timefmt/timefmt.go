// Package timefmt converts schedule times between their stored and
// displayed forms.
//
// Stored times are 24-hour "HH:MM" or "HH:MM:SS". Displayed times use a dot
// separator and no seconds ("HH.MM"). Schedule rows written by older tools
// may already hold the display form, so every conversion accepts all three.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	displayRe = regexp.MustCompile(`^(\d{1,2})\.(\d{2})$`)
	storageRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
)

// Parse extracts hour and minute from any accepted form.
func Parse(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	m := displayRe.FindStringSubmatch(s)
	if m == nil {
		m = storageRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// IsDisplay reports whether s is already in "HH.MM" form.
func IsDisplay(s string) bool {
	return displayRe.MatchString(strings.TrimSpace(s))
}

// Display formats s as "HH.MM". Input already in display form is returned
// unchanged (apart from zero padding). Unrecognized input is returned as-is
// so a bad row never breaks a view.
func Display(s string) string {
	h, m, ok := Parse(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%02d.%02d", h, m)
}

// Storage formats s as "HH:MM:SS" for persistence.
func Storage(s string) (string, bool) {
	h, m, ok := Parse(s)
	if !ok {
		return "", false
	}
	sec := 0
	if sm := storageRe.FindStringSubmatch(strings.TrimSpace(s)); sm != nil && sm[3] != "" {
		sec, _ = strconv.Atoi(sm[3])
		if sec > 59 {
			return "", false
		}
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec), true
}
