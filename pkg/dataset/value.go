package dataset

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var thousandsRe = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"2006-01-02T15:04:05", "01/02/2006", "1/2/2006", "02.01.2006", "1/2/2006 15:04",
	"1/2/2006 15:04:05", "2006-01", "Jan 2006", "January 2006", "Jan 2, 2006",
}

// ParseNumber accepts plain numbers plus a leading currency sign, a trailing
// percent and comma thousands separators.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.TrimPrefix(raw, "€")
	raw = strings.TrimPrefix(raw, "£")
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimSpace(raw)
	if thousandsRe.MatchString(raw) {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	// strconv accepts these spellings; a dataset cell holding them is text
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") {
		return 0, false
	}
	return v, true
}

// ParseTime tries the common date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "t":
		return true, true
	case "false", "no", "n", "f":
		return false, true
	}
	return false, false
}
