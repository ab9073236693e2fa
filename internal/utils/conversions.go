package utils

import "strconv"

// ParseFloatOrZero parses decimal strings such as "4.50" returned by the API
// for rating and price fields. Unparseable input yields 0.
func ParseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// FirstNonEmpty returns the first non-empty string.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
