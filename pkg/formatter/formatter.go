package formatter

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatNumber converts an integer to a string with commas as thousands separators.
// Example: 1234567 -> "1,234,567"
func FormatNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		s = s[1:]
	}

	le := len(s)
	if le <= 3 {
		if n < 0 {
			return "-" + s
		}
		return s
	}

	sepCount := (le - 1) / 3

	res := make([]byte, le+sepCount)

	j := len(res) - 1
	for i := le - 1; i >= 0; i-- {
		res[j] = s[i]
		j--
		if (le-i)%3 == 0 && i > 0 {
			res[j] = ','
			j--
		}
	}

	if n < 0 {
		return "-" + string(res)
	}
	return string(res)
}

// CompactCount renders a counter the way feed clients display it: exact below
// a thousand, then shortened with one decimal. Example: 1234 -> "1.2K"
func CompactCount(n int64) string {
	switch {
	case n < 1_000:
		return strconv.FormatInt(n, 10)
	case n < 1_000_000:
		return trimZero(fmt.Sprintf("%.1fK", float64(n)/1_000))
	default:
		return trimZero(fmt.Sprintf("%.1fM", float64(n)/1_000_000))
	}
}

func trimZero(s string) string {
	return strings.Replace(s, ".0", "", 1)
}
