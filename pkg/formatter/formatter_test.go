package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	for _, tc := range []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	} {
		assert.Equal(t, tc.want, FormatNumber(tc.in))
	}
}

func TestCompactCount(t *testing.T) {
	for _, tc := range []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1K"},
		{1234, "1.2K"},
		{999_949, "999.9K"},
		{1_000_000, "1M"},
		{2_450_000, "2.5M"},
	} {
		assert.Equal(t, tc.want, CompactCount(tc.in))
	}
}
