package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var sizeUnits = map[byte]int64{
	'B': 1,
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses sizes such as "512", "100K", "1.5M" or "2g" into bytes.
// Units are powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	mult := int64(1)
	num := s
	if unit, ok := sizeUnits[strings.ToUpper(s[len(s)-1:])[0]]; ok {
		mult = unit
		num = s[:len(s)-1]
	}

	if n, err := strconv.ParseInt(num, 10, 64); err == nil && n >= 0 {
		if n > math.MaxInt64/mult {
			return 0, fmt.Errorf("size out of range: %q", s)
		}
		return n * mult, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63, the first value that overflows.
	v := f * float64(mult)
	if math.IsInf(v, 0) || v >= float64(math.MaxInt64) {
		return 0, fmt.Errorf("size out of range: %q", s)
	}
	return int64(v), nil
}
