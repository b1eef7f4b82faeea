package durfmt

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDuration parses a human time string into whole seconds.
// Accepted forms: "300" (bare seconds), "5:30" (mm:ss), "1:30:45" (h:mm:ss).
func ParseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q: too many segments", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("invalid duration %q: negative segment", s)
		}
		nums[i] = n
	}

	switch len(nums) {
	case 1:
		return nums[0], nil
	case 2:
		if nums[1] > 59 {
			return 0, fmt.Errorf("invalid duration %q: seconds out of range", s)
		}
		return nums[0]*60 + nums[1], nil
	default:
		if nums[1] > 59 || nums[2] > 59 {
			return 0, fmt.Errorf("invalid duration %q: segment out of range", s)
		}
		return nums[0]*3600 + nums[1]*60 + nums[2], nil
	}
}

// FormatSeconds renders whole seconds as a display string.
// Hours are omitted when zero: 330 -> "5:30", 5445 -> "1:30:45".
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}

	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
