package clip

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a time string does not match
// "SS", "MM:SS" or "HH:MM:SS".
var ErrInvalidFormat = errors.New("invalid time format")

// TimeSpec is a validated point in time within a video, stored as whole
// seconds. Construct it via ParseTimeSpec only.
type TimeSpec struct {
	totalSeconds int
}

// ParseTimeSpec parses "SS", "MM:SS" or "HH:MM:SS".
//
// A plain non-negative integer is taken as seconds. In grouped forms the
// seconds and minutes groups must be in [0,59]. Anything else fails with
// ErrInvalidFormat.
func ParseTimeSpec(s string) (TimeSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeSpec{}, fmt.Errorf("%w: empty string", ErrInvalidFormat)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, ok := parseGroup(p)
		if !ok {
			return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 1:
		return TimeSpec{totalSeconds: nums[0]}, nil
	case 2:
		if nums[0] > 59 || nums[1] > 59 {
			return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		return TimeSpec{totalSeconds: nums[0]*60 + nums[1]}, nil
	default:
		if nums[1] > 59 || nums[2] > 59 {
			return TimeSpec{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		return TimeSpec{totalSeconds: nums[0]*3600 + nums[1]*60 + nums[2]}, nil
	}
}

// parseGroup parses one time group as an unsigned run of ASCII digits.
// Signs and inner whitespace are not part of the format, so strconv alone
// is too permissive here.
func parseGroup(p string) (int, bool) {
	if p == "" {
		return 0, false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Seconds returns the total number of seconds.
func (t TimeSpec) Seconds() int { return t.totalSeconds }

// String renders the canonical form: "M:SS" below one hour, "H:MM:SS" above.
func (t TimeSpec) String() string {
	s := t.totalSeconds
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
