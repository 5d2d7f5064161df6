package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration settings (cooldowns, timeouts, artifact max age) arrive as
// strings like "5m" or "90s" so the config schema stays uniform across the
// file and hot-reload paths. They are parsed at the point of use.

// ParseDurationField parses an optional duration setting. An empty value
// means unset and yields zero; negative durations are rejected. path names
// the setting in errors, e.g. "admission.cooldown".
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for unset
// values, for settings where zero is not meaningful (poll timeouts).
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
