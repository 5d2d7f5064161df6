package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field constraints that the decoder cannot express.
// It is also used as the Watch validator so bad edits are rejected before
// they replace a working config.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must be >= 0")
	}
	if _, err := ParseDurationField("admission.cooldown", c.Admission.Cooldown); err != nil {
		return err
	}
	if c.Admission.DailyLimit < 0 {
		return fmt.Errorf("admission.daily_limit must be >= 0")
	}
	if c.Media.QualityCeiling < 0 {
		return fmt.Errorf("media.quality_ceiling must be >= 0")
	}
	if c.Media.SizeLimitMB < 0 {
		return fmt.Errorf("media.size_limit_mb must be >= 0")
	}
	if c.Media.ToleranceSeconds < 0 {
		return fmt.Errorf("media.tolerance_seconds must be >= 0")
	}
	if c.Media.DeliveryAttempts < 0 {
		return fmt.Errorf("media.delivery_attempts must be >= 0")
	}
	if _, err := ParseDurationField("media.fetch_timeout", c.Media.FetchTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("media.trim_timeout", c.Media.TrimTimeout); err != nil {
		return err
	}
	if c.Storage != nil {
		switch strings.TrimSpace(c.Storage.Driver) {
		case "", "none", "file", "sqlite":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if _, err := ParseDurationField("janitor.max_age", c.Janitor.MaxAge); err != nil {
		return err
	}
	return nil
}
