package alert

import (
	"fmt"
	"time"
)

// AlertConfig holds configuration for the Alert plugin.
type AlertConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Enabled  bool          `mapstructure:"enabled"`
	MinScore float64       `mapstructure:"min_score"`
	Secret   string        `mapstructure:"secret"`
}

// DefaultConfig returns sensible defaults for the Alert module.
// The URL has no default: an unset URL drops notifications with a warning.
func DefaultConfig() AlertConfig {
	return AlertConfig{
		Timeout:  10 * time.Second,
		Enabled:  true,
		MinScore: 75,
	}
}

// Validate implements plugin.Validator checks for the unmarshaled config.
func (c AlertConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("min_score must be between 0 and 100, got %v", c.MinScore)
	}
	return nil
}
