package insight

import (
	"fmt"
	"time"

	"github.com/frostline-io/frostline/internal/insight/anomaly"
)

// InsightConfig holds configuration for the Insight analytics plugin.
type InsightConfig struct {
	HighThreshold       float64       `mapstructure:"high_threshold"`
	WarningRatio        float64       `mapstructure:"warning_ratio"`
	LookbackDays        int           `mapstructure:"lookback_days"`
	GeoMonths           int           `mapstructure:"geo_months"`
	AnomalyRetention    time.Duration `mapstructure:"anomaly_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DefaultConfig returns sensible defaults for the Insight module.
func DefaultConfig() InsightConfig {
	return InsightConfig{
		HighThreshold:       anomaly.DefaultHighThreshold,
		WarningRatio:        anomaly.DefaultWarningRatio,
		LookbackDays:        90,
		GeoMonths:           12,
		AnomalyRetention:    90 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
	}
}

// Validate implements plugin.Validator checks for the unmarshaled config.
func (c InsightConfig) Validate() error {
	if c.HighThreshold <= 0 {
		return fmt.Errorf("high_threshold must be positive, got %v", c.HighThreshold)
	}
	if c.WarningRatio <= 0 || c.WarningRatio >= 1 {
		return fmt.Errorf("warning_ratio must be in (0, 1), got %v", c.WarningRatio)
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be at least 1, got %d", c.LookbackDays)
	}
	if c.GeoMonths < 2 {
		return fmt.Errorf("geo_months must be at least 2, got %d", c.GeoMonths)
	}
	return nil
}

func (c InsightConfig) options() anomaly.Options {
	return anomaly.Options{
		HighThreshold: c.HighThreshold,
		WarningRatio:  c.WarningRatio,
	}
}
