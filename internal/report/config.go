package report

import "fmt"

// ReportConfig holds configuration for the Report plugin.
type ReportConfig struct {
	DefaultRange      string `mapstructure:"default_range"`
	GeoMonths         int    `mapstructure:"geo_months"`
	TrendLookbackDays int    `mapstructure:"trend_lookback_days"`
}

// DefaultConfig returns sensible defaults for the Report module.
func DefaultConfig() ReportConfig {
	return ReportConfig{
		DefaultRange:      "1Y",
		GeoMonths:         12,
		TrendLookbackDays: 3650,
	}
}

// Validate implements plugin.Validator checks for the unmarshaled config.
func (c ReportConfig) Validate() error {
	if _, err := ParseRange(c.DefaultRange); err != nil {
		return fmt.Errorf("default_range: %w", err)
	}
	if c.GeoMonths < 1 {
		return fmt.Errorf("geo_months must be at least 1, got %d", c.GeoMonths)
	}
	if c.TrendLookbackDays < 1 {
		return fmt.Errorf("trend_lookback_days must be at least 1, got %d", c.TrendLookbackDays)
	}
	return nil
}
