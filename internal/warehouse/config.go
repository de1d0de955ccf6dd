package warehouse

import "fmt"

// WarehouseConfig holds configuration for the Warehouse plugin.
type WarehouseConfig struct {
	IngestBatchSize     int `mapstructure:"ingest_batch_size"`
	DefaultLookbackDays int `mapstructure:"default_lookback_days"`
	MovingAverageWindow int `mapstructure:"moving_average_window"`
}

// DefaultConfig returns sensible defaults for the Warehouse module.
func DefaultConfig() WarehouseConfig {
	return WarehouseConfig{
		IngestBatchSize:     500,
		DefaultLookbackDays: 365,
		MovingAverageWindow: 7,
	}
}

// Validate implements plugin.Validator checks for the unmarshaled config.
func (c WarehouseConfig) Validate() error {
	if c.IngestBatchSize < 1 {
		return fmt.Errorf("ingest_batch_size must be at least 1, got %d", c.IngestBatchSize)
	}
	if c.DefaultLookbackDays < 1 {
		return fmt.Errorf("default_lookback_days must be at least 1, got %d", c.DefaultLookbackDays)
	}
	if c.MovingAverageWindow < 1 {
		return fmt.Errorf("moving_average_window must be at least 1, got %d", c.MovingAverageWindow)
	}
	return nil
}
