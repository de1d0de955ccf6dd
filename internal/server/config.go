package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/frostline.db")

	// Plugin defaults
	v.SetDefault("plugins.warehouse.enabled", true)
	v.SetDefault("plugins.warehouse.ingest_batch_size", 500)
	v.SetDefault("plugins.warehouse.default_lookback_days", 365)
	v.SetDefault("plugins.warehouse.moving_average_window", 7)
	v.SetDefault("plugins.insight.enabled", true)
	v.SetDefault("plugins.insight.high_threshold", 2.0)
	v.SetDefault("plugins.insight.warning_ratio", 0.75)
	v.SetDefault("plugins.insight.lookback_days", 90)
	v.SetDefault("plugins.insight.geo_months", 12)
	v.SetDefault("plugins.insight.anomaly_retention", "2160h")
	v.SetDefault("plugins.insight.maintenance_interval", "1h")
	v.SetDefault("plugins.report.enabled", true)
	v.SetDefault("plugins.report.default_range", "1Y")
	v.SetDefault("plugins.report.geo_months", 12)
	v.SetDefault("plugins.report.trend_lookback_days", 3650)
	v.SetDefault("plugins.alert.enabled", true)
	v.SetDefault("plugins.alert.url", "")
	v.SetDefault("plugins.alert.timeout", "10s")
	v.SetDefault("plugins.alert.min_score", 75)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("frostline")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/frostline")
	}

	// Environment variable support: FL_SERVER_PORT=9090
	v.SetEnvPrefix("FL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
