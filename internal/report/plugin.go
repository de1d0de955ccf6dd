package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/frostline-io/frostline/pkg/plugin"
	"github.com/frostline-io/frostline/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// Module implements the Report plugin.
type Module struct {
	logger  *zap.Logger
	cfg     ReportConfig
	plugins plugin.PluginResolver
}

// New creates a new Report plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "report",
		Version:      "0.1.0",
		Description:  "Chart-shaped dashboard payloads over warehouse aggregates",
		Dependencies: []string{"warehouse", "insight"},
		Roles:        []string{roles.RoleReporting},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal report config: %w", err)
		}
	}

	m.plugins = deps.Plugins
	m.logger.Info("report module initialized", zap.String("default_range", m.cfg.DefaultRange))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("report module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("report module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

// Health implements plugin.HealthChecker. The report module is a pure view
// layer: it degrades when its providers are missing.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{
		"warehouse_available": "false",
		"analytics_available": "false",
	}
	if _, err := m.warehouse(); err == nil {
		details["warehouse_available"] = "true"
	}
	if _, err := m.analytics(); err == nil {
		details["analytics_available"] = "true"
	}
	status := "healthy"
	if details["warehouse_available"] == "false" {
		status = "degraded"
	}
	return plugin.HealthStatus{Status: status, Details: details}
}

// warehouse resolves the warehouse provider through the plugin registry.
func (m *Module) warehouse() (roles.WarehouseProvider, error) {
	if m.plugins == nil {
		return nil, errors.New("plugin resolver not available")
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleWarehouse) {
		if wh, ok := p.(roles.WarehouseProvider); ok {
			return wh, nil
		}
	}
	return nil, errors.New("no warehouse provider registered")
}

// analytics resolves the anomaly-scoring provider through the registry.
func (m *Module) analytics() (roles.AnalyticsProvider, error) {
	if m.plugins == nil {
		return nil, errors.New("plugin resolver not available")
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleAnalytics) {
		if ap, ok := p.(roles.AnalyticsProvider); ok {
			return ap, nil
		}
	}
	return nil, errors.New("no analytics provider registered")
}
