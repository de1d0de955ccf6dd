package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
	"github.com/frostline-io/frostline/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin           = (*Module)(nil)
	_ plugin.HTTPProvider     = (*Module)(nil)
	_ plugin.HealthChecker    = (*Module)(nil)
	_ plugin.Validator        = (*Module)(nil)
	_ roles.WarehouseProvider = (*Module)(nil)
)

// Module implements the Warehouse plugin: it owns the order extract and
// answers the aggregate queries every other module builds on.
type Module struct {
	logger *zap.Logger
	cfg    WarehouseConfig
	store  *WarehouseStore
	bus    plugin.EventBus
}

// New creates a new Warehouse plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "warehouse",
		Version:     "0.1.0",
		Description: "Order extract storage and aggregate analytics queries",
		Required:    true,
		Roles:       []string{roles.RoleWarehouse},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal warehouse config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "warehouse", migrations()); err != nil {
			return fmt.Errorf("warehouse migrations: %w", err)
		}
		m.store = NewWarehouseStore(deps.Store.DB())
	}

	m.bus = deps.Bus

	m.logger.Info("warehouse module initialized",
		zap.Int("ingest_batch_size", m.cfg.IngestBatchSize),
		zap.Int("default_lookback_days", m.cfg.DefaultLookbackDays),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("warehouse module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("warehouse module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

// Health implements plugin.HealthChecker. An empty extract degrades the
// plugin rather than failing it: the server is usable, the data is not.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.store == nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: "store not initialized"}
	}

	count, err := m.store.OrderCount(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "unhealthy", Message: err.Error()}
	}
	details := map[string]string{
		"order_count": fmt.Sprintf("%d", count),
	}
	if count == 0 {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "no orders ingested",
			Details: details,
		}
	}
	if latest, err := m.store.LatestOrderDate(ctx); err == nil {
		details["latest_order_date"] = latest.Format("2006-01-02")
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

// Ingest parses and stores a CSV order extract and announces the new data
// on the bus.
func (m *Module) Ingest(ctx context.Context, orders []Order, skipped int) (analytics.IngestResult, error) {
	if m.store == nil {
		return analytics.IngestResult{}, fmt.Errorf("store not initialized")
	}

	result, err := m.store.InsertOrders(ctx, orders, m.cfg.IngestBatchSize)
	if err != nil {
		return analytics.IngestResult{}, fmt.Errorf("insert orders: %w", err)
	}
	result.Skipped = skipped

	m.logger.Info("extract ingested",
		zap.Int("rows", result.Rows),
		zap.Int("skipped", result.Skipped),
		zap.Time("earliest", result.Earliest),
		zap.Time("latest", result.Latest),
	)
	if m.bus != nil && result.Rows > 0 {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:   TopicExtractIngested,
			Source:  "warehouse",
			Payload: result,
		})
	}
	return result, nil
}

// -- roles.WarehouseProvider --

// TimeSeries implements roles.WarehouseProvider.
func (m *Module) TimeSeries(ctx context.Context, metric string, g analytics.Granularity, lookbackDays int) ([]analytics.TrendPoint, error) {
	return m.store.TimeSeries(ctx, metric, g, lookbackDays)
}

// CountrySnapshots implements roles.WarehouseProvider.
func (m *Module) CountrySnapshots(ctx context.Context, months int) ([]analytics.CountrySnapshot, error) {
	return m.store.CountrySnapshots(ctx, months)
}

// ProductRevenue implements roles.WarehouseProvider.
func (m *Module) ProductRevenue(ctx context.Context, months int) ([]analytics.ProductRevenue, error) {
	return m.store.ProductRevenue(ctx, months)
}

// LatestOrderDate implements roles.WarehouseProvider.
func (m *Module) LatestOrderDate(ctx context.Context) (time.Time, error) {
	return m.store.LatestOrderDate(ctx)
}
