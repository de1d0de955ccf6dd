package insight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frostline-io/frostline/internal/insight/anomaly"
	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
	"github.com/frostline-io/frostline/pkg/roles"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin           = (*Module)(nil)
	_ plugin.HTTPProvider     = (*Module)(nil)
	_ plugin.HealthChecker    = (*Module)(nil)
	_ plugin.EventSubscriber  = (*Module)(nil)
	_ plugin.Validator        = (*Module)(nil)
	_ roles.AnalyticsProvider = (*Module)(nil)
)

// scanMetrics are the warehouse series rescored after each ingest.
var scanMetrics = []string{
	analytics.MetricRevenue,
	analytics.MetricOrders,
	analytics.MetricCustomers,
	analytics.MetricAOV,
}

// Module implements the Insight analytics plugin: it classifies warehouse
// metric series against fixed-window baselines and scores per-country
// monthly aggregates on the 0-100 geographic scale.
type Module struct {
	logger  *zap.Logger
	cfg     InsightConfig
	store   *InsightStore
	bus     plugin.EventBus
	plugins plugin.PluginResolver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Insight plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "insight",
		Version:      "0.1.0",
		Description:  "Statistical anomaly detection over warehouse metrics",
		Dependencies: []string{"warehouse"},
		Roles:        []string{roles.RoleAnalytics},
		Required:     false,
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal insight config: %w", err)
		}
	}

	if deps.Store != nil {
		if err := deps.Store.Migrate(context.Background(), "insight", migrations()); err != nil {
			return fmt.Errorf("insight migrations: %w", err)
		}
		m.store = NewInsightStore(deps.Store.DB())
	}

	m.bus = deps.Bus
	m.plugins = deps.Plugins

	m.logger.Info("insight module initialized",
		zap.Float64("high_threshold", m.cfg.HighThreshold),
		zap.Float64("warning_ratio", m.cfg.WarningRatio),
		zap.Int("lookback_days", m.cfg.LookbackDays),
		zap.Int("geo_months", m.cfg.GeoMonths),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.startMaintenance()
	m.logger.Info("insight module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("insight module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

// -- plugin.HealthChecker --

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	details := map[string]string{
		"warehouse_available": "false",
	}
	if _, err := m.warehouse(); err == nil {
		details["warehouse_available"] = "true"
	}
	if m.store != nil {
		if month, err := m.store.LatestGeoMonth(ctx); err == nil && !month.IsZero() {
			details["latest_geo_month"] = month.Format("2006-01")
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: details,
	}
}

// -- plugin.EventSubscriber --

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: TopicExtractIngested, Handler: m.handleExtractIngested},
	}
}

// handleExtractIngested rescans every tracked series after new orders land.
func (m *Module) handleExtractIngested(_ context.Context, event plugin.Event) {
	m.logger.Info("extract ingested, rescoring series", zap.String("source", event.Source))

	ctx, cancel := context.WithTimeout(m.baseContext(), 60*time.Second)
	defer cancel()
	m.rescoreAll(ctx)
}

// baseContext returns the lifecycle context, or the background context for
// events delivered between Init and Start.
func (m *Module) baseContext() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// rescoreAll classifies every metric series and rescores the geographic
// snapshots. Per-series failures are logged and skipped; one short series
// must not block the others.
func (m *Module) rescoreAll(ctx context.Context) {
	wh, err := m.warehouse()
	if err != nil {
		m.logger.Warn("rescore skipped", zap.Error(err))
		return
	}

	for _, metric := range scanMetrics {
		if err := m.rescoreMetric(ctx, wh, metric); err != nil {
			m.logger.Warn("metric rescore failed",
				zap.String("metric", metric), zap.Error(err))
		}
	}

	if err := m.rescoreGeo(ctx, wh); err != nil {
		m.logger.Warn("geo rescore failed", zap.Error(err))
	}
}

// rescoreMetric classifies one daily metric series over the configured
// lookback, persists Warning-and-above points, and publishes an event for
// each Anomaly-tier point.
func (m *Module) rescoreMetric(ctx context.Context, wh roles.WarehouseProvider, metric string) error {
	series, err := wh.TimeSeries(ctx, metric, analytics.GranularityDay, m.cfg.LookbackDays)
	if err != nil {
		return fmt.Errorf("time series %s: %w", metric, err)
	}

	obs := make([]analytics.MetricObservation, len(series))
	for i, p := range series {
		obs[i] = analytics.MetricObservation{Period: p.Period, Value: p.Value}
	}

	baseline, err := anomaly.ComputeBaseline(obs)
	if err != nil {
		if errors.Is(err, anomaly.ErrInsufficientData) {
			m.logger.Debug("no data for metric", zap.String("metric", metric))
			return nil
		}
		return err
	}

	classified := anomaly.Classify(obs, baseline, m.cfg.options())
	severe := anomaly.ExtractSevere(classified, analytics.SeverityWarning)

	now := time.Now()
	for _, c := range severe {
		r := &analytics.AnomalyReport{
			ID:          uuid.NewString(),
			Metric:      metric,
			Granularity: string(analytics.GranularityDay),
			Period:      c.Period,
			Value:       c.Value,
			ZScore:      *c.ZScore,
			Severity:    c.Severity,
			Direction:   c.Direction,
			DetectedAt:  now,
		}
		if m.store != nil {
			if err := m.store.UpsertReport(ctx, r); err != nil {
				m.logger.Warn("failed to store anomaly report", zap.Error(err))
				continue
			}
		}
		if c.Severity >= analytics.SeverityAnomaly {
			m.logger.Info("anomaly detected",
				zap.String("metric", metric),
				zap.Time("period", c.Period),
				zap.Float64("value", c.Value),
				zap.Float64("z_score", r.ZScore),
				zap.String("direction", string(c.Direction)),
			)
			if m.bus != nil {
				m.bus.PublishAsync(m.baseContext(), plugin.Event{
					Topic:   TopicAnomalyDetected,
					Source:  "insight",
					Payload: r,
				})
			}
		}
	}
	return nil
}

// rescoreGeo scores every country-month snapshot against that country's own
// revenue and order-count baselines, then publishes an alert carrying the
// Severe-band countries of the latest month.
func (m *Module) rescoreGeo(ctx context.Context, wh roles.WarehouseProvider) error {
	snaps, err := wh.CountrySnapshots(ctx, m.cfg.GeoMonths)
	if err != nil {
		return fmt.Errorf("country snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}

	scored := ScoreSnapshots(snaps)

	var latest time.Time
	for _, g := range scored {
		if m.store != nil {
			if err := m.store.UpsertGeoAnomaly(ctx, &g); err != nil {
				m.logger.Warn("failed to store geo anomaly",
					zap.String("country", g.Country), zap.Error(err))
			}
		}
		if g.Month.After(latest) {
			latest = g.Month
		}
	}

	alert := analytics.GeoAlert{Month: latest}
	for _, g := range scored {
		if g.Month.Equal(latest) && g.Band == analytics.BandSevere {
			alert.Items = append(alert.Items, analytics.AlertItem{
				Country: g.Country,
				Score:   g.Score,
				Revenue: g.TotalRevenue,
			})
		}
	}
	if len(alert.Items) > 0 && m.bus != nil {
		m.logger.Info("severe geographic anomalies detected",
			zap.Time("month", latest),
			zap.Int("countries", len(alert.Items)),
		)
		m.bus.PublishAsync(m.baseContext(), plugin.Event{
			Topic:   TopicGeoSevere,
			Source:  "insight",
			Payload: alert,
		})
	}
	return nil
}

// ScoreSnapshots scores a batch of country-month snapshots. Baselines are
// computed per country over that country's months in the batch. Output
// preserves input order.
func ScoreSnapshots(snaps []analytics.CountrySnapshot) []analytics.GeoAnomaly {
	type series struct {
		rev []analytics.MetricObservation
		ord []analytics.MetricObservation
	}
	byCountry := make(map[string]*series)
	for _, s := range snaps {
		cs, ok := byCountry[s.Country]
		if !ok {
			cs = &series{}
			byCountry[s.Country] = cs
		}
		cs.rev = append(cs.rev, analytics.MetricObservation{Period: s.Month, Value: s.TotalRevenue})
		cs.ord = append(cs.ord, analytics.MetricObservation{Period: s.Month, Value: float64(s.OrderCount)})
	}

	baselines := make(map[string][2]analytics.BaselineStats, len(byCountry))
	for country, cs := range byCountry {
		revBase, _ := anomaly.ComputeBaseline(cs.rev)
		ordBase, _ := anomaly.ComputeBaseline(cs.ord)
		baselines[country] = [2]analytics.BaselineStats{revBase, ordBase}
	}

	out := make([]analytics.GeoAnomaly, 0, len(snaps))
	for _, s := range snaps {
		b := baselines[s.Country]
		out = append(out, anomaly.ScoreCountry(s, b[0], b[1]))
	}
	return out
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

// -- roles.AnalyticsProvider --

// Anomalies implements roles.AnalyticsProvider.
func (m *Module) Anomalies(ctx context.Context, metric string, limit int) ([]analytics.AnomalyReport, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListReports(ctx, metric, limit)
}

// GeoAnomalies implements roles.AnalyticsProvider.
func (m *Module) GeoAnomalies(ctx context.Context, month time.Time) ([]analytics.GeoAnomaly, error) {
	if m.store == nil {
		return nil, nil
	}
	if month.IsZero() {
		latest, err := m.store.LatestGeoMonth(ctx)
		if err != nil {
			return nil, err
		}
		if latest.IsZero() {
			return nil, nil
		}
		month = latest
	}
	return m.store.ListGeoAnomalies(ctx, month)
}
