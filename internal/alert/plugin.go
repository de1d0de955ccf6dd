package alert

import (
	"context"
	"fmt"
	"sort"

	"github.com/frostline-io/frostline/internal/insight"
	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
	"github.com/frostline-io/frostline/pkg/roles"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
	_ roles.Notifier         = (*Module)(nil)
)

// Module implements the Alert notifier plugin.
type Module struct {
	logger   *zap.Logger
	cfg      AlertConfig
	notifier *SlackNotifier
}

// New creates a new Alert plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "alert",
		Version:      "0.1.0",
		Description:  "Delivers severe anomaly alerts to a Slack-compatible webhook",
		Dependencies: []string{"insight"},
		Roles:        []string{roles.RoleNotification},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal alert config: %w", err)
		}
	}

	if m.cfg.URL == "" {
		m.logger.Warn("alert webhook URL not configured; notifications will be dropped")
	} else {
		m.notifier = NewSlackNotifier(m.cfg.URL, m.cfg.Timeout, m.cfg.Secret)
	}

	m.logger.Info("alert module initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.Bool("configured", m.notifier != nil),
		zap.Float64("min_score", m.cfg.MinScore),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("alert module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("alert module stopped")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.Validate()
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if !m.cfg.Enabled {
		return plugin.HealthStatus{Status: "healthy", Message: "alerting disabled"}
	}
	if m.notifier == nil {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "webhook URL not configured; notifications are dropped",
		}
	}
	return plugin.HealthStatus{Status: "healthy"}
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: insight.TopicGeoSevere, Handler: m.handleGeoSevere},
		{Topic: insight.TopicAnomalyDetected, Handler: m.handleAnomalyDetected},
	}
}

// handleGeoSevere posts the monthly severe-country digest.
func (m *Module) handleGeoSevere(ctx context.Context, event plugin.Event) {
	if !m.deliverable() {
		return
	}
	alert, ok := event.Payload.(analytics.GeoAlert)
	if !ok {
		m.logger.Warn("unexpected geo alert payload", zap.String("type", fmt.Sprintf("%T", event.Payload)))
		return
	}

	filtered := alert
	filtered.Items = nil
	for _, item := range alert.Items {
		if item.Score >= m.cfg.MinScore {
			filtered.Items = append(filtered.Items, item)
		}
	}
	if len(filtered.Items) == 0 {
		m.logger.Debug("no geo anomalies above min_score", zap.Float64("min_score", m.cfg.MinScore))
		return
	}

	if err := m.notifier.Post(ctx, BuildGeoMessage(filtered)); err != nil {
		m.logger.Warn("geo alert delivery failed", zap.Error(err))
		return
	}
	m.logger.Info("geo alert delivered",
		zap.Time("month", filtered.Month),
		zap.Int("countries", len(filtered.Items)),
	)
}

// handleAnomalyDetected posts a single metric anomaly.
func (m *Module) handleAnomalyDetected(ctx context.Context, event plugin.Event) {
	if !m.deliverable() {
		return
	}
	report, ok := event.Payload.(*analytics.AnomalyReport)
	if !ok {
		m.logger.Warn("unexpected anomaly payload", zap.String("type", fmt.Sprintf("%T", event.Payload)))
		return
	}

	if err := m.notifier.Post(ctx, BuildReportMessage(report)); err != nil {
		m.logger.Warn("anomaly alert delivery failed",
			zap.String("metric", report.Metric), zap.Error(err))
		return
	}
	m.logger.Info("anomaly alert delivered",
		zap.String("metric", report.Metric),
		zap.Time("period", report.Period),
	)
}

func (m *Module) deliverable() bool {
	return m.cfg.Enabled && m.notifier != nil
}

// Notify implements roles.Notifier for other plugins that want to send
// ad-hoc notifications through the configured webhook.
func (m *Module) Notify(ctx context.Context, n roles.Notification) error {
	if !m.deliverable() {
		return fmt.Errorf("alert notifier not configured")
	}

	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := n.Body
	for _, k := range keys {
		text += fmt.Sprintf("\n  - *%s*: %s", k, n.Fields[k])
	}
	msg := Message{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: n.Title}},
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}},
	}}
	return m.notifier.Post(ctx, msg)
}
