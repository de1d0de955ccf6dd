// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) should implement
// the corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
//
// This package is Apache 2.0 licensed, part of the public plugin SDK.
package roles

import (
	"context"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleWarehouse    = "warehouse"
	RoleAnalytics    = "analytics"
	RoleNotification = "notification"
	RoleReporting    = "reporting"
)

// WarehouseProvider is implemented by plugins that own the order extract
// and answer aggregate queries over it. Resolve via
// PluginResolver.ResolveByRole(RoleWarehouse) then type-assert.
type WarehouseProvider interface {
	// TimeSeries returns one metric bucketed at the given granularity over
	// the trailing lookback window. The window is anchored to the latest
	// order date in the extract, not the wall clock.
	TimeSeries(ctx context.Context, metric string, g analytics.Granularity, lookbackDays int) ([]analytics.TrendPoint, error)

	// CountrySnapshots returns per-country monthly aggregates for the
	// trailing number of months, oldest first within each country.
	CountrySnapshots(ctx context.Context, months int) ([]analytics.CountrySnapshot, error)

	// ProductRevenue returns monthly revenue by country and product type.
	ProductRevenue(ctx context.Context, months int) ([]analytics.ProductRevenue, error)

	// LatestOrderDate returns the most recent order date in the extract.
	LatestOrderDate(ctx context.Context) (time.Time, error)
}

// AnalyticsProvider is implemented by plugins that score warehouse metrics
// for anomalies. Resolve via PluginResolver.ResolveByRole(RoleAnalytics)
// then type-assert.
type AnalyticsProvider interface {
	// Anomalies returns persisted anomaly reports, newest first. Pass an
	// empty metric to list across all metrics.
	Anomalies(ctx context.Context, metric string, limit int) ([]analytics.AnomalyReport, error)

	// GeoAnomalies returns the geographic anomaly assessments for a month.
	// Pass the zero time for the latest scored month.
	GeoAnomalies(ctx context.Context, month time.Time) ([]analytics.GeoAnomaly, error)
}

// Notification is a provider-agnostic outbound message.
type Notification struct {
	Title    string
	Body     string
	Severity string
	Fields   map[string]string
}

// Notifier is implemented by plugins that deliver notifications to an
// external channel (Slack, generic webhooks).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
