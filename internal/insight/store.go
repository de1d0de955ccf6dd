package insight

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frostline-io/frostline/internal/store"
	"github.com/frostline-io/frostline/pkg/analytics"
)

// InsightStore provides database access for the Insight analytics plugin.
type InsightStore struct {
	db *sql.DB
}

// NewInsightStore creates a new InsightStore backed by the given database.
func NewInsightStore(db *sql.DB) *InsightStore {
	return &InsightStore{db: db}
}

// -- Anomaly reports --

// UpsertReport inserts an anomaly report, replacing any earlier report for
// the same (metric, granularity, period) point so rescans stay idempotent.
func (s *InsightStore) UpsertReport(ctx context.Context, r *analytics.AnomalyReport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insight_reports (
			id, metric, granularity, period, value, z_score, severity, direction, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(metric, granularity, period) DO UPDATE SET
			value = excluded.value,
			z_score = excluded.z_score,
			severity = excluded.severity,
			direction = excluded.direction,
			detected_at = excluded.detected_at`,
		r.ID, r.Metric, r.Granularity, store.TimeText(r.Period), r.Value,
		r.ZScore, r.Severity.String(), string(r.Direction), store.TimeText(r.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// ListReports returns anomaly reports, optionally filtered by metric.
// Pass empty metric to list all. Results are ordered by period descending.
func (s *InsightStore) ListReports(ctx context.Context, metric string, limit int) ([]analytics.AnomalyReport, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if metric == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, metric, granularity, period, value, z_score, severity, direction, detected_at
			FROM insight_reports ORDER BY period DESC LIMIT ?`,
			limit,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, metric, granularity, period, value, z_score, severity, direction, detected_at
			FROM insight_reports WHERE metric = ? ORDER BY period DESC LIMIT ?`,
			metric, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []analytics.AnomalyReport
	for rows.Next() {
		var r analytics.AnomalyReport
		var severity, direction string
		if err := rows.Scan(
			&r.ID, &r.Metric, &r.Granularity, &r.Period, &r.Value,
			&r.ZScore, &severity, &direction, &r.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		r.Severity = analytics.ParseSeverity(severity)
		r.Direction = analytics.Direction(direction)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// DeleteOldReports deletes reports detected before the given time.
// Returns the number of rows deleted.
func (s *InsightStore) DeleteOldReports(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM insight_reports WHERE detected_at < ?`,
		store.TimeText(before),
	)
	if err != nil {
		return 0, fmt.Errorf("delete old reports: %w", err)
	}
	return result.RowsAffected()
}

// -- Geographic anomalies --

// UpsertGeoAnomaly inserts or updates one country-month assessment.
func (s *InsightStore) UpsertGeoAnomaly(ctx context.Context, g *analytics.GeoAnomaly) error {
	typesJSON, err := json.Marshal(g.AnomalyTypes)
	if err != nil {
		return fmt.Errorf("marshal anomaly_types: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO insight_geo (
			month, country, country_code, region, score, band,
			total_revenue, order_count, unique_customers, avg_order_value,
			revenue_zscore, orders_zscore, revenue_mom_pct, anomaly_types, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		store.TimeText(g.Month), g.Country, g.CountryCode, g.Region, g.Score, string(g.Band),
		g.TotalRevenue, g.OrderCount, g.UniqueCustomers, g.AvgOrderValue,
		g.RevenueZScore, g.OrdersZScore, g.RevenueMoMPct, string(typesJSON), store.TimeText(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert geo anomaly: %w", err)
	}
	return nil
}

// ListGeoAnomalies returns all country assessments for a month, highest
// score first.
func (s *InsightStore) ListGeoAnomalies(ctx context.Context, month time.Time) ([]analytics.GeoAnomaly, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, country, country_code, region, score, band,
			total_revenue, order_count, unique_customers, avg_order_value,
			revenue_zscore, orders_zscore, revenue_mom_pct, anomaly_types
		FROM insight_geo WHERE month = ? ORDER BY score DESC, country`,
		store.TimeText(month),
	)
	if err != nil {
		return nil, fmt.Errorf("list geo anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []analytics.GeoAnomaly
	for rows.Next() {
		var g analytics.GeoAnomaly
		var band, typesJSON string
		var mom sql.NullFloat64
		if err := rows.Scan(
			&g.Month, &g.Country, &g.CountryCode, &g.Region, &g.Score, &band,
			&g.TotalRevenue, &g.OrderCount, &g.UniqueCustomers, &g.AvgOrderValue,
			&g.RevenueZScore, &g.OrdersZScore, &mom, &typesJSON,
		); err != nil {
			return nil, fmt.Errorf("scan geo row: %w", err)
		}
		g.Band = analytics.ScoreBand(band)
		if mom.Valid {
			g.RevenueMoMPct = &mom.Float64
		}
		if err := json.Unmarshal([]byte(typesJSON), &g.AnomalyTypes); err != nil {
			return nil, fmt.Errorf("unmarshal anomaly_types: %w", err)
		}
		anomalies = append(anomalies, g)
	}
	return anomalies, rows.Err()
}

// LatestGeoMonth returns the most recent scored month, or the zero time when
// nothing has been scored yet.
func (s *InsightStore) LatestGeoMonth(ctx context.Context) (time.Time, error) {
	var month time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT month FROM insight_geo ORDER BY month DESC LIMIT 1`).Scan(&month)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest geo month: %w", err)
	}
	return month, nil
}
