// Package analytics provides public SDK types for the Frostline analytics
// system: metric observations, baseline statistics, classified observations,
// and the typed rows returned by the warehouse query layer.
//
// This package is Apache 2.0 licensed, part of the public plugin SDK.
package analytics

import "time"

// Granularity selects the time bucket for a metric series.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
)

// Valid reports whether g is a recognized granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityQuarter:
		return true
	}
	return false
}

// Metric names accepted by the warehouse time-series queries.
const (
	MetricRevenue   = "revenue"
	MetricOrders    = "orders"
	MetricCustomers = "customers"
	MetricAOV       = "aov"
)

// MetricObservation is a single per-period observation of one metric.
// Observations are constructed once at the data-retrieval boundary;
// consumers may assume Period is non-zero and Value is finite.
type MetricObservation struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// BaselineStats holds the mean and standard deviation computed over one
// fixed lookback window. The same baseline classifies every point in that
// window; it is never recomputed per point.
type BaselineStats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Samples int     `json:"samples"`
}

// Severity is the z-score based severity tier of a classified observation.
// The ordering Normal < Warning < Anomaly is significant: filters compare
// tiers with >=.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityAnomaly
)

// String returns the wire form of the severity tier.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityAnomaly:
		return "ANOMALY"
	default:
		return "NORMAL"
	}
}

// ParseSeverity maps a wire-form severity back to its tier.
// Unknown strings map to SeverityNormal.
func ParseSeverity(s string) Severity {
	switch s {
	case "WARNING":
		return SeverityWarning
	case "ANOMALY":
		return SeverityAnomaly
	default:
		return SeverityNormal
	}
}

// MarshalText implements encoding.TextMarshaler so Severity serializes as
// its wire form in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// Direction annotates which side of the baseline mean an observation lies on.
// A value exactly equal to the mean counts as BelowBaseline; this is a
// documented boundary convention, not a special case.
type Direction string

const (
	AboveBaseline Direction = "ABOVE_BASELINE"
	BelowBaseline Direction = "BELOW_BASELINE"
)

// ClassifiedObservation is a MetricObservation annotated with its deviation
// from a fixed-window baseline. ZScore is nil when the baseline has zero
// variance (a constant series has no meaningful deviation).
type ClassifiedObservation struct {
	Period    time.Time `json:"period"`
	Value     float64   `json:"value"`
	ZScore    *float64  `json:"z_score,omitempty"`
	Severity  Severity  `json:"severity"`
	Direction Direction `json:"direction"`
}

// AnomalyReport is a persisted record of a point that classified at
// Warning or above.
type AnomalyReport struct {
	ID          string    `json:"id"`
	Metric      string    `json:"metric"`
	Granularity string    `json:"granularity"`
	Period      time.Time `json:"period"`
	Value       float64   `json:"value"`
	ZScore      float64   `json:"z_score"`
	Severity    Severity  `json:"severity"`
	Direction   Direction `json:"direction"`
	DetectedAt  time.Time `json:"detected_at"`
}

// -- Geographic anomaly scale --
//
// The geographic workflow uses a 0-100 composite score with its own band
// vocabulary (Normal/Minor/Moderate/Severe). It is deliberately independent
// of the z-score Severity tiers above; the two scales are never mapped onto
// each other.

// ScoreBand is the banded form of a 0-100 geographic anomaly score.
type ScoreBand string

const (
	BandNormal   ScoreBand = "Normal"
	BandMinor    ScoreBand = "Minor"
	BandModerate ScoreBand = "Moderate"
	BandSevere   ScoreBand = "Severe"
)

// GeoAnomaly is one country's anomaly assessment for one month.
type GeoAnomaly struct {
	Month           time.Time `json:"month"`
	Country         string    `json:"country"`
	CountryCode     string    `json:"country_code"`
	Region          string    `json:"region"`
	Score           float64   `json:"anomaly_score"` // 0-100
	Band            ScoreBand `json:"anomaly_severity"`
	TotalRevenue    float64   `json:"total_revenue"`
	OrderCount      int       `json:"order_count"`
	UniqueCustomers int       `json:"unique_customers"`
	AvgOrderValue   float64   `json:"avg_order_value"`
	RevenueZScore   float64   `json:"revenue_zscore"`
	OrdersZScore    float64   `json:"orders_zscore"`
	RevenueMoMPct   *float64  `json:"revenue_mom_change,omitempty"`
	AnomalyTypes    []string  `json:"anomaly_types"`
}

// AlertItem is the transient projection of a severe geographic anomaly
// shipped to the notification layer. Constructed per dispatch, never
// persisted.
type AlertItem struct {
	Country string  `json:"country"`
	Score   float64 `json:"score"`
	Revenue float64 `json:"revenue"`
}

// GeoAlert is the bus payload published when severe geographic anomalies
// are found for a month.
type GeoAlert struct {
	Month time.Time   `json:"month"`
	Items []AlertItem `json:"items"`
}

// -- Warehouse query rows --

// KPISummary aggregates order KPIs over a date range.
type KPISummary struct {
	UniqueCustomers int       `json:"unique_customers"`
	TotalOrders     int       `json:"total_orders"`
	TotalRevenue    float64   `json:"total_revenue"`
	AvgOrderValue   float64   `json:"avg_order_value"`
	FirstOrderDate  time.Time `json:"first_order_date"`
	LastOrderDate   time.Time `json:"last_order_date"`
	ActiveDays      int       `json:"active_days"`
	RevenuePerDay   float64   `json:"revenue_per_day"`
}

// KPIComparison compares the current period against the preceding one.
// Change percentages are nil when the previous period has no activity.
type KPIComparison struct {
	CurrentOrders      int      `json:"current_orders"`
	PreviousOrders     int      `json:"previous_orders"`
	OrdersChangePct    *float64 `json:"orders_change_pct,omitempty"`
	CurrentRevenue     float64  `json:"current_revenue"`
	PreviousRevenue    float64  `json:"previous_revenue"`
	RevenueChangePct   *float64 `json:"revenue_change_pct,omitempty"`
	CurrentCustomers   int      `json:"current_customers"`
	PreviousCustomers  int      `json:"previous_customers"`
	CustomersChangePct *float64 `json:"customers_change_pct,omitempty"`
	CurrentAOV         float64  `json:"current_aov"`
	PreviousAOV        float64  `json:"previous_aov"`
	AOVChangePct       *float64 `json:"aov_change_pct,omitempty"`
}

// TrendPoint is one bucket of a metric time series.
type TrendPoint struct {
	Period        time.Time `json:"period"`
	Value         float64   `json:"value"`
	OrderCount    int       `json:"order_count"`
	CustomerCount int       `json:"customer_count"`
}

// MovingAveragePoint is one day of the smoothed daily metrics series.
type MovingAveragePoint struct {
	Date        time.Time `json:"date"`
	Orders      int       `json:"orders"`
	Revenue     float64   `json:"revenue"`
	Customers   int       `json:"customers"`
	OrdersMA    float64   `json:"orders_ma"`
	RevenueMA   float64   `json:"revenue_ma"`
	CustomersMA float64   `json:"customers_ma"`
}

// CustomerSegment is one lifetime-value quartile band.
type CustomerSegment struct {
	Segment          string  `json:"segment"` // "VIP", "High Value", "Medium Value", "Low Value"
	CustomerCount    int     `json:"customer_count"`
	AvgLifetimeValue float64 `json:"avg_lifetime_value"`
	AvgOrderCount    float64 `json:"avg_order_count"`
	AvgOrderValue    float64 `json:"avg_order_value"`
	AvgTenureDays    float64 `json:"avg_tenure_days"`
	TotalValue       float64 `json:"total_segment_value"`
}

// CohortCell is one (cohort, periods-since-first) retention cell.
type CohortCell struct {
	CohortDate        time.Time `json:"cohort_date"`
	PeriodsSinceFirst int       `json:"periods_since_first"`
	ActiveCustomers   int       `json:"active_customers"`
}

// RFMSegment is one recency/frequency/monetary segment summary.
type RFMSegment struct {
	Segment          string  `json:"rfm_segment"`
	CustomerCount    int     `json:"customer_count"`
	AvgRecencyDays   float64 `json:"avg_recency"`
	AvgFrequency     float64 `json:"avg_frequency"`
	AvgMonetaryValue float64 `json:"avg_monetary_value"`
	TotalValue       float64 `json:"total_value"`
}

// GrowthPoint is one period of the period-over-period growth series.
type GrowthPoint struct {
	Period           time.Time `json:"period"`
	Orders           int       `json:"orders"`
	Revenue          float64   `json:"revenue"`
	Customers        int       `json:"customers"`
	PrevRevenue      *float64  `json:"prev_revenue,omitempty"`
	RevenueGrowthPct *float64  `json:"revenue_growth_pct,omitempty"`
	PrevOrders       *int      `json:"prev_orders,omitempty"`
	OrdersGrowthPct  *float64  `json:"orders_growth_pct,omitempty"`
}

// RegionPerformance aggregates order KPIs for one region/country pair.
type RegionPerformance struct {
	Region          string  `json:"region"`
	Country         string  `json:"country"`
	OrderCount      int     `json:"order_count"`
	TotalRevenue    float64 `json:"total_revenue"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	UniqueCustomers int     `json:"unique_customers"`
}

// PriorityStats aggregates orders by priority level.
type PriorityStats struct {
	Priority        string  `json:"priority"`
	OrderCount      int     `json:"order_count"`
	TotalRevenue    float64 `json:"total_revenue"`
	AvgOrderValue   float64 `json:"avg_order_value"`
	UniqueCustomers int     `json:"unique_customers"`
	PctOfOrders     float64 `json:"percentage_of_orders"`
}

// CountrySnapshot is one country's monthly aggregate, the input row for
// geographic anomaly scoring. PrevRevenue is nil for a country's first
// month in the data.
type CountrySnapshot struct {
	Month           time.Time `json:"month"`
	Country         string    `json:"country"`
	CountryCode     string    `json:"country_code"`
	Region          string    `json:"region"`
	TotalRevenue    float64   `json:"total_revenue"`
	OrderCount      int       `json:"order_count"`
	UniqueCustomers int       `json:"unique_customers"`
	AvgOrderValue   float64   `json:"avg_order_value"`
	PrevRevenue     *float64  `json:"prev_revenue,omitempty"`
}

// ProductRevenue is one (month, country, product type) revenue aggregate.
type ProductRevenue struct {
	Month       time.Time `json:"month"`
	Country     string    `json:"country"`
	ProductType string    `json:"product_type"`
	Revenue     float64   `json:"revenue"`
	RevenuePct  *float64  `json:"revenue_pct,omitempty"`
}

// IngestResult summarizes one CSV extract ingestion.
type IngestResult struct {
	Rows     int       `json:"rows"`
	Skipped  int       `json:"skipped"`
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}
