package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frostline-io/frostline/internal/store"
	"github.com/frostline-io/frostline/pkg/analytics"
)

// WarehouseStore provides database access for the Warehouse plugin: order
// ingestion plus the aggregate queries the analytics and report layers
// consume. All trailing windows are anchored to the latest order date in
// the extract rather than the wall clock, since sample extracts end in the past.
type WarehouseStore struct {
	db *sql.DB
}

// NewWarehouseStore creates a new WarehouseStore backed by the given database.
func NewWarehouseStore(db *sql.DB) *WarehouseStore {
	return &WarehouseStore{db: db}
}

// -- Ingestion --

// InsertOrders writes orders in transactional batches. Re-ingesting an
// extract replaces rows by order key, so ingestion is idempotent.
func (s *WarehouseStore) InsertOrders(ctx context.Context, orders []Order, batchSize int) (analytics.IngestResult, error) {
	if batchSize < 1 {
		batchSize = 500
	}

	var result analytics.IngestResult
	for start := 0; start < len(orders); start += batchSize {
		end := start + batchSize
		if end > len(orders) {
			end = len(orders)
		}
		if err := s.insertBatch(ctx, orders[start:end]); err != nil {
			return analytics.IngestResult{}, err
		}
	}

	result.Rows = len(orders)
	for _, o := range orders {
		if result.Earliest.IsZero() || o.OrderDate.Before(result.Earliest) {
			result.Earliest = o.OrderDate
		}
		if o.OrderDate.After(result.Latest) {
			result.Latest = o.OrderDate
		}
	}
	return result, nil
}

func (s *WarehouseStore) insertBatch(ctx context.Context, orders []Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ingest batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO warehouse_orders (
			order_key, cust_key, status, total_price, order_date,
			priority, country, country_code, region, product_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ingest: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx,
			o.OrderKey, o.CustKey, o.Status, o.TotalPrice, store.TimeText(o.OrderDate),
			o.Priority, o.Country, o.CountryCode, o.Region, o.ProductType,
		); err != nil {
			return fmt.Errorf("insert order %d: %w", o.OrderKey, err)
		}
	}
	return tx.Commit()
}

// OrderCount returns the number of orders in the extract.
func (s *WarehouseStore) OrderCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM warehouse_orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("order count: %w", err)
	}
	return n, nil
}

// LatestOrderDate returns the most recent order date, or the zero time for
// an empty extract.
func (s *WarehouseStore) LatestOrderDate(ctx context.Context) (time.Time, error) {
	var latest time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT order_date FROM warehouse_orders ORDER BY order_date DESC LIMIT 1`).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest order date: %w", err)
	}
	return latest, nil
}

// -- KPIs --

// KPISummary aggregates order KPIs between two dates, inclusive.
func (s *WarehouseStore) KPISummary(ctx context.Context, start, end time.Time) (analytics.KPISummary, error) {
	var (
		k             analytics.KPISummary
		revenue, aov  sql.NullFloat64
		revPerDay     sql.NullFloat64
		firstD, lastD sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT cust_key),
			COUNT(*),
			SUM(total_price),
			AVG(total_price),
			MIN(order_date),
			MAX(order_date),
			COUNT(DISTINCT date(order_date)),
			SUM(total_price) / COUNT(DISTINCT date(order_date))
		FROM warehouse_orders
		WHERE order_date >= ? AND order_date < ?`,
		store.TimeText(start), store.TimeText(end.AddDate(0, 0, 1)),
	).Scan(
		&k.UniqueCustomers, &k.TotalOrders, &revenue, &aov,
		&firstD, &lastD, &k.ActiveDays, &revPerDay,
	)
	if err != nil {
		return analytics.KPISummary{}, fmt.Errorf("kpi summary: %w", err)
	}
	k.TotalRevenue = revenue.Float64
	k.AvgOrderValue = aov.Float64
	k.RevenuePerDay = revPerDay.Float64
	if firstD.Valid {
		k.FirstOrderDate, _ = parseStoredTime(firstD.String)
	}
	if lastD.Valid {
		k.LastOrderDate, _ = parseStoredTime(lastD.String)
	}
	return k, nil
}

// KPIComparison compares the trailing currentDays window against the
// comparisonDays window before it. Change percentages are nil when the
// previous window has no activity.
func (s *WarehouseStore) KPIComparison(ctx context.Context, currentDays, comparisonDays int) (analytics.KPIComparison, error) {
	var (
		k               analytics.KPIComparison
		curRev, prevRev sql.NullFloat64
		curAOV, prevAOV sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		WITH anchor AS (
			SELECT MAX(order_date) AS latest FROM warehouse_orders
		),
		current_period AS (
			SELECT COUNT(*) AS orders, SUM(total_price) AS revenue,
				COUNT(DISTINCT cust_key) AS customers, AVG(total_price) AS aov
			FROM warehouse_orders, anchor
			WHERE order_date >= date(latest, '-' || ? || ' days')
		),
		previous_period AS (
			SELECT COUNT(*) AS orders, SUM(total_price) AS revenue,
				COUNT(DISTINCT cust_key) AS customers, AVG(total_price) AS aov
			FROM warehouse_orders, anchor
			WHERE order_date >= date(latest, '-' || ? || ' days')
				AND order_date < date(latest, '-' || ? || ' days')
		)
		SELECT c.orders, p.orders, c.revenue, p.revenue,
			c.customers, p.customers, c.aov, p.aov
		FROM current_period c CROSS JOIN previous_period p`,
		currentDays, currentDays+comparisonDays, currentDays,
	).Scan(
		&k.CurrentOrders, &k.PreviousOrders, &curRev, &prevRev,
		&k.CurrentCustomers, &k.PreviousCustomers, &curAOV, &prevAOV,
	)
	if err != nil {
		return analytics.KPIComparison{}, fmt.Errorf("kpi comparison: %w", err)
	}
	k.CurrentRevenue = curRev.Float64
	k.PreviousRevenue = prevRev.Float64
	k.CurrentAOV = curAOV.Float64
	k.PreviousAOV = prevAOV.Float64

	k.OrdersChangePct = changePct(float64(k.CurrentOrders), float64(k.PreviousOrders))
	k.RevenueChangePct = changePct(k.CurrentRevenue, k.PreviousRevenue)
	k.CustomersChangePct = changePct(float64(k.CurrentCustomers), float64(k.PreviousCustomers))
	k.AOVChangePct = changePct(k.CurrentAOV, k.PreviousAOV)
	return k, nil
}

func changePct(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	pct := (current - previous) * 100.0 / previous
	return &pct
}

// -- Trends --

// metricExpr maps a metric name to its aggregate SQL expression.
func metricExpr(metric string) (string, error) {
	switch metric {
	case analytics.MetricRevenue:
		return "SUM(total_price)", nil
	case analytics.MetricOrders:
		return "COUNT(*)", nil
	case analytics.MetricCustomers:
		return "COUNT(DISTINCT cust_key)", nil
	case analytics.MetricAOV:
		return "AVG(total_price)", nil
	}
	return "", fmt.Errorf("unknown metric %q", metric)
}

// bucketExpr returns a SQL expression that truncates order_date to the
// granularity's bucket start, formatted YYYY-MM-DD.
func bucketExpr(g analytics.Granularity) (string, error) {
	return bucketExprCol(g, "order_date")
}

// bucketExprCol is bucketExpr over an arbitrary timestamp column.
func bucketExprCol(g analytics.Granularity, col string) (string, error) {
	switch g {
	case analytics.GranularityDay:
		return fmt.Sprintf(`strftime('%%Y-%%m-%%d', %s)`, col), nil
	case analytics.GranularityWeek:
		// Monday of the ISO week.
		return fmt.Sprintf(`date(%s, '-' || ((CAST(strftime('%%w', %s) AS INTEGER) + 6) %% 7) || ' days')`, col, col), nil
	case analytics.GranularityMonth:
		return fmt.Sprintf(`strftime('%%Y-%%m-01', %s)`, col), nil
	case analytics.GranularityQuarter:
		return fmt.Sprintf(`printf('%%s-%%02d-01', strftime('%%Y', %s), ((CAST(strftime('%%m', %s) AS INTEGER) - 1) / 3) * 3 + 1)`, col, col), nil
	}
	return "", fmt.Errorf("unknown granularity %q", g)
}

// TimeSeries returns one metric bucketed at the given granularity over the
// trailing lookback window.
func (s *WarehouseStore) TimeSeries(ctx context.Context, metric string, g analytics.Granularity, lookbackDays int) ([]analytics.TrendPoint, error) {
	mExpr, err := metricExpr(metric)
	if err != nil {
		return nil, err
	}
	bExpr, err := bucketExpr(g)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s AS period, %s AS value, COUNT(*) AS order_count,
			COUNT(DISTINCT cust_key) AS customer_count
		FROM warehouse_orders
		WHERE order_date >= (
			SELECT date(MAX(order_date), '-' || ? || ' days') FROM warehouse_orders
		)
		GROUP BY period
		ORDER BY period`, bExpr, mExpr)

	rows, err := s.db.QueryContext(ctx, query, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("time series: %w", err)
	}
	defer rows.Close()

	var points []analytics.TrendPoint
	for rows.Next() {
		var p analytics.TrendPoint
		var period string
		var value sql.NullFloat64
		if err := rows.Scan(&period, &value, &p.OrderCount, &p.CustomerCount); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		if p.Period, err = parseBucket(period); err != nil {
			return nil, err
		}
		p.Value = value.Float64
		points = append(points, p)
	}
	return points, rows.Err()
}

// MovingAverages returns daily orders/revenue/customers with trailing
// window averages over the lookback window.
func (s *WarehouseStore) MovingAverages(ctx context.Context, windowDays, lookbackDays int) ([]analytics.MovingAveragePoint, error) {
	if windowDays < 1 {
		windowDays = 7
	}
	query := fmt.Sprintf(`
		WITH daily_metrics AS (
			SELECT strftime('%%Y-%%m-%%d', order_date) AS order_day,
				COUNT(*) AS orders,
				SUM(total_price) AS revenue,
				COUNT(DISTINCT cust_key) AS customers
			FROM warehouse_orders
			WHERE order_date >= (
				SELECT date(MAX(order_date), '-' || ? || ' days') FROM warehouse_orders
			)
			GROUP BY order_day
		)
		SELECT order_day, orders, revenue, customers,
			AVG(orders) OVER w AS orders_ma,
			AVG(revenue) OVER w AS revenue_ma,
			AVG(customers) OVER w AS customers_ma
		FROM daily_metrics
		WINDOW w AS (ORDER BY order_day ROWS BETWEEN %d PRECEDING AND CURRENT ROW)
		ORDER BY order_day`, windowDays-1)

	rows, err := s.db.QueryContext(ctx, query, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("moving averages: %w", err)
	}
	defer rows.Close()

	var points []analytics.MovingAveragePoint
	for rows.Next() {
		var p analytics.MovingAveragePoint
		var day string
		if err := rows.Scan(&day, &p.Orders, &p.Revenue, &p.Customers,
			&p.OrdersMA, &p.RevenueMA, &p.CustomersMA); err != nil {
			return nil, fmt.Errorf("scan moving average row: %w", err)
		}
		if p.Date, err = parseBucket(day); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// -- Customer analytics --

// CustomerSegments groups customers into lifetime-value quartile bands.
func (s *WarehouseStore) CustomerSegments(ctx context.Context) ([]analytics.CustomerSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH customer_metrics AS (
			SELECT cust_key,
				COUNT(*) AS order_count,
				SUM(total_price) AS lifetime_value,
				AVG(total_price) AS avg_order_value,
				CAST(julianday(MAX(order_date)) - julianday(MIN(order_date)) AS INTEGER) AS tenure_days
			FROM warehouse_orders
			GROUP BY cust_key
		),
		banded AS (
			SELECT *, NTILE(4) OVER (ORDER BY lifetime_value) AS quartile
			FROM customer_metrics
		)
		SELECT
			CASE quartile
				WHEN 4 THEN 'VIP'
				WHEN 3 THEN 'High Value'
				WHEN 2 THEN 'Medium Value'
				ELSE 'Low Value'
			END AS segment,
			COUNT(*) AS customer_count,
			AVG(lifetime_value) AS avg_lifetime_value,
			AVG(order_count) AS avg_order_count,
			AVG(avg_order_value) AS avg_order_value,
			AVG(tenure_days) AS avg_tenure_days,
			SUM(lifetime_value) AS total_segment_value
		FROM banded
		GROUP BY segment
		ORDER BY avg_lifetime_value DESC`)
	if err != nil {
		return nil, fmt.Errorf("customer segments: %w", err)
	}
	defer rows.Close()

	var segments []analytics.CustomerSegment
	for rows.Next() {
		var seg analytics.CustomerSegment
		if err := rows.Scan(&seg.Segment, &seg.CustomerCount, &seg.AvgLifetimeValue,
			&seg.AvgOrderCount, &seg.AvgOrderValue, &seg.AvgTenureDays, &seg.TotalValue); err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// CustomerCohorts returns retention cells: for each first-order cohort, the
// number of customers still active N periods later.
func (s *WarehouseStore) CustomerCohorts(ctx context.Context, g analytics.Granularity) ([]analytics.CohortCell, error) {
	bExpr, err := bucketExpr(g)
	if err != nil {
		return nil, err
	}
	cohortExpr, err := bucketExprCol(g, "f.first_date")
	if err != nil {
		return nil, err
	}

	var periodsExpr string
	switch g {
	case analytics.GranularityDay:
		periodsExpr = `CAST(julianday(order_period) - julianday(cohort_date) AS INTEGER)`
	case analytics.GranularityWeek:
		periodsExpr = `CAST((julianday(order_period) - julianday(cohort_date)) / 7 AS INTEGER)`
	case analytics.GranularityMonth:
		periodsExpr = `(CAST(strftime('%Y', order_period) AS INTEGER) - CAST(strftime('%Y', cohort_date) AS INTEGER)) * 12
			+ CAST(strftime('%m', order_period) AS INTEGER) - CAST(strftime('%m', cohort_date) AS INTEGER)`
	case analytics.GranularityQuarter:
		periodsExpr = `((CAST(strftime('%Y', order_period) AS INTEGER) - CAST(strftime('%Y', cohort_date) AS INTEGER)) * 12
			+ CAST(strftime('%m', order_period) AS INTEGER) - CAST(strftime('%m', cohort_date) AS INTEGER)) / 3`
	}

	query := fmt.Sprintf(`
		WITH first_order AS (
			SELECT cust_key, MIN(order_date) AS first_date
			FROM warehouse_orders
			GROUP BY cust_key
		),
		cohorts AS (
			SELECT f.cust_key, %s AS cohort_date
			FROM first_order f
		),
		customer_orders AS (
			SELECT o.cust_key, c.cohort_date, %s AS order_period
			FROM warehouse_orders o
			JOIN cohorts c ON o.cust_key = c.cust_key
		)
		SELECT cohort_date, %s AS periods_since_first,
			COUNT(DISTINCT cust_key) AS active_customers
		FROM customer_orders
		GROUP BY cohort_date, periods_since_first
		ORDER BY cohort_date, periods_since_first`, cohortExpr, bExpr, periodsExpr)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("customer cohorts: %w", err)
	}
	defer rows.Close()

	var cells []analytics.CohortCell
	for rows.Next() {
		var c analytics.CohortCell
		var cohort string
		if err := rows.Scan(&cohort, &c.PeriodsSinceFirst, &c.ActiveCustomers); err != nil {
			return nil, fmt.Errorf("scan cohort row: %w", err)
		}
		if c.CohortDate, err = parseBucket(cohort); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// RFMAnalysis segments customers by recency, frequency, and monetary value
// using NTILE-5 scores. Recency is measured against the latest order date.
func (s *WarehouseStore) RFMAnalysis(ctx context.Context) ([]analytics.RFMSegment, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH customer_rfm AS (
			SELECT cust_key,
				CAST(julianday((SELECT MAX(order_date) FROM warehouse_orders))
					- julianday(MAX(order_date)) AS INTEGER) AS recency_days,
				COUNT(*) AS frequency,
				SUM(total_price) AS monetary_value
			FROM warehouse_orders
			GROUP BY cust_key
		),
		rfm_scores AS (
			SELECT recency_days, frequency, monetary_value,
				NTILE(5) OVER (ORDER BY recency_days DESC) AS r_score,
				NTILE(5) OVER (ORDER BY frequency ASC) AS f_score,
				NTILE(5) OVER (ORDER BY monetary_value ASC) AS m_score
			FROM customer_rfm
		)
		SELECT
			CASE
				WHEN r_score >= 4 AND f_score >= 4 AND m_score >= 4 THEN 'Champions'
				WHEN r_score >= 3 AND f_score >= 3 THEN 'Loyal Customers'
				WHEN r_score >= 4 AND f_score <= 2 THEN 'Potential Loyalists'
				WHEN r_score >= 3 AND m_score >= 3 THEN 'Big Spenders'
				WHEN r_score <= 2 AND f_score >= 3 THEN 'At Risk'
				WHEN r_score <= 2 AND f_score <= 2 THEN 'Lost'
				ELSE 'Regular'
			END AS rfm_segment,
			COUNT(*) AS customer_count,
			AVG(recency_days) AS avg_recency,
			AVG(frequency) AS avg_frequency,
			AVG(monetary_value) AS avg_monetary_value,
			SUM(monetary_value) AS total_value
		FROM rfm_scores
		GROUP BY rfm_segment
		ORDER BY total_value DESC`)
	if err != nil {
		return nil, fmt.Errorf("rfm analysis: %w", err)
	}
	defer rows.Close()

	var segments []analytics.RFMSegment
	for rows.Next() {
		var seg analytics.RFMSegment
		if err := rows.Scan(&seg.Segment, &seg.CustomerCount, &seg.AvgRecencyDays,
			&seg.AvgFrequency, &seg.AvgMonetaryValue, &seg.TotalValue); err != nil {
			return nil, fmt.Errorf("scan rfm row: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// -- Growth and dimensions --

// GrowthRates returns period-over-period revenue and order growth.
func (s *WarehouseStore) GrowthRates(ctx context.Context, g analytics.Granularity) ([]analytics.GrowthPoint, error) {
	bExpr, err := bucketExpr(g)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		WITH period_metrics AS (
			SELECT %s AS period,
				COUNT(*) AS orders,
				SUM(total_price) AS revenue,
				COUNT(DISTINCT cust_key) AS customers
			FROM warehouse_orders
			GROUP BY period
		)
		SELECT period, orders, revenue, customers,
			LAG(revenue) OVER (ORDER BY period) AS prev_revenue,
			LAG(orders) OVER (ORDER BY period) AS prev_orders
		FROM period_metrics
		ORDER BY period`, bExpr)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("growth rates: %w", err)
	}
	defer rows.Close()

	var points []analytics.GrowthPoint
	for rows.Next() {
		var p analytics.GrowthPoint
		var period string
		var prevRev sql.NullFloat64
		var prevOrders sql.NullInt64
		if err := rows.Scan(&period, &p.Orders, &p.Revenue, &p.Customers,
			&prevRev, &prevOrders); err != nil {
			return nil, fmt.Errorf("scan growth row: %w", err)
		}
		if p.Period, err = parseBucket(period); err != nil {
			return nil, err
		}
		if prevRev.Valid {
			p.PrevRevenue = &prevRev.Float64
			p.RevenueGrowthPct = changePct(p.Revenue, prevRev.Float64)
		}
		if prevOrders.Valid {
			n := int(prevOrders.Int64)
			p.PrevOrders = &n
			p.OrdersGrowthPct = changePct(float64(p.Orders), float64(prevOrders.Int64))
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// RegionalPerformance aggregates order KPIs by region and country.
func (s *WarehouseStore) RegionalPerformance(ctx context.Context) ([]analytics.RegionPerformance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region, country,
			COUNT(*) AS order_count,
			SUM(total_price) AS total_revenue,
			AVG(total_price) AS avg_order_value,
			COUNT(DISTINCT cust_key) AS unique_customers
		FROM warehouse_orders
		GROUP BY region, country
		ORDER BY total_revenue DESC`)
	if err != nil {
		return nil, fmt.Errorf("regional performance: %w", err)
	}
	defer rows.Close()

	var regions []analytics.RegionPerformance
	for rows.Next() {
		var r analytics.RegionPerformance
		if err := rows.Scan(&r.Region, &r.Country, &r.OrderCount,
			&r.TotalRevenue, &r.AvgOrderValue, &r.UniqueCustomers); err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// PriorityAnalysis aggregates orders by priority level.
func (s *WarehouseStore) PriorityAnalysis(ctx context.Context) ([]analytics.PriorityStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT priority,
			COUNT(*) AS order_count,
			SUM(total_price) AS total_revenue,
			AVG(total_price) AS avg_order_value,
			COUNT(DISTINCT cust_key) AS unique_customers,
			ROUND(COUNT(*) * 100.0 / SUM(COUNT(*)) OVER (), 2) AS pct_of_orders
		FROM warehouse_orders
		GROUP BY priority
		ORDER BY order_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("priority analysis: %w", err)
	}
	defer rows.Close()

	var stats []analytics.PriorityStats
	for rows.Next() {
		var p analytics.PriorityStats
		if err := rows.Scan(&p.Priority, &p.OrderCount, &p.TotalRevenue,
			&p.AvgOrderValue, &p.UniqueCustomers, &p.PctOfOrders); err != nil {
			return nil, fmt.Errorf("scan priority row: %w", err)
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

// -- Geographic snapshots --

// CountrySnapshots returns per-country monthly aggregates for the trailing
// months, oldest first within each country. PrevRevenue looks back one
// month even when that month falls outside the window.
func (s *WarehouseStore) CountrySnapshots(ctx context.Context, months int) ([]analytics.CountrySnapshot, error) {
	if months < 1 {
		months = 12
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH monthly AS (
			SELECT strftime('%Y-%m-01', order_date) AS month,
				country, country_code, region,
				SUM(total_price) AS total_revenue,
				COUNT(*) AS order_count,
				COUNT(DISTINCT cust_key) AS unique_customers,
				AVG(total_price) AS avg_order_value
			FROM warehouse_orders
			GROUP BY month, country, country_code, region
		),
		with_prev AS (
			SELECT *,
				LAG(total_revenue) OVER (PARTITION BY country ORDER BY month) AS prev_revenue
			FROM monthly
		)
		SELECT month, country, country_code, region, total_revenue,
			order_count, unique_customers, avg_order_value, prev_revenue
		FROM with_prev
		WHERE month >= (
			SELECT strftime('%Y-%m-01', date(MAX(order_date), '-' || ? || ' months'))
			FROM warehouse_orders
		)
		ORDER BY country, month`,
		months-1)
	if err != nil {
		return nil, fmt.Errorf("country snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []analytics.CountrySnapshot
	for rows.Next() {
		var snap analytics.CountrySnapshot
		var month string
		var prevRev sql.NullFloat64
		if err := rows.Scan(&month, &snap.Country, &snap.CountryCode, &snap.Region,
			&snap.TotalRevenue, &snap.OrderCount, &snap.UniqueCustomers,
			&snap.AvgOrderValue, &prevRev); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if snap.Month, err = parseBucket(month); err != nil {
			return nil, err
		}
		if prevRev.Valid {
			snap.PrevRevenue = &prevRev.Float64
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ProductRevenue returns monthly revenue by country and product type over
// the trailing months, with each product's share of its country-month.
func (s *WarehouseStore) ProductRevenue(ctx context.Context, months int) ([]analytics.ProductRevenue, error) {
	if months < 1 {
		months = 12
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH monthly AS (
			SELECT strftime('%Y-%m-01', order_date) AS month,
				country, product_type,
				SUM(total_price) AS revenue
			FROM warehouse_orders
			WHERE order_date >= (
				SELECT strftime('%Y-%m-01', date(MAX(order_date), '-' || ? || ' months'))
				FROM warehouse_orders
			)
			GROUP BY month, country, product_type
		)
		SELECT month, country, product_type, revenue,
			revenue * 100.0 / SUM(revenue) OVER (PARTITION BY month, country) AS revenue_pct
		FROM monthly
		ORDER BY country, month, product_type`,
		months-1)
	if err != nil {
		return nil, fmt.Errorf("product revenue: %w", err)
	}
	defer rows.Close()

	var products []analytics.ProductRevenue
	for rows.Next() {
		var p analytics.ProductRevenue
		var month string
		var pct sql.NullFloat64
		if err := rows.Scan(&month, &p.Country, &p.ProductType, &p.Revenue, &pct); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if p.Month, err = parseBucket(month); err != nil {
			return nil, err
		}
		if pct.Valid {
			p.RevenuePct = &pct.Float64
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// -- helpers --

// parseBucket parses a YYYY-MM-DD bucket label into a UTC time.
func parseBucket(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bucket %q: %w", s, err)
	}
	return t, nil
}

// parseStoredTime parses a timestamp column read through an aggregate
// expression, where the driver returns the stored text form.
func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse stored time %q", s)
}
