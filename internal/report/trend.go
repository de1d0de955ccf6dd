// Package report shapes warehouse aggregates into the chart payloads the
// dashboard renders: revenue trend, product mix, geographic map, and the
// summary cards. It owns no data; everything is read through the warehouse
// and analytics roles.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// rangeMonths maps the dashboard range selector to a month count.
// Zero means no filter.
var rangeMonths = map[string]int{
	"1M":  1,
	"3M":  3,
	"6M":  6,
	"1Y":  12,
	"2Y":  24,
	"All": 0,
}

// ParseRange resolves a dashboard range selector, case-insensitively.
func ParseRange(s string) (months int, err error) {
	for name, n := range rangeMonths {
		if strings.EqualFold(name, s) {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unknown range %q (want 1M, 3M, 6M, 1Y, 2Y, or All)", s)
}

// TrendPoint is one month of the revenue trend chart.
type TrendPoint struct {
	Month        time.Time `json:"month"`
	Revenue      float64   `json:"revenue"`
	OrderCount   int       `json:"order_count"`
	MovingAvg3M  float64   `json:"moving_avg_3m"`
	MoMGrowthPct *float64  `json:"mom_growth_pct,omitempty"`
}

// BuildRevenueTrend turns a monthly revenue series into chart points:
// three-month trailing average and month-over-month growth, filtered to the
// trailing months window relative to the latest month. The cutoff is
// latest minus months, inclusive, so a 1M range keeps the latest month and
// the one before it. months <= 0 keeps the full series. Growth and averages
// are computed over the full series before filtering, so the first visible
// month still carries them.
func BuildRevenueTrend(series []analytics.TrendPoint, months int) []TrendPoint {
	out := make([]TrendPoint, 0, len(series))
	for i, p := range series {
		tp := TrendPoint{
			Month:      p.Period,
			Revenue:    p.Value,
			OrderCount: p.OrderCount,
		}

		start := i - 2
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, prev := range series[start : i+1] {
			sum += prev.Value
		}
		tp.MovingAvg3M = sum / float64(i+1-start)

		if i > 0 && series[i-1].Value != 0 {
			pct := (p.Value - series[i-1].Value) * 100.0 / series[i-1].Value
			tp.MoMGrowthPct = &pct
		}
		out = append(out, tp)
	}

	if months > 0 && len(out) > 0 {
		cutoff := out[len(out)-1].Month.AddDate(0, -months, 0)
		filtered := out[:0]
		for _, p := range out {
			if !p.Month.Before(cutoff) {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	return out
}

// Summary holds the dashboard's key metric cards as raw numbers; display
// formatting happens client-side.
type Summary struct {
	Range             string    `json:"range"`
	LatestMonth       time.Time `json:"latest_month"`
	TotalRevenue      float64   `json:"total_revenue"`
	TotalOrders       int       `json:"total_orders"`
	AvgMonthlyRevenue float64   `json:"avg_monthly_revenue"`
	MoMGrowthPct      *float64  `json:"mom_growth_pct,omitempty"`
}

// BuildSummary aggregates a revenue trend into the metric cards.
func BuildSummary(trend []TrendPoint, rangeName string) Summary {
	s := Summary{Range: rangeName}
	if len(trend) == 0 {
		return s
	}

	for _, p := range trend {
		s.TotalRevenue += p.Revenue
		s.TotalOrders += p.OrderCount
	}
	s.AvgMonthlyRevenue = s.TotalRevenue / float64(len(trend))

	latest := trend[len(trend)-1]
	s.LatestMonth = latest.Month
	s.MoMGrowthPct = latest.MoMGrowthPct
	return s
}
