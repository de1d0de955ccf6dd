package anomaly

import (
	"math"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// Composite score weights and normalization caps for geographic scoring.
// Z-scores saturate at |z|=3, month-over-month revenue change at 50%.
const (
	geoRevenueWeight = 0.5
	geoOrdersWeight  = 0.3
	geoMoMWeight     = 0.2

	geoZScoreCap = 3.0
	geoMoMCap    = 50.0

	// Weights renormalized when a country has no prior month.
	geoRevenueWeightNoMoM = 0.625
	geoOrdersWeightNoMoM  = 0.375
)

// Anomaly type tags attached when an individual component is extreme.
const (
	TypeRevenueSpike = "revenue spike"
	TypeRevenueDrop  = "revenue drop"
	TypeOrderSurge   = "order surge"
	TypeOrderDrop    = "order drop"
	TypeMoMSwing     = "sharp MoM change"
)

// Component thresholds for anomaly type tagging.
const (
	geoTypeZThreshold   = 2.0
	geoTypeMoMThreshold = 30.0
)

// ScoreCountry computes the 0-100 composite anomaly score for one country
// month against that country's own baselines. A zero-variance baseline
// contributes a zero z-score rather than an undefined one: a country with
// constant history simply cannot deviate on that component.
func ScoreCountry(snap analytics.CountrySnapshot, revBase, ordBase analytics.BaselineStats) analytics.GeoAnomaly {
	g := analytics.GeoAnomaly{
		Month:           snap.Month,
		Country:         snap.Country,
		CountryCode:     snap.CountryCode,
		Region:          snap.Region,
		TotalRevenue:    snap.TotalRevenue,
		OrderCount:      snap.OrderCount,
		UniqueCustomers: snap.UniqueCustomers,
		AvgOrderValue:   snap.AvgOrderValue,
		AnomalyTypes:    []string{},
	}

	if revBase.StdDev > 0 {
		g.RevenueZScore = (snap.TotalRevenue - revBase.Mean) / revBase.StdDev
	}
	if ordBase.StdDev > 0 {
		g.OrdersZScore = (float64(snap.OrderCount) - ordBase.Mean) / ordBase.StdDev
	}

	if snap.PrevRevenue != nil && *snap.PrevRevenue > 0 {
		mom := (snap.TotalRevenue - *snap.PrevRevenue) / *snap.PrevRevenue * 100
		g.RevenueMoMPct = &mom
	}

	revComponent := math.Min(math.Abs(g.RevenueZScore)/geoZScoreCap, 1)
	ordComponent := math.Min(math.Abs(g.OrdersZScore)/geoZScoreCap, 1)

	var score float64
	if g.RevenueMoMPct != nil {
		momComponent := math.Min(math.Abs(*g.RevenueMoMPct)/geoMoMCap, 1)
		score = geoRevenueWeight*revComponent + geoOrdersWeight*ordComponent + geoMoMWeight*momComponent
	} else {
		score = geoRevenueWeightNoMoM*revComponent + geoOrdersWeightNoMoM*ordComponent
	}
	g.Score = score * 100
	g.Band = BandForScore(g.Score)

	if g.RevenueZScore > geoTypeZThreshold {
		g.AnomalyTypes = append(g.AnomalyTypes, TypeRevenueSpike)
	} else if g.RevenueZScore < -geoTypeZThreshold {
		g.AnomalyTypes = append(g.AnomalyTypes, TypeRevenueDrop)
	}
	if g.OrdersZScore > geoTypeZThreshold {
		g.AnomalyTypes = append(g.AnomalyTypes, TypeOrderSurge)
	} else if g.OrdersZScore < -geoTypeZThreshold {
		g.AnomalyTypes = append(g.AnomalyTypes, TypeOrderDrop)
	}
	if g.RevenueMoMPct != nil && math.Abs(*g.RevenueMoMPct) > geoTypeMoMThreshold {
		g.AnomalyTypes = append(g.AnomalyTypes, TypeMoMSwing)
	}

	return g
}

// BandForScore maps a 0-100 composite score onto its severity band.
func BandForScore(score float64) analytics.ScoreBand {
	switch {
	case score >= 75:
		return analytics.BandSevere
	case score >= 50:
		return analytics.BandModerate
	case score >= 25:
		return analytics.BandMinor
	default:
		return analytics.BandNormal
	}
}
