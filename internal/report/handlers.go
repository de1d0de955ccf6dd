package report

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/revenue-trend", Handler: m.handleRevenueTrend},
		{Method: "GET", Path: "/product-revenue", Handler: m.handleProductRevenue},
		{Method: "GET", Path: "/geo-map", Handler: m.handleGeoMap},
		{Method: "GET", Path: "/summary", Handler: m.handleSummary},
	}
}

// RevenueTrendResponse is the revenue trend chart payload.
type RevenueTrendResponse struct {
	Range  string       `json:"range"`
	Points []TrendPoint `json:"points"`
}

// handleRevenueTrend returns monthly revenue with moving average and growth.
//
//	@Summary		Revenue trend chart
//	@Description	Monthly revenue, 3-month moving average, and MoM growth, filtered to the selected range.
//	@Tags			report
//	@Produce		json
//	@Security		BearerAuth
//	@Param			range query string false "Time range" Enums(1M, 3M, 6M, 1Y, 2Y, All)
//	@Success		200 {object} RevenueTrendResponse
//	@Failure		400 {object} map[string]any
//	@Router			/report/revenue-trend [get]
func (m *Module) handleRevenueTrend(w http.ResponseWriter, r *http.Request) {
	rangeName, months, ok := m.parseRangeParam(w, r)
	if !ok {
		return
	}

	trend, ok := m.revenueTrend(w, r, months)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RevenueTrendResponse{Range: rangeName, Points: trend})
}

// handleSummary returns the dashboard's key metric cards.
//
//	@Summary		Summary metric cards
//	@Tags			report
//	@Produce		json
//	@Security		BearerAuth
//	@Param			range query string false "Time range" Enums(1M, 3M, 6M, 1Y, 2Y, All)
//	@Success		200 {object} Summary
//	@Failure		400 {object} map[string]any
//	@Router			/report/summary [get]
func (m *Module) handleSummary(w http.ResponseWriter, r *http.Request) {
	rangeName, months, ok := m.parseRangeParam(w, r)
	if !ok {
		return
	}

	trend, ok := m.revenueTrend(w, r, months)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, BuildSummary(trend, rangeName))
}

// revenueTrend loads the monthly revenue series and shapes it. On failure it
// writes the problem response and returns ok=false.
func (m *Module) revenueTrend(w http.ResponseWriter, r *http.Request, months int) ([]TrendPoint, bool) {
	wh, err := m.warehouse()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "warehouse plugin is not available")
		return nil, false
	}

	series, err := wh.TimeSeries(r.Context(), analytics.MetricRevenue, analytics.GranularityMonth, m.cfg.TrendLookbackDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load revenue series")
		return nil, false
	}
	return BuildRevenueTrend(series, months), true
}

func (m *Module) parseRangeParam(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	rangeName := r.URL.Query().Get("range")
	if rangeName == "" {
		rangeName = m.cfg.DefaultRange
	}
	months, err := ParseRange(rangeName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	return rangeName, months, true
}

// ProductMixPoint is one bar of the product revenue chart. Value is raw
// revenue, or the share of the country-month when normalized.
type ProductMixPoint struct {
	Month       time.Time `json:"month"`
	Country     string    `json:"country"`
	ProductType string    `json:"product_type"`
	Value       float64   `json:"value"`
}

// handleProductRevenue returns the per-month product revenue mix.
//
//	@Summary		Product revenue mix
//	@Description	Monthly revenue by product type, optionally filtered to one country and normalized to shares.
//	@Tags			report
//	@Produce		json
//	@Security		BearerAuth
//	@Param			country query string false "Filter to one country"
//	@Param			share query bool false "Normalize to percentage of country-month revenue"
//	@Param			months query int false "Trailing months" default(12)
//	@Success		200 {array} ProductMixPoint
//	@Failure		400 {object} map[string]any
//	@Router			/report/product-revenue [get]
func (m *Module) handleProductRevenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := q.Get("country")

	share := false
	if s := q.Get("share"); s != "" {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "share must be a boolean")
			return
		}
		share = parsed
	}

	months := m.cfg.GeoMonths
	if s := q.Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 120 {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 120")
			return
		}
		months = n
	}

	wh, err := m.warehouse()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "warehouse plugin is not available")
		return
	}
	rows, err := wh.ProductRevenue(r.Context(), months)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load product revenue")
		return
	}

	points := make([]ProductMixPoint, 0, len(rows))
	for _, row := range rows {
		if country != "" && !strings.EqualFold(row.Country, country) {
			continue
		}
		value := row.Revenue
		if share {
			if row.RevenuePct == nil {
				continue
			}
			value = *row.RevenuePct
		}
		points = append(points, ProductMixPoint{
			Month:       row.Month,
			Country:     row.Country,
			ProductType: row.ProductType,
			Value:       value,
		})
	}
	writeJSON(w, http.StatusOK, points)
}

// GeoMapResponse is the choropleth payload: one entry per scored country
// with the score, band, and hover fields.
type GeoMapResponse struct {
	Month     time.Time              `json:"month"`
	Countries []analytics.GeoAnomaly `json:"countries"`
}

// handleGeoMap returns the geographic anomaly map for a month.
//
//	@Summary		Geographic anomaly map
//	@Tags			report
//	@Produce		json
//	@Security		BearerAuth
//	@Param			month query string false "Month (YYYY-MM, latest scored month by default)"
//	@Success		200 {object} GeoMapResponse
//	@Failure		400 {object} map[string]any
//	@Router			/report/geo-map [get]
func (m *Module) handleGeoMap(w http.ResponseWriter, r *http.Request) {
	var month time.Time
	if s := r.URL.Query().Get("month"); s != "" {
		parsed, err := time.Parse("2006-01", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be formatted YYYY-MM")
			return
		}
		month = parsed
	}

	ap, err := m.analytics()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "analytics plugin is not available")
		return
	}
	countries, err := ap.GeoAnomalies(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load geographic anomalies")
		return
	}
	if countries == nil {
		countries = []analytics.GeoAnomaly{}
	}

	resp := GeoMapResponse{Month: month, Countries: countries}
	if resp.Month.IsZero() && len(countries) > 0 {
		resp.Month = countries[0].Month
	}
	writeJSON(w, http.StatusOK, resp)
}

// -- helpers --

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://frostline.io/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
