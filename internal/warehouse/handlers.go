package warehouse

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
)

// maxExtractBytes caps an uploaded CSV extract at 64 MiB.
const maxExtractBytes = 64 << 20

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/ingest/orders", Handler: m.handleIngestOrders},
		{Method: "GET", Path: "/kpi/summary", Handler: m.handleKPISummary},
		{Method: "GET", Path: "/kpi/comparison", Handler: m.handleKPIComparison},
		{Method: "GET", Path: "/trends", Handler: m.handleTrends},
		{Method: "GET", Path: "/moving-averages", Handler: m.handleMovingAverages},
		{Method: "GET", Path: "/customers/segments", Handler: m.handleCustomerSegments},
		{Method: "GET", Path: "/customers/cohorts", Handler: m.handleCustomerCohorts},
		{Method: "GET", Path: "/customers/rfm", Handler: m.handleRFM},
		{Method: "GET", Path: "/growth", Handler: m.handleGrowth},
		{Method: "GET", Path: "/regions", Handler: m.handleRegions},
		{Method: "GET", Path: "/priorities", Handler: m.handlePriorities},
		{Method: "GET", Path: "/countries", Handler: m.handleCountrySnapshots},
		{Method: "GET", Path: "/products", Handler: m.handleProductRevenue},
	}
}

// handleIngestOrders ingests a CSV order extract. The extract is either the
// raw request body or a multipart part named "file".
//
//	@Summary		Ingest order extract
//	@Description	Parses a CSV order extract and loads it into the warehouse. Re-ingesting replaces rows by order key.
//	@Tags			warehouse
//	@Accept			text/csv
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {object} analytics.IngestResult
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/ingest/orders [post]
func (m *Module) handleIngestOrders(w http.ResponseWriter, r *http.Request) {
	body, err := extractReader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	orders, skipped, err := ReadOrders(io.LimitReader(body, maxExtractBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid extract: "+err.Error())
		return
	}
	if len(orders) == 0 {
		writeError(w, http.StatusBadRequest, "extract contains no valid orders")
		return
	}

	result, err := m.Ingest(r.Context(), orders, skipped)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to ingest extract")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// extractReader returns the CSV stream from a request: the "file" part for
// multipart uploads, the raw body otherwise.
func extractReader(r *http.Request) (io.ReadCloser, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxExtractBytes); err != nil {
			return nil, errors.New("malformed multipart upload")
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New(`multipart upload must include a "file" part`)
		}
		return f, nil
	}
	return r.Body, nil
}

// handleKPISummary aggregates order KPIs over a date range. The range
// defaults to the configured lookback ending at the latest order date.
//
//	@Summary		KPI summary
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			start query string false "Range start (YYYY-MM-DD)"
//	@Param			end query string false "Range end (YYYY-MM-DD)"
//	@Success		200 {object} analytics.KPISummary
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/kpi/summary [get]
func (m *Module) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var start, end time.Time
	if s := q.Get("start"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be formatted YYYY-MM-DD")
			return
		}
		start = parsed
	}
	if s := q.Get("end"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be formatted YYYY-MM-DD")
			return
		}
		end = parsed
	}

	if end.IsZero() {
		latest, err := m.store.LatestOrderDate(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve date range")
			return
		}
		end = latest
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -m.cfg.DefaultLookbackDays)
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not precede start")
		return
	}

	summary, err := m.store.KPISummary(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute kpi summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleKPIComparison compares the trailing window against the one before it.
//
//	@Summary		KPI period comparison
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			days query int false "Current window in days" default(30)
//	@Param			comparison_days query int false "Previous window in days (defaults to days)"
//	@Success		200 {object} analytics.KPIComparison
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/kpi/comparison [get]
func (m *Module) handleKPIComparison(w http.ResponseWriter, r *http.Request) {
	days, ok := parsePositiveInt(w, r, "days", 30)
	if !ok {
		return
	}
	comparisonDays, ok := parsePositiveInt(w, r, "comparison_days", days)
	if !ok {
		return
	}

	comparison, err := m.store.KPIComparison(r.Context(), days, comparisonDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute kpi comparison")
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

// handleTrends returns one metric bucketed at a granularity.
//
//	@Summary		Metric time series
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			metric query string false "Metric name" default(revenue)
//	@Param			granularity query string false "Time bucket" default(day)
//	@Param			lookback query int false "Lookback window in days"
//	@Success		200 {array} analytics.TrendPoint
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/trends [get]
func (m *Module) handleTrends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	metric := q.Get("metric")
	if metric == "" {
		metric = analytics.MetricRevenue
	}
	if !validMetric(metric) {
		writeError(w, http.StatusBadRequest, "metric must be one of revenue, orders, customers, aov")
		return
	}

	granularity := analytics.Granularity(q.Get("granularity"))
	if granularity == "" {
		granularity = analytics.GranularityDay
	}
	if !granularity.Valid() {
		writeError(w, http.StatusBadRequest, "granularity must be one of day, week, month, quarter")
		return
	}

	lookback, ok := parsePositiveInt(w, r, "lookback", m.cfg.DefaultLookbackDays)
	if !ok {
		return
	}

	points, err := m.store.TimeSeries(r.Context(), metric, granularity, lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load time series")
		return
	}
	if points == nil {
		points = []analytics.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// handleMovingAverages returns smoothed daily metrics.
//
//	@Summary		Daily metrics with moving averages
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			window query int false "Trailing window in days" default(7)
//	@Param			lookback query int false "Lookback window in days"
//	@Success		200 {array} analytics.MovingAveragePoint
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/moving-averages [get]
func (m *Module) handleMovingAverages(w http.ResponseWriter, r *http.Request) {
	window, ok := parsePositiveInt(w, r, "window", m.cfg.MovingAverageWindow)
	if !ok {
		return
	}
	lookback, ok := parsePositiveInt(w, r, "lookback", m.cfg.DefaultLookbackDays)
	if !ok {
		return
	}

	points, err := m.store.MovingAverages(r.Context(), window, lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute moving averages")
		return
	}
	if points == nil {
		points = []analytics.MovingAveragePoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// handleCustomerSegments returns lifetime-value quartile bands.
//
//	@Summary		Customer value segments
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {array} analytics.CustomerSegment
//	@Router			/warehouse/customers/segments [get]
func (m *Module) handleCustomerSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := m.store.CustomerSegments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute customer segments")
		return
	}
	if segments == nil {
		segments = []analytics.CustomerSegment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// handleCustomerCohorts returns retention cells by first-order cohort.
//
//	@Summary		Customer retention cohorts
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			period query string false "Cohort bucket" default(month)
//	@Success		200 {array} analytics.CohortCell
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/customers/cohorts [get]
func (m *Module) handleCustomerCohorts(w http.ResponseWriter, r *http.Request) {
	granularity := analytics.Granularity(r.URL.Query().Get("period"))
	if granularity == "" {
		granularity = analytics.GranularityMonth
	}
	if !granularity.Valid() {
		writeError(w, http.StatusBadRequest, "period must be one of day, week, month, quarter")
		return
	}

	cells, err := m.store.CustomerCohorts(r.Context(), granularity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute cohorts")
		return
	}
	if cells == nil {
		cells = []analytics.CohortCell{}
	}
	writeJSON(w, http.StatusOK, cells)
}

// handleRFM returns recency/frequency/monetary customer segments.
//
//	@Summary		RFM segments
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {array} analytics.RFMSegment
//	@Router			/warehouse/customers/rfm [get]
func (m *Module) handleRFM(w http.ResponseWriter, r *http.Request) {
	segments, err := m.store.RFMAnalysis(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute rfm segments")
		return
	}
	if segments == nil {
		segments = []analytics.RFMSegment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// handleGrowth returns period-over-period growth rates.
//
//	@Summary		Growth rates
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			period query string false "Time bucket" default(month)
//	@Success		200 {array} analytics.GrowthPoint
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/growth [get]
func (m *Module) handleGrowth(w http.ResponseWriter, r *http.Request) {
	granularity := analytics.Granularity(r.URL.Query().Get("period"))
	if granularity == "" {
		granularity = analytics.GranularityMonth
	}
	if !granularity.Valid() {
		writeError(w, http.StatusBadRequest, "period must be one of day, week, month, quarter")
		return
	}

	points, err := m.store.GrowthRates(r.Context(), granularity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute growth rates")
		return
	}
	if points == nil {
		points = []analytics.GrowthPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// handleRegions returns order KPIs by region and country.
//
//	@Summary		Regional performance
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {array} analytics.RegionPerformance
//	@Router			/warehouse/regions [get]
func (m *Module) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := m.store.RegionalPerformance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute regional performance")
		return
	}
	if regions == nil {
		regions = []analytics.RegionPerformance{}
	}
	writeJSON(w, http.StatusOK, regions)
}

// handlePriorities returns order KPIs by priority level.
//
//	@Summary		Priority distribution
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200 {array} analytics.PriorityStats
//	@Router			/warehouse/priorities [get]
func (m *Module) handlePriorities(w http.ResponseWriter, r *http.Request) {
	stats, err := m.store.PriorityAnalysis(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute priority distribution")
		return
	}
	if stats == nil {
		stats = []analytics.PriorityStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCountrySnapshots returns per-country monthly aggregates.
//
//	@Summary		Country monthly snapshots
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			months query int false "Trailing months" default(12)
//	@Success		200 {array} analytics.CountrySnapshot
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/countries [get]
func (m *Module) handleCountrySnapshots(w http.ResponseWriter, r *http.Request) {
	months, ok := parsePositiveInt(w, r, "months", 12)
	if !ok {
		return
	}

	snaps, err := m.store.CountrySnapshots(r.Context(), months)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load country snapshots")
		return
	}
	if snaps == nil {
		snaps = []analytics.CountrySnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// handleProductRevenue returns monthly revenue by country and product type.
//
//	@Summary		Product revenue mix
//	@Tags			warehouse
//	@Produce		json
//	@Security		BearerAuth
//	@Param			months query int false "Trailing months" default(12)
//	@Success		200 {array} analytics.ProductRevenue
//	@Failure		400 {object} map[string]any
//	@Router			/warehouse/products [get]
func (m *Module) handleProductRevenue(w http.ResponseWriter, r *http.Request) {
	months, ok := parsePositiveInt(w, r, "months", 12)
	if !ok {
		return
	}

	products, err := m.store.ProductRevenue(r.Context(), months)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load product revenue")
		return
	}
	if products == nil {
		products = []analytics.ProductRevenue{}
	}
	writeJSON(w, http.StatusOK, products)
}

// -- helpers --

func validMetric(metric string) bool {
	switch metric {
	case analytics.MetricRevenue, analytics.MetricOrders, analytics.MetricCustomers, analytics.MetricAOV:
		return true
	}
	return false
}

// parsePositiveInt parses a positive integer query parameter, writing a 400
// problem response and returning ok=false when the value is malformed.
func parsePositiveInt(w http.ResponseWriter, r *http.Request, name string, defaultValue int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultValue, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 3650 {
		writeError(w, http.StatusBadRequest, name+" must be between 1 and 3650")
		return 0, false
	}
	return n, true
}

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
