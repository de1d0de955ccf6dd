package insight

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/frostline-io/frostline/internal/insight/anomaly"
	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/anomalies", Handler: m.handleScanAnomalies},
		{Method: "GET", Path: "/anomalies/severe", Handler: m.handleScanSevere},
		{Method: "GET", Path: "/geo", Handler: m.handleGeoAnomalies},
		{Method: "GET", Path: "/reports", Handler: m.handleListReports},
	}
}

// ScanResponse is the payload for on-demand anomaly scans: the baseline used
// and every point classified against it.
type ScanResponse struct {
	Metric       string                            `json:"metric"`
	Granularity  string                            `json:"granularity"`
	LookbackDays int                               `json:"lookback_days"`
	Baseline     analytics.BaselineStats           `json:"baseline"`
	Points       []analytics.ClassifiedObservation `json:"points"`
}

// handleScanAnomalies classifies a warehouse metric series on demand.
//
//	@Summary		Scan a metric series
//	@Description	Classifies every point of a warehouse metric series against its fixed-window baseline.
//	@Tags			insight
//	@Produce		json
//	@Security		BearerAuth
//	@Param			metric query string false "Metric name" default(revenue)
//	@Param			granularity query string false "Time bucket" default(day)
//	@Param			lookback query int false "Lookback window in days"
//	@Param			threshold query number false "Anomaly |z| threshold" default(2.0)
//	@Param			warning_ratio query number false "Warning threshold ratio" default(0.75)
//	@Success		200 {object} ScanResponse
//	@Failure		400 {object} map[string]any
//	@Failure		422 {object} map[string]any
//	@Router			/insight/anomalies [get]
func (m *Module) handleScanAnomalies(w http.ResponseWriter, r *http.Request) {
	resp, ok := m.scan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleScanSevere classifies a series and returns only points at or above
// the requested minimum severity.
//
//	@Summary		Scan a metric series for severe points
//	@Description	Classifies a warehouse metric series and filters to points at or above min_severity.
//	@Tags			insight
//	@Produce		json
//	@Security		BearerAuth
//	@Param			metric query string false "Metric name" default(revenue)
//	@Param			granularity query string false "Time bucket" default(day)
//	@Param			lookback query int false "Lookback window in days"
//	@Param			min_severity query string false "Minimum severity" default(ANOMALY)
//	@Success		200 {object} ScanResponse
//	@Failure		400 {object} map[string]any
//	@Failure		422 {object} map[string]any
//	@Router			/insight/anomalies/severe [get]
func (m *Module) handleScanSevere(w http.ResponseWriter, r *http.Request) {
	minSeverity := analytics.SeverityAnomaly
	if s := r.URL.Query().Get("min_severity"); s != "" {
		switch s {
		case "NORMAL", "WARNING", "ANOMALY":
			minSeverity = analytics.ParseSeverity(s)
		default:
			writeError(w, http.StatusBadRequest, "min_severity must be NORMAL, WARNING, or ANOMALY")
			return
		}
	}

	resp, ok := m.scan(w, r)
	if !ok {
		return
	}
	resp.Points = anomaly.ExtractSevere(resp.Points, minSeverity)
	writeJSON(w, http.StatusOK, resp)
}

// scan performs the shared parameter parsing and classification for the two
// anomaly endpoints. On failure it writes the problem response and returns
// ok=false.
func (m *Module) scan(w http.ResponseWriter, r *http.Request) (ScanResponse, bool) {
	q := r.URL.Query()

	metric := q.Get("metric")
	if metric == "" {
		metric = analytics.MetricRevenue
	}
	if !validMetric(metric) {
		writeError(w, http.StatusBadRequest, "metric must be one of revenue, orders, customers, aov")
		return ScanResponse{}, false
	}

	granularity := analytics.Granularity(q.Get("granularity"))
	if granularity == "" {
		granularity = analytics.GranularityDay
	}
	if !granularity.Valid() {
		writeError(w, http.StatusBadRequest, "granularity must be one of day, week, month, quarter")
		return ScanResponse{}, false
	}

	lookback := m.cfg.LookbackDays
	if s := q.Get("lookback"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 3650 {
			writeError(w, http.StatusBadRequest, "lookback must be between 1 and 3650 days")
			return ScanResponse{}, false
		}
		lookback = n
	}

	opts := m.cfg.options()
	if s := q.Get("threshold"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a positive number")
			return ScanResponse{}, false
		}
		opts.HighThreshold = f
	}
	if s := q.Get("warning_ratio"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 || f >= 1 {
			writeError(w, http.StatusBadRequest, "warning_ratio must be between 0 and 1")
			return ScanResponse{}, false
		}
		opts.WarningRatio = f
	}

	wh, err := m.warehouse()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "warehouse plugin is not available")
		return ScanResponse{}, false
	}

	series, err := wh.TimeSeries(r.Context(), metric, granularity, lookback)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load metric series")
		return ScanResponse{}, false
	}

	obs := make([]analytics.MetricObservation, len(series))
	for i, p := range series {
		obs[i] = analytics.MetricObservation{Period: p.Period, Value: p.Value}
	}

	baseline, err := anomaly.ComputeBaseline(obs)
	if err != nil {
		if errors.Is(err, anomaly.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, "no observations in the requested window")
			return ScanResponse{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to compute baseline")
		return ScanResponse{}, false
	}

	return ScanResponse{
		Metric:       metric,
		Granularity:  string(granularity),
		LookbackDays: lookback,
		Baseline:     baseline,
		Points:       anomaly.Classify(obs, baseline, opts),
	}, true
}

// handleGeoAnomalies returns the geographic assessments for one month.
//
//	@Summary		Geographic anomalies
//	@Description	Returns per-country anomaly scores for a month (latest scored month by default).
//	@Tags			insight
//	@Produce		json
//	@Security		BearerAuth
//	@Param			month query string false "Month (YYYY-MM)"
//	@Success		200 {array} analytics.GeoAnomaly
//	@Failure		400 {object} map[string]any
//	@Router			/insight/geo [get]
func (m *Module) handleGeoAnomalies(w http.ResponseWriter, r *http.Request) {
	var month time.Time
	if s := r.URL.Query().Get("month"); s != "" {
		parsed, err := time.Parse("2006-01", s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be formatted YYYY-MM")
			return
		}
		month = parsed
	}

	anomalies, err := m.GeoAnomalies(r.Context(), month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list geographic anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []analytics.GeoAnomaly{}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

// handleListReports returns persisted anomaly reports.
//
//	@Summary		List anomaly reports
//	@Description	Returns persisted anomaly reports, newest first.
//	@Tags			insight
//	@Produce		json
//	@Security		BearerAuth
//	@Param			metric query string false "Filter by metric"
//	@Param			limit query int false "Maximum results" default(50)
//	@Success		200 {array} analytics.AnomalyReport
//	@Failure		400 {object} map[string]any
//	@Router			/insight/reports [get]
func (m *Module) handleListReports(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric != "" && !validMetric(metric) {
		writeError(w, http.StatusBadRequest, "metric must be one of revenue, orders, customers, aov")
		return
	}
	limit := parseLimit(r, 50)

	reports, err := m.Anomalies(r.Context(), metric, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []analytics.AnomalyReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// -- helpers --

func validMetric(metric string) bool {
	for _, m := range scanMetrics {
		if m == metric {
			return true
		}
	}
	return false
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

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
