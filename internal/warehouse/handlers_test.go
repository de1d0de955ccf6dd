package warehouse

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frostline-io/frostline/pkg/analytics"
)

const seedExtract = `order_key,cust_key,status,total_price,order_date,priority,country,country_code,region,product_type
1,1,F,100,2025-06-01,1-URGENT,GERMANY,DEU,EUROPE,STANDARD
2,1,O,200,2025-06-02,2-HIGH,GERMANY,DEU,EUROPE,PREMIUM
3,2,O,300,2025-06-02,2-HIGH,FRANCE,FRA,EUROPE,PREMIUM
4,2,F,400,2025-07-01,3-MEDIUM,FRANCE,FRA,EUROPE,STANDARD
5,3,O,500,2025-07-02,3-MEDIUM,GERMANY,DEU,EUROPE,STANDARD
6,4,F,100,2025-05-20,3-MEDIUM,JAPAN,JPN,ASIA,STANDARD
`

func ingestExtract(t *testing.T, m *Module) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ingest/orders", strings.NewReader(seedExtract))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	m.handleIngestOrders(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRoutes_Declared(t *testing.T) {
	routes := New().Routes()
	want := map[string]string{
		"/ingest/orders":      "POST",
		"/kpi/summary":        "GET",
		"/kpi/comparison":     "GET",
		"/trends":             "GET",
		"/moving-averages":    "GET",
		"/customers/segments": "GET",
		"/customers/cohorts":  "GET",
		"/customers/rfm":      "GET",
		"/growth":             "GET",
		"/regions":            "GET",
		"/priorities":         "GET",
		"/countries":          "GET",
		"/products":           "GET",
	}
	if len(routes) != len(want) {
		t.Fatalf("got %d routes, want %d", len(routes), len(want))
	}
	for _, r := range routes {
		method, ok := want[r.Path]
		if !ok {
			t.Errorf("unexpected route %s", r.Path)
			continue
		}
		if r.Method != method {
			t.Errorf("route %s method = %s, want %s", r.Path, r.Method, method)
		}
	}
}

func TestHandleIngestOrders(t *testing.T) {
	m, _ := newWarehouseModule(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/orders", strings.NewReader(seedExtract))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	m.handleIngestOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var result analytics.IngestResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Rows != 6 || result.Skipped != 0 {
		t.Errorf("result = %d rows / %d skipped, want 6/0", result.Rows, result.Skipped)
	}
}

func TestHandleIngestOrders_Multipart(t *testing.T) {
	m, _ := newWarehouseModule(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "orders.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(seedExtract)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	m.handleIngestOrders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleIngestOrders_BadExtract(t *testing.T) {
	m, _ := newWarehouseModule(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"missing required column", "order_key,cust_key,total_price\n1,1,100\n"},
		{"header only", "order_key,cust_key,total_price,order_date\n"},
		{"all rows invalid", "order_key,cust_key,total_price,order_date\n0,0,-1,nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ingest/orders", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "text/csv")
			rec := httptest.NewRecorder()
			m.handleIngestOrders(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want problem+json", ct)
			}
		})
	}
}

func TestHandleKPISummary(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	req := httptest.NewRequest(http.MethodGet, "/kpi/summary?start=2025-06-01&end=2025-07-02", nil)
	rec := httptest.NewRecorder()
	m.handleKPISummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var k analytics.KPISummary
	if err := json.NewDecoder(rec.Body).Decode(&k); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if k.TotalOrders != 5 || k.TotalRevenue != 1500 {
		t.Errorf("summary = %d orders / %v revenue, want 5/1500", k.TotalOrders, k.TotalRevenue)
	}
}

func TestHandleKPISummary_DefaultRange(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	// No range: configured lookback anchored to the latest order date.
	req := httptest.NewRequest(http.MethodGet, "/kpi/summary", nil)
	rec := httptest.NewRecorder()
	m.handleKPISummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var k analytics.KPISummary
	if err := json.NewDecoder(rec.Body).Decode(&k); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if k.TotalOrders != 6 {
		t.Errorf("TotalOrders = %d, want 6", k.TotalOrders)
	}
}

func TestHandleKPISummary_BadParams(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	for _, query := range []string{
		"?start=June-1",
		"?end=2025/07/02",
		"?start=2025-07-02&end=2025-06-01",
	} {
		req := httptest.NewRequest(http.MethodGet, "/kpi/summary"+query, nil)
		rec := httptest.NewRecorder()
		m.handleKPISummary(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q status = %d, want 400", query, rec.Code)
		}
	}
}

func TestHandleKPIComparison(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	req := httptest.NewRequest(http.MethodGet, "/kpi/comparison?days=31&comparison_days=31", nil)
	rec := httptest.NewRecorder()
	m.handleKPIComparison(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var k analytics.KPIComparison
	if err := json.NewDecoder(rec.Body).Decode(&k); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if k.CurrentRevenue != 1500 || k.PreviousRevenue != 100 {
		t.Errorf("revenue = %v/%v, want 1500/100", k.CurrentRevenue, k.PreviousRevenue)
	}
	if k.RevenueChangePct == nil || *k.RevenueChangePct != 1400 {
		t.Errorf("RevenueChangePct = %v, want 1400", k.RevenueChangePct)
	}
}

func TestHandleTrends(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	req := httptest.NewRequest(http.MethodGet, "/trends?metric=revenue&granularity=month", nil)
	rec := httptest.NewRecorder()
	m.handleTrends(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var points []analytics.TrendPoint
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(points) != 3 {
		t.Errorf("got %d points, want 3", len(points))
	}
}

func TestHandleTrends_BadParams(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	for _, query := range []string{
		"?metric=margin",
		"?granularity=hour",
		"?lookback=-1",
		"?lookback=99999",
	} {
		req := httptest.NewRequest(http.MethodGet, "/trends"+query, nil)
		rec := httptest.NewRecorder()
		m.handleTrends(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q status = %d, want 400", query, rec.Code)
		}
	}
}

func TestHandleTrends_EmptyExtract(t *testing.T) {
	m, _ := newWarehouseModule(t)

	req := httptest.NewRequest(http.MethodGet, "/trends", nil)
	rec := httptest.NewRecorder()
	m.handleTrends(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %s, want empty array", body)
	}
}

func TestHandleMovingAverages(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	req := httptest.NewRequest(http.MethodGet, "/moving-averages?window=2", nil)
	rec := httptest.NewRecorder()
	m.handleMovingAverages(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var points []analytics.MovingAveragePoint
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(points) != 5 {
		t.Errorf("got %d points, want 5", len(points))
	}
}

func TestHandleCustomerEndpoints(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	t.Run("segments", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/segments", nil)
		rec := httptest.NewRecorder()
		m.handleCustomerSegments(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var segments []analytics.CustomerSegment
		if err := json.NewDecoder(rec.Body).Decode(&segments); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(segments) != 4 {
			t.Errorf("got %d segments, want 4", len(segments))
		}
	})

	t.Run("cohorts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/cohorts?period=month", nil)
		rec := httptest.NewRecorder()
		m.handleCustomerCohorts(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var cells []analytics.CohortCell
		if err := json.NewDecoder(rec.Body).Decode(&cells); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(cells) != 4 {
			t.Errorf("got %d cells, want 4", len(cells))
		}
	})

	t.Run("cohorts bad period", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/cohorts?period=decade", nil)
		rec := httptest.NewRecorder()
		m.handleCustomerCohorts(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("rfm", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/customers/rfm", nil)
		rec := httptest.NewRecorder()
		m.handleRFM(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestHandleGrowth(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	req := httptest.NewRequest(http.MethodGet, "/growth?period=month", nil)
	rec := httptest.NewRecorder()
	m.handleGrowth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var points []analytics.GrowthPoint
	if err := json.NewDecoder(rec.Body).Decode(&points); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(points) != 3 {
		t.Errorf("got %d points, want 3", len(points))
	}
}

func TestHandleDimensionEndpoints(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ingestExtract(t, m)

	t.Run("regions", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/regions", nil)
		rec := httptest.NewRecorder()
		m.handleRegions(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var regions []analytics.RegionPerformance
		if err := json.NewDecoder(rec.Body).Decode(&regions); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(regions) != 3 {
			t.Errorf("got %d regions, want 3", len(regions))
		}
	})

	t.Run("priorities", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/priorities", nil)
		rec := httptest.NewRecorder()
		m.handlePriorities(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("countries", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/countries?months=12", nil)
		rec := httptest.NewRecorder()
		m.handleCountrySnapshots(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var snaps []analytics.CountrySnapshot
		if err := json.NewDecoder(rec.Body).Decode(&snaps); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(snaps) != 5 {
			t.Errorf("got %d snapshots, want 5", len(snaps))
		}
	})

	t.Run("products", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		rec := httptest.NewRecorder()
		m.handleProductRevenue(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var products []analytics.ProductRevenue
		if err := json.NewDecoder(rec.Body).Decode(&products); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(products) != 6 {
			t.Errorf("got %d rows, want 6", len(products))
		}
	})
}
