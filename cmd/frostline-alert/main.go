// Command frostline-alert checks the latest month of geographic anomaly
// scores and posts a Slack alert when any country falls in the Severe band.
// It runs as part of the data refresh workflow, reading either a CSV
// extract or the Frostline server's database.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frostline-io/frostline/internal/alert"
	"github.com/frostline-io/frostline/internal/insight"
	"github.com/frostline-io/frostline/internal/store"
	"github.com/frostline-io/frostline/pkg/analytics"
)

func main() {
	csvPath := flag.String("csv", "", "path to a geographic anomalies CSV extract")
	dbPath := flag.String("db", "", "path to the Frostline database (used when -csv is not set)")
	webhookURL := flag.String("url", "", "Slack webhook URL (defaults to SLACK_WEBHOOK_URL)")
	secret := flag.String("secret", "", "optional HMAC signing secret for the webhook")
	timeout := flag.Duration("timeout", 10*time.Second, "webhook request timeout")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	url := *webhookURL
	if url == "" {
		url = os.Getenv("SLACK_WEBHOOK_URL")
	}
	if url == "" {
		logger.Info("SLACK_WEBHOOK_URL not set, skipping alerts")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var alertData analytics.GeoAlert
	switch {
	case *csvPath != "":
		alertData, err = severeFromCSV(*csvPath)
	case *dbPath != "":
		alertData, err = severeFromDB(ctx, *dbPath)
	default:
		logger.Fatal("either -csv or -db is required")
	}
	if err != nil {
		logger.Fatal("failed to load anomaly scores", zap.Error(err))
	}

	if alertData.Month.IsZero() {
		logger.Info("no anomaly scores available yet")
		return
	}
	if len(alertData.Items) == 0 {
		logger.Info("no severe anomalies found",
			zap.String("month", alertData.Month.Format("January 2006")))
		return
	}

	logger.Info("severe anomalies found, sending Slack alert",
		zap.String("month", alertData.Month.Format("January 2006")),
		zap.Int("countries", len(alertData.Items)),
	)

	notifier := alert.NewSlackNotifier(url, *timeout, *secret)
	if err := notifier.Post(ctx, alert.BuildGeoMessage(alertData)); err != nil {
		logger.Fatal("failed to send alert", zap.Error(err))
	}
	logger.Info("alert sent successfully")
}

// severeFromDB reads the latest month's Severe-band countries from the
// server database.
func severeFromDB(ctx context.Context, path string) (analytics.GeoAlert, error) {
	db, err := store.New(path)
	if err != nil {
		return analytics.GeoAlert{}, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st := insight.NewInsightStore(db.DB())
	month, err := st.LatestGeoMonth(ctx)
	if err != nil {
		return analytics.GeoAlert{}, err
	}
	if month.IsZero() {
		return analytics.GeoAlert{}, nil
	}

	anomalies, err := st.ListGeoAnomalies(ctx, month)
	if err != nil {
		return analytics.GeoAlert{}, err
	}

	out := analytics.GeoAlert{Month: month}
	for _, g := range anomalies {
		if g.Band == analytics.BandSevere {
			out.Items = append(out.Items, analytics.AlertItem{
				Country: g.Country,
				Score:   g.Score,
				Revenue: g.TotalRevenue,
			})
		}
	}
	return out, nil
}

// severeFromCSV reads a geographic anomalies extract with month, country,
// anomaly_score, anomaly_severity, and total_revenue columns and returns
// the Severe-band rows of the latest month.
func severeFromCSV(path string) (analytics.GeoAlert, error) {
	f, err := os.Open(path)
	if err != nil {
		return analytics.GeoAlert{}, fmt.Errorf("open extract: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return analytics.GeoAlert{}, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"month", "country", "anomaly_score", "anomaly_severity", "total_revenue"} {
		if _, ok := col[required]; !ok {
			return analytics.GeoAlert{}, fmt.Errorf("extract missing required column %q", required)
		}
	}

	type row struct {
		month   time.Time
		country string
		score   float64
		band    string
		revenue float64
	}
	var rows []row
	var latest time.Time
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return analytics.GeoAlert{}, fmt.Errorf("read extract: %w", err)
		}

		month, err := parseMonth(rec[col["month"]])
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(rec[col["anomaly_score"]], 64)
		if err != nil {
			continue
		}
		revenue, err := strconv.ParseFloat(rec[col["total_revenue"]], 64)
		if err != nil {
			continue
		}
		rows = append(rows, row{
			month:   month,
			country: rec[col["country"]],
			score:   score,
			band:    strings.TrimSpace(rec[col["anomaly_severity"]]),
			revenue: revenue,
		})
		if month.After(latest) {
			latest = month
		}
	}

	out := analytics.GeoAlert{Month: latest}
	for _, rw := range rows {
		if rw.month.Equal(latest) && rw.band == string(analytics.BandSevere) {
			out.Items = append(out.Items, analytics.AlertItem{
				Country: rw.country,
				Score:   rw.score,
				Revenue: rw.revenue,
			})
		}
	}
	return out, nil
}

func parseMonth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized month %q", s)
}
