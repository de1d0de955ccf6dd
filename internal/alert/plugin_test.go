package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frostline-io/frostline/internal/config"
	"github.com/frostline-io/frostline/internal/insight"
	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
	"github.com/frostline-io/frostline/pkg/plugin/plugintest"
	"github.com/frostline-io/frostline/pkg/roles"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func newAlertModule(t *testing.T, settings map[string]any) *Module {
	t.Helper()
	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}

	m := New()
	err := m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: config.New(v),
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return m
}

// captureServer records posted Block Kit messages.
func captureServer(t *testing.T) (*httptest.Server, *[]Message) {
	t.Helper()
	var messages []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Errorf("decode posted message: %v", err)
		}
		messages = append(messages, msg)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &messages
}

func TestSubscriptions_CoverInsightTopics(t *testing.T) {
	subs := New().Subscriptions()
	topics := make(map[string]bool, len(subs))
	for _, s := range subs {
		topics[s.Topic] = true
	}
	if !topics[insight.TopicGeoSevere] || !topics[insight.TopicAnomalyDetected] {
		t.Errorf("subscriptions = %v, want geo severe and anomaly detected", topics)
	}
}

func TestHandleGeoSevere_FiltersByMinScore(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL, "min_score": 80.0})

	m.handleGeoSevere(context.Background(), plugin.Event{
		Topic: insight.TopicGeoSevere,
		Payload: analytics.GeoAlert{
			Month: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Items: []analytics.AlertItem{
				{Country: "GERMANY", Score: 85, Revenue: 50000},
				{Country: "FRANCE", Score: 76, Revenue: 30000},
			},
		},
	})

	if len(*messages) != 1 {
		t.Fatalf("posted %d messages, want 1", len(*messages))
	}
	section := (*messages)[0].Blocks[1].Text.Text
	if !strings.Contains(section, "GERMANY") {
		t.Errorf("section %q missing GERMANY", section)
	}
	if strings.Contains(section, "FRANCE") {
		t.Errorf("section %q should filter FRANCE below min_score", section)
	}
	if !strings.Contains(section, "*1 severe anomalies detected:*") {
		t.Errorf("section %q count should reflect the filtered items", section)
	}
}

func TestHandleGeoSevere_AllBelowThresholdPostsNothing(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL, "min_score": 90.0})

	m.handleGeoSevere(context.Background(), plugin.Event{
		Payload: analytics.GeoAlert{
			Items: []analytics.AlertItem{{Country: "GERMANY", Score: 85, Revenue: 1}},
		},
	})
	if len(*messages) != 0 {
		t.Errorf("posted %d messages, want 0", len(*messages))
	}
}

func TestHandleAnomalyDetected(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL})

	m.handleAnomalyDetected(context.Background(), plugin.Event{
		Topic: insight.TopicAnomalyDetected,
		Payload: &analytics.AnomalyReport{
			Metric: "revenue", Value: 250, ZScore: 2.64,
			Period:    time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
			Direction: analytics.AboveBaseline,
		},
	})

	if len(*messages) != 1 {
		t.Fatalf("posted %d messages, want 1", len(*messages))
	}
	if !strings.Contains((*messages)[0].Blocks[1].Text.Text, "*revenue*") {
		t.Errorf("section = %q, want metric name", (*messages)[0].Blocks[1].Text.Text)
	}
}

func TestUnconfiguredURL_DropsSilently(t *testing.T) {
	m := newAlertModule(t, nil)

	// No URL: handlers drop without panicking.
	m.handleGeoSevere(context.Background(), plugin.Event{
		Payload: analytics.GeoAlert{Items: []analytics.AlertItem{{Country: "X", Score: 99}}},
	})
	m.handleAnomalyDetected(context.Background(), plugin.Event{Payload: &analytics.AnomalyReport{}})

	if health := m.Health(context.Background()); health.Status != "degraded" {
		t.Errorf("health = %q, want degraded when URL is unset", health.Status)
	}
	if err := m.Notify(context.Background(), roles.Notification{Title: "t"}); err == nil {
		t.Error("Notify should fail when the notifier is unconfigured")
	}
}

func TestDisabled_DropsNotifications(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL, "enabled": false})

	m.handleGeoSevere(context.Background(), plugin.Event{
		Payload: analytics.GeoAlert{Items: []analytics.AlertItem{{Country: "X", Score: 99}}},
	})
	if len(*messages) != 0 {
		t.Errorf("posted %d messages, want 0 when disabled", len(*messages))
	}
}

func TestNotify(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL})

	err := m.Notify(context.Background(), roles.Notification{
		Title:  "Refresh complete",
		Body:   "Nightly extract loaded",
		Fields: map[string]string{"rows": "15000"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(*messages) != 1 {
		t.Fatalf("posted %d messages, want 1", len(*messages))
	}
	msg := (*messages)[0]
	if msg.Blocks[0].Text.Text != "Refresh complete" {
		t.Errorf("header = %q", msg.Blocks[0].Text.Text)
	}
	if !strings.Contains(msg.Blocks[1].Text.Text, "*rows*: 15000") {
		t.Errorf("section = %q, want fields rendered", msg.Blocks[1].Text.Text)
	}
}

func TestNotify_FieldsRenderInSortedOrder(t *testing.T) {
	srv, messages := captureServer(t)
	m := newAlertModule(t, map[string]any{"url": srv.URL})

	fields := map[string]string{
		"rows":    "15000",
		"country": "GERMANY",
		"skipped": "3",
	}
	want := "body\n  - *country*: GERMANY\n  - *rows*: 15000\n  - *skipped*: 3"

	// Identical notifications must serialize identically across runs.
	for i := 0; i < 5; i++ {
		if err := m.Notify(context.Background(), roles.Notification{
			Title: "t", Body: "body", Fields: fields,
		}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if len(*messages) != 5 {
		t.Fatalf("posted %d messages, want 5", len(*messages))
	}
	for i, msg := range *messages {
		if got := msg.Blocks[1].Text.Text; got != want {
			t.Fatalf("message %d section = %q, want %q", i, got, want)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AlertConfig
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero timeout", AlertConfig{Timeout: 0, MinScore: 75}, true},
		{"score out of range", AlertConfig{Timeout: time.Second, MinScore: 101}, true},
		{"negative score", AlertConfig{Timeout: time.Second, MinScore: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Module{cfg: tt.cfg}
			if err := m.ValidateConfig(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
