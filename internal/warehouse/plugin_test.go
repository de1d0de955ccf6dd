package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/frostline-io/frostline/internal/config"
	"github.com/frostline-io/frostline/internal/event"
	"github.com/frostline-io/frostline/internal/store"
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

func newWarehouseModule(t *testing.T) (*Module, *event.Bus) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := event.NewBus(zap.NewNop())

	m := New()
	err = m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Store:  db,
		Bus:    bus,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m, bus
}

func TestInfo_WarehouseIsRequired(t *testing.T) {
	info := New().Info()
	if info.Name != "warehouse" {
		t.Errorf("Name = %q, want warehouse", info.Name)
	}
	if !info.Required {
		t.Error("warehouse must be a required plugin")
	}
	found := false
	for _, role := range info.Roles {
		if role == roles.RoleWarehouse {
			found = true
		}
	}
	if !found {
		t.Errorf("Roles = %v, want to include %q", info.Roles, roles.RoleWarehouse)
	}
}

func TestInit_WithConfig(t *testing.T) {
	v := viper.New()
	v.Set("ingest_batch_size", 50)
	v.Set("default_lookback_days", 90)

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := New()
	err = m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: config.New(v),
		Store:  db,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if m.cfg.IngestBatchSize != 50 {
		t.Errorf("IngestBatchSize = %d, want 50", m.cfg.IngestBatchSize)
	}
	if m.cfg.DefaultLookbackDays != 90 {
		t.Errorf("DefaultLookbackDays = %d, want 90", m.cfg.DefaultLookbackDays)
	}
	// Keys not set keep their defaults.
	if m.cfg.MovingAverageWindow != 7 {
		t.Errorf("MovingAverageWindow = %d, want default 7", m.cfg.MovingAverageWindow)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WarehouseConfig
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero batch size", WarehouseConfig{IngestBatchSize: 0, DefaultLookbackDays: 365, MovingAverageWindow: 7}, true},
		{"zero lookback", WarehouseConfig{IngestBatchSize: 500, DefaultLookbackDays: 0, MovingAverageWindow: 7}, true},
		{"zero window", WarehouseConfig{IngestBatchSize: 500, DefaultLookbackDays: 365, MovingAverageWindow: 0}, true},
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

func TestIngest_PublishesEvent(t *testing.T) {
	m, bus := newWarehouseModule(t)

	received := make(chan plugin.Event, 1)
	unsub := bus.Subscribe(TopicExtractIngested, func(_ context.Context, e plugin.Event) {
		received <- e
	})
	defer unsub()

	result, err := m.Ingest(context.Background(), seedOrders(), 3)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Rows != 6 || result.Skipped != 3 {
		t.Errorf("result = %d rows / %d skipped, want 6/3", result.Rows, result.Skipped)
	}

	select {
	case e := <-received:
		payload, ok := e.Payload.(analytics.IngestResult)
		if !ok {
			t.Fatalf("payload type = %T, want analytics.IngestResult", e.Payload)
		}
		if payload.Rows != 6 {
			t.Errorf("event Rows = %d, want 6", payload.Rows)
		}
		if e.Source != "warehouse" {
			t.Errorf("event Source = %q, want warehouse", e.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingest event")
	}
}

func TestIngest_EmptyExtractPublishesNothing(t *testing.T) {
	m, bus := newWarehouseModule(t)

	received := make(chan plugin.Event, 1)
	unsub := bus.Subscribe(TopicExtractIngested, func(_ context.Context, e plugin.Event) {
		received <- e
	})
	defer unsub()

	if _, err := m.Ingest(context.Background(), nil, 0); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	select {
	case <-received:
		t.Fatal("no event expected for an empty extract")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHealth(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ctx := context.Background()

	health := m.Health(ctx)
	if health.Status != "degraded" {
		t.Errorf("empty extract status = %q, want degraded", health.Status)
	}

	if _, err := m.Ingest(ctx, seedOrders(), 0); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	health = m.Health(ctx)
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Details["order_count"] != "6" {
		t.Errorf("order_count = %q, want 6", health.Details["order_count"])
	}
	if health.Details["latest_order_date"] != "2025-07-02" {
		t.Errorf("latest_order_date = %q, want 2025-07-02", health.Details["latest_order_date"])
	}
}

func TestWarehouseProviderRole(t *testing.T) {
	m, _ := newWarehouseModule(t)
	ctx := context.Background()

	if _, err := m.Ingest(ctx, seedOrders(), 0); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	var wh roles.WarehouseProvider = m

	points, err := wh.TimeSeries(ctx, analytics.MetricRevenue, analytics.GranularityMonth, 365)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(points) != 3 {
		t.Errorf("got %d trend points, want 3", len(points))
	}

	snaps, err := wh.CountrySnapshots(ctx, 12)
	if err != nil {
		t.Fatalf("CountrySnapshots: %v", err)
	}
	if len(snaps) != 5 {
		t.Errorf("got %d snapshots, want 5", len(snaps))
	}

	latest, err := wh.LatestOrderDate(ctx)
	if err != nil {
		t.Fatalf("LatestOrderDate: %v", err)
	}
	if !latest.Equal(day(2025, 7, 2)) {
		t.Errorf("latest = %v, want 2025-07-02", latest)
	}
}
