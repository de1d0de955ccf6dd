package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/frostline-io/frostline/pkg/plugin"
)

func TestPublish_DeliversToTopicHandlers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var got []string
	bus.Subscribe("warehouse.extract.ingested", func(_ context.Context, e plugin.Event) {
		got = append(got, e.Topic)
	})
	bus.Subscribe("other.topic", func(_ context.Context, e plugin.Event) {
		got = append(got, "wrong:"+e.Topic)
	})

	err := bus.Publish(ctx, plugin.Event{Topic: "warehouse.extract.ingested", Source: "warehouse"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(got) != 1 || got[0] != "warehouse.extract.ingested" {
		t.Errorf("delivered = %v, want exactly one delivery to the matching topic", got)
	}
}

func TestPublish_AllSubscriberSeesEveryTopic(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var count int
	bus.SubscribeAll(func(_ context.Context, _ plugin.Event) { count++ })

	bus.Publish(ctx, plugin.Event{Topic: "a"})
	bus.Publish(ctx, plugin.Event{Topic: "b"})

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var count int
	unsub := bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { count++ })

	bus.Publish(ctx, plugin.Event{Topic: "t"})
	unsub()
	bus.Publish(ctx, plugin.Event{Topic: "t"})

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestPublish_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var reached bool
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { panic("boom") })
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { reached = true })

	if err := bus.Publish(ctx, plugin.Event{Topic: "t"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !reached {
		t.Error("second handler not reached after first panicked")
	}
}

func TestPublishAsync_DeliversConcurrently(t *testing.T) {
	bus := NewBus(zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { wg.Done() })
	bus.Subscribe("t", func(_ context.Context, _ plugin.Event) { wg.Done() })

	bus.PublishAsync(ctx, plugin.Event{Topic: "t"})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run within 2s")
	}
}
