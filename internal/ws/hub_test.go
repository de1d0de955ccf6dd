package ws

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(userID string) *Client {
	return &Client{
		conn:   nil, // Not needed for hub tests
		userID: userID,
		send:   make(chan Message, 256),
		logger: testLogger(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("hub.clients map is nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Verify channel is closed by attempting to receive.
	_, ok := <-client.send
	if ok {
		t.Error("client.send channel is not closed")
	}
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	// Unregister without registering first should not panic.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Unregister() panicked: %v", r)
		}
	}()

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Channel should not be closed if client was never registered.
	select {
	case _, ok := <-client.send:
		if !ok {
			t.Error("channel closed for unregistered client")
		}
	default:
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	client1 := newTestClient("user-1")
	client2 := newTestClient("user-2")
	client3 := newTestClient("user-3")

	hub.Register(client1)
	hub.Register(client2)
	hub.Register(client3)

	msg := Message{
		Type:      MessageExtractIngested,
		Timestamp: time.Now(),
		Data:      ExtractIngestedData{Rows: 42, Skipped: 1},
	}

	hub.Broadcast(msg)

	for i, client := range []*Client{client1, client2, client3} {
		select {
		case received := <-client.send:
			if received.Type != MessageExtractIngested {
				t.Errorf("client %d received Type = %v, want %v", i+1, received.Type, MessageExtractIngested)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client %d did not receive message", i+1)
		}
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(testLogger())

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Broadcast() to empty hub panicked: %v", r)
		}
	}()

	hub.Broadcast(Message{Type: MessageGeoSevere, Timestamp: time.Now()})
}

func TestBroadcastDropsMessagesWhenBufferFull(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("user-1")

	hub.Register(client)

	// Fill the client's send buffer (capacity is 256).
	for i := 0; i < 256; i++ {
		client.send <- Message{Type: MessageAnomalyDetected, Timestamp: time.Now()}
	}

	if len(client.send) != 256 {
		t.Fatalf("client.send buffer length = %d, want 256", len(client.send))
	}

	// One more broadcast should be dropped, not block.
	hub.Broadcast(Message{
		Type:      MessageGeoSevere,
		Timestamp: time.Now(),
		Data:      GeoSevereData{},
	})

	if len(client.send) != 256 {
		t.Errorf("client.send buffer length = %d, want 256 (message should have been dropped)", len(client.send))
	}

	received := <-client.send
	if received.Type == MessageGeoSevere {
		t.Error("dropped message was unexpectedly received")
	}
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	hub := NewHub(testLogger())

	var wg sync.WaitGroup
	numClients := 50
	numBroadcasts := 100

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := newTestClient(fmt.Sprintf("user-%d", id))
			hub.Register(client)

			// Drain messages to prevent buffer from filling.
			go func() {
				for range client.send {
				}
			}()

			time.Sleep(10 * time.Millisecond)
			hub.Unregister(client)
		}(i)
	}

	for i := 0; i < numBroadcasts; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			hub.Broadcast(Message{
				Type:      MessageExtractIngested,
				Timestamp: time.Now(),
				Data:      ExtractIngestedData{Rows: id},
			})
		}(i)
	}

	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after all clients unregistered", hub.ClientCount())
	}
}
