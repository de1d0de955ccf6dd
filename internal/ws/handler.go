package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/frostline-io/frostline/internal/auth"
	"github.com/frostline-io/frostline/internal/insight"
	"github.com/frostline-io/frostline/pkg/analytics"
	"github.com/frostline-io/frostline/pkg/plugin"
)

// Handler provides the WebSocket endpoint for live analytics updates.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to analytics events.
func NewHandler(tokens *auth.TokenService, bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		tokens: tokens,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/live", h.handleLiveStream)
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	return h.hub.ClientCount()
}

// handleLiveStream upgrades the connection and streams analytics events.
func (h *Handler) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	// Validate JWT from query parameter (browser WS API doesn't support headers).
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token parameter", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Allow any origin since we validate via JWT token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards insight and warehouse events to all connected
// WebSocket clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(insight.TopicAnomalyDetected, func(_ context.Context, event plugin.Event) {
		report, ok := event.Payload.(*analytics.AnomalyReport)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAnomalyDetected,
			Timestamp: event.Timestamp,
			Data: AnomalyDetectedData{
				Metric:    report.Metric,
				Period:    report.Period,
				Value:     report.Value,
				ZScore:    report.ZScore,
				Severity:  report.Severity,
				Direction: string(report.Direction),
			},
		})
	})

	h.bus.Subscribe(insight.TopicGeoSevere, func(_ context.Context, event plugin.Event) {
		alert, ok := event.Payload.(analytics.GeoAlert)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageGeoSevere,
			Timestamp: event.Timestamp,
			Data: GeoSevereData{
				Month:     alert.Month,
				Countries: alert.Items,
			},
		})
	})

	h.bus.Subscribe(insight.TopicExtractIngested, func(_ context.Context, event plugin.Event) {
		result, ok := event.Payload.(analytics.IngestResult)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageExtractIngested,
			Timestamp: event.Timestamp,
			Data: ExtractIngestedData{
				Rows:     result.Rows,
				Skipped:  result.Skipped,
				Earliest: result.Earliest,
				Latest:   result.Latest,
			},
		})
	})

	h.logger.Info("subscribed to analytics events for WebSocket broadcasting")
}
