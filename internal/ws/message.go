package ws

import (
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageAnomalyDetected MessageType = "anomaly.detected"
	MessageGeoSevere       MessageType = "geo.severe"
	MessageExtractIngested MessageType = "extract.ingested"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// AnomalyDetectedData is the payload for anomaly.detected messages.
type AnomalyDetectedData struct {
	Metric    string             `json:"metric"`
	Period    time.Time          `json:"period"`
	Value     float64            `json:"value"`
	ZScore    float64            `json:"z_score"`
	Severity  analytics.Severity `json:"severity"`
	Direction string             `json:"direction"`
}

// GeoSevereData is the payload for geo.severe messages.
type GeoSevereData struct {
	Month     time.Time             `json:"month"`
	Countries []analytics.AlertItem `json:"countries"`
}

// ExtractIngestedData is the payload for extract.ingested messages.
type ExtractIngestedData struct {
	Rows     int       `json:"rows"`
	Skipped  int       `json:"skipped"`
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}
