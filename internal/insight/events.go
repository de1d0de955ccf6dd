package insight

// Event topics consumed by the Insight module.
const (
	TopicExtractIngested = "warehouse.extract.ingested"
)

// Event topics published by the Insight module.
const (
	TopicAnomalyDetected = "insight.anomaly.detected"
	TopicGeoSevere       = "insight.geo.severe"
)
