package warehouse

// Event topics published by the Warehouse module.
const (
	TopicExtractIngested = "warehouse.extract.ingested"
)
