package messaging

// Kafka topics carrying the marketplace event stream.
const (
	TopicStatusChanged = "order.status_changed"
	TopicOrderPromoted = "order.promoted"
)
