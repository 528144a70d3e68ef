package enums

// EventType names the committed order deltas published to terminals.
type EventType string

const (
	EventOrderCreated EventType = "order.created"
	EventOrderUpdated EventType = "order.updated"
	EventOrderClosed  EventType = "order.closed"
	EventCourseFired  EventType = "course.fired"
)

// AggregateType names the root entity an event belongs to.
type AggregateType string

const (
	AggregateOrder AggregateType = "order"
)
