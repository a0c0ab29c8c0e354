package messaging

// EventsConsumed exposes the consumption counter to tests.
var EventsConsumed = eventsConsumed
