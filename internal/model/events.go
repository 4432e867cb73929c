package model

// QueueEventKind tags queue-state notifications.
type QueueEventKind uint8

const (
	EventSubmitted QueueEventKind = iota
	EventSettled
)

// QueueEvent is emitted after a submission or a settlement so external
// consumers can track queue depth without polling.
type QueueEvent struct {
	Kind      QueueEventKind
	Spot      Spot
	Submitted uint64
	Processed uint64
}
