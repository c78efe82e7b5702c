package domain

// EventStatus mirrors the lifecycle column maintained by the event catalogue.
type EventStatus string

const (
	EventStatusActive    EventStatus = "ACTIVE"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// Event is the read-only view of an event owned by the catalogue service.
type Event struct {
	ID     string
	Title  string
	Status EventStatus
}
