package domain

import "time"

// EventKind enumerates the record types found in the event feeds.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventConfig
	EventPurchase
	EventBefriend
	EventUnfriend
)

func (k EventKind) String() string {
	switch k {
	case EventConfig:
		return "config"
	case EventPurchase:
		return "purchase"
	case EventBefriend:
		return "befriend"
	case EventUnfriend:
		return "unfriend"
	default:
		return "unknown"
	}
}

// Event is a decoded feed record. Which fields are meaningful depends on Kind:
//   - EventConfig: Degree, Window
//   - EventPurchase: UserID, Timestamp, Amount
//   - EventBefriend, EventUnfriend: UserID, OtherID
//   - EventUnknown: RawType
type Event struct {
	Kind      EventKind
	RawType   string
	Degree    int
	Window    int
	UserID    UserID
	OtherID   UserID
	Timestamp time.Time
	Amount    float64
	Raw       []byte
}
