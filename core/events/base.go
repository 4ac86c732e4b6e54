package events

import "time"

type Kind string

// Event is a record exchanged with the speech service. Timestamp is when the
// record was decoded or created locally; transcript records take their time
// from it.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

// NewBase stamps a record of the given kind with the current time.
func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
