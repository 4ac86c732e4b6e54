package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleCoach     Role = "coach"
)

// Record is one finalized line of the conversation. At is when the record
// that finalized it arrived from the service.
type Record struct {
	ID   string
	Role Role
	Text string
	At   time.Time
}

func newRecord(role Role, text string, at time.Time) Record {
	if at.IsZero() {
		at = time.Now()
	}
	return Record{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
		At:   at,
	}
}

// transcript holds the records rendered so far. It is guarded by the
// session lock.
type transcript struct {
	records []Record
}

func (t *transcript) append(record Record) {
	t.records = append(t.records, record)
}

func (t *transcript) len() int { return len(t.records) }

func (t *transcript) copy() []Record {
	// Record holds only values, so copying the elements into a fresh slice
	// leaves nothing shared with the transcript.
	var out []Record
	if err := copier.Copy(&out, t.records); err != nil || len(out) != len(t.records) {
		return append([]Record(nil), t.records...)
	}
	return out
}
