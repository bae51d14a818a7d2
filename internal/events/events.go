// Package events publishes domain events to an external stream so other
// processes can follow expense activity. Publishing is best effort.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/money"
)

// Event mirrors an activity record.
type Event struct {
	ID           string              `json:"id"`
	Type         models.ActivityType `json:"type"`
	ExpenseID    string              `json:"expense_id"`
	ActorID      string              `json:"actor_id"`
	Description  string              `json:"description"`
	Amount       money.Cents         `json:"amount"`
	Participants []string            `json:"participants,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
}

// FromActivity converts an activity into the event published for it.
func FromActivity(a *models.Activity) Event {
	ts := time.UnixMilli(a.CreatedAt).UTC()
	if a.CreatedAt == 0 {
		ts = time.Now().UTC()
	}
	return Event{
		ID:           a.ID,
		Type:         a.Type,
		ExpenseID:    a.ExpenseID,
		ActorID:      a.ActorID,
		Description:  a.Description,
		Amount:       a.Amount,
		Participants: a.Participants,
		Timestamp:    ts,
	}
}

// Encode returns the wire form of e.
func (e Event) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return body, nil
}

// Decode parses the wire form of an event.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}

// Publisher sends events to a stream.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
