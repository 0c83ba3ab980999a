package core

import (
	"context"
	"time"
)

// ChangeType is the kind of mutation a Change describes.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is one row level mutation, as delivered on the change feed.
// Record holds the new row for INSERT and UPDATE and is empty for DELETE.
type Change struct {
	Table      string      `json:"table"`
	Type       ChangeType  `json:"type"`
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id"`
	Public     bool        `json:"public"`
	Record     interface{} `json:"record,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// VisibleTo reports whether the user may receive the change.
func (c Change) VisibleTo(userID string) bool {
	return c.Public || (userID != "" && c.OwnerID == userID)
}

// ChangePublisher is any service that can fan a Change out to subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, change Change) error
}

// NewChange builds a Change stamped with the current time.
func NewChange(table string, typ ChangeType, id, ownerID string, public bool, record interface{}) Change {
	return Change{
		Table:      table,
		Type:       typ,
		ID:         id,
		OwnerID:    ownerID,
		Public:     public,
		Record:     record,
		OccurredAt: time.Now().UTC(),
	}
}

// PublishChange publishes and logs failures: a lost notification never fails the mutation that caused it.
func PublishChange(ctx context.Context, pub ChangePublisher, logger Logger, change Change) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, change); err != nil && logger != nil {
		logger.Error("publishing "+change.Table+" change", err)
	}
}
