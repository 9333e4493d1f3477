package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumichat/billing/internal/models"
	"gorm.io/gorm"
)

// Event kinds accepted from anonymous clients.
const (
	// EventMessageSent reports a user message leaving the client.
	EventMessageSent = "message_sent"
	// EventCompletionReceived reports a finished assistant reply.
	EventCompletionReceived = "completion_received"
)

// Event is one anonymous usage event. Payloads arrive as loosely typed
// JSON from untrusted clients, so every variant is validated at the
// boundary before it touches an aggregate.
type Event struct {
	Kind         string    `json:"kind" binding:"required"`
	OccurredAt   time.Time `json:"occurred_at"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
}

// Validate rejects unknown variants and nonsense quantities.
func (e Event) Validate() error {
	switch e.Kind {
	case EventMessageSent:
		if e.InputTokens != 0 || e.OutputTokens != 0 {
			return errors.New("usage: message_sent events carry no token counts")
		}
	case EventCompletionReceived:
		if e.InputTokens < 0 || e.OutputTokens < 0 {
			return errors.New("usage: negative token counts")
		}
	default:
		return fmt.Errorf("usage: unknown event kind: %q", e.Kind)
	}
	return nil
}

// ApplyAnonymousEvents folds a batch of validated events into the
// anonymous owner's daily aggregates. Events only ever touch counters;
// anonymous cost accounting still flows through recompute like
// authenticated usage.
func ApplyAnonymousEvents(ctx context.Context, db *gorm.DB, owner Owner, events []Event) error {
	if db == nil {
		return errors.New("usage: nil db")
	}
	if owner.Type != models.OwnerTypeAnon || owner.Key == "" {
		return errors.New("usage: events require an anonymous owner")
	}

	for i, event := range events {
		if errValidate := event.Validate(); errValidate != nil {
			return fmt.Errorf("usage: event %d: %w", i, errValidate)
		}
	}

	for _, event := range events {
		occurredAt := event.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}

		msg := models.Message{CreatedAt: occurredAt}
		switch event.Kind {
		case EventMessageSent:
			msg.Role = models.RoleUser
		case EventCompletionReceived:
			msg.Role = models.RoleAssistant
			msg.InputTokens = event.InputTokens
			msg.OutputTokens = event.OutputTokens
		}
		if errRecord := RecordMessageCreated(ctx, db, owner, &msg); errRecord != nil {
			return errRecord
		}
	}
	return nil
}
