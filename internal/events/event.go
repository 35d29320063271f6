// Package events publishes domain events to downstream consumers. Publishing
// is best effort: a failure is logged and counted, never surfaced to the
// operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type Type string

const (
	TransactionCreated         Type = "TRANSACTION_CREATED"
	InstallmentPurchaseCreated Type = "INSTALLMENT_PURCHASE_CREATED"
	TransactionDeleted         Type = "TRANSACTION_DELETED"
	StatementImported          Type = "STATEMENT_IMPORTED"
	InvoicePaid                Type = "INVOICE_PAID"
	InvoiceReopened            Type = "INVOICE_REOPENED"
	InvoiceDeleted             Type = "INVOICE_DELETED"
	InvoiceOverdue             Type = "INVOICE_OVERDUE"
	InvoiceDueSoon             Type = "INVOICE_DUE_SOON"
)

type TriggerType string

const (
	TriggerUserAction TriggerType = "USER_ACTION"
	TriggerScheduled  TriggerType = "SCHEDULED"
)

// Payload is the event-specific body of an Event.
type Payload map[string]any

// Event is the envelope written to the broker.
type Event struct {
	MessageID     uuid.UUID   `json:"message_id"`
	Timestamp     time.Time   `json:"timestamp"`
	TriggerType   TriggerType `json:"trigger_type"`
	EventType     Type        `json:"event_type"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Recipient     string      `json:"recipient,omitempty"`
	Payload       Payload     `json:"payload"`
}

// NewEvent wraps payload in an envelope. The correlation id is the trace id
// of the span active in ctx, if any; the recipient is payload["profile_id"].
func NewEvent(ctx context.Context, eventType Type, trigger TriggerType, payload Payload) Event {
	e := Event{
		MessageID:   uuid.New(),
		Timestamp:   time.Now().UTC(),
		TriggerType: trigger,
		EventType:   eventType,
		Payload:     payload,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		e.CorrelationID = sc.TraceID().String()
	}

	if profile, ok := payload["profile_id"]; ok {
		if s, ok := profile.(interface{ String() string }); ok {
			e.Recipient = s.String()
		} else if s, ok := profile.(string); ok {
			e.Recipient = s
		}
	}

	return e
}

func (e Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher is what the services depend on.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, payload Payload)
}

// Sender delivers a single envelope synchronously.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

type discard struct{}

func (discard) Publish(context.Context, Type, Payload) {}

// Discard drops every event.
var Discard Publisher = discard{}
