package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sudo-init-do/greenvault/internal/ledger"
)

const schemaVersion = "1.0"

// Envelope is the wire format of every published ledger event.
type Envelope struct {
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	SourceService string       `json:"source_service"`
	SchemaVersion string       `json:"schema_version"`
	PartitionKey  string       `json:"partition_key"`
	Data          ledger.Event `json:"data"`
}

// Forwarder is a ledger.Observer that publishes committed events.
type Forwarder struct {
	publisher Publisher
	source    string
}

func NewForwarder(publisher Publisher, source string) *Forwarder {
	return &Forwarder{publisher: publisher, source: source}
}

func (f *Forwarder) Observe(ctx context.Context, evt ledger.Event) error {
	env := Envelope{
		EventID:       evt.ID,
		EventType:     string(evt.Type),
		OccurredAt:    evt.OccurredAt.UTC().Format(time.RFC3339Nano),
		SourceService: f.source,
		SchemaVersion: schemaVersion,
		PartitionKey:  evt.AccountID,
		Data:          evt,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	if err := f.publisher.Publish(ctx, string(evt.Type), payload, evt.AccountID); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}
