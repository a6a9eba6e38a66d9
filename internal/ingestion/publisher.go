package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"OptionLedger/internal/event"
)

// OutboundPublisher publishes notifications to NATS for downstream
// indexers after the command has been handed to persistence.
// Subjects follow the pattern: opt.ledger.events.{event_name}.{asset}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableEvent
}

// PublishableEvent is one notification ready for outbound publishing.
type PublishableEvent struct {
	Sequence     int64              `json:"sequence"`
	Asset        string             `json:"asset"`
	Notification event.Notification `json:"notification"`
	StateHash    []byte             `json:"state_hash"`
	Timestamp    time.Time          `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableEvent) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", evt.Sequence, err)
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	body := struct {
		Sequence  int64              `json:"sequence"`
		Asset     string             `json:"asset"`
		Event     string             `json:"event"`
		Data      event.Notification `json:"data"`
		StateHash []byte             `json:"state_hash"`
		Timestamp time.Time          `json:"timestamp"`
	}{
		Sequence:  evt.Sequence,
		Asset:     evt.Asset,
		Event:     evt.Notification.EventName(),
		Data:      evt.Notification,
		StateHash: evt.StateHash,
		Timestamp: evt.Timestamp,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("opt.ledger.events.%s.%s", evt.Notification.EventName(), evt.Asset)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "OPT_LEDGER_EVENTS",
		Subjects:  []string{"opt.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream OPT_LEDGER_EVENTS")
	return nil
}
