package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds commands
// into the settlement core via the commandChan. NATS is the primary
// high-throughput ingestion surface; each subject maps to a command type.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumers   []jetstream.ConsumeContext
}

// RawCommand is the parsed-but-untyped command from NATS, ready for the
// shell to validate and convert into a typed event.Command before sending
// to the core.
type RawCommand struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to command types.
type SubjectConfig struct {
	Subject      string
	CommandType  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Each command
// type has its own durable consumer so redeliveries stay isolated.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "opt.liquidity.deposit.>", CommandType: "LiquidityDeposit", ConsumerName: "ledger-liq-deposit", StreamName: "OPT_LIQUIDITY"},
		{Subject: "opt.liquidity.withdraw.>", CommandType: "LiquidityWithdraw", ConsumerName: "ledger-liq-withdraw", StreamName: "OPT_LIQUIDITY"},
		{Subject: "opt.liquidity.reserve.>", CommandType: "ReserveFunds", ConsumerName: "ledger-liq-reserve", StreamName: "OPT_LIQUIDITY"},
		{Subject: "opt.liquidity.release.>", CommandType: "ReleaseReserved", ConsumerName: "ledger-liq-release", StreamName: "OPT_LIQUIDITY"},
		{Subject: "opt.users.deposit.>", CommandType: "UserDeposit", ConsumerName: "ledger-user-deposit", StreamName: "OPT_USERS"},
		{Subject: "opt.users.withdraw.>", CommandType: "UserWithdraw", ConsumerName: "ledger-user-withdraw", StreamName: "OPT_USERS"},
		{Subject: "opt.orders.submit.>", CommandType: "SubmitOrder", ConsumerName: "ledger-order-submit", StreamName: "OPT_ORDERS"},
		{Subject: "opt.settlement.payout.>", CommandType: "PayProfit", ConsumerName: "ledger-settle-payout", StreamName: "OPT_SETTLEMENT"},
		{Subject: "opt.settlement.liquidate.>", CommandType: "Liquidate", ConsumerName: "ledger-settle-liquidate", StreamName: "OPT_SETTLEMENT"},
		{Subject: "opt.admin.create_pool.>", CommandType: "CreatePool", ConsumerName: "ledger-admin-create", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.add_submitter.>", CommandType: "AddSubmitter", ConsumerName: "ledger-admin-add-sub", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.remove_submitter.>", CommandType: "RemoveSubmitter", ConsumerName: "ledger-admin-rm-sub", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.add_liquidator.>", CommandType: "AddLiquidator", ConsumerName: "ledger-admin-add-liq", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.remove_liquidator.>", CommandType: "RemoveLiquidator", ConsumerName: "ledger-admin-rm-liq", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.set_admin.>", CommandType: "SetAdmin", ConsumerName: "ledger-admin-set-admin", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.set_pause.>", CommandType: "SetPause", ConsumerName: "ledger-admin-set-pause", StreamName: "OPT_ADMIN"},
		{Subject: "opt.admin.set_ratio.>", CommandType: "SetMinReserveRatio", ConsumerName: "ledger-admin-set-ratio", StreamName: "OPT_ADMIN"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.commandChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "OPT_LIQUIDITY",
			Subjects:  []string{"opt.liquidity.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPT_USERS",
			Subjects:  []string{"opt.users.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPT_ORDERS",
			Subjects:  []string{"opt.orders.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPT_SETTLEMENT",
			Subjects:  []string{"opt.settlement.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "OPT_ADMIN",
			Subjects:  []string{"opt.admin.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
