package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	r "github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	Topic = "checkout-outbox"

	eventBatch    = 100
	recoveryBatch = 20
)

// Writer is the part of *kafka.Writer the poller uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Repo interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
	ListSessionsByStatus(ctx context.Context, status domain.CheckoutStatus, idleFor time.Duration, limit int) ([]*domain.CheckoutSession, error)
}

// Recoverer finishes a session whose request ended between charge and order.
type Recoverer interface {
	Recover(ctx context.Context, session *domain.CheckoutSession) error
}

type Config struct {
	EventTick    time.Duration
	RecoveryTick time.Duration
	// IdleFor keeps the loop away from sessions a request is still working on.
	IdleFor time.Duration
	// StuckFor is the idle time after which a CONFIRMING session is taken to be
	// orphaned by a dead request. It must exceed the longest confirm.
	StuckFor time.Duration
	// Timeout bounds one publish.
	Timeout time.Duration
	// RecoveryTimeout bounds one session's recovery, which may poll the processor.
	RecoveryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		EventTick:       time.Second,
		RecoveryTick:    30 * time.Second,
		IdleFor:         2 * time.Minute,
		StuckFor:        5 * time.Minute,
		Timeout:         10 * time.Second,
		RecoveryTimeout: 90 * time.Second,
	}
}

type OutboxPoller struct {
	cfg       Config
	repo      Repo
	writer    Writer
	recoverer Recoverer
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// NewOutboxPoller publishes outbox events through w. recoverer may be nil, which
// disables the recovery tick.
func NewOutboxPoller(cfg Config, repo Repo, w Writer, recoverer Recoverer) *OutboxPoller {
	def := DefaultConfig()
	if cfg.EventTick <= 0 {
		cfg.EventTick = def.EventTick
	}
	if cfg.RecoveryTick <= 0 {
		cfg.RecoveryTick = def.RecoveryTick
	}
	if cfg.StuckFor <= 0 {
		cfg.StuckFor = def.StuckFor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	return &OutboxPoller{cfg: cfg, repo: repo, writer: w, recoverer: recoverer}
}

// Run polls until ctx is done and then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) error {
	eventTicker := time.NewTicker(p.cfg.EventTick)
	recoveryTicker := time.NewTicker(p.cfg.RecoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()

	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverSessions(ctx)
		case <-ctx.Done():
			return p.writer.Close()
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	log := logger.FromContext(ctx)

	events, err := p.repo.GetUnprocessedEvents(ctx, eventBatch)
	if err != nil {
		log.Error("failed to fetch outbox events", slog.Any("err", err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			log.Error("failed to publish event", slog.String("event_id", event.ID), slog.Any("err", err))
			continue
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Error("failed to mark event as processed", slog.String("event_id", event.ID), slog.Any("err", err))
		}
	}
}

// recoverSessions picks up charged sessions without an order, payments whose
// verification timed out and confirms whose request died.
func (p *OutboxPoller) recoverSessions(ctx context.Context) {
	if p.recoverer == nil {
		return
	}
	log := logger.FromContext(ctx)

	for _, scan := range []struct {
		status  domain.CheckoutStatus
		idleFor time.Duration
	}{
		{domain.CheckoutStatusPaymentSucceeded, p.cfg.IdleFor},
		{domain.CheckoutStatusVerificationTimeout, p.cfg.IdleFor},
		{domain.CheckoutStatusConfirming, p.cfg.StuckFor},
	} {
		status := scan.status
		sessions, err := p.repo.ListSessionsByStatus(ctx, status, scan.idleFor, recoveryBatch)
		if err != nil {
			log.Error("failed to list sessions for recovery", slog.String("status", status.String()), slog.Any("err", err))
			continue
		}

		for _, session := range sessions {
			sctx, cancel := context.WithTimeout(ctx, p.cfg.RecoveryTimeout)
			err := p.recoverer.Recover(sctx, session)
			cancel()
			if err != nil {
				log.Warn("session not recovered",
					slog.String("checkout_id", session.ID),
					slog.String("status", status.String()),
					slog.Any("err", err))
				continue
			}
			log.Info("session recovered", slog.String("checkout_id", session.ID))
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID), // checkout_id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}
