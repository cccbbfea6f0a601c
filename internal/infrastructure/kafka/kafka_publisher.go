package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBatchSize = 100
	writeTimeout     = 30 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultKafkaPublisher writes ledger events keyed by affiliate id, so one affiliate's events stay ordered
// within a partition.
type DefaultKafkaPublisher struct {
	writer          messageWriter
	commissionTopic string
	payoutTopic     string
	batchSize       int
	logger          *slog.Logger
}

func NewDefaultKafkaPublisher(brokers []string, commissionTopic, payoutTopic string, logger *slog.Logger) *DefaultKafkaPublisher {
	return &DefaultKafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		commissionTopic: commissionTopic,
		payoutTopic:     payoutTopic,
		batchSize:       defaultBatchSize,
		logger:          logger,
	}
}

func (k *DefaultKafkaPublisher) Publish(ctx context.Context, topic string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	km := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km = append(km, kafka.Message{
			Key:   m.Key,
			Value: m.Value,
			Time:  now,
			Topic: topic,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, km...)
}

// PublishCommissionEvents writes the events in batches. Events that fail to marshal are skipped.
func (k *DefaultKafkaPublisher) PublishCommissionEvents(ctx context.Context, events ...domain.CommissionEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]domain.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			k.logger.Error("failed to marshal commission event", "entry_id", event.EntryID, "error", err)
			continue
		}
		messages = append(messages, domain.Message{Key: []byte(event.AffiliateID), Value: value})
	}
	if len(messages) == 0 {
		return fmt.Errorf("no valid messages to publish")
	}

	for start := 0; start < len(messages); start += k.batchSize {
		end := start + k.batchSize
		if end > len(messages) {
			end = len(messages)
		}
		if err := k.Publish(ctx, k.commissionTopic, messages[start:end]...); err != nil {
			return fmt.Errorf("failed to write commission events %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (k *DefaultKafkaPublisher) PublishPayoutEvent(ctx context.Context, event domain.PayoutEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.Publish(ctx, k.payoutTopic, domain.Message{Key: []byte(event.AffiliateID), Value: value})
}

func (k *DefaultKafkaPublisher) Close() error {
	return k.writer.Close()
}

// NoopPublisher is used when kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishCommissionEvents(ctx context.Context, events ...domain.CommissionEvent) error {
	return nil
}

func (NoopPublisher) PublishPayoutEvent(ctx context.Context, event domain.PayoutEvent) error {
	return nil
}
