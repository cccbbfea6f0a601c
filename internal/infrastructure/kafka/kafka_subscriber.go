package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/commission"
	"github.com/segmentio/kafka-go"
)

const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConversionSubscriber feeds booking conversions into the commission engine. Offsets are committed only
// after a message was processed, so delivery is at-least-once and the engine's idempotency absorbs replays.
type ConversionSubscriber struct {
	reader  messageReader
	engine  commission.CommissionEngine
	logger  *slog.Logger
	metrics *metrics.AffiliateMetrics
}

func NewConversionSubscriber(brokers []string, topic, groupID string, engine commission.CommissionEngine, logger *slog.Logger, m *metrics.AffiliateMetrics) *ConversionSubscriber {
	return &ConversionSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
		}),
		engine:  engine,
		logger:  logger,
		metrics: m,
	}
}

// Run blocks until ctx is cancelled or the reader fails.
func (s *ConversionSubscriber) Run(ctx context.Context) error {
	defer s.reader.Close()
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.handle(ctx, msg); err != nil {
			// only cancellation stops the retry loop; the message stays uncommitted
			return nil
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("failed to commit conversion offset", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		}
	}
}

// handle processes one message, retrying transient failures with backoff. It returns an error only when
// ctx is done.
func (s *ConversionSubscriber) handle(ctx context.Context, msg kafka.Message) error {
	var event domain.ConversionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.metrics.RecordConsumedMessage("malformed")
		s.logger.Warn("skipping malformed conversion message", "offset", msg.Offset, "key", string(msg.Key), "error", err)
		return nil
	}

	delay := retryBaseDelay
	for {
		result, err := s.engine.Process(ctx, &event)
		switch {
		case err == nil:
			s.metrics.RecordConsumedMessage("processed")
			s.logger.Debug("conversion processed", "conversion_id", event.ID, "outcome", result.Outcome)
			return nil
		case errors.Is(err, domain.ErrInvalidConversion):
			s.metrics.RecordConsumedMessage("invalid")
			s.logger.Warn("skipping invalid conversion", "conversion_id", event.ID, "error", err)
			return nil
		case errors.Is(err, domain.ErrCycleDetected):
			// the rejection is already recorded and flagged for graph review
			s.metrics.RecordConsumedMessage("rejected")
			return nil
		}

		s.metrics.RecordConsumedMessage("retry")
		s.logger.Error("failed to process conversion, retrying", "conversion_id", event.ID, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}
