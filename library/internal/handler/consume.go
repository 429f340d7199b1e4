package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

type compensate func(ctx context.Context, c model.Compensation) error

// Consumer replays parked compensations. A message is retried until it is applied,
// no longer applies, or the session ends.
type Consumer struct {
	compensateHandler compensate
	retryInterval     time.Duration
	log               *zap.Logger
}

func NewConsumer(compensate compensate, log *zap.Logger) *Consumer {
	return &Consumer{
		compensateHandler: compensate,
		retryInterval:     5 * time.Second,
		log:               log.Named("consumer"),
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var c model.Compensation
			if err := json.Unmarshal(message.Value, &c); err != nil {
				consumer.log.Error("unmarshal compensation", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			if !consumer.replay(session.Context(), c) {
				return nil
			}
			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// replay reports false when ctx ended before the compensation was settled.
func (consumer *Consumer) replay(ctx context.Context, c model.Compensation) bool {
	for attempt := 1; ; attempt++ {
		err := consumer.compensateHandler(ctx, c)
		switch {
		case err == nil:
			consumer.log.Info("compensation replayed",
				zap.String("kind", string(c.Kind)),
				zap.String("book", c.BookID))
			return true
		case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrValidation):
			consumer.log.Warn("compensation dropped", zap.String("book", c.BookID), zap.Error(err))
			return true
		}
		consumer.log.Error("consumer.compensateHandler",
			zap.Int("attempt", attempt),
			zap.String("book", c.BookID),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(consumer.retryInterval * time.Duration(min(attempt, 12))):
		}
	}
}
