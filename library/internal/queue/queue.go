package queue

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/model"
	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
)

//go:generate go run github.com/golang/mock/mockgen -source=queue.go -destination=mocks/mock.go

type Publisher interface {
	// Publish announces a completed reservation transition.
	Publish(ctx context.Context, ev model.ReservationEvent) error
	// Park stores a failed compensation for asynchronous replay.
	Park(ctx context.Context, c model.Compensation) error
}

func NewPublisher(producer sarama.SyncProducer, cb circuit_breaker.CircuitBreaker, log *zap.Logger) Publisher {
	return &publisher{
		producer: producer,
		cb:       cb,
		log:      log.Named("publisher"),
	}
}

type publisher struct {
	producer sarama.SyncProducer
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

func (p *publisher) Publish(_ context.Context, ev model.ReservationEvent) error {
	return p.enqueue(kafka.ReservationTopic, ev.BookID, ev)
}

func (p *publisher) Park(_ context.Context, c model.Compensation) error {
	return p.enqueue(kafka.CompensationTopic, c.BookID, c)
}

func (p *publisher) enqueue(topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	err = p.cb.Call(func() error {
		_, _, err := p.producer.SendMessage(msg)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "enqueue %s", topic)
	}
	p.log.Debug("enqueued", zap.String("topic", topic), zap.String("key", key))
	return nil
}

// NewNopPublisher is used when kafka is disabled. Parked compensations are only logged.
func NewNopPublisher(log *zap.Logger) Publisher {
	return nopPublisher{log: log.Named("publisher")}
}

type nopPublisher struct {
	log *zap.Logger
}

func (p nopPublisher) Publish(_ context.Context, ev model.ReservationEvent) error {
	p.log.Debug("event", zap.String("type", string(ev.Type)), zap.String("book", ev.BookID))
	return nil
}

func (p nopPublisher) Park(_ context.Context, c model.Compensation) error {
	p.log.Error("compensation dropped, manual repair required",
		zap.String("kind", string(c.Kind)),
		zap.String("book", c.BookID),
		zap.String("reservation", c.ReservationID),
		zap.String("cause", c.Cause))
	return nil
}
