package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"

	// Local Packages
	models "payflow/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// EventProducer publishes settlement events keyed by user id so that all events of one
// user land on the same partition in order.
type EventProducer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

func NewEventProducer(brokers []string, topic string, metrics *kprom.Metrics, logger *zap.Logger) (*EventProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.WithHooks(metrics),
	)
	if err != nil {
		return nil, err
	}
	return &EventProducer{client: client, topic: topic, logger: logger}, nil
}

func EncodeEvent(event models.PaymentEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "method", Value: []byte(event.Method)},
		},
	}, nil
}

// Publish blocks until the event is acknowledged by the brokers.
func (p *EventProducer) Publish(ctx context.Context, event models.PaymentEvent) error {
	record, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return err
	}
	p.logger.Debug("payment event published",
		zap.String("topic", p.topic),
		zap.String("request_number", event.RequestNumber),
	)
	return nil
}

func (p *EventProducer) Close() {
	p.client.Close()
}
