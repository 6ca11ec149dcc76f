package kafka

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"
	"time"

	// Local Packages
	models "payflow/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

const retryBackoff = 2 * time.Second

type ConsumerConfig struct {
	Brokers        []string
	Name           string
	Topic          string
	RecordsPerPoll int
}

type Consumer struct {
	Client    *kgo.Client
	Config    *ConsumerConfig
	Processor CallbackProcessor
	Logger    *zap.Logger
}

type CallbackProcessor interface {
	ProcessRecords(ctx context.Context, records []models.Record) error
}

// NewCallbackConsumer creates a consumer for gateway callbacks relayed onto a topic
// (PS: Must call Poll to start consuming the records)
func NewCallbackConsumer(conf *ConsumerConfig, processor CallbackProcessor, metrics *kprom.Metrics, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{Config: conf, Processor: processor, Logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...), // Connects to Kafka brokers
		kgo.ConsumerGroup(conf.Name),     // Specifies the consumer group
		kgo.ConsumeTopics(conf.Topic),    // Specifies a single topic to consume
		kgo.WithHooks(metrics),           // Attaches monitoring hooks
		kgo.DisableAutoCommit(),          // Disables auto-commit
		kgo.BlockRebalanceOnPoll(),       // Blocks rebalancing until the poll loop is running
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	c.Client = client
	return c, nil
}

// Poll polls for records from the Kafka broker. A batch whose processing fails with a
// retryable error is retried until it succeeds or ctx is canceled; offsets are committed
// only after the whole batch went through.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.Client.Close()

	consumerName := c.Config.Name
	recordsPerPoll := c.Config.RecordsPerPoll

	for {
		if ctx.Err() != nil {
			c.Logger.Warn("Polling stopped: context canceled")
			return ctx.Err()
		}

		c.Logger.Debug(fmt.Sprintf("%s: polling for records", consumerName))
		fetches := c.Client.PollRecords(ctx, recordsPerPoll)

		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return errors.New("context got canceled")
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.Logger.Error("fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		records := make([]models.Record, len(fetches.Records()))
		for idx, record := range fetches.Records() {
			records[idx] = models.Record{
				Key:   record.Key,
				Value: record.Value,
				Topic: record.Topic,
			}
		}

		if err := c.processWithRetry(ctx, records); err != nil {
			c.Client.AllowRebalance()
			return err
		}

		if err := c.Client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.Logger.Error("Failed to commit records", zap.Error(err))
		}
		c.Client.AllowRebalance()
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, records []models.Record) error {
	for {
		err := c.Processor.ProcessRecords(ctx, records)
		if err == nil {
			return nil
		}
		c.Logger.Error("Failed to process records, retrying", zap.Error(err), zap.Duration("backoff", retryBackoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
}
