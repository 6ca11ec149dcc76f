package processors

import (
	// Go Internal Packages
	"context"
	"fmt"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
	webhooks "payflow/services/webhooks"

	// External Packages
	"go.uber.org/zap"
)

type CallbackHandler interface {
	HandleCallback(ctx context.Context, body []byte) (webhooks.Outcome, error)
}

type DeadLetterQueue interface {
	Send(ctx context.Context, reason string, records []models.Record) error
}

// CallbackProcessor handles gateway callbacks relayed through Kafka with the same
// receiver the HTTP endpoint uses.
type CallbackProcessor struct {
	Logger  *zap.Logger
	Handler CallbackHandler
	DLQ     DeadLetterQueue
}

func NewCallbackProcessor(logger *zap.Logger, handler CallbackHandler, dlq DeadLetterQueue) *CallbackProcessor {
	return &CallbackProcessor{Logger: logger, Handler: handler, DLQ: dlq}
}

// ProcessRecords returns an error only when a record failed in a way a redelivery can fix;
// records that can never succeed are parked on the dead-letter queue.
func (p *CallbackProcessor) ProcessRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	var dead []models.Record
	for _, record := range records {
		outcome, err := p.Handler.HandleCallback(ctx, record.Value)
		if err == nil {
			p.Logger.Debug("relayed callback processed",
				zap.ByteString("key", record.Key),
				zap.String("outcome", string(outcome)),
			)
			continue
		}
		if errors.Retryable(err) {
			return fmt.Errorf("failed to process callback %s: %w", record.Key, err)
		}
		p.Logger.Warn("relayed callback rejected", zap.ByteString("key", record.Key), zap.Error(err))
		dead = append(dead, record)
	}

	if len(dead) > 0 && p.DLQ != nil {
		if err := p.DLQ.Send(ctx, "rejected callback", dead); err != nil {
			return fmt.Errorf("failed to park rejected callbacks: %w", err)
		}
	}
	return nil
}
