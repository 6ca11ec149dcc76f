package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"time"

	// Local Packages
	models "payflow/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type DeadLetterQueue struct {
	client   *redis.Client
	logger   *zap.Logger
	listName string
}

type deadLetter struct {
	models.Record
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, logger: logger, listName: "failed-callbacks"}
}

// Send pushes callback records that can never be processed onto the dead-letter list
// so an operator can inspect them.
func (r *DeadLetterQueue) Send(ctx context.Context, reason string, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	successCount := 0
	var lastErr error
	for _, record := range records {
		jsonData, err := json.Marshal(deadLetter{Record: record, Reason: reason, FailedAt: time.Now().UTC()})
		if err != nil {
			r.logger.Error("failed to marshal record", zap.Error(err))
			continue
		}

		if err = r.client.LPush(ctx, r.listName, jsonData).Err(); err != nil {
			r.logger.Error("failed to store record", zap.String("key", string(record.Key)), zap.Error(err))
			lastErr = err
			continue
		}
		successCount++
	}

	if successCount > 0 {
		r.logger.Info("sent records to dead-letter queue", zap.Int("count", successCount))
	}
	if lastErr != nil {
		return fmt.Errorf("dead-letter queue: %w", lastErr)
	}
	return nil
}

// Len reports how many records are waiting in the dead-letter list.
func (r *DeadLetterQueue) Len(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.listName).Result()
}
