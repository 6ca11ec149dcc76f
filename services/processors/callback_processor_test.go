package processors

import (
	// Go Internal Packages
	"context"
	"testing"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
	webhooks "payflow/services/webhooks"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedHandler map[string]error

func (h scriptedHandler) HandleCallback(_ context.Context, body []byte) (webhooks.Outcome, error) {
	if err := h[string(body)]; err != nil {
		return "", err
	}
	return webhooks.OutcomeApplied, nil
}

type recordingDLQ struct {
	records []models.Record
}

func (d *recordingDLQ) Send(_ context.Context, _ string, records []models.Record) error {
	d.records = append(d.records, records...)
	return nil
}

func TestProcessRecordsParksRejected(t *testing.T) {
	h := scriptedHandler{"bad": errors.InvalidBodyErr(errors.New("not json"))}
	dlq := &recordingDLQ{}
	p := NewCallbackProcessor(zap.NewNop(), h, dlq)

	err := p.ProcessRecords(context.Background(), []models.Record{
		{Key: []byte("1"), Value: []byte("good")},
		{Key: []byte("2"), Value: []byte("bad")},
	})
	require.NoError(t, err)
	require.Len(t, dlq.records, 1)
	assert.Equal(t, []byte("2"), dlq.records[0].Key)
}

func TestProcessRecordsStopsOnRetryable(t *testing.T) {
	h := scriptedHandler{"flaky": errors.StorageErr("settle", errors.New("timeout"))}
	dlq := &recordingDLQ{}
	p := NewCallbackProcessor(zap.NewNop(), h, dlq)

	err := p.ProcessRecords(context.Background(), []models.Record{
		{Key: []byte("1"), Value: []byte("flaky")},
		{Key: []byte("2"), Value: []byte("good")},
	})
	assert.Error(t, err)
	assert.Empty(t, dlq.records)
}

func TestProcessRecordsEmpty(t *testing.T) {
	p := NewCallbackProcessor(zap.NewNop(), scriptedHandler{}, nil)
	assert.NoError(t, p.ProcessRecords(context.Background(), nil))
}
