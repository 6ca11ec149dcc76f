package memory

import (
	// Go Internal Packages
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveBalanceConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutUser(models.User{ID: "u1", Balance: 10000})

	var ok, insufficient int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ReserveBalance(ctx, "u1", 3000)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, errors.ErrInsufficientFunds):
				atomic.AddInt32(&insufficient, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, ok)
	assert.EqualValues(t, 17, insufficient)
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(1000), u.Balance)
}

func TestSettleAndApplyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutUser(models.User{ID: "u1"})
	require.NoError(t, s.InsertTransaction(ctx, models.Transaction{
		RequestNumber: "r1", UserID: "u1", GatewayID: "g1",
		Method: models.MethodPix, Amount: 10000, Status: models.StatusPending,
	}))

	tx, flipped, err := s.SettleTransaction(ctx, "r1", models.StatusPaidOut, time.Now())
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.True(t, tx.Processed)

	_, flipped, err = s.SettleTransaction(ctx, "r1", models.StatusFailed, time.Now())
	require.NoError(t, err)
	assert.False(t, flipped)

	applied, err := s.ApplyEffect(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = s.ApplyEffect(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, applied)

	u, _ := s.GetUser(ctx, "u1")
	assert.Equal(t, models.Amount(10000), u.Balance)

	byGateway, err := s.GetTransactionByGatewayID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaidOut, byGateway.Status)
}

func TestUnknownTransaction(t *testing.T) {
	s := NewStore()
	_, _, err := s.SettleTransaction(context.Background(), "nope", models.StatusPaidOut, time.Now())
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
	_, err = s.GetTransactionByGatewayID(context.Background(), "nope")
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	for i, rn := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertTransaction(ctx, models.Transaction{
			RequestNumber: rn, UserID: "u1", Method: models.MethodPix, Amount: 1000,
			Status: models.StatusPending, CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := s.ListTransactions(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].RequestNumber)

	stale, err := s.ListPendingBefore(ctx, now.Add(90*time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	err = s.InsertTransaction(ctx, models.Transaction{RequestNumber: "a", Method: models.MethodPix, Status: models.StatusPending})
	assert.True(t, errors.IsKind(errors.Conflict, err))

	err = s.InsertTransaction(ctx, models.Transaction{RequestNumber: "d", Method: "CRYPTO", Status: models.StatusPending})
	assert.True(t, errors.IsKind(errors.Invalid, err))
	err = s.InsertTransaction(ctx, models.Transaction{RequestNumber: "e", Method: models.MethodPix, Status: "PAID"})
	assert.True(t, errors.IsKind(errors.Invalid, err))
}

func TestAttachGatewayID(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, rn := range []string{"w1", "w2"} {
		require.NoError(t, s.InsertTransaction(ctx, models.Transaction{
			RequestNumber: rn, UserID: "u1", Method: models.MethodWithdraw, Amount: 1000, Status: models.StatusPending,
		}))
	}

	require.NoError(t, s.AttachGatewayID(ctx, "w1", "p-1"))
	require.NoError(t, s.AttachGatewayID(ctx, "w1", "p-1"))
	tx, err := s.GetTransactionByGatewayID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "w1", tx.RequestNumber)

	assert.True(t, errors.IsKind(errors.Conflict, s.AttachGatewayID(ctx, "w1", "p-2")))
	assert.True(t, errors.IsKind(errors.Conflict, s.AttachGatewayID(ctx, "w2", "p-1")))
	assert.ErrorIs(t, s.AttachGatewayID(ctx, "missing", "p-3"), errors.ErrTransactionNotFound)
}
