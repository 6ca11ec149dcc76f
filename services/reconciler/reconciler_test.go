package reconciler

import (
	// Go Internal Packages
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
	memory "payflow/repositories/memory"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e models.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fixedStatus struct {
	status models.Status
	calls  int
}

func (f *fixedStatus) TransactionStatus(context.Context, models.Method, string) (models.Status, error) {
	f.calls++
	return f.status, nil
}

var epoch = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, balance models.Amount, txs ...models.Transaction) (*memory.Store, *Reconciler, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore()
	store.PutUser(models.User{ID: "u1", Balance: balance})
	for _, tx := range txs {
		require.NoError(t, store.InsertTransaction(context.Background(), tx))
	}
	pub := &recordingPublisher{}
	r := NewReconciler(zap.NewNop(), store, store, pub)
	r.Now = func() time.Time { return epoch }
	return store, r, pub
}

func pendingTx(rn string, method models.Method, amount models.Amount) models.Transaction {
	return models.Transaction{
		RequestNumber: rn,
		UserID:        "u1",
		GatewayID:     "g-" + rn,
		Method:        method,
		Amount:        amount,
		Status:        models.StatusPending,
		CreatedAt:     epoch.Add(-time.Hour),
		UpdatedAt:     epoch.Add(-time.Hour),
	}
}

func balanceOf(t *testing.T, s *memory.Store) models.Amount {
	t.Helper()
	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	return u.Balance
}

func TestSettleDepositCreditsOnce(t *testing.T) {
	store, r, pub := setup(t, 0, pendingTx("r1", models.MethodPix, 10000))

	tx, flipped, err := r.Settle(context.Background(), "r1", models.StatusPaidOut)
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.Equal(t, models.StatusPaidOut, tx.Status)
	assert.Equal(t, epoch, tx.UpdatedAt)

	_, flipped, err = r.Settle(context.Background(), "r1", models.StatusPaidOut)
	require.NoError(t, err)
	assert.False(t, flipped)

	assert.Equal(t, models.Amount(10000), balanceOf(t, store))
	assert.Equal(t, 1, pub.count())
}

func TestSettleConcurrentCallbacks(t *testing.T) {
	store, r, pub := setup(t, 500, pendingTx("r1", models.MethodPix, 10000))

	var wg sync.WaitGroup
	flips := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, flipped, err := r.Settle(context.Background(), "r1", models.StatusPaidOut)
			assert.NoError(t, err)
			flips <- flipped
		}()
	}
	wg.Wait()
	close(flips)

	n := 0
	for f := range flips {
		if f {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, models.Amount(10500), balanceOf(t, store))
	assert.Equal(t, 1, pub.count())
}

func TestSettleWithdrawal(t *testing.T) {
	// The hold was taken at creation, so the stored balance already excludes the amount.
	store, r, _ := setup(t, 4000,
		pendingTx("paid", models.MethodWithdraw, 6000),
		pendingTx("failed", models.MethodWithdraw, 3000),
	)

	_, _, err := r.Settle(context.Background(), "paid", models.StatusPaidOut)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(4000), balanceOf(t, store))

	_, _, err = r.Settle(context.Background(), "failed", models.StatusFailed)
	require.NoError(t, err)
	_, _, err = r.Settle(context.Background(), "failed", models.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(7000), balanceOf(t, store))
}

func TestSettleRejects(t *testing.T) {
	_, r, _ := setup(t, 0)

	_, _, err := r.Settle(context.Background(), "r1", models.StatusPending)
	assert.True(t, errors.IsKind(errors.Invalid, err))

	_, _, err = r.Settle(context.Background(), "missing", models.StatusPaidOut)
	assert.True(t, errors.IsKind(errors.NotFound, err))
}

func TestSweeperRecoversStalePending(t *testing.T) {
	fresh := pendingTx("fresh", models.MethodPix, 2000)
	fresh.CreatedAt = epoch
	store, r, _ := setup(t, 0, pendingTx("stale", models.MethodPix, 5000), fresh)

	gw := &fixedStatus{status: models.StatusPaidOut}
	sw := NewSweeper(SweeperConfig{Interval: time.Minute, StaleAfter: 2 * time.Minute, BatchSize: 10}, r, gw, zap.NewNop())

	res := sw.Sweep(context.Background())
	assert.Equal(t, 1, res.Settled)
	assert.Equal(t, 1, gw.calls)
	assert.Equal(t, models.Amount(5000), balanceOf(t, store))

	res = sw.Sweep(context.Background())
	assert.Zero(t, res.Settled)
	assert.Equal(t, models.Amount(5000), balanceOf(t, store))
}

func TestSweeperAppliesUnappliedEffects(t *testing.T) {
	store, r, pub := setup(t, 0, pendingTx("r1", models.MethodPix, 1500))

	// Status flipped but the process died before the balance write.
	_, flipped, err := store.SettleTransaction(context.Background(), "r1", models.StatusPaidOut, epoch)
	require.NoError(t, err)
	require.True(t, flipped)

	sw := NewSweeper(SweeperConfig{Interval: time.Minute, StaleAfter: time.Minute, BatchSize: 10}, r, nil, zap.NewNop())
	res := sw.Sweep(context.Background())
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, models.Amount(1500), balanceOf(t, store))
	assert.Equal(t, 1, pub.count())

	res = sw.Sweep(context.Background())
	assert.Zero(t, res.Applied)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	_, r, _ := setup(t, 0)
	sw := NewSweeper(SweeperConfig{Interval: time.Millisecond, StaleAfter: time.Minute, BatchSize: 10}, r, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type statusByRef struct {
	statuses map[string]models.Status
	refs     []string
}

func (s *statusByRef) TransactionStatus(_ context.Context, _ models.Method, ref string) (models.Status, error) {
	s.refs = append(s.refs, ref)
	status, ok := s.statuses[ref]
	if !ok {
		return "", errors.GatewayErr("status", fmt.Errorf("%w: %s", errors.ErrTransactionNotFound, ref))
	}
	return status, nil
}

func TestSweeperResolvesWithdrawalsWithoutGatewayID(t *testing.T) {
	lost := pendingTx("lost", models.MethodWithdraw, 3000)
	lost.GatewayID = ""
	sent := pendingTx("sent", models.MethodWithdraw, 2000)
	sent.GatewayID = ""
	known := pendingTx("known", models.MethodWithdraw, 1000)
	// Holds for all three were taken at creation.
	store, r, _ := setup(t, 4000, lost, sent, known)

	gw := &statusByRef{statuses: map[string]models.Status{"sent": models.StatusPaidOut}}
	sw := NewSweeper(SweeperConfig{Interval: time.Minute, StaleAfter: 2 * time.Minute, BatchSize: 10}, r, gw, zap.NewNop())

	res := sw.Sweep(context.Background())
	assert.Equal(t, 2, res.Settled)
	assert.Equal(t, 1, res.Failed)
	assert.ElementsMatch(t, []string{"lost", "sent", "g-known"}, gw.refs)

	tx, err := store.GetTransaction(context.Background(), "lost")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, tx.Status)
	tx, err = store.GetTransaction(context.Background(), "sent")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaidOut, tx.Status)
	tx, err = store.GetTransaction(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, tx.Status)

	assert.Equal(t, models.Amount(7000), balanceOf(t, store))
}
