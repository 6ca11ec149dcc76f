package reconciler

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"go.uber.org/zap"
)

type TxRepository interface {
	GetTransaction(ctx context.Context, requestNumber string) (models.Transaction, error)
	SettleTransaction(ctx context.Context, requestNumber string, status models.Status, at time.Time) (models.Transaction, bool, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error)
	ListUnapplied(ctx context.Context, limit int) ([]models.Transaction, error)
}

type Ledger interface {
	ApplyEffect(ctx context.Context, requestNumber string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
}

// Reconciler is the only component that moves balances for payment reasons.
type Reconciler struct {
	Logger *zap.Logger
	TxRepo TxRepository
	Ledger Ledger
	Events EventPublisher
	Now    func() time.Time
}

func NewReconciler(logger *zap.Logger, txRepo TxRepository, ledger Ledger, events EventPublisher) *Reconciler {
	return &Reconciler{Logger: logger, TxRepo: txRepo, Ledger: ledger, Events: events, Now: time.Now}
}

// Settle moves a PENDING transaction to a terminal status and applies its balance effect.
// The bool reports whether this call performed the transition; a transaction that was
// already terminal is returned as stored.
func (r *Reconciler) Settle(ctx context.Context, requestNumber string, status models.Status) (models.Transaction, bool, error) {
	if !status.IsTerminal() {
		return models.Transaction{}, false, errors.E(errors.Invalid, "status is not terminal", nil)
	}

	tx, flipped, err := r.TxRepo.SettleTransaction(ctx, requestNumber, status, r.Now().UTC())
	if errors.Is(err, errors.ErrTransactionNotFound) {
		return models.Transaction{}, false, errors.NotFoundErr("transaction", err)
	}
	if err != nil {
		return models.Transaction{}, false, errors.StorageErr("settle transaction", err)
	}

	logger := r.Logger.With(
		zap.String("request_number", tx.RequestNumber),
		zap.String("user_id", tx.UserID),
		zap.String("status", string(tx.Status)),
	)
	if flipped {
		logger.Info("transaction settled")
	} else {
		logger.Debug("transaction already terminal", zap.String("requested_status", string(status)))
	}

	// Finishes an effect left unapplied by an earlier attempt.
	if tx.Processed && !tx.EffectApplied {
		if err := r.ApplyPayment(ctx, tx.RequestNumber); err != nil {
			return tx, flipped, err
		}
		tx.EffectApplied = true
	}
	return tx, flipped, nil
}

// ApplyPayment writes the balance effect of a settled transaction exactly once and
// publishes a settlement event for the call that wrote it.
func (r *Reconciler) ApplyPayment(ctx context.Context, requestNumber string) error {
	applied, err := r.Ledger.ApplyEffect(ctx, requestNumber)
	if errors.Is(err, errors.ErrTransactionNotFound) || errors.Is(err, errors.ErrUserNotFound) {
		return errors.NotFoundErr("transaction owner", err)
	}
	if err != nil {
		return errors.StorageErr("apply payment", err)
	}
	if !applied {
		return nil
	}

	tx, err := r.TxRepo.GetTransaction(ctx, requestNumber)
	if err != nil {
		r.Logger.Warn("cannot load settled transaction for event", zap.String("request_number", requestNumber), zap.Error(err))
		return nil
	}
	r.Logger.Info("balance effect applied",
		zap.String("request_number", requestNumber),
		zap.String("user_id", tx.UserID),
		zap.Stringer("effect", tx.BalanceEffect()),
	)
	if r.Events == nil {
		return nil
	}
	if err := r.Events.Publish(ctx, models.NewPaymentEvent(tx)); err != nil {
		r.Logger.Error("cannot publish payment event", zap.String("request_number", requestNumber), zap.Error(err))
	}
	return nil
}
