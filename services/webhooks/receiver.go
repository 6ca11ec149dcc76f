package webhooks

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

type TxLookup interface {
	GetTransaction(ctx context.Context, requestNumber string) (models.Transaction, error)
	GetTransactionByGatewayID(ctx context.Context, gatewayID string) (models.Transaction, error)
}

type Settler interface {
	Settle(ctx context.Context, requestNumber string, status models.Status) (models.Transaction, bool, error)
}

type Dedupe interface {
	Claim(ctx context.Context, gatewayID, status string) (bool, error)
	Release(ctx context.Context, gatewayID, status string) error
}

// Outcome describes how an accepted callback was handled.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeAlreadyTerminal Outcome = "already_terminal"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeUnknown         Outcome = "unknown_transaction"
	OutcomeStillPending    Outcome = "pending"
)

type Receiver struct {
	Logger  *zap.Logger
	Txs     TxLookup
	Settler Settler
	Dedupe  Dedupe
}

func NewReceiver(logger *zap.Logger, txs TxLookup, settler Settler, dedupe Dedupe) *Receiver {
	return &Receiver{Logger: logger, Txs: txs, Settler: settler, Dedupe: dedupe}
}

// HandleCallback applies a gateway status notification. A nil error means the sender
// should consider the callback delivered; errors.Retryable tells it whether to resend.
func (r *Receiver) HandleCallback(ctx context.Context, body []byte) (Outcome, error) {
	cb, err := ParseCallback(body)
	if err != nil {
		r.Logger.Warn("rejecting malformed callback", zap.Error(err))
		return "", err
	}
	logger := r.Logger.With(
		zap.String("gateway_id", cb.GatewayID),
		zap.String("status", string(cb.Status)),
	)

	if !cb.Status.IsTerminal() {
		logger.Debug("callback reports a non terminal status")
		return OutcomeStillPending, nil
	}

	claimed := false
	if r.Dedupe != nil {
		ok, err := r.Dedupe.Claim(ctx, cb.GatewayID, string(cb.Status))
		if err != nil {
			logger.Warn("callback dedupe unavailable", zap.Error(err))
		} else if !ok {
			logger.Info("duplicate callback acknowledged")
			return OutcomeDuplicate, nil
		} else {
			claimed = true
		}
	}

	outcome, err := r.apply(ctx, logger, cb)
	if err != nil && claimed {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if relErr := r.Dedupe.Release(releaseCtx, cb.GatewayID, string(cb.Status)); relErr != nil {
			logger.Warn("cannot release callback claim", zap.Error(relErr))
		}
	}
	return outcome, err
}

func (r *Receiver) apply(ctx context.Context, logger *zap.Logger, cb Callback) (Outcome, error) {
	tx, err := r.lookup(ctx, cb)
	if errors.Is(err, errors.ErrTransactionNotFound) {
		logger.Warn("callback for unknown transaction acknowledged")
		return OutcomeUnknown, nil
	}
	if err != nil {
		logger.Error("callback lookup failed", zap.Error(err))
		return "", errors.StorageErr("lookup transaction", err)
	}
	logger = logger.With(zap.String("request_number", tx.RequestNumber))

	if cb.Amount != nil && *cb.Amount != tx.Amount {
		logger.Warn("callback amount does not match transaction",
			zap.Stringer("callback_amount", *cb.Amount),
			zap.Stringer("amount", tx.Amount),
		)
		return "", errors.E(errors.Invalid, "amount mismatch", nil)
	}

	if tx.Status.IsTerminal() && tx.EffectApplied {
		logger.Info("callback for terminal transaction acknowledged")
		return OutcomeAlreadyTerminal, nil
	}

	_, flipped, err := r.Settler.Settle(ctx, tx.RequestNumber, cb.Status)
	if err != nil {
		logger.Error("cannot settle transaction from callback", zap.Error(err))
		return "", err
	}
	if !flipped {
		return OutcomeAlreadyTerminal, nil
	}
	return OutcomeApplied, nil
}

// lookup prefers the gateway id; the request number is accepted only when it agrees.
func (r *Receiver) lookup(ctx context.Context, cb Callback) (models.Transaction, error) {
	tx, err := r.Txs.GetTransactionByGatewayID(ctx, cb.GatewayID)
	if !errors.Is(err, errors.ErrTransactionNotFound) || cb.RequestNumber == "" {
		return tx, err
	}
	tx, err = r.Txs.GetTransaction(ctx, cb.RequestNumber)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.GatewayID != "" && tx.GatewayID != cb.GatewayID {
		return models.Transaction{}, errors.ErrTransactionNotFound
	}
	return tx, nil
}
