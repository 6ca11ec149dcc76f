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

// StatusSource looks a transaction up at the provider by its gateway id, or by request
// number for one stored before the provider answered.
type StatusSource interface {
	TransactionStatus(ctx context.Context, method models.Method, ref string) (models.Status, error)
}

type SweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Sweeper catches what callbacks missed: effects left unapplied, and PENDING transactions
// the gateway has settled without notifying us. A PENDING withdrawal the gateway has no
// record of never reached it and is failed, which returns its hold.
type Sweeper struct {
	conf       SweeperConfig
	reconciler *Reconciler
	gateway    StatusSource
	logger     *zap.Logger
}

func NewSweeper(conf SweeperConfig, reconciler *Reconciler, gateway StatusSource, logger *zap.Logger) *Sweeper {
	return &Sweeper{conf: conf, reconciler: reconciler, gateway: gateway, logger: logger}
}

// Run sweeps on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.conf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

type SweepResult struct {
	Applied int
	Settled int
	Failed  int
}

func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	unapplied, err := s.reconciler.TxRepo.ListUnapplied(ctx, s.conf.BatchSize)
	if err != nil {
		s.logger.Error("sweeper: listing unapplied transactions", zap.Error(err))
	}
	for _, tx := range unapplied {
		if err := s.reconciler.ApplyPayment(ctx, tx.RequestNumber); err != nil {
			s.logger.Error("sweeper: apply payment", zap.String("request_number", tx.RequestNumber), zap.Error(err))
			res.Failed++
			continue
		}
		res.Applied++
	}

	if s.gateway == nil {
		return res
	}

	cutoff := s.reconciler.Now().Add(-s.conf.StaleAfter)
	pending, err := s.reconciler.TxRepo.ListPendingBefore(ctx, cutoff, s.conf.BatchSize)
	if err != nil {
		s.logger.Error("sweeper: listing stale pending transactions", zap.Error(err))
		return res
	}
	for _, tx := range pending {
		if ctx.Err() != nil {
			return res
		}
		ref := tx.GatewayID
		if ref == "" {
			ref = tx.RequestNumber
		}
		status, err := s.gateway.TransactionStatus(ctx, tx.Method, ref)
		if tx.GatewayID == "" && errors.Is(err, errors.ErrTransactionNotFound) {
			s.logger.Info("sweeper: gateway has no record of transaction", zap.String("request_number", tx.RequestNumber))
			status, err = models.StatusFailed, nil
		}
		if err != nil {
			s.logger.Warn("sweeper: gateway status", zap.String("request_number", tx.RequestNumber), zap.Error(err))
			res.Failed++
			continue
		}
		if !status.IsTerminal() {
			continue
		}
		if _, flipped, err := s.reconciler.Settle(ctx, tx.RequestNumber, status); err != nil {
			s.logger.Error("sweeper: settle", zap.String("request_number", tx.RequestNumber), zap.Error(err))
			res.Failed++
		} else if flipped {
			s.logger.Info("sweeper: recovered settlement",
				zap.String("request_number", tx.RequestNumber),
				zap.String("status", string(status)),
			)
			res.Settled++
		}
	}

	if res.Applied+res.Settled+res.Failed > 0 {
		s.logger.Info("sweep finished",
			zap.Int("applied", res.Applied),
			zap.Int("settled", res.Settled),
			zap.Int("failed", res.Failed),
		)
	}
	return res
}
