package payments

import (
	// Go Internal Packages
	"context"
	"strings"
	"time"

	// Local Packages
	errors "payflow/errors"
	gateway "payflow/gateway"
	models "payflow/models"

	// External Packages
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TxRepository interface {
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	AttachGatewayID(ctx context.Context, requestNumber, gatewayID string) error
	GetTransaction(ctx context.Context, requestNumber string) (models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

type Ledger interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ReserveBalance(ctx context.Context, userID string, amount models.Amount) error
	ReleaseBalance(ctx context.Context, userID string, amount models.Amount) error
}

type Gateway interface {
	CreatePixCharge(ctx context.Context, req gateway.ChargeRequest) (gateway.Charge, error)
	CreateBoletoCharge(ctx context.Context, req gateway.ChargeRequest) (gateway.Charge, error)
	CreatePayout(ctx context.Context, req gateway.PayoutRequest) (gateway.Payout, error)
}

type Settler interface {
	Settle(ctx context.Context, requestNumber string, status models.Status) (models.Transaction, bool, error)
}

type Limits struct {
	Min         models.Amount
	Max         models.Amount
	CallbackURL string
}

type DepositRequest struct {
	UserID  string
	Amount  models.Amount
	Method  models.Method
	DueDate *time.Time
	Client  models.ClientInfo
}

type WithdrawalRequest struct {
	UserID string
	Amount models.Amount
	PixKey string
}

// Tracker originates deposits and withdrawals. A deposit is persisted only after the gateway
// has accepted it. A withdrawal is persisted before its payout is submitted, so every balance
// hold is backed by a PENDING record the sweeper can resolve.
type Tracker struct {
	Logger  *zap.Logger
	TxRepo  TxRepository
	Ledger  Ledger
	Gateway Gateway
	Settler Settler
	Limits  Limits
	Now     func() time.Time
	NewID   func() string
}

func NewTracker(logger *zap.Logger, txRepo TxRepository, ledger Ledger, gw Gateway, settler Settler, limits Limits) *Tracker {
	return &Tracker{
		Logger:  logger,
		TxRepo:  txRepo,
		Ledger:  ledger,
		Gateway: gw,
		Settler: settler,
		Limits:  limits,
		Now:     time.Now,
		NewID:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func (t *Tracker) validateAmount(ve *errors.ValidationErrors, amount models.Amount) {
	if amount < t.Limits.Min {
		ve.Add("amount", "must be at least "+t.Limits.Min.String())
	}
	if amount > t.Limits.Max {
		ve.Add("amount", "must be at most "+t.Limits.Max.String())
	}
}

// CreateDeposit asks the gateway for a PIX or boleto charge and records it as PENDING.
func (t *Tracker) CreateDeposit(ctx context.Context, req DepositRequest) (models.Transaction, error) {
	ve := errors.ValidationErrs()
	t.validateAmount(ve, req.Amount)
	if strings.TrimSpace(req.Client.Name) == "" {
		ve.Add("client.name", "cannot be empty")
	}
	if req.Method != models.MethodPix && req.Method != models.MethodBoleto {
		ve.Add("method", "unsupported deposit method")
	}
	now := t.Now().UTC()
	if req.DueDate != nil && req.DueDate.Before(now.Truncate(24*time.Hour)) {
		ve.Add("dueDate", "cannot be in the past")
	}
	if err := ve.Err(); err != nil {
		return models.Transaction{}, errors.ValidationFailedErr(err)
	}

	if _, err := t.user(ctx, req.UserID); err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		RequestNumber: "DEP" + t.NewID(),
		UserID:        req.UserID,
		Method:        req.Method,
		Amount:        req.Amount,
		Status:        models.StatusPending,
		DueDate:       req.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	logger := t.Logger.With(
		zap.String("request_number", tx.RequestNumber),
		zap.String("user_id", tx.UserID),
		zap.String("method", string(tx.Method)),
		zap.Stringer("amount", tx.Amount),
	)

	chargeReq := gateway.ChargeRequest{
		RequestNumber: tx.RequestNumber,
		Amount:        tx.Amount,
		DueDate:       req.DueDate,
		Client:        req.Client,
		CallbackURL:   t.Limits.CallbackURL,
	}
	var (
		charge gateway.Charge
		err    error
	)
	if req.Method == models.MethodBoleto {
		charge, err = t.Gateway.CreateBoletoCharge(ctx, chargeReq)
	} else {
		charge, err = t.Gateway.CreatePixCharge(ctx, chargeReq)
	}
	if err != nil {
		logger.Warn("gateway rejected deposit", zap.Error(err))
		return models.Transaction{}, err
	}

	tx.GatewayID = charge.GatewayID
	tx.QRCode = charge.QRCode
	tx.QRCodeImage = charge.QRCodeImage
	tx.Barcode = charge.Barcode
	tx.DigitableLine = charge.DigitableLine

	if err := t.TxRepo.InsertTransaction(ctx, tx); err != nil {
		logger.Error("gateway accepted deposit but it could not be stored",
			zap.String("gateway_id", tx.GatewayID), zap.Error(err))
		return models.Transaction{}, errors.StorageErr("insert deposit", err)
	}
	logger.Info("deposit created", zap.String("gateway_id", tx.GatewayID))
	return tx, nil
}

// CreateWithdrawal holds the amount against the user's balance, records the withdrawal as
// PENDING and submits the payout. A payout the gateway refused settles as FAILED, which
// returns the hold. Any other payout failure leaves the hold and the PENDING record for the
// sweeper, since the gateway may have executed it.
func (t *Tracker) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (models.Transaction, error) {
	ve := errors.ValidationErrs()
	t.validateAmount(ve, req.Amount)
	if err := ve.Err(); err != nil {
		return models.Transaction{}, errors.ValidationFailedErr(err)
	}

	user, err := t.user(ctx, req.UserID)
	if err != nil {
		return models.Transaction{}, err
	}
	pixKey := strings.TrimSpace(req.PixKey)
	if pixKey == "" {
		pixKey = user.PixKey
	}
	if pixKey == "" {
		return models.Transaction{}, errors.EmptyParamErr("pixKey")
	}

	err = t.Ledger.ReserveBalance(ctx, req.UserID, req.Amount)
	switch {
	case errors.Is(err, errors.ErrInsufficientFunds):
		return models.Transaction{}, errors.InsufficientBalanceErr()
	case errors.Is(err, errors.ErrUserNotFound):
		return models.Transaction{}, errors.NotFoundErr("user", err)
	case err != nil:
		return models.Transaction{}, errors.StorageErr("reserve balance", err)
	}

	now := t.Now().UTC()
	tx := models.Transaction{
		RequestNumber: "WIT" + t.NewID(),
		UserID:        req.UserID,
		Method:        models.MethodWithdraw,
		Amount:        req.Amount,
		Status:        models.StatusPending,
		PixKey:        pixKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	logger := t.Logger.With(
		zap.String("request_number", tx.RequestNumber),
		zap.String("user_id", tx.UserID),
		zap.Stringer("amount", tx.Amount),
	)

	// The request context may be gone by the time the hold has to be settled.
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := t.TxRepo.InsertTransaction(ctx, tx); err != nil {
		logger.Error("cannot store withdrawal, releasing hold", zap.Error(err))
		if relErr := t.Ledger.ReleaseBalance(bgCtx, req.UserID, req.Amount); relErr != nil {
			logger.Error("cannot release withdrawal hold", zap.Error(relErr))
		}
		return models.Transaction{}, errors.StorageErr("insert withdrawal", err)
	}

	payout, err := t.Gateway.CreatePayout(ctx, gateway.PayoutRequest{
		RequestNumber: tx.RequestNumber,
		Amount:        tx.Amount,
		PixKey:        pixKey,
		CallbackURL:   t.Limits.CallbackURL,
	})
	switch {
	case errors.Is(err, errors.ErrGatewayRejected):
		logger.Warn("gateway rejected withdrawal", zap.Error(err))
		if _, _, setErr := t.Settler.Settle(bgCtx, tx.RequestNumber, models.StatusFailed); setErr != nil {
			logger.Error("cannot fail rejected withdrawal, left for the sweeper", zap.Error(setErr))
		}
		return models.Transaction{}, err
	case err != nil:
		logger.Error("withdrawal outcome unknown, hold kept until reconciled", zap.Error(err))
		return models.Transaction{}, errors.E(errors.Unavailable,
			"withdrawal submitted but not confirmed, it will be reconciled", err)
	}

	tx.GatewayID = payout.GatewayID
	if err := t.TxRepo.AttachGatewayID(bgCtx, tx.RequestNumber, tx.GatewayID); err != nil {
		logger.Error("cannot store payout gateway id, reconciling by request number",
			zap.String("gateway_id", tx.GatewayID), zap.Error(err))
	}
	logger.Info("withdrawal created", zap.String("gateway_id", tx.GatewayID))
	return tx, nil
}

// Transaction returns one of the user's transactions. Other users' transactions are
// reported as not found.
func (t *Tracker) Transaction(ctx context.Context, userID, requestNumber string) (models.Transaction, error) {
	tx, err := t.TxRepo.GetTransaction(ctx, requestNumber)
	if errors.Is(err, errors.ErrTransactionNotFound) || (err == nil && tx.UserID != userID) {
		return models.Transaction{}, errors.NotFoundErr("transaction", err)
	}
	if err != nil {
		return models.Transaction{}, errors.StorageErr("get transaction", err)
	}
	return tx, nil
}

func (t *Tracker) Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	txs, err := t.TxRepo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, errors.StorageErr("list transactions", err)
	}
	return txs, nil
}

func (t *Tracker) User(ctx context.Context, userID string) (models.User, error) {
	return t.user(ctx, userID)
}

func (t *Tracker) user(ctx context.Context, userID string) (models.User, error) {
	u, err := t.Ledger.GetUser(ctx, userID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return models.User{}, errors.NotFoundErr("user", err)
	}
	if err != nil {
		return models.User{}, errors.StorageErr("get user", err)
	}
	return u, nil
}
