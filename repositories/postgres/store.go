package postgres

import (
	// Go Internal Packages
	"context"
	"database/sql"
	"fmt"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"github.com/lib/pq"
)

const txColumns = `request_number, user_id, COALESCE(gateway_id, ''), method, amount, status,
	qr_code, qr_code_image, barcode, digitable_line, pix_key, due_date,
	processed, effect_applied, created_at, updated_at`

// Store implements the transaction, ledger and settings repositories on PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		tx  models.Transaction
		due sql.NullTime
	)
	err := row.Scan(&tx.RequestNumber, &tx.UserID, &tx.GatewayID, &tx.Method, &tx.Amount, &tx.Status,
		&tx.QRCode, &tx.QRCodeImage, &tx.Barcode, &tx.DigitableLine, &tx.PixKey, &due,
		&tx.Processed, &tx.EffectApplied, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, errors.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if !tx.Method.Valid() || !tx.Status.Valid() {
		return models.Transaction{}, fmt.Errorf("transaction %s has method %q status %q", tx.RequestNumber, tx.Method, tx.Status)
	}
	if due.Valid {
		t := due.Time
		tx.DueDate = &t
	}
	return tx, nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	var gatewayID sql.NullString
	if tx.GatewayID != "" {
		gatewayID = sql.NullString{String: tx.GatewayID, Valid: true}
	}
	var due sql.NullTime
	if tx.DueDate != nil {
		due = sql.NullTime{Time: *tx.DueDate, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (request_number, user_id, gateway_id, method, amount, status,
			qr_code, qr_code_image, barcode, digitable_line, pix_key, due_date,
			processed, effect_applied, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		tx.RequestNumber, tx.UserID, gatewayID, tx.Method, tx.Amount, tx.Status,
		tx.QRCode, tx.QRCodeImage, tx.Barcode, tx.DigitableLine, tx.PixKey, due,
		tx.Processed, tx.EffectApplied, tx.CreatedAt, tx.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errors.E(errors.Conflict, "duplicate transaction", err)
	}
	return err
}

// AttachGatewayID records the provider id of a transaction that was stored without one.
func (s *Store) AttachGatewayID(ctx context.Context, requestNumber, gatewayID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET gateway_id = $2
		WHERE request_number = $1 AND (gateway_id IS NULL OR gateway_id = $2)`,
		requestNumber, gatewayID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errors.E(errors.Conflict, "duplicate gateway id", err)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}
	if _, err := s.GetTransaction(ctx, requestNumber); err != nil {
		return err
	}
	return errors.E(errors.Conflict, "transaction already has a gateway id", nil)
}

func (s *Store) GetTransaction(ctx context.Context, requestNumber string) (models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE request_number = $1`, requestNumber)
	return scanTransaction(row)
}

func (s *Store) GetTransactionByGatewayID(ctx context.Context, gatewayID string) (models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE gateway_id = $1`, gatewayID)
	return scanTransaction(row)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
}

// SettleTransaction is a single conditional UPDATE; rows affected decides the race.
func (s *Store) SettleTransaction(ctx context.Context, requestNumber string, status models.Status, at time.Time) (models.Transaction, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE transactions SET status = $2, processed = TRUE, updated_at = $3
		WHERE request_number = $1 AND status = 'PENDING'
		RETURNING `+txColumns, requestNumber, status, at)
	tx, err := scanTransaction(row)
	if err == nil {
		return tx, true, nil
	}
	if !errors.Is(err, errors.ErrTransactionNotFound) {
		return models.Transaction{}, false, err
	}

	current, err := s.GetTransaction(ctx, requestNumber)
	if err != nil {
		return models.Transaction{}, false, err
	}
	return current, false, nil
}

func (s *Store) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	return s.query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at LIMIT $2`, before, limit)
}

func (s *Store) ListUnapplied(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.query(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE processed AND NOT effect_applied
		ORDER BY created_at LIMIT $1`, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, balance, bonus_balance, pix_key, is_admin
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Balance, &u.BonusBalance, &u.PixKey, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, errors.ErrUserNotFound
	}
	return u, err
}

func (s *Store) ReserveBalance(ctx context.Context, userID string, amount models.Amount) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`, userID, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	return errors.ErrInsufficientFunds
}

func (s *Store) ReleaseBalance(ctx context.Context, userID string, amount models.Amount) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET balance = balance + $2 WHERE id = $1`, userID, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// ApplyEffect claims the effect marker and moves the balance in one SQL transaction.
func (s *Store) ApplyEffect(ctx context.Context, requestNumber string) (applied bool, err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	row := sqlTx.QueryRowContext(ctx, `
		UPDATE transactions SET effect_applied = TRUE
		WHERE request_number = $1 AND processed AND NOT effect_applied
		RETURNING `+txColumns, requestNumber)
	tx, err := scanTransaction(row)
	if errors.Is(err, errors.ErrTransactionNotFound) {
		if _, getErr := s.GetTransaction(ctx, requestNumber); getErr != nil {
			return false, getErr
		}
		return false, sqlTx.Rollback()
	}
	if err != nil {
		return false, err
	}

	if effect := tx.BalanceEffect(); effect != 0 {
		res, err := sqlTx.ExecContext(ctx,
			`UPDATE users SET balance = balance + $2 WHERE id = $1`, tx.UserID, effect)
		if err != nil {
			return false, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return false, errors.ErrUserNotFound
		}
	}
	return true, sqlTx.Commit()
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}
