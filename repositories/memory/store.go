// Package memory is a thread-safe in-memory store used for local runs and tests.
package memory

import (
	// Go Internal Packages
	"context"
	"sort"
	"sync"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
)

type Store struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	transactions map[string]*models.Transaction
	gatewayIndex map[string]string // gateway id -> request number
	settings     map[string]string
	applied      map[string]bool // request numbers whose effect was written
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*models.User),
		transactions: make(map[string]*models.Transaction),
		gatewayIndex: make(map[string]string),
		settings:     make(map[string]string),
		applied:      make(map[string]bool),
	}
}

// PutUser creates or replaces a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) PutSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[key], nil
}

func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, errors.ErrUserNotFound
	}
	return *u, nil
}

// ReserveBalance debits amount only when the balance covers it.
func (s *Store) ReserveBalance(_ context.Context, userID string, amount models.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.ErrUserNotFound
	}
	if u.Balance < amount {
		return errors.ErrInsufficientFunds
	}
	u.Balance -= amount
	return nil
}

func (s *Store) ReleaseBalance(_ context.Context, userID string, amount models.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return errors.ErrUserNotFound
	}
	u.Balance += amount
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !tx.Method.Valid() || !tx.Status.Valid() {
		return errors.E(errors.Invalid, "unknown method or status", nil)
	}
	if _, ok := s.transactions[tx.RequestNumber]; ok {
		return errors.E(errors.Conflict, "duplicate request number", nil)
	}
	s.transactions[tx.RequestNumber] = &tx
	if tx.GatewayID != "" {
		s.gatewayIndex[tx.GatewayID] = tx.RequestNumber
	}
	return nil
}

// AttachGatewayID records the provider id of a transaction that was stored without one.
func (s *Store) AttachGatewayID(_ context.Context, requestNumber, gatewayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestNumber]
	if !ok {
		return errors.ErrTransactionNotFound
	}
	if tx.GatewayID == gatewayID {
		return nil
	}
	if tx.GatewayID != "" {
		return errors.E(errors.Conflict, "transaction already has a gateway id", nil)
	}
	if _, taken := s.gatewayIndex[gatewayID]; taken {
		return errors.E(errors.Conflict, "duplicate gateway id", nil)
	}
	tx.GatewayID = gatewayID
	s.gatewayIndex[gatewayID] = requestNumber
	return nil
}

func (s *Store) GetTransaction(_ context.Context, requestNumber string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[requestNumber]
	if !ok {
		return models.Transaction{}, errors.ErrTransactionNotFound
	}
	return *tx, nil
}

func (s *Store) GetTransactionByGatewayID(ctx context.Context, gatewayID string) (models.Transaction, error) {
	s.mu.RLock()
	rn, ok := s.gatewayIndex[gatewayID]
	s.mu.RUnlock()
	if !ok {
		return models.Transaction{}, errors.ErrTransactionNotFound
	}
	return s.GetTransaction(ctx, rn)
}

// ListTransactions returns the user's transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, *tx)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SettleTransaction moves a PENDING transaction to status. The bool is false when the
// transaction was already terminal, in which case the stored state is returned unchanged.
func (s *Store) SettleTransaction(_ context.Context, requestNumber string, status models.Status, at time.Time) (models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestNumber]
	if !ok {
		return models.Transaction{}, false, errors.ErrTransactionNotFound
	}
	if !tx.Status.CanTransition(status) {
		return *tx, false, nil
	}
	tx.Status = status
	tx.Processed = true
	tx.UpdatedAt = at
	return *tx, true, nil
}

// ApplyEffect writes the balance effect of a settled transaction exactly once.
func (s *Store) ApplyEffect(_ context.Context, requestNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[requestNumber]
	if !ok {
		return false, errors.ErrTransactionNotFound
	}
	if !tx.Processed || tx.EffectApplied || s.applied[requestNumber] {
		return false, nil
	}
	if effect := tx.BalanceEffect(); effect != 0 {
		u, ok := s.users[tx.UserID]
		if !ok {
			return false, errors.ErrUserNotFound
		}
		u.Balance += effect
	}
	tx.EffectApplied = true
	s.applied[requestNumber] = true
	return true, nil
}

func (s *Store) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	return s.filter(limit, func(tx *models.Transaction) bool {
		return tx.Status == models.StatusPending && tx.CreatedAt.Before(before)
	}), nil
}

func (s *Store) ListUnapplied(_ context.Context, limit int) ([]models.Transaction, error) {
	return s.filter(limit, func(tx *models.Transaction) bool {
		return tx.Processed && !tx.EffectApplied
	}), nil
}

func (s *Store) filter(limit int, keep func(*models.Transaction) bool) []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if keep(tx) {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(txs []models.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
}
