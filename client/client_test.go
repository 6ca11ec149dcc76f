package client

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCreatePixDeposit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/pix", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var params DepositParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, models.Amount(5000), params.Amount)

		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"transaction": models.Transaction{
				RequestNumber: "DEP1", Status: models.StatusPending, Amount: params.Amount, QRCode: "000201",
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, NewSession("tok"))
	tx, err := c.CreatePixDeposit(context.Background(), DepositParams{
		Amount: 5000,
		Client: models.ClientInfo{Name: "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "DEP1", tx.RequestNumber)
	assert.Equal(t, "000201", tx.QRCode)
}

func TestErrorsCarryKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false, "code": "insufficient_balance", "message": "insufficient balance",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, NewSession("tok"))
	_, err := c.CreateWithdrawal(context.Background(), WithdrawalParams{Amount: 100})
	require.Error(t, err)
	assert.True(t, errors.IsKind(errors.Insufficient, err))
	assert.Equal(t, "insufficient balance", errors.Message(err))
}

func TestUnauthorizedClearsToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid token"})
	}))
	defer srv.Close()

	session := NewSession("expired")
	c := New(srv.URL, time.Second, session)
	_, err := c.TransactionStatus(context.Background(), "DEP1")
	assert.True(t, errors.IsKind(errors.Unauthorized, err))
	assert.False(t, session.LoggedIn())

	_, err = c.Me(context.Background())
	assert.True(t, errors.IsKind(errors.Unauthorized, err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestMeIsCachedUntilNextAuthenticatedResponse(t *testing.T) {
	var meCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me":
			meCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"user":    models.User{ID: "u1", Balance: 1000},
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"success":      true,
				"transactions": []models.Transaction{},
			})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, NewSession("tok"))
	ctx := context.Background()

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(1000), u.Balance)

	_, err = c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), meCalls.Load())

	_, err = c.Transactions(ctx, 10)
	require.NoError(t, err)

	_, err = c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), meCalls.Load())
}

func TestUnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, 200*time.Millisecond, NewSession("tok"))
	_, err := c.TransactionStatus(context.Background(), "DEP1")
	assert.True(t, errors.IsKind(errors.Unavailable, err))
	assert.True(t, errors.Retryable(err))
}
