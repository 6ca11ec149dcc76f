package gateway

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSettings map[string]string

func (s staticSettings) GetSetting(_ context.Context, key string) (string, error) {
	return s[key], nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, settings SettingsStore) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		ClientID:     "cfg-id",
		ClientSecret: "cfg-secret",
	}, settings, zap.NewNop())
}

func TestCreatePixCharge(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathPixCharge, r.URL.Path)
		assert.Equal(t, "db-id", r.Header.Get("ci"))
		assert.Equal(t, "cfg-secret", r.Header.Get("cs"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"OK","idTransaction":"g-1","paymentCode":"000201pix","paymentCodeBase64":"aW1n"}`))
	}, staticSettings{models.SettingGatewayClientID: "db-id"})

	due := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	charge, err := c.CreatePixCharge(context.Background(), ChargeRequest{
		RequestNumber: "r-1",
		Amount:        10000,
		DueDate:       &due,
		Client:        models.ClientInfo{Name: "Ana"},
		CallbackURL:   "http://cb",
	})
	require.NoError(t, err)
	assert.Equal(t, Charge{GatewayID: "g-1", QRCode: "000201pix", QRCodeImage: "aW1n"}, charge)
	assert.Equal(t, "r-1", got["requestNumber"])
	assert.Equal(t, "2026-10-20", got["dueDate"])
	assert.EqualValues(t, 100, got["amount"])
}

func TestCreatePixChargeRejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusInternalServerError, `{}`},
		{"not ok", http.StatusOK, `{"response":"ERROR","message":"invalid document"}`},
		{"missing id", http.StatusOK, `{"response":"OK","paymentCode":"x"}`},
		{"missing code", http.StatusOK, `{"response":"OK","idTransaction":"g"}`},
		{"malformed", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)
			_, err := c.CreatePixCharge(context.Background(), ChargeRequest{RequestNumber: "r", Amount: 1000})
			require.Error(t, err)
			assert.True(t, errors.IsKind(errors.Unavailable, err))
		})
	}
}

func TestCreateBoletoAndPayout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathBoletoCharge:
			_, _ = w.Write([]byte(`{"response":"OK","idTransaction":"b-1","barCode":"123","digitableLine":"1234 5678"}`))
		case pathPayout:
			var body payoutBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "key@pix", body.Key)
			_, _ = w.Write([]byte(`{"response":"OK","idTransaction":"p-1"}`))
		}
	}, nil)

	charge, err := c.CreateBoletoCharge(context.Background(), ChargeRequest{RequestNumber: "r", Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, "1234 5678", charge.DigitableLine)

	payout, err := c.CreatePayout(context.Background(), PayoutRequest{RequestNumber: "w", Amount: 5000, PixKey: "key@pix"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", payout.GatewayID)
}

func TestTransactionStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body statusBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PIX_CASHOUT", body.TypeTransaction)
		_, _ = w.Write([]byte(`{"statusTransaction":"CANCELED"}`))
	}, nil)

	status, err := c.TransactionStatus(context.Background(), models.MethodWithdraw, "g")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, status)
}

func TestMissingCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Timeout: time.Second}, nil, zap.NewNop())
	_, err := c.CreatePayout(context.Background(), PayoutRequest{})
	assert.True(t, errors.IsKind(errors.Unavailable, err))
	assert.ErrorIs(t, err, errors.ErrGatewayRejected)
}

func TestPayoutFailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		rejected bool
	}{
		{"bad request", http.StatusBadRequest, `{"message":"invalid key"}`, true},
		{"not ok", http.StatusOK, `{"response":"ERROR","message":"limit exceeded"}`, true},
		{"server error", http.StatusBadGateway, `{}`, false},
		{"malformed", http.StatusOK, `<html>`, false},
		{"missing id", http.StatusOK, `{"response":"OK"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)
			_, err := c.CreatePayout(context.Background(), PayoutRequest{RequestNumber: "w", Amount: 5000, PixKey: "k"})
			require.Error(t, err)
			assert.True(t, errors.IsKind(errors.Unavailable, err))
			assert.Equal(t, tt.rejected, errors.Is(err, errors.ErrGatewayRejected))
		})
	}
}

func TestPayoutTimeoutIsNotRejection(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	}, nil)
	defer close(release)
	c.http.Timeout = 20 * time.Millisecond

	_, err := c.CreatePayout(context.Background(), PayoutRequest{RequestNumber: "w", Amount: 5000, PixKey: "k"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrGatewayRejected))
}

func TestTransactionStatusUnknown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"transaction not found"}`))
	}, nil)

	_, err := c.TransactionStatus(context.Background(), models.MethodWithdraw, "WIT1")
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" paid_out ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaidOut, s)

	_, err = ParseStatus("SOMETHING")
	assert.Error(t, err)
}
