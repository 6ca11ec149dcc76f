// Package gateway is the client for the PIX/boleto payment provider.
//
// Every call is made exactly once; retries are left to the user re-submitting the request.
// A failure wrapping errors.ErrGatewayRejected had no effect at the provider; any other
// failure may have.
// Credentials are read per call from the settings store, falling back to the configured values.
package gateway

import (
	// Go Internal Packages
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"

	// External Packages
	"go.uber.org/zap"
)

const (
	pathPixCharge    = "/api/v1/gateway/request-qrcode"
	pathBoletoCharge = "/api/v1/gateway/request-boleto"
	pathPayout       = "/api/v1/gateway/pix-payment"
	pathStatus       = "/api/v1/gateway/consult-status-transaction"

	responseOK   = "OK"
	maxBodyBytes = 1 << 20
)

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ClientID     string
	ClientSecret string
}

type Client struct {
	conf     Config
	http     *http.Client
	settings SettingsStore
	logger   *zap.Logger
}

func NewClient(conf Config, settings SettingsStore, logger *zap.Logger) *Client {
	return &Client{
		conf:     conf,
		http:     &http.Client{Timeout: conf.Timeout},
		settings: settings,
		logger:   logger,
	}
}

type ChargeRequest struct {
	RequestNumber string
	Amount        models.Amount
	DueDate       *time.Time
	Client        models.ClientInfo
	CallbackURL   string
}

// Charge holds what the payer needs to complete a deposit.
type Charge struct {
	GatewayID     string
	QRCode        string
	QRCodeImage   string
	Barcode       string
	DigitableLine string
}

type PayoutRequest struct {
	RequestNumber string
	Amount        models.Amount
	PixKey        string
	CallbackURL   string
}

type Payout struct {
	GatewayID string
}

type chargeBody struct {
	RequestNumber string            `json:"requestNumber"`
	DueDate       string            `json:"dueDate,omitempty"`
	Amount        models.Amount     `json:"amount"`
	CallbackURL   string            `json:"callbackUrl"`
	Client        models.ClientInfo `json:"client"`
}

type payoutBody struct {
	RequestNumber string        `json:"requestNumber"`
	Value         models.Amount `json:"value"`
	Key           string        `json:"key"`
	CallbackURL   string        `json:"callbackUrl"`
}

type statusBody struct {
	TypeTransaction string `json:"typeTransaction"`
	Value           string `json:"value"`
}

type gatewayResponse struct {
	Response          string `json:"response"`
	Message           string `json:"message"`
	IDTransaction     string `json:"idTransaction"`
	PaymentCode       string `json:"paymentCode"`
	PaymentCodeBase64 string `json:"paymentCodeBase64"`
	BarCode           string `json:"barCode"`
	DigitableLine     string `json:"digitableLine"`
	StatusTransaction string `json:"statusTransaction"`
}

func formatDueDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// CreatePixCharge requests a PIX QR code for a deposit.
func (c *Client) CreatePixCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	resp, err := c.post(ctx, pathPixCharge, chargeBody{
		RequestNumber: req.RequestNumber,
		DueDate:       formatDueDate(req.DueDate),
		Amount:        req.Amount,
		CallbackURL:   req.CallbackURL,
		Client:        req.Client,
	})
	if err != nil {
		return Charge{}, errors.GatewayErr("pix charge", err)
	}
	if resp.PaymentCode == "" && resp.PaymentCodeBase64 == "" {
		return Charge{}, errors.GatewayErr("pix charge", fmt.Errorf("response carries no payment code"))
	}
	return Charge{
		GatewayID:   resp.IDTransaction,
		QRCode:      resp.PaymentCode,
		QRCodeImage: resp.PaymentCodeBase64,
	}, nil
}

// CreateBoletoCharge requests a boleto for a deposit.
func (c *Client) CreateBoletoCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	resp, err := c.post(ctx, pathBoletoCharge, chargeBody{
		RequestNumber: req.RequestNumber,
		DueDate:       formatDueDate(req.DueDate),
		Amount:        req.Amount,
		CallbackURL:   req.CallbackURL,
		Client:        req.Client,
	})
	if err != nil {
		return Charge{}, errors.GatewayErr("boleto charge", err)
	}
	if resp.DigitableLine == "" && resp.BarCode == "" {
		return Charge{}, errors.GatewayErr("boleto charge", fmt.Errorf("response carries no barcode"))
	}
	return Charge{
		GatewayID:     resp.IDTransaction,
		Barcode:       resp.BarCode,
		DigitableLine: resp.DigitableLine,
	}, nil
}

// CreatePayout submits a PIX cash-out.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (Payout, error) {
	resp, err := c.post(ctx, pathPayout, payoutBody{
		RequestNumber: req.RequestNumber,
		Value:         req.Amount,
		Key:           req.PixKey,
		CallbackURL:   req.CallbackURL,
	})
	if err != nil {
		return Payout{}, errors.GatewayErr("payout", err)
	}
	return Payout{GatewayID: resp.IDTransaction}, nil
}

// TransactionStatus asks the provider for the current status of a transaction. ref is the
// provider's transaction id or, for one it never answered for, our request number. An
// unknown ref yields an error wrapping errors.ErrTransactionNotFound.
func (c *Client) TransactionStatus(ctx context.Context, method models.Method, ref string) (models.Status, error) {
	typ := "PIX"
	switch method {
	case models.MethodWithdraw:
		typ = "PIX_CASHOUT"
	case models.MethodBoleto:
		typ = "BOLETO"
	case models.MethodCard:
		typ = "CARD"
	}
	resp, err := c.post(ctx, pathStatus, statusBody{TypeTransaction: typ, Value: ref})
	if err != nil {
		return "", errors.GatewayErr("status", err)
	}
	status, err := ParseStatus(resp.StatusTransaction)
	if err != nil {
		return "", errors.GatewayErr("status", err)
	}
	return status, nil
}

// ParseStatus maps the provider's status vocabulary onto ours.
func ParseStatus(s string) (models.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PAID_OUT", "PAID", "APPROVED":
		return models.StatusPaidOut, nil
	case "PENDING", "UNPAID", "WAITING_FOR_APPROVAL":
		return models.StatusPending, nil
	case "CANCELED", "CANCELLED", "CHARGEBACK", "EXPIRED":
		return models.StatusCanceled, nil
	case "FAILED", "ERROR", "REJECTED":
		return models.StatusFailed, nil
	}
	return "", fmt.Errorf("unknown gateway status %q", s)
}

func (c *Client) credentials(ctx context.Context) (string, string, error) {
	id, secret := c.conf.ClientID, c.conf.ClientSecret
	if c.settings != nil {
		v, err := c.settings.GetSetting(ctx, models.SettingGatewayClientID)
		if err != nil {
			return "", "", fmt.Errorf("reading gateway credentials: %w", err)
		}
		if v != "" {
			id = v
		}
		v, err = c.settings.GetSetting(ctx, models.SettingGatewayClientSecret)
		if err != nil {
			return "", "", fmt.Errorf("reading gateway credentials: %w", err)
		}
		if v != "" {
			secret = v
		}
	}
	if id == "" || secret == "" {
		return "", "", fmt.Errorf("gateway credentials are not configured")
	}
	return id, secret, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (gatewayResponse, error) {
	id, secret, err := c.credentials(ctx)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: %w", errors.ErrGatewayRejected, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: %w", errors.ErrGatewayRejected, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("%w: %w", errors.ErrGatewayRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ci", id)
	req.Header.Set("cs", secret)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("gateway request failed", zap.String("path", path), zap.Error(err))
		return gatewayResponse{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return gatewayResponse{}, err
	}
	c.logger.Debug("gateway response",
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	// A 5xx may come after the provider acted, so only 4xx counts as a refusal.
	switch {
	case path == pathStatus && res.StatusCode == http.StatusNotFound:
		return gatewayResponse{}, fmt.Errorf("%w: %s", errors.ErrTransactionNotFound, truncate(raw, 200))
	case res.StatusCode >= 400 && res.StatusCode <= 499:
		return gatewayResponse{}, fmt.Errorf("%w: status %d: %s", errors.ErrGatewayRejected, res.StatusCode, truncate(raw, 200))
	case res.StatusCode < 200 || res.StatusCode > 299:
		return gatewayResponse{}, fmt.Errorf("unexpected status %d: %s", res.StatusCode, truncate(raw, 200))
	}

	var out gatewayResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return gatewayResponse{}, fmt.Errorf("malformed response: %w", err)
	}
	if path != pathStatus {
		if !strings.EqualFold(out.Response, responseOK) {
			return gatewayResponse{}, fmt.Errorf("%w: %s %s", errors.ErrGatewayRejected, out.Response, out.Message)
		}
		if out.IDTransaction == "" {
			return gatewayResponse{}, fmt.Errorf("response carries no transaction id")
		}
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
