// Package client talks to the payflow REST API on behalf of one logged in user.
package client

import (
	// Go Internal Packages
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
)

const maxBodyBytes = 1 << 20

type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

func New(baseURL string, timeout time.Duration, session *Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		session: session,
	}
}

type DepositParams struct {
	Amount  models.Amount     `json:"amount"`
	DueDate string            `json:"dueDate,omitempty"`
	Client  models.ClientInfo `json:"client"`
}

type WithdrawalParams struct {
	Amount models.Amount `json:"amount"`
	PixKey string        `json:"pixKey,omitempty"`
}

type envelope struct {
	Success      bool                 `json:"success"`
	Code         string               `json:"code"`
	Message      string               `json:"message"`
	Transaction  *models.Transaction  `json:"transaction"`
	Transactions []models.Transaction `json:"transactions"`
	User         *models.User         `json:"user"`
}

func (c *Client) CreatePixDeposit(ctx context.Context, params DepositParams) (models.Transaction, error) {
	return c.createTransaction(ctx, "/payments/pix", params)
}

func (c *Client) CreateBoletoDeposit(ctx context.Context, params DepositParams) (models.Transaction, error) {
	return c.createTransaction(ctx, "/payments/boleto", params)
}

func (c *Client) CreateWithdrawal(ctx context.Context, params WithdrawalParams) (models.Transaction, error) {
	return c.createTransaction(ctx, "/payments/withdraw", params)
}

func (c *Client) createTransaction(ctx context.Context, path string, params any) (models.Transaction, error) {
	env, err := c.do(ctx, http.MethodPost, path, params)
	if err != nil {
		return models.Transaction{}, err
	}
	if env.Transaction == nil {
		return models.Transaction{}, errors.E(errors.Internal, "response carries no transaction", nil)
	}
	return *env.Transaction, nil
}

// TransactionStatus fetches the current state of one of the session user's transactions.
func (c *Client) TransactionStatus(ctx context.Context, requestNumber string) (models.Transaction, error) {
	env, err := c.do(ctx, http.MethodGet, "/payments/transactions/"+url.PathEscape(requestNumber), nil)
	if err != nil {
		return models.Transaction{}, err
	}
	if env.Transaction == nil {
		return models.Transaction{}, errors.E(errors.Internal, "response carries no transaction", nil)
	}
	return *env.Transaction, nil
}

func (c *Client) Transactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	path := "/payments/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return env.Transactions, nil
}

// Me returns the session user, served from the session cache when it is still valid.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	if u, ok := c.session.cachedUser(); ok {
		return u, nil
	}
	env, err := c.do(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		return models.User{}, err
	}
	if env.User == nil {
		return models.User{}, errors.E(errors.Internal, "response carries no user", nil)
	}
	c.session.storeUser(*env.User)
	return *env.User, nil
}

// do sends an authenticated request. Once the server has refused the token no further
// request is made.
func (c *Client) do(ctx context.Context, method, path string, payload any) (envelope, error) {
	if !c.session.LoggedIn() {
		return envelope{}, errors.UnauthorizedErr("not logged in")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return envelope{}, errors.E(errors.Invalid, "cannot encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return envelope{}, errors.E(errors.Invalid, "cannot build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token())

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, errors.E(errors.Unavailable, "payflow api unreachable", err)
	}
	defer resp.Body.Close()
	c.session.invalidate()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env); err != nil {
		return envelope{}, errors.E(errors.Unavailable,
			fmt.Sprintf("unreadable response (status %d)", resp.StatusCode), err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		if resp.StatusCode == http.StatusUnauthorized {
			c.session.clearToken()
		}
		return envelope{}, errors.E(kindFromStatus(resp.StatusCode), env.Message, nil)
	}
	return env, nil
}

func kindFromStatus(code int) errors.Kind {
	switch code {
	case http.StatusBadRequest:
		return errors.Invalid
	case http.StatusUnauthorized:
		return errors.Unauthorized
	case http.StatusNotFound:
		return errors.NotFound
	case http.StatusConflict:
		return errors.Conflict
	case http.StatusUnprocessableEntity:
		return errors.Insufficient
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return errors.Unavailable
	}
	return errors.Internal
}
