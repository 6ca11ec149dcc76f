package api

import (
	// Go Internal Packages
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	// Local Packages
	errors "payflow/errors"
	models "payflow/models"
	payments "payflow/services/payments"
	webhooks "payflow/services/webhooks"
	utils "payflow/utils"

	// External Packages
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxCallbackSize = 64 << 10
)

type depositBody struct {
	Amount  models.Amount     `json:"amount"`
	DueDate string            `json:"dueDate"`
	Client  models.ClientInfo `json:"client"`
}

type withdrawBody struct {
	Amount models.Amount `json:"amount"`
	PixKey string        `json:"pixKey"`
}

// parseDueDate accepts a plain date or an RFC 3339 timestamp.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.InvalidParamsErr(err)
	}
	t = t.UTC()
	return &t, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDeposit(method models.Method) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body depositBody
		if err := c.ShouldBindJSON(&body); err != nil {
			s.fail(c, errors.InvalidBodyErr(err))
			return
		}
		dueDate, err := parseDueDate(body.DueDate)
		if err != nil {
			s.fail(c, err)
			return
		}

		tx, err := s.payments.CreateDeposit(c.Request.Context(), payments.DepositRequest{
			UserID:  c.GetString(userIDKey),
			Amount:  body.Amount,
			Method:  method,
			DueDate: dueDate,
			Client:  body.Client,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		s.metrics.PaymentsCreated.WithLabelValues(string(tx.Method)).Inc()
		c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": tx})
	}
}

func (s *Server) handleWithdraw(c *gin.Context) {
	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errors.InvalidBodyErr(err))
		return
	}

	tx, err := s.payments.CreateWithdrawal(c.Request.Context(), payments.WithdrawalRequest{
		UserID: c.GetString(userIDKey),
		Amount: body.Amount,
		PixKey: body.PixKey,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.PaymentsCreated.WithLabelValues(string(tx.Method)).Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "transaction": tx})
}

func (s *Server) handleListTransactions(c *gin.Context) {
	limit, err := utils.ParseLimit(c.Query("limit"), defaultPageSize, maxPageSize)
	if err != nil {
		s.fail(c, errors.InvalidParamsErr(err))
		return
	}
	txs, err := s.payments.Transactions(c.Request.Context(), c.GetString(userIDKey), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transactions": txs})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	rn := c.Param("requestNumber")
	if rn == "" {
		s.fail(c, errors.EmptyParamErr("requestNumber"))
		return
	}
	tx, err := s.payments.Transaction(c.Request.Context(), c.GetString(userIDKey), rn)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction": tx})
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.payments.User(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// handleGatewayCallback answers 2xx once the callback needs no redelivery, 4xx when a
// redelivery can never succeed and 503 when it should be retried.
func (s *Server) handleGatewayCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackSize))
	if err != nil {
		s.fail(c, errors.InvalidBodyErr(err))
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(body, c.GetHeader(webhooks.SignatureHeader), c.ClientIP()); err != nil {
			s.logger.Warn("unverified callback rejected",
				zap.String("client_ip", c.ClientIP()), zap.Error(err))
			s.metrics.CallbackOutcomes.WithLabelValues("unauthorized").Inc()
			c.JSON(http.StatusUnauthorized, bodyOf(err))
			return
		}
	}

	outcome, err := s.callbacks.HandleCallback(c.Request.Context(), body)
	if err != nil {
		if errors.Retryable(err) {
			s.metrics.CallbackOutcomes.WithLabelValues("retry").Inc()
			c.JSON(http.StatusServiceUnavailable, bodyOf(err))
			return
		}
		s.metrics.CallbackOutcomes.WithLabelValues("rejected").Inc()
		c.JSON(statusOf(errors.KindOf(err)), bodyOf(err))
		return
	}
	s.metrics.CallbackOutcomes.WithLabelValues(string(outcome)).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": outcome})
}

// handleAggregatorCallback only acknowledges game aggregator notifications.
func (s *Server) handleAggregatorCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackSize))
	if err != nil || !json.Valid(body) {
		s.fail(c, errors.E(errors.Invalid, "body must be JSON", err))
		return
	}
	s.logger.Info("aggregator callback received", zap.ByteString("body", body))
	c.JSON(http.StatusOK, gin.H{"success": true})
}
