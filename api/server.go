// Package api exposes payments, the gateway callback and the user endpoint over HTTP.
package api

import (
	// Go Internal Packages
	"context"
	"net/http"
	"time"

	// Local Packages
	metrics "payflow/metrics"
	models "payflow/models"
	payments "payflow/services/payments"
	webhooks "payflow/services/webhooks"

	// External Packages
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentService interface {
	CreateDeposit(ctx context.Context, req payments.DepositRequest) (models.Transaction, error)
	CreateWithdrawal(ctx context.Context, req payments.WithdrawalRequest) (models.Transaction, error)
	Transaction(ctx context.Context, userID, requestNumber string) (models.Transaction, error)
	Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	User(ctx context.Context, userID string) (models.User, error)
}

type CallbackHandler interface {
	HandleCallback(ctx context.Context, body []byte) (webhooks.Outcome, error)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// TrustedProxies are the only peers whose X-Forwarded-For is honored.
	TrustedProxies []string
	JWTSecret      string
}

type Server struct {
	router    *gin.Engine
	http      *http.Server
	payments  PaymentService
	callbacks CallbackHandler
	verifier  *webhooks.Verifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewServer(opts Options, svc PaymentService, callbacks CallbackHandler, verifier *webhooks.Verifier,
	m *metrics.Metrics, logger *zap.Logger) *Server {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(requestLogger(logger), recovery(logger))

	s := &Server{
		router:    router,
		payments:  svc,
		callbacks: callbacks,
		verifier:  verifier,
		metrics:   m,
		logger:    logger,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           router,
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Unauthenticated: the gateway and the game aggregator call these.
	router.POST("/payments/callback", s.handleGatewayCallback)
	router.POST("/playfivers/callback", s.handleAggregatorCallback)

	authed := router.Group("/", authenticate([]byte(opts.JWTSecret)))
	{
		authed.GET("/users/me", s.handleMe)

		p := authed.Group("/payments")
		p.POST("/pix", s.handleDeposit(models.MethodPix))
		p.POST("/boleto", s.handleDeposit(models.MethodBoleto))
		p.POST("/withdraw", s.handleWithdraw)
		p.GET("/transactions", s.handleListTransactions)
		p.GET("/transactions/:requestNumber", s.handleGetTransaction)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks until the server stops. http.ErrServerClosed is returned after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
