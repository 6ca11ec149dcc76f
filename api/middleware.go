package api

import (
	// Go Internal Packages
	"fmt"
	"net/http"
	"strings"
	"time"

	// Local Packages
	errors "payflow/errors"

	// External Packages
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if uid := c.GetString(userIDKey); uid != "" {
			fields = append(fields, zap.String(userIDKey, uid))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request served", fields...)
			return
		}
		logger.Debug("request served", fields...)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic while serving request",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
					Code:    errors.Internal.String(),
					Message: "internal error",
				})
			}
		}()
		c.Next()
	}
}

// authenticate accepts HS256 bearer tokens whose subject is the user id.
func authenticate(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortWithError(c, errors.UnauthorizedErr("missing bearer token"))
			return
		}

		claims := jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			abortWithError(c, errors.E(errors.Unauthorized, "invalid token", err))
			return
		}
		if claims.Subject == "" {
			abortWithError(c, errors.UnauthorizedErr("token has no subject"))
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// IssueToken signs a token for userID. The auth system issues tokens in production; this
// exists for tooling and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
