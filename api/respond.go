package api

import (
	// Go Internal Packages
	"net/http"

	// Local Packages
	errors "payflow/errors"

	// External Packages
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusOf(kind errors.Kind) int {
	switch kind {
	case errors.Invalid:
		return http.StatusBadRequest
	case errors.Unauthorized:
		return http.StatusUnauthorized
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Conflict:
		return http.StatusConflict
	case errors.Insufficient:
		return http.StatusUnprocessableEntity
	case errors.Unavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// bodyOf keeps causes out of the response except for validation details.
func bodyOf(err error) errorBody {
	kind := errors.KindOf(err)
	msg := errors.Message(err)
	if kind == errors.Invalid {
		msg = err.Error()
	}
	if kind == errors.Other {
		kind = errors.Internal
	}
	return errorBody{Code: kind.String(), Message: msg}
}

func (s *Server) fail(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	if kind == errors.Other || kind == errors.Internal {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	s.metrics.RequestErrors.WithLabelValues(kind.String()).Inc()
	c.JSON(statusOf(kind), bodyOf(err))
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(errors.KindOf(err)), bodyOf(err))
}
