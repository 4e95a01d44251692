package handler

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"account_service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	accountKey   = "account"
	requestIDKey = "request_id"

	requestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// AuthMiddleware resolves the bearer token to an account and stores it in
// the gin context.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.AuthMiddleware"

		log := h.requestLog(c, op)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, "empty authorization header")

			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		account, err := h.serviceLayer.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			h.writeError(c, log, err)

			return
		}

		c.Set(accountKey, account)

		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := currentAccount(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "unauthenticated")

			return
		}

		if account.Role != models.RoleAdmin {
			newErrorResponse(c, http.StatusForbidden, "admin role required")

			return
		}

		c.Next()
	}
}

func currentAccount(c *gin.Context) (models.Account, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return models.Account{}, false
	}

	account, ok := v.(models.Account)

	return account, ok
}

// RequestIDMiddleware keeps a caller supplied X-Request-ID or generates one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			if generated, err := uuid.NewV4(); err == nil {
				id = generated.String()
			}
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}

func (h *Handler) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		h.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), elapsed)

		h.log.Info("request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", elapsed),
			slog.String("remote_addr", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware turns a panic into a 500 and logs the stack.
func (h *Handler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.log.Error("panic while serving request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered),
			slog.String("stack", string(debug.Stack())),
		)

		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	})
}

func MaxBodySizeMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}

func (h *Handler) requestLog(c *gin.Context, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", c.GetString(requestIDKey)),
	)
}
