package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"account_service/internal/common"
	"account_service/internal/metrics"
	"account_service/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	serviceLayer service.Service
	metrics      *metrics.Metrics
	log          *slog.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, m *metrics.Metrics, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		metrics:      m,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()

	router.Use(
		h.RecoveryMiddleware(),
		RequestIDMiddleware(),
		h.LoggingMiddleware(),
		MaxBodySizeMiddleware(maxBodyBytes),
	)

	router.NoRoute(func(c *gin.Context) {
		newErrorResponse(c, http.StatusNotFound, "not found")
	})

	router.GET("/", h.Root)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/reset-password/:token", h.ResetPassword)

		auth.GET("/profile", h.AuthMiddleware(), h.GetProfile)
	}

	users := api.Group("/users", h.AuthMiddleware())
	{
		users.PUT("/change-password", h.ChangePassword)

		admin := users.Group("", AdminMiddleware())
		admin.GET("", h.ListUsers)
		admin.POST("", h.CreateUser)
		admin.GET("/:id", h.GetUser)
		admin.PUT("/:id", h.UpdateUser)
		admin.DELETE("/:id", h.DeleteUser)
	}

	return router
}

// GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, messageResponse{Message: "account service is running"})
}

// writeError maps service errors to HTTP responses. Anything unrecognised is
// logged and reported as a generic 500.
func (h *Handler) writeError(c *gin.Context, log *slog.Logger, err error) {
	status, message := errorStatus(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	} else {
		log.Debug("request rejected", slog.Int("status", status), slog.Any("error", err))
	}

	newErrorResponse(c, status, message)
}

func errorStatus(err error) (int, string) {
	var (
		validationErr *common.ValidationError
		duplicateErr  *common.DuplicateError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &duplicateErr):
		return http.StatusConflict, duplicateErr.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, common.ErrWrongPassword):
		return http.StatusUnauthorized, "old password is incorrect"
	case errors.Is(err, common.ErrResetTokenInvalid):
		return http.StatusBadRequest, "reset token is invalid or has expired"
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		newErrorResponse(c, http.StatusBadRequest, "invalid account id")
		return 0, false
	}

	return id, true
}
