package handler

import (
	"log/slog"
	"net/http"

	"account_service/internal/models"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Message string                `json:"message"`
	Token   string                `json:"token"`
	User    models.AccountSummary `json:"user"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword" binding:"required"`
}

const forgotPasswordMessage = "If the email is registered, a password reset link has been sent."

// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.requestLog(c, op)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind login request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "username and password are required")

		return
	}

	token, account, err := h.serviceLayer.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	log.Info("user logged in", slog.Int64("account_id", account.ID))

	c.JSON(http.StatusOK, loginResponse{
		Message: "login successful",
		Token:   token,
		User:    account.Summary(),
	})
}

// POST /api/auth/forgot-password
func (h *Handler) ForgotPassword(c *gin.Context) {
	const op = "handler.ForgotPassword"

	log := h.requestLog(c, op)

	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind forgot password request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "email is required")

		return
	}

	if err := h.serviceLayer.RequestReset(c.Request.Context(), req.Email); err != nil {
		// The caller gets the same answer either way.
		log.Error("failed to process reset request", slog.Any("error", err))
	}

	c.JSON(http.StatusOK, messageResponse{Message: forgotPasswordMessage})
}

// POST /api/auth/reset-password
// POST /api/auth/reset-password/:token
func (h *Handler) ResetPassword(c *gin.Context) {
	const op = "handler.ResetPassword"

	log := h.requestLog(c, op)

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind reset password request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "newPassword is required")

		return
	}

	token := c.Param("token")
	if token == "" {
		token = req.Token
	}

	if err := h.serviceLayer.ConsumeReset(c.Request.Context(), token, req.NewPassword); err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "password has been reset"})
}

// GET /api/auth/profile
func (h *Handler) GetProfile(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "unauthenticated")

		return
	}

	c.JSON(http.StatusOK, account.Summary())
}
