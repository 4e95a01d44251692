package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"account_service/internal/models"

	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Name     string      `json:"name" binding:"required"`
	Username string      `json:"username" binding:"required"`
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
}

// updateUserRequest fields left out or sent empty are not changed.
type updateUserRequest struct {
	Name     *string      `json:"name"`
	Username *string      `json:"username"`
	Email    *string      `json:"email"`
	Role     *models.Role `json:"role"`
	Password *string      `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type userResponse struct {
	Message string                `json:"message"`
	User    models.AccountSummary `json:"user"`
}

func (r updateUserRequest) toInput() models.UpdateAccountInput {
	in := models.UpdateAccountInput{
		Name:     nonEmpty(r.Name),
		Username: nonEmpty(r.Username),
		Email:    nonEmpty(r.Email),
		Password: nonEmpty(r.Password),
	}
	if r.Role != nil && *r.Role != "" {
		in.Role = r.Role
	}

	return in
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// GET /api/users
func (h *Handler) ListUsers(c *gin.Context) {
	const op = "handler.ListUsers"

	log := h.requestLog(c, op)

	users, err := h.serviceLayer.ListAccounts(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, users)
}

// POST /api/users
func (h *Handler) CreateUser(c *gin.Context) {
	const op = "handler.CreateUser"

	log := h.requestLog(c, op)

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind create user request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "name, username, email and password are required")

		return
	}

	account, err := h.serviceLayer.CreateAccount(c.Request.Context(), models.CreateAccountInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, userResponse{Message: "user created", User: account.Summary()})
}

// GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	const op = "handler.GetUser"

	log := h.requestLog(c, op)

	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := h.serviceLayer.GetAccountByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, account.Summary())
}

// PUT /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	const op = "handler.UpdateUser"

	log := h.requestLog(c, op)

	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind update user request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	account, err := h.serviceLayer.UpdateAccount(c.Request.Context(), id, req.toInput())
	if err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, userResponse{Message: "user updated", User: account.Summary()})
}

// DELETE /api/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	const op = "handler.DeleteUser"

	log := h.requestLog(c, op)

	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.serviceLayer.DeleteAccount(c.Request.Context(), id); err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "user deleted"})
}

// PUT /api/users/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	const op = "handler.ChangePassword"

	log := h.requestLog(c, op)

	account, ok := currentAccount(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "unauthenticated")

		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("failed to bind change password request", slog.Any("error", err))

		newErrorResponse(c, http.StatusBadRequest, "oldPassword and newPassword are required")

		return
	}

	if err := h.serviceLayer.ChangeOwnPassword(c.Request.Context(), account.ID, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}
