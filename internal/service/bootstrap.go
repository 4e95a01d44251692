package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"account_service/internal/common"
	"account_service/internal/models"
)

type AdminAccount struct {
	Name     string
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates the bootstrap admin unless an account with its
// username already exists. It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, admin AdminAccount) (bool, error) {
	const op = "service.EnsureAdmin"

	log := s.log.With(slog.String("op", op), slog.String("username", admin.Username))

	_, err := s.storage.GetAccountByUsername(ctx, normalizeUsername(admin.Username))
	if err == nil {
		log.Debug("admin account already exists")
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.CreateAccount(ctx, models.CreateAccountInput{
		Name:     admin.Name,
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, common.ErrDuplicate) {
		// another instance won the race, or the email is taken
		log.Warn("admin account not created", slog.Any("error", err))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("admin account created")

	return true, nil
}
