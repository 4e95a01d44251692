package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"account_service/internal/auth"
	"account_service/internal/common"
	"account_service/internal/mailer"
)

// RequestReset mints a reset token for the account registered under email
// and mails the reset link. The result is nil whether or not the email is
// known, and a failed delivery is only logged.
func (s *AccountService) RequestReset(ctx context.Context, email string) error {
	const op = "service.RequestReset"

	log := s.log.With(slog.String("op", op))

	s.metrics.ResetRequested()

	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	account, err := s.storage.GetAccountByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		log.Debug("reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	token, err := auth.RandomHex(auth.ResetTokenBytes)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	expires := s.now().Add(s.resetTTL)

	if err := s.storage.SetResetToken(ctx, account.ID, token, expires); err != nil {
		// the account can vanish between lookup and write
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("reset token issued", slog.Int64("account_id", account.ID))

	msg, err := mailer.ResetRequestMessage(account.Email, account.Name, s.resetLink(token), s.resetTTL.String())
	s.notify(ctx, op, msg, err)

	return nil
}

// ConsumeReset sets newPassword on the account holding token, provided the
// token has not expired, and clears the token. Unknown, used and expired
// tokens all yield common.ErrResetTokenInvalid.
func (s *AccountService) ConsumeReset(ctx context.Context, token, newPassword string) error {
	const op = "service.ConsumeReset"

	if err := validatePassword("newPassword", newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if token == "" {
		s.metrics.Reset(false)
		return fmt.Errorf("%s: %w", op, common.ErrResetTokenInvalid)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.ConsumeResetToken(ctx, token, s.now(), hash)
	if errors.Is(err, common.ErrNotFound) {
		s.metrics.Reset(false)
		return fmt.Errorf("%s: %w", op, common.ErrResetTokenInvalid)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Reset(true)
	s.log.Info("password reset", slog.String("op", op), slog.Int64("account_id", account.ID))

	msg, err := mailer.PasswordResetMessage(account.Email, account.Name)
	s.notify(ctx, op, msg, err)

	return nil
}

func (s *AccountService) resetLink(token string) string {
	return strings.TrimRight(s.publicBaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
