package service

import (
	"net/mail"
	"strings"

	"account_service/internal/auth"
	"account_service/internal/common"
	"account_service/internal/models"
)

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Usernames are case-sensitive; only surrounding space is dropped.
func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUpdate(in models.UpdateAccountInput) models.UpdateAccountInput {
	if in.Name != nil {
		v := normalizeName(*in.Name)
		in.Name = &v
	}
	if in.Username != nil {
		v := normalizeUsername(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := normalizeEmail(*in.Email)
		in.Email = &v
	}
	return in
}

func validateCreate(in models.CreateAccountInput) error {
	if in.Name == "" {
		return common.NewValidationError("name", "is required")
	}
	if in.Username == "" {
		return common.NewValidationError("username", "is required")
	}
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return err
	}
	if !in.Role.Valid() {
		return common.NewValidationError("role", "must be admin or user")
	}
	return nil
}

func validateUpdate(in models.UpdateAccountInput) error {
	if in.Name != nil && *in.Name == "" {
		return common.NewValidationError("name", "must not be empty")
	}
	if in.Username != nil && *in.Username == "" {
		return common.NewValidationError("username", "must not be empty")
	}
	if in.Email != nil {
		if err := validateEmail(*in.Email); err != nil {
			return err
		}
	}
	if in.Role != nil && !in.Role.Valid() {
		return common.NewValidationError("role", "must be admin or user")
	}
	if in.Password != nil {
		if err := validatePassword("password", *in.Password); err != nil {
			return err
		}
	}
	return nil
}

// validateEmail accepts a bare address only, no display name.
func validateEmail(email string) error {
	if email == "" {
		return common.NewValidationError("email", "is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return common.NewValidationError("email", "is not a valid address")
	}

	return nil
}

func validatePassword(field, password string) error {
	if password == "" {
		return common.NewValidationError(field, "is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return common.NewValidationError(field, "is too long")
	}
	return nil
}
