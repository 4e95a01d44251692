package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is a stored user record. PasswordHash and the reset fields never
// leave the service boundary; use Summary for anything sent to a client.
type Account struct {
	ID                int64
	Name              string
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	ResetToken        *string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AccountSummary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Name:      a.Name,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// SetResetToken keeps the token and its expiry paired.
func (a *Account) SetResetToken(token string, expires time.Time) {
	a.ResetToken = &token
	a.ResetTokenExpires = &expires
}

func (a *Account) ClearResetToken() {
	a.ResetToken = nil
	a.ResetTokenExpires = nil
}

// HasValidResetToken reports whether token matches exactly and has not expired at now.
func (a Account) HasValidResetToken(token string, now time.Time) bool {
	if a.ResetToken == nil || a.ResetTokenExpires == nil {
		return false
	}
	return *a.ResetToken == token && a.ResetTokenExpires.After(now)
}

type CreateAccountInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     Role
}

// UpdateAccountInput carries the editable fields; nil means unchanged.
type UpdateAccountInput struct {
	Name     *string
	Username *string
	Email    *string
	Role     *Role
	Password *string
}
