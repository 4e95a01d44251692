package storage

import (
	"context"
	"time"

	"account_service/internal/models"
)

const (
	usersTable = "users"

	usernameUniqueConstraint = "users_username_key"
	emailUniqueConstraint    = "users_email_key"
)

// UpdateFunc mutates a locked copy of an account inside UpdateAccount.
// Returning an error aborts the update and is passed back to the caller.
type UpdateFunc func(account *models.Account) error

// Storage is the account directory's persistence layer. Implementations
// enforce username/email uniqueness and make every read-modify-write atomic
// per account.
type Storage interface {
	// CreateAccount inserts account and returns it with id and timestamps set.
	// A uniqueness collision yields *common.DuplicateError.
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	GetAccountByID(ctx context.Context, id int64) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// UpdateAccount loads the account, applies fn and persists the result
	// while holding the account exclusively.
	UpdateAccount(ctx context.Context, id int64, fn UpdateFunc) (models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	// Reset tokens
	SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error
	// ConsumeResetToken swaps in passwordHash and clears the reset fields of
	// the account whose token equals token and expires after now. It returns
	// common.ErrNotFound when no such account exists.
	ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (models.Account, error)

	Close()
}
