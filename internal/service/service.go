package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"account_service/internal/auth"
	"account_service/internal/common"
	"account_service/internal/mailer"
	"account_service/internal/metrics"
	"account_service/internal/models"
	"account_service/internal/storage"
)

type Service interface {
	Login(ctx context.Context, username, password string) (string, models.Account, error)
	Authenticate(ctx context.Context, token string) (models.Account, error)

	CreateAccount(ctx context.Context, in models.CreateAccountInput) (models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.AccountSummary, error)
	UpdateAccount(ctx context.Context, id int64, in models.UpdateAccountInput) (models.Account, error)
	ChangeOwnPassword(ctx context.Context, id int64, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, id int64) error

	RequestReset(ctx context.Context, email string) error
	ConsumeReset(ctx context.Context, token, newPassword string) error
}

type Options struct {
	// PublicBaseURL prefixes the reset link sent by email.
	PublicBaseURL string
	ResetTokenTTL time.Duration
}

var _ Service = (*AccountService)(nil)

type AccountService struct {
	storage  storage.Storage
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	notifier mailer.Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger

	publicBaseURL string
	resetTTL      time.Duration
	now           func() time.Time
}

func NewService(
	st storage.Storage,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	notifier mailer.Notifier,
	m *metrics.Metrics,
	log *slog.Logger,
	opts Options,
) *AccountService {
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}

	return &AccountService{
		storage:       st,
		hasher:        hasher,
		tokens:        tokens,
		notifier:      notifier,
		metrics:       m,
		log:           log,
		publicBaseURL: opts.PublicBaseURL,
		resetTTL:      opts.ResetTokenTTL,
		now:           time.Now,
	}
}

// Login checks username and password and issues a bearer token. Unknown
// usernames and wrong passwords both yield common.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, models.Account, error) {
	const op = "service.Login"

	username = normalizeUsername(username)
	if username == "" || password == "" {
		return "", models.Account{}, fmt.Errorf("%s: %w", op, common.ErrInvalidCredentials)
	}

	account, err := s.storage.GetAccountByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		s.hasher.VerifyDummy(password)
		s.metrics.Login(false)
		return "", models.Account{}, fmt.Errorf("%s: %w", op, common.ErrInvalidCredentials)
	}
	if err != nil {
		return "", models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.metrics.Login(false)
		return "", models.Account{}, fmt.Errorf("%s: %w", op, common.ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(account)
	if err != nil {
		return "", models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Login(true)

	return token, account, nil
}

// Authenticate verifies a bearer token and re-resolves its account. Any
// failure, including a deleted account, is common.ErrUnauthenticated.
func (s *AccountService) Authenticate(ctx context.Context, token string) (models.Account, error) {
	const op = "service.Authenticate"

	if token == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrUnauthenticated)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w: %w", op, common.ErrUnauthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id != claims.UserID {
		return models.Account{}, fmt.Errorf("%s: %w: subject mismatch", op, common.ErrUnauthenticated)
	}

	account, err := s.storage.GetAccountByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return models.Account{}, fmt.Errorf("%s: %w: account %d gone", op, common.ErrUnauthenticated, id)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (s *AccountService) CreateAccount(ctx context.Context, in models.CreateAccountInput) (models.Account, error) {
	const op = "service.CreateAccount"

	in.Name = normalizeName(in.Name)
	in.Username = normalizeUsername(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Role == "" {
		in.Role = models.RoleUser
	}

	if err := validateCreate(in); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.CreateAccount(ctx, models.Account{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AccountChanged("create")
	s.log.Info("account created",
		slog.String("op", op),
		slog.Int64("account_id", account.ID),
		slog.String("role", string(account.Role)),
	)

	msg, err := mailer.AccountCreatedMessage(account.Email, account.Name, account.Username)
	s.notify(ctx, op, msg, err)

	return account, nil
}

func (s *AccountService) GetAccountByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "service.GetAccountByID"

	account, err := s.storage.GetAccountByID(ctx, id)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (s *AccountService) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	const op = "service.GetAccountByUsername"

	account, err := s.storage.GetAccountByUsername(ctx, normalizeUsername(username))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (s *AccountService) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "service.GetAccountByEmail"

	account, err := s.storage.GetAccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// ListAccounts returns summaries ordered by id.
func (s *AccountService) ListAccounts(ctx context.Context) ([]models.AccountSummary, error) {
	const op = "service.ListAccounts"

	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	summaries := make([]models.AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summary())
	}

	return summaries, nil
}

// UpdateAccount applies the non-nil fields of in. A new password is hashed
// before the account is locked.
func (s *AccountService) UpdateAccount(ctx context.Context, id int64, in models.UpdateAccountInput) (models.Account, error) {
	const op = "service.UpdateAccount"

	in = normalizeUpdate(in)
	if err := validateUpdate(in); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	var newHash string
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return models.Account{}, fmt.Errorf("%s: %w", op, err)
		}
		newHash = hash
	}

	account, err := s.storage.UpdateAccount(ctx, id, func(a *models.Account) error {
		if in.Name != nil {
			a.Name = *in.Name
		}
		if in.Username != nil {
			a.Username = *in.Username
		}
		if in.Email != nil {
			a.Email = *in.Email
		}
		if in.Role != nil {
			a.Role = *in.Role
		}
		if newHash != "" {
			a.PasswordHash = newHash
		}
		return nil
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AccountChanged("update")
	s.log.Info("account updated",
		slog.String("op", op),
		slog.Int64("account_id", account.ID),
		slog.Bool("password_changed", newHash != ""),
	)

	return account, nil
}

// ChangeOwnPassword replaces the password after checking oldPassword against
// the hash of the locked account.
func (s *AccountService) ChangeOwnPassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	const op = "service.ChangeOwnPassword"

	if oldPassword == "" {
		return fmt.Errorf("%s: %w", op, common.NewValidationError("oldPassword", "is required"))
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.UpdateAccount(ctx, id, func(a *models.Account) error {
		if !s.hasher.Verify(oldPassword, a.PasswordHash) {
			return common.ErrWrongPassword
		}
		a.PasswordHash = newHash
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AccountChanged("change_password")
	s.log.Info("password changed", slog.String("op", op), slog.Int64("account_id", account.ID))

	msg, err := mailer.PasswordChangedMessage(account.Email, account.Name)
	s.notify(ctx, op, msg, err)

	return nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	const op = "service.DeleteAccount"

	if err := s.storage.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AccountChanged("delete")
	s.log.Info("account deleted", slog.String("op", op), slog.Int64("account_id", id))

	return nil
}

// notify sends msg and only logs a failure; the state change it reports on
// has already been persisted.
func (s *AccountService) notify(ctx context.Context, op string, msg mailer.Message, renderErr error) {
	log := s.log.With(slog.String("op", op))

	if renderErr != nil {
		log.Error("failed to render notification", slog.Any("error", renderErr))
		return
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Error("failed to send notification",
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
	}
}
