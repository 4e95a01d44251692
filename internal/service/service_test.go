package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"account_service/internal/auth"
	"account_service/internal/common"
	"account_service/internal/mailer"
	"account_service/internal/metrics"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []mailer.Message
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, msg mailer.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, msg)
	return n.err
}

func (n *recordingNotifier) sent() []mailer.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]mailer.Message(nil), n.messages...)
}

type fixture struct {
	svc      *AccountService
	store    *storage.MemoryStorage
	notifier *recordingNotifier
	tokens   *auth.TokenService
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	notifier := &recordingNotifier{}
	m := metrics.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(store, hasher, tokens, notifier, m, log, Options{
		PublicBaseURL: "https://accounts.example.com/",
		ResetTokenTTL: time.Hour,
	})

	return &fixture{svc: svc, store: store, notifier: notifier, tokens: tokens, metrics: m}
}

func (f *fixture) createUser(t *testing.T, username, password string) models.Account {
	t.Helper()

	account, err := f.svc.CreateAccount(context.Background(), models.CreateAccountInput{
		Name:     "User " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)

	return account
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)

	account, err := f.svc.CreateAccount(context.Background(), models.CreateAccountInput{
		Name:     "  Alice  ",
		Username: " alice ",
		Email:    " Alice@Example.COM ",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.NotZero(t, account.ID)
	assert.Equal(t, "Alice", account.Name)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.NotEqual(t, "s3cret", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("s3cret")))

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "Username: alice")
}

func TestCreateAccount_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw")

	tests := []struct {
		name     string
		username string
		email    string
		field    string
	}{
		{"same username", "alice", "other@example.com", "username"},
		{"same email", "bob", "alice@example.com", "email"},
		{"same email different case", "bob", "ALICE@example.com", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAccount(context.Background(), models.CreateAccountInput{
				Name: "X", Username: tt.username, Email: tt.email, Password: "pw",
			})

			var dup *common.DuplicateError
			require.True(t, errors.As(err, &dup), "got %v", err)
			assert.Equal(t, tt.field, dup.Field)
			assert.ErrorIs(t, err, common.ErrDuplicate)
		})
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	f := newFixture(t)

	valid := models.CreateAccountInput{Name: "A", Username: "a", Email: "a@example.com", Password: "pw"}

	tests := []struct {
		name   string
		mutate func(in *models.CreateAccountInput)
		field  string
	}{
		{"empty name", func(in *models.CreateAccountInput) { in.Name = " " }, "name"},
		{"empty username", func(in *models.CreateAccountInput) { in.Username = "" }, "username"},
		{"empty email", func(in *models.CreateAccountInput) { in.Email = "" }, "email"},
		{"bad email", func(in *models.CreateAccountInput) { in.Email = "not-an-email" }, "email"},
		{"display name email", func(in *models.CreateAccountInput) { in.Email = "A <a@example.com>" }, "email"},
		{"empty password", func(in *models.CreateAccountInput) { in.Password = "" }, "password"},
		{"long password", func(in *models.CreateAccountInput) { in.Password = strings.Repeat("x", 73) }, "password"},
		{"bad role", func(in *models.CreateAccountInput) { in.Role = "root" }, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			_, err := f.svc.CreateAccount(context.Background(), in)

			var verr *common.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	accounts, err := f.svc.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	created := f.createUser(t, "alice", "pw")

	token, account, err := f.svc.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)

	claims, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleUser, claims.Role)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginsTotal.WithLabelValues("success")))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "pw"},
		{"empty password", "alice", ""},
		{"case differs", "Alice", "pw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := f.svc.Login(context.Background(), tt.username, tt.password)
			assert.ErrorIs(t, err, common.ErrInvalidCredentials)
			assert.Empty(t, token)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "pw")

	token, _, err := f.svc.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	got, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = f.svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = f.svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)

	require.NoError(t, f.svc.DeleteAccount(context.Background(), alice.ID))

	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "pw")

	token, err := f.tokens.IssueWithTTL(alice, -time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestListAccounts(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw")
	f.createUser(t, "bob", "pw")

	got, err := f.svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "bob", got[1].Username)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "pw")

	byID, err := f.svc.GetAccountByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := f.svc.GetAccountByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byName, err := f.svc.GetAccountByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	_, err = f.svc.GetAccountByID(context.Background(), 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "pw")
	f.createUser(t, "bob", "pw")

	name := "Alice Liddell"
	role := models.RoleAdmin
	same := "alice"

	got, err := f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{
		Name:     &name,
		Role:     &role,
		Username: &same,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, alice.PasswordHash, got.PasswordHash)

	taken := "bob"
	_, err = f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{Username: &taken})
	var dup *common.DuplicateError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "username", dup.Field)

	takenEmail := "BOB@example.com"
	_, err = f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{Email: &takenEmail})
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "email", dup.Field)

	_, err = f.svc.UpdateAccount(context.Background(), 999, models.UpdateAccountInput{Name: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)

	badRole := models.Role("root")
	_, err = f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{Role: &badRole})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdateAccount_Password(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "old")

	password := "new"
	_, err := f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{Password: &password})
	require.NoError(t, err)

	_, _, err = f.svc.Login(context.Background(), "alice", "old")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, _, err = f.svc.Login(context.Background(), "alice", "new")
	assert.NoError(t, err)

	empty := ""
	_, err = f.svc.UpdateAccount(context.Background(), alice.ID, models.UpdateAccountInput{Password: &empty})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestChangeOwnPassword(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "old")

	err := f.svc.ChangeOwnPassword(context.Background(), alice.ID, "wrong", "new")
	assert.ErrorIs(t, err, common.ErrWrongPassword)

	_, _, err = f.svc.Login(context.Background(), "alice", "old")
	require.NoError(t, err, "failed change must leave the password intact")

	require.NoError(t, f.svc.ChangeOwnPassword(context.Background(), alice.ID, "old", "new"))

	_, _, err = f.svc.Login(context.Background(), "alice", "new")
	assert.NoError(t, err)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Your password has been changed", sent[1].Subject)

	err = f.svc.ChangeOwnPassword(context.Background(), 999, "old", "new")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = f.svc.ChangeOwnPassword(context.Background(), alice.ID, "new", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	alice := f.createUser(t, "alice", "pw")

	require.NoError(t, f.svc.DeleteAccount(context.Background(), alice.ID))
	assert.ErrorIs(t, f.svc.DeleteAccount(context.Background(), alice.ID), common.ErrNotFound)

	_, err := f.svc.GetAccountByID(context.Background(), alice.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNotifierFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	account := f.createUser(t, "alice", "pw")
	assert.NotZero(t, account.ID)
}
