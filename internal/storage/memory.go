package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"account_service/internal/common"
	"account_service/internal/models"
)

// MemoryStorage keeps accounts in process memory. One mutex guards the whole
// directory, which makes every operation atomic. Used by tests and by
// `db.driver: memory` for local runs.
type MemoryStorage struct {
	mu       sync.Mutex
	accounts map[int64]models.Account
	nextID   int64
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		accounts: make(map[int64]models.Account),
		nextID:   1,
		now:      time.Now,
	}
}

func (m *MemoryStorage) CreateAccount(_ context.Context, account models.Account) (models.Account, error) {
	const op = "storage.CreateAccount"

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(0, account.Username, account.Email); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	now := m.now().UTC()
	account.ID = m.nextID
	account.CreatedAt = now
	account.UpdatedAt = now
	m.nextID++

	m.accounts[account.ID] = clone(account)

	return clone(account), nil
}

func (m *MemoryStorage) GetAccountByID(_ context.Context, id int64) (models.Account, error) {
	const op = "storage.GetAccountByID"

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	return clone(account), nil
}

func (m *MemoryStorage) GetAccountByUsername(_ context.Context, username string) (models.Account, error) {
	const op = "storage.GetAccountByUsername"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Username == username {
			return clone(account), nil
		}
	}

	return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
}

func (m *MemoryStorage) GetAccountByEmail(_ context.Context, email string) (models.Account, error) {
	const op = "storage.GetAccountByEmail"

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Email == email {
			return clone(account), nil
		}
	}

	return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
}

func (m *MemoryStorage) ListAccounts(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make([]models.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, clone(account))
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	return accounts, nil
}

func (m *MemoryStorage) UpdateAccount(_ context.Context, id int64, fn UpdateFunc) (models.Account, error) {
	const op = "storage.UpdateAccount"

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	updated := clone(current)
	if err := fn(&updated); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.checkUnique(id, updated.Username, updated.Email); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	updated.ID = id
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = m.now().UTC()
	m.accounts[id] = clone(updated)

	return updated, nil
}

func (m *MemoryStorage) DeleteAccount(_ context.Context, id int64) error {
	const op = "storage.DeleteAccount"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	delete(m.accounts, id)

	return nil
}

func (m *MemoryStorage) SetResetToken(_ context.Context, id int64, token string, expires time.Time) error {
	const op = "storage.SetResetToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	account.SetResetToken(token, expires)
	account.UpdatedAt = m.now().UTC()
	m.accounts[id] = account

	return nil
}

func (m *MemoryStorage) ConsumeResetToken(_ context.Context, token string, now time.Time, passwordHash string) (models.Account, error) {
	const op = "storage.ConsumeResetToken"

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, account := range m.accounts {
		if !account.HasValidResetToken(token, now) {
			continue
		}

		account.PasswordHash = passwordHash
		account.ClearResetToken()
		account.UpdatedAt = m.now().UTC()
		m.accounts[id] = account

		return clone(account), nil
	}

	return models.Account{}, fmt.Errorf("%s: %w", op, common.ErrNotFound)
}

func (m *MemoryStorage) Close() {}

// checkUnique must be called with mu held. selfID is skipped so an account
// never collides with itself. Username collisions are reported before email.
func (m *MemoryStorage) checkUnique(selfID int64, username, email string) error {
	for id, other := range m.accounts {
		if id != selfID && other.Username == username {
			return &common.DuplicateError{Field: "username"}
		}
	}

	for id, other := range m.accounts {
		if id != selfID && other.Email == email {
			return &common.DuplicateError{Field: "email"}
		}
	}

	return nil
}

// clone copies the reset pointers so callers cannot mutate stored state.
func clone(a models.Account) models.Account {
	if a.ResetToken != nil {
		token := *a.ResetToken
		a.ResetToken = &token
	}
	if a.ResetTokenExpires != nil {
		expires := *a.ResetTokenExpires
		a.ResetTokenExpires = &expires
	}

	return a
}
