package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/common"
	"account_service/internal/models"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const accountColumns = `id, name, username, email, password_hash, user_role, reset_token, reset_token_expires, created_at, updated_at`

// pgxPool is the part of *pgxpool.Pool the storage uses.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close()
}

type PostgresStorage struct {
	db pgxPool
}

func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	conn, err := pgxpool.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PostgresStorage{
		db: conn,
	}, nil
}

func newPostgresStorage(db pgxPool) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (p *PostgresStorage) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const op = "storage.CreateAccount"

	query := fmt.Sprintf(`INSERT INTO %s(name, username, email, password_hash, user_role)
	VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at;`, usersTable)

	err := p.db.QueryRow(ctx, query,
		account.Name, account.Username, account.Email, account.PasswordHash, string(account.Role),
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}

	return account, nil
}

func (p *PostgresStorage) GetAccountByID(ctx context.Context, id int64) (models.Account, error) {
	const op = "storage.GetAccountByID"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1;", accountColumns, usersTable)

	account, err := scanAccount(p.db.QueryRow(ctx, query, id))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}

	return account, nil
}

func (p *PostgresStorage) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	const op = "storage.GetAccountByUsername"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE username=$1;", accountColumns, usersTable)

	account, err := scanAccount(p.db.QueryRow(ctx, query, username))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}

	return account, nil
}

func (p *PostgresStorage) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const op = "storage.GetAccountByEmail"

	query := fmt.Sprintf("SELECT %s FROM %s WHERE email=$1;", accountColumns, usersTable)

	account, err := scanAccount(p.db.QueryRow(ctx, query, email))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}

	return account, nil
}

func (p *PostgresStorage) ListAccounts(ctx context.Context) ([]models.Account, error) {
	const op = "storage.ListAccounts"

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id;", accountColumns, usersTable)

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w", op, err)
	}

	return accounts, nil
}

func (p *PostgresStorage) UpdateAccount(ctx context.Context, id int64, fn UpdateFunc) (models.Account, error) {
	const op = "storage.UpdateAccount"

	var account models.Account

	err := p.withTx(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 FOR UPDATE;", accountColumns, usersTable)

		locked, err := scanAccount(tx.QueryRow(ctx, query, id))
		if err != nil {
			return mapPgError(err)
		}

		if err := fn(&locked); err != nil {
			return err
		}

		update := fmt.Sprintf(`UPDATE %s
		SET name=$1, username=$2, email=$3, password_hash=$4, user_role=$5,
		    reset_token=$6, reset_token_expires=$7, updated_at=now()
		WHERE id=$8 RETURNING updated_at;`, usersTable)

		err = tx.QueryRow(ctx, update,
			locked.Name, locked.Username, locked.Email, locked.PasswordHash, string(locked.Role),
			locked.ResetToken, locked.ResetTokenExpires, id,
		).Scan(&locked.UpdatedAt)
		if err != nil {
			return mapPgError(err)
		}

		account = locked
		return nil
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

func (p *PostgresStorage) DeleteAccount(ctx context.Context, id int64) error {
	const op = "storage.DeleteAccount"

	query := fmt.Sprintf("DELETE FROM %s WHERE id=$1;", usersTable)

	tag, err := p.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	return nil
}

func (p *PostgresStorage) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	const op = "storage.SetResetToken"

	query := fmt.Sprintf(`UPDATE %s SET reset_token=$1, reset_token_expires=$2, updated_at=now() WHERE id=$3;`, usersTable)

	tag, err := p.db.Exec(ctx, query, token, expires, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	return nil
}

// ConsumeResetToken is a single conditional UPDATE, so of two concurrent
// calls with the same token only one can match the row.
func (p *PostgresStorage) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (models.Account, error) {
	const op = "storage.ConsumeResetToken"

	query := fmt.Sprintf(`UPDATE %s
	SET password_hash=$1, reset_token=NULL, reset_token_expires=NULL, updated_at=now()
	WHERE reset_token=$2 AND reset_token_expires > $3
	RETURNING %s;`, usersTable, accountColumns)

	account, err := scanAccount(p.db.QueryRow(ctx, query, passwordHash, token, now))
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, mapPgError(err))
	}

	return account, nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

func (p *PostgresStorage) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		account models.Account
		role    string
	)

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&role,
		&account.ResetToken,
		&account.ResetTokenExpires,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return models.Account{}, err
	}

	account.Role = models.Role(role)

	return account, nil
}

// mapPgError turns driver errors into the shared sentinels.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case usernameUniqueConstraint:
			return &common.DuplicateError{Field: "username"}
		case emailUniqueConstraint:
			return &common.DuplicateError{Field: "email"}
		default:
			return &common.DuplicateError{Field: pgErr.ConstraintName}
		}
	}

	return err
}
