package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rewearhq/rewear-system/internal/model"
)

// Стартовые начисления нового пользователя.
const (
	signupBonus     int64 = 100
	firstLoginBonus int64 = 50
)

// CreateUser создаёт нового пользователя и начисляет стартовые баллы.
// Стартовый баланс проводится через журнал, чтобы сумма записей журнала
// всегда совпадала с кешированным балансом.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
			name, email, passwordHash,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrUserExists, email)
			}
			return fmt.Errorf("create user: %w", err)
		}

		if err := addPointsTx(ctx, tx, id, signupBonus, model.PointKindSignupBonus, nil, "Starting balance"); err != nil {
			return err
		}
		return addPointsTx(ctx, tx, id, firstLoginBonus, model.PointKindFirstLogin, nil, "First-time login bonus")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, points, created_at, last_login
		 FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, points, created_at, last_login
		 FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Points, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// UpdateLastLogin фиксирует время последнего входа пользователя.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
