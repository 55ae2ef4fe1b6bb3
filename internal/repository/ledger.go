package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rewearhq/rewear-system/internal/model"
)

// addPointsTx добавляет запись в журнал баллов и на ту же величину меняет
// кешированный баланс пользователя. Выполняется строго внутри транзакции
// вызывающей операции: обе записи фиксируются или откатываются вместе.
// Неотрицательность баланса здесь не проверяется, достаточность баллов
// проверяет вызывающая операция до списания.
func addPointsTx(ctx context.Context, tx pgx.Tx, userID, amount int64, kind model.PointKind, referenceID *int64, description string) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO point_transactions (user_id, amount, kind, reference_id, description)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, amount, string(kind), referenceID, description,
	)
	if err != nil {
		return fmt.Errorf("insert point transaction: %w", err)
	}

	return nil
}

// GetBalance возвращает кешированный баланс баллов пользователя.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx,
		`SELECT points FROM users WHERE id = $1`,
		userID,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// SumPointTransactions возвращает сумму всех записей журнала баллов пользователя.
// Используется для сверки с кешированным балансом.
func (r *PostgresRepository) SumPointTransactions(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM point_transactions WHERE user_id = $1`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum point transactions: %w", err)
	}
	return sum, nil
}

// GetPointTransactions возвращает записи журнала баллов пользователя, новые первыми.
func (r *PostgresRepository) GetPointTransactions(ctx context.Context, userID int64, limit, offset int) ([]model.PointTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, kind, reference_id, COALESCE(description, ''), created_at
		 FROM point_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select point transactions: %w", err)
	}
	defer rows.Close()

	var res []model.PointTransaction
	for rows.Next() {
		var pt model.PointTransaction
		var kind string
		if err := rows.Scan(&pt.ID, &pt.UserID, &pt.Amount, &kind, &pt.ReferenceID, &pt.Description, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		pt.Kind = model.PointKind(kind)
		res = append(res, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
