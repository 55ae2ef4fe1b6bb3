package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rewearhq/rewear-system/internal/model"
)

// Премия получателю отзыва с оценкой 4 и выше.
const positiveFeedbackBonus int64 = 5

// CreateFeedback сохраняет отзыв по сделке. Повторный отзыв от того же автора
// по той же сделке отклоняется. Оценка 4 и выше приносит получателю отзыва
// премиальные баллы в той же транзакции БД.
func (r *PostgresRepository) CreateFeedback(ctx context.Context, transactionID, reviewerID, revieweeID int64, rating int, comment string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO feedback (transaction_id, reviewer_id, reviewee_id, rating, comment)
			 VALUES ($1, $2, $3, $4, $5)`,
			transactionID, reviewerID, revieweeID, rating, comment,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case pgerrcode.UniqueViolation:
					return ErrFeedbackExists
				case pgerrcode.ForeignKeyViolation:
					return ErrTransactionNotFound
				}
			}
			return fmt.Errorf("insert feedback: %w", err)
		}

		if rating >= 4 {
			return addPointsTx(ctx, tx, revieweeID, positiveFeedbackBonus, model.PointKindPositiveFeedback, &transactionID,
				"Points for positive feedback")
		}
		return nil
	})
}

// GetUserRating возвращает среднюю оценку пользователя и число отзывов.
// Если отзывов нет, возвращает nil.
func (r *PostgresRepository) GetUserRating(ctx context.Context, userID int64) (*model.Rating, error) {
	var (
		avg   *float64
		total int
	)
	err := r.pool.QueryRow(ctx,
		`SELECT AVG(rating), COUNT(*) FROM feedback WHERE reviewee_id = $1`,
		userID,
	).Scan(&avg, &total)
	if err != nil {
		return nil, fmt.Errorf("get user rating: %w", err)
	}

	if total == 0 || avg == nil {
		return nil, nil
	}

	return &model.Rating{
		Average: float64(int(*avg*10+0.5)) / 10,
		Total:   total,
	}, nil
}
