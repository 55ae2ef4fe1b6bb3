package repository

import (
	"context"
	"fmt"

	"github.com/rewearhq/rewear-system/internal/model"
)

// CreateNotification добавляет уведомление пользователю. Запись только
// добавляется и не участвует в транзакциях движка сделок: сбой уведомления
// не должен откатывать финансовые изменения.
func (r *PostgresRepository) CreateNotification(ctx context.Context, userID int64, message, notificationType string, referenceID *int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (user_id, message, type, reference_id)
		 VALUES ($1, $2, $3, $4)`,
		userID, message, notificationType, referenceID,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetUserNotifications возвращает уведомления пользователя, новые первыми.
func (r *PostgresRepository) GetUserNotifications(ctx context.Context, userID int64, limit, offset int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, is_read, type, reference_id, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.Type, &n.ReferenceID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationRead отмечает уведомление пользователя прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
