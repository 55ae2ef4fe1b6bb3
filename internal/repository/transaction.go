package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rewearhq/rewear-system/internal/model"
	"github.com/rewearhq/rewear-system/internal/points"
)

// SwapRequestResult содержит данные созданной заявки на обмен.
type SwapRequestResult struct {
	TransactionID int64
	ReceiverID    int64
	ReceiverTitle string
}

// RedemptionRequestResult содержит данные созданной заявки на выкуп.
type RedemptionRequestResult struct {
	TransactionID int64
	OwnerID       int64
	Title         string
	Cost          int64
}

// TransactionParties содержит стороны сделки для отправки уведомлений.
type TransactionParties struct {
	ID          int64
	Type        model.TransactionType
	RequesterID int64
	ReceiverID  int64
}

// ProductSummary содержит краткие данные товара внутри сделки.
type ProductSummary struct {
	ID    int64  `json:"pid"`
	Title string `json:"title"`
}

// TransactionSummary содержит сделку глазами одного из её участников.
type TransactionSummary struct {
	ID               int64
	Type             model.TransactionType
	Status           model.TransactionStatus
	PointsExchanged  int64
	IsRequester      bool
	OtherUserID      int64
	RequesterProduct *ProductSummary
	ReceiverProduct  *ProductSummary
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// lockProducts блокирует строки товаров в порядке возрастания id, чтобы
// конкурирующие операции брали блокировки в одном порядке.
func lockProducts(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]*model.Product, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, owner_id, title, point_value, status
		 FROM products
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	res := make(map[int64]*model.Product, len(ids))
	for rows.Next() {
		var p model.Product
		var status string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.PointValue, &status); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Status = model.ProductStatus(status)
		res[p.ID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func lockUserPoints(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("lock user: %w", err)
	}
	return balance, nil
}

// CreateSwapRequest создаёт заявку на обмен: проверяет доступность обоих
// товаров и достаточность баллов, списывает плату за обмен и резервирует оба
// товара. Выполняется как одна транзакция БД: при любой ошибке не остаётся
// частичных изменений.
func (r *PostgresRepository) CreateSwapRequest(ctx context.Context, requesterID, receiverProductID, requesterProductID int64) (*SwapRequestResult, error) {
	if receiverProductID == requesterProductID {
		return nil, ErrProductUnavailable
	}

	var res SwapRequestResult
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			balance, err := lockUserPoints(ctx, tx, requesterID)
			if err != nil {
				return err
			}

			products, err := lockProducts(ctx, tx, requesterProductID, receiverProductID)
			if err != nil {
				return err
			}

			requesterProduct, ok := products[requesterProductID]
			if !ok {
				return ErrProductNotFound
			}
			receiverProduct, ok := products[receiverProductID]
			if !ok {
				return ErrProductNotFound
			}

			if requesterProduct.Status != model.ProductStatusAvailable ||
				receiverProduct.Status != model.ProductStatusAvailable {
				return ErrProductUnavailable
			}

			if balance < points.SwapFee {
				return ErrInsufficientPoints
			}

			var tid int64
			err = tx.QueryRow(ctx,
				`INSERT INTO transactions (type, requester_id, receiver_id, requester_product_id, receiver_product_id, points_exchanged)
				 VALUES ('swap', $1, $2, $3, $4, $5)
				 RETURNING id`,
				requesterID, receiverProduct.OwnerID, requesterProductID, receiverProductID, points.SwapFee,
			).Scan(&tid)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}

			if err := addPointsTx(ctx, tx, requesterID, -points.SwapFee, model.PointKindSwapFee, &tid, "Swap request fee"); err != nil {
				return err
			}

			// Резервируются оба товара, чтобы ни один из них не участвовал
			// в конкурирующих заявках, пока эта не разрешится.
			_, err = tx.Exec(ctx,
				`UPDATE products SET status = 'reserved', updated_at = now() WHERE id = ANY($1)`,
				[]int64{requesterProductID, receiverProductID},
			)
			if err != nil {
				return fmt.Errorf("reserve products: %w", err)
			}

			res = SwapRequestResult{
				TransactionID: tid,
				ReceiverID:    receiverProduct.OwnerID,
				ReceiverTitle: receiverProduct.Title,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateRedemptionRequest создаёт заявку на выкуп товара за баллы: проверяет
// доступность товара и достаточность баллов, списывает стоимость выкупа и
// резервирует товар. Одна транзакция БД, без частичных изменений при ошибке.
func (r *PostgresRepository) CreateRedemptionRequest(ctx context.Context, requesterID, productID int64) (*RedemptionRequestResult, error) {
	var res RedemptionRequestResult
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			balance, err := lockUserPoints(ctx, tx, requesterID)
			if err != nil {
				return err
			}

			products, err := lockProducts(ctx, tx, productID)
			if err != nil {
				return err
			}

			product, ok := products[productID]
			if !ok {
				return ErrProductNotFound
			}
			if product.Status != model.ProductStatusAvailable {
				return ErrProductUnavailable
			}

			cost := points.RedemptionCost(product.PointValue)
			if balance < cost {
				return ErrInsufficientPoints
			}

			var tid int64
			err = tx.QueryRow(ctx,
				`INSERT INTO transactions (type, requester_id, receiver_id, receiver_product_id, points_exchanged)
				 VALUES ('redemption', $1, $2, $3, $4)
				 RETURNING id`,
				requesterID, product.OwnerID, productID, cost,
			).Scan(&tid)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}

			if err := addPointsTx(ctx, tx, requesterID, -cost, model.PointKindRedeemItem, &tid,
				fmt.Sprintf("Redemption of item: %s", product.Title)); err != nil {
				return err
			}

			_, err = tx.Exec(ctx,
				`UPDATE products SET status = 'reserved', updated_at = now() WHERE id = $1`,
				productID,
			)
			if err != nil {
				return fmt.Errorf("reserve product: %w", err)
			}

			res = RedemptionRequestResult{
				TransactionID: tid,
				OwnerID:       product.OwnerID,
				Title:         product.Title,
				Cost:          cost,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// lockedTransaction содержит состояние сделки, прочитанное под блокировкой строки.
type lockedTransaction struct {
	ID                 int64
	Type               model.TransactionType
	Status             model.TransactionStatus
	RequesterID        int64
	ReceiverID         int64
	RequesterProductID *int64
	ReceiverProductID  int64
	PointsExchanged    int64
}

func lockTransaction(ctx context.Context, tx pgx.Tx, id int64) (*lockedTransaction, error) {
	var (
		lt     lockedTransaction
		ttype  string
		status string
	)
	err := tx.QueryRow(ctx,
		`SELECT id, type, status, requester_id, receiver_id,
		        requester_product_id, COALESCE(receiver_product_id, 0), points_exchanged
		 FROM transactions
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	).Scan(&lt.ID, &ttype, &status, &lt.RequesterID, &lt.ReceiverID,
		&lt.RequesterProductID, &lt.ReceiverProductID, &lt.PointsExchanged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("lock transaction: %w", err)
	}
	lt.Type = model.TransactionType(ttype)
	lt.Status = model.TransactionStatus(status)
	return &lt, nil
}

func (lt *lockedTransaction) parties() *TransactionParties {
	return &TransactionParties{
		ID:          lt.ID,
		Type:        lt.Type,
		RequesterID: lt.RequesterID,
		ReceiverID:  lt.ReceiverID,
	}
}

// AcceptTransaction переводит сделку из requested в accepted. Баллы и статусы
// товаров на этом шаге не меняются, все расчёты происходят при завершении.
func (r *PostgresRepository) AcceptTransaction(ctx context.Context, id int64) (*TransactionParties, error) {
	var parties *TransactionParties
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			lt, err := lockTransaction(ctx, tx, id)
			if err != nil {
				return err
			}

			if lt.Status != model.TransactionStatusRequested {
				return ErrTransactionStatus
			}

			_, err = tx.Exec(ctx,
				`UPDATE transactions SET status = 'accepted', updated_at = now() WHERE id = $1`,
				id,
			)
			if err != nil {
				return fmt.Errorf("accept transaction: %w", err)
			}

			parties = lt.parties()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return parties, nil
}

// CompleteTransaction переводит сделку из accepted в completed.
// Для обмена оба товара получают статус swapped и меняются владельцами,
// владелец запрошенной вещи получает фиксированную премию. Для выкупа товар
// получает статус redeemed, переходит инициатору, а прежний владелец получает
// балльную стоимость товара (не наценку, уплаченную инициатором).
func (r *PostgresRepository) CompleteTransaction(ctx context.Context, id int64) (*TransactionParties, error) {
	var parties *TransactionParties
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			lt, err := lockTransaction(ctx, tx, id)
			if err != nil {
				return err
			}

			if lt.Status != model.TransactionStatusAccepted {
				return ErrTransactionStatus
			}

			switch lt.Type {
			case model.TransactionTypeSwap:
				if err := completeSwapTx(ctx, tx, lt); err != nil {
					return err
				}
			case model.TransactionTypeRedemption:
				if err := completeRedemptionTx(ctx, tx, lt); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown transaction type: %s", lt.Type)
			}

			_, err = tx.Exec(ctx,
				`UPDATE transactions SET status = 'completed', updated_at = now(), completed_at = now() WHERE id = $1`,
				id,
			)
			if err != nil {
				return fmt.Errorf("complete transaction: %w", err)
			}

			parties = lt.parties()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return parties, nil
}

func completeSwapTx(ctx context.Context, tx pgx.Tx, lt *lockedTransaction) error {
	if lt.RequesterProductID == nil {
		return ErrProductNotFound
	}

	products, err := lockProducts(ctx, tx, *lt.RequesterProductID, lt.ReceiverProductID)
	if err != nil {
		return err
	}
	if len(products) != 2 {
		return ErrProductNotFound
	}

	// Владение меняется крест-накрест: вещь инициатора уходит владельцу
	// запрошенной вещи и наоборот.
	_, err = tx.Exec(ctx,
		`UPDATE products SET status = 'swapped', owner_id = $2, updated_at = now() WHERE id = $1`,
		*lt.RequesterProductID, lt.ReceiverID,
	)
	if err != nil {
		return fmt.Errorf("transfer requester product: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET status = 'swapped', owner_id = $2, updated_at = now() WHERE id = $1`,
		lt.ReceiverProductID, lt.RequesterID,
	)
	if err != nil {
		return fmt.Errorf("transfer receiver product: %w", err)
	}

	return addPointsTx(ctx, tx, lt.ReceiverID, points.SwapBonus, model.PointKindSuccessfulSwap, &lt.ID,
		"Bonus for completing a swap")
}

func completeRedemptionTx(ctx context.Context, tx pgx.Tx, lt *lockedTransaction) error {
	products, err := lockProducts(ctx, tx, lt.ReceiverProductID)
	if err != nil {
		return err
	}
	product, ok := products[lt.ReceiverProductID]
	if !ok {
		return ErrProductNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET status = 'redeemed', owner_id = $2, updated_at = now() WHERE id = $1`,
		lt.ReceiverProductID, lt.RequesterID,
	)
	if err != nil {
		return fmt.Errorf("transfer redeemed product: %w", err)
	}

	// Прежнему владельцу начисляется стоимость товара, а не сумма,
	// уплаченная инициатором: наценка выкупа остаётся комиссией платформы.
	return addPointsTx(ctx, tx, lt.ReceiverID, product.PointValue, model.PointKindItemRedeemed, &lt.ID,
		fmt.Sprintf("Points for redeemed item: %s", product.Title))
}

// RejectTransaction переводит сделку из requested в rejected, возвращает
// инициатору ровно списанную при создании сумму и снимает резерв с товаров.
func (r *PostgresRepository) RejectTransaction(ctx context.Context, id int64) (*TransactionParties, error) {
	var parties *TransactionParties
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			lt, err := lockTransaction(ctx, tx, id)
			if err != nil {
				return err
			}

			if lt.Status != model.TransactionStatusRequested {
				return ErrTransactionStatus
			}

			_, err = tx.Exec(ctx,
				`UPDATE transactions SET status = 'rejected', updated_at = now() WHERE id = $1`,
				id,
			)
			if err != nil {
				return fmt.Errorf("reject transaction: %w", err)
			}

			// Возврат строго по сохранённому points_exchanged, а не по
			// текущим константам: сумма возврата всегда равна списанной.
			refundKind := model.PointKindSwapFeeRefund
			refundDescription := "Refund for rejected swap request"
			if lt.Type == model.TransactionTypeRedemption {
				refundKind = model.PointKindRedemptionRefund
				refundDescription = "Refund for rejected redemption"
			}
			if err := addPointsTx(ctx, tx, lt.RequesterID, lt.PointsExchanged, refundKind, &lt.ID, refundDescription); err != nil {
				return err
			}

			productIDs := []int64{lt.ReceiverProductID}
			if lt.Type == model.TransactionTypeSwap && lt.RequesterProductID != nil {
				productIDs = append(productIDs, *lt.RequesterProductID)
			}

			_, err = tx.Exec(ctx,
				`UPDATE products SET status = 'available', updated_at = now() WHERE id = ANY($1)`,
				productIDs,
			)
			if err != nil {
				return fmt.Errorf("release products: %w", err)
			}

			parties = lt.parties()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return parties, nil
}

// GetTransaction возвращает сделку по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	var (
		t      model.Transaction
		ttype  string
		status string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, status, requester_id, receiver_id,
		        requester_product_id, COALESCE(receiver_product_id, 0),
		        points_exchanged, created_at, updated_at, completed_at
		 FROM transactions
		 WHERE id = $1`,
		id,
	).Scan(&t.ID, &ttype, &status, &t.RequesterID, &t.ReceiverID,
		&t.RequesterProductID, &t.ReceiverProductID, &t.PointsExchanged,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	t.Type = model.TransactionType(ttype)
	t.Status = model.TransactionStatus(status)
	return &t, nil
}

// GetUserTransactions возвращает сделки пользователя в любой роли, новые первыми.
func (r *PostgresRepository) GetUserTransactions(ctx context.Context, userID int64) ([]TransactionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.type, t.status, t.points_exchanged,
		        t.requester_id, t.receiver_id,
		        t.requester_product_id, rp.title,
		        t.receiver_product_id, vp.title,
		        t.created_at, t.completed_at
		 FROM transactions t
		 LEFT JOIN products rp ON rp.id = t.requester_product_id
		 LEFT JOIN products vp ON vp.id = t.receiver_product_id
		 WHERE t.requester_id = $1 OR t.receiver_id = $1
		 ORDER BY t.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []TransactionSummary
	for rows.Next() {
		var (
			s              TransactionSummary
			ttype, status  string
			requesterID    int64
			receiverID     int64
			reqPID, recPID *int64
			reqTitle       *string
			recTitle       *string
		)
		if err := rows.Scan(&s.ID, &ttype, &status, &s.PointsExchanged,
			&requesterID, &receiverID,
			&reqPID, &reqTitle, &recPID, &recTitle,
			&s.CreatedAt, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		s.Type = model.TransactionType(ttype)
		s.Status = model.TransactionStatus(status)
		s.IsRequester = requesterID == userID
		if s.IsRequester {
			s.OtherUserID = receiverID
		} else {
			s.OtherUserID = requesterID
		}
		if reqPID != nil && reqTitle != nil {
			s.RequesterProduct = &ProductSummary{ID: *reqPID, Title: *reqTitle}
		}
		if recPID != nil && recTitle != nil {
			s.ReceiverProduct = &ProductSummary{ID: *recPID, Title: *recTitle}
		}

		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
