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

// Баллы за выставление вещи на обмен.
const listingBonus int64 = 10

// ProductParams содержит данные нового объявления.
type ProductParams struct {
	Title       string
	Description string
	Category    string
	Subcategory string
	Size        string
	Condition   string
	PointValue  int64
}

// ApprovedProduct содержит данные одобренного товара для уведомления владельца.
type ApprovedProduct struct {
	OwnerID    int64
	Title      string
	PointValue int64
}

// CreateProduct создаёт объявление в статусе pending и начисляет владельцу
// баллы за размещение.
func (r *PostgresRepository) CreateProduct(ctx context.Context, ownerID int64, p ProductParams) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO products (owner_id, title, description, category, subcategory, size, condition, point_value)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			ownerID, p.Title, p.Description, p.Category, p.Subcategory, p.Size, p.Condition, p.PointValue,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert product: %w", err)
		}

		return addPointsTx(ctx, tx, ownerID, listingBonus, model.PointKindItemListing, &id, "Points for listing an item")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// AddProductImage добавляет изображение товара. Если изображение помечено
// основным, предыдущее основное изображение теряет этот признак.
func (r *PostgresRepository) AddProductImage(ctx context.Context, productID int64, url string, isPrimary bool) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if isPrimary {
			_, err := tx.Exec(ctx,
				`UPDATE product_images SET is_primary = FALSE WHERE product_id = $1 AND is_primary`,
				productID,
			)
			if err != nil {
				return fmt.Errorf("demote primary image: %w", err)
			}
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO product_images (product_id, url, is_primary) VALUES ($1, $2, $3) RETURNING id`,
			productID, url, isPrimary,
		).Scan(&id)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return ErrProductNotFound
			}
			return fmt.Errorf("insert product image: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, description, category, subcategory, size, condition,
		        point_value, status, is_featured, created_at, updated_at
		 FROM products WHERE id = $1`,
		id,
	)

	var p model.Product
	var status string
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Category, &p.Subcategory,
		&p.Size, &p.Condition, &p.PointValue, &status, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p.Status = model.ProductStatus(status)
	return &p, nil
}

// GetProductImages возвращает изображения товара, основное первым.
func (r *PostgresRepository) GetProductImages(ctx context.Context, productID int64) ([]model.ProductImage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, url, is_primary, created_at
		 FROM product_images
		 WHERE product_id = $1
		 ORDER BY is_primary DESC, id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select product images: %w", err)
	}
	defer rows.Close()

	var res []model.ProductImage
	for rows.Next() {
		var img model.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.IsPrimary, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		res = append(res, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetAvailableProducts возвращает доступные товары, сначала продвигаемые,
// затем новые. Категория необязательна.
func (r *PostgresRepository) GetAvailableProducts(ctx context.Context, category string, limit, offset int) ([]model.Product, error) {
	query := `SELECT id, owner_id, title, description, category, subcategory, size, condition,
	                 point_value, status, is_featured, created_at, updated_at
	          FROM products
	          WHERE status = 'available'`
	args := []any{}

	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}

	query += fmt.Sprintf(` ORDER BY is_featured DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	return r.queryProducts(ctx, query, args...)
}

// GetUserProducts возвращает все товары пользователя.
func (r *PostgresRepository) GetUserProducts(ctx context.Context, ownerID int64) ([]model.Product, error) {
	return r.queryProducts(ctx,
		`SELECT id, owner_id, title, description, category, subcategory, size, condition,
		        point_value, status, is_featured, created_at, updated_at
		 FROM products
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
}

func (r *PostgresRepository) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		var status string
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Category, &p.Subcategory,
			&p.Size, &p.Condition, &p.PointValue, &status, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Status = model.ProductStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveProduct переводит товар из pending в available и начисляет владельцу
// его балльную стоимость. Возвращает данные для уведомления владельца.
func (r *PostgresRepository) ApproveProduct(ctx context.Context, id int64) (*ApprovedProduct, error) {
	var approved ApprovedProduct
	err := r.withRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var status string
			err := tx.QueryRow(ctx,
				`SELECT owner_id, title, point_value, status FROM products WHERE id = $1 FOR UPDATE`,
				id,
			).Scan(&approved.OwnerID, &approved.Title, &approved.PointValue, &status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrProductNotFound
				}
				return fmt.Errorf("lock product: %w", err)
			}

			if model.ProductStatus(status) != model.ProductStatusPending {
				return ErrProductUnavailable
			}

			_, err = tx.Exec(ctx,
				`UPDATE products SET status = 'available', updated_at = now() WHERE id = $1`,
				id,
			)
			if err != nil {
				return fmt.Errorf("approve product: %w", err)
			}

			return addPointsTx(ctx, tx, approved.OwnerID, approved.PointValue, model.PointKindItemApproved, &id,
				fmt.Sprintf("Points for approved item: %s", approved.Title))
		})
	})
	if err != nil {
		return nil, err
	}
	return &approved, nil
}
