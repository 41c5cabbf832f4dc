package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

type MySQLCartRepository struct {
	db *sql.DB
}

func NewMySQLCartRepository(db *sql.DB) *MySQLCartRepository {
	return &MySQLCartRepository{db: db}
}

func (r *MySQLCartRepository) Load(ctx context.Context, cartID string) (*domain.Cart, error) {
	query := `
		SELECT id, items, promoCode, promoPercentOff, updatedAt
		FROM Carts
		WHERE id = ?
	`

	var (
		cart       domain.Cart
		items      []byte
		promoCode  sql.NullString
		percentOff sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, cartID).Scan(
		&cart.ID, &items, &promoCode, &percentOff, &cart.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("cart %s not found", cartID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying cart by id: %w", err)
	}

	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("decoding cart items: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}
	if promoCode.Valid {
		cart.Promo = &domain.AppliedPromo{Code: promoCode.String, PercentOff: int(percentOff.Int64)}
	}

	return &cart, nil
}

func (r *MySQLCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("encoding cart items: %w", err)
	}

	var (
		promoCode  sql.NullString
		percentOff sql.NullInt64
	)
	if cart.Promo != nil {
		promoCode = sql.NullString{String: cart.Promo.Code, Valid: true}
		percentOff = sql.NullInt64{Int64: int64(cart.Promo.PercentOff), Valid: true}
	}

	query := `
		INSERT INTO Carts (id, items, promoCode, promoPercentOff, updatedAt)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			items = VALUES(items),
			promoCode = VALUES(promoCode),
			promoPercentOff = VALUES(promoPercentOff),
			updatedAt = VALUES(updatedAt)
	`

	if _, err := r.db.ExecContext(ctx, query, cart.ID, items, promoCode, percentOff, cart.UpdatedAt); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	return nil
}

func (r *MySQLCartRepository) Clear(ctx context.Context, cartID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM Carts WHERE id = ?`, cartID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}
