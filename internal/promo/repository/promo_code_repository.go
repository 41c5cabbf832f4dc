package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

type MySQLPromoCodeRepository struct {
	db *sql.DB
}

func NewMySQLPromoCodeRepository(db *sql.DB) *MySQLPromoCodeRepository {
	return &MySQLPromoCodeRepository{db: db}
}

// FindByCode looks the code up case-insensitively.
func (r *MySQLPromoCodeRepository) FindByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `
		SELECT id, code, percentOff, active, expiresAt, createdAt, updatedAt
		FROM PromoCodes
		WHERE code = ?
	`

	var (
		promo     domain.PromoCode
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&promo.ID, &promo.Code, &promo.PercentOff, &promo.Active, &expiresAt,
		&promo.CreatedAt, &promo.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("promo code %q not found", code))
	}
	if err != nil {
		return nil, fmt.Errorf("querying promo code: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		promo.ExpiresAt = &t
	}

	return &promo, nil
}
