package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campcart/internal/domain"
	"campcart/internal/errors"
)

type MySQLCheckoutRecordRepository struct {
	db *sql.DB
}

func NewMySQLCheckoutRecordRepository(db *sql.DB) *MySQLCheckoutRecordRepository {
	return &MySQLCheckoutRecordRepository{db: db}
}

// Save upserts the record for its cart. A cart keeps only its latest
// reservation.
func (r *MySQLCheckoutRecordRepository) Save(ctx context.Context, record *domain.CheckoutRecord) error {
	query := `
		INSERT INTO CheckoutRecords
			(cartId, attemptId, userId, kind, reservationId, paymentMethod, status, serverTotal, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			attemptId = VALUES(attemptId),
			userId = VALUES(userId),
			kind = VALUES(kind),
			reservationId = VALUES(reservationId),
			paymentMethod = VALUES(paymentMethod),
			status = VALUES(status),
			serverTotal = VALUES(serverTotal),
			createdAt = VALUES(createdAt),
			updatedAt = VALUES(updatedAt)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.CartID, record.AttemptID, record.UserID, string(record.Kind), record.ReservationID,
		string(record.PaymentMethod), record.Status, record.ServerTotal, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving checkout record: %w", err)
	}
	return nil
}

func (r *MySQLCheckoutRecordRepository) FindByCartID(ctx context.Context, cartID string) (*domain.CheckoutRecord, error) {
	query := `
		SELECT cartId, attemptId, userId, kind, reservationId, paymentMethod,
		       status, serverTotal, createdAt, updatedAt
		FROM CheckoutRecords
		WHERE cartId = ?
	`

	var (
		record        domain.CheckoutRecord
		kind          string
		paymentMethod string
	)
	err := r.db.QueryRowContext(ctx, query, cartID).Scan(
		&record.CartID, &record.AttemptID, &record.UserID, &kind, &record.ReservationID,
		&paymentMethod, &record.Status, &record.ServerTotal, &record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("checkout record for cart %s not found", cartID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying checkout record by cart: %w", err)
	}

	record.Kind = domain.ReservationKind(kind)
	record.PaymentMethod = domain.PaymentMethod(paymentMethod)
	return &record, nil
}

// UpdateStatus only touches the record written by attemptID, so a late
// update from an older attempt cannot overwrite a newer reservation.
func (r *MySQLCheckoutRecordRepository) UpdateStatus(ctx context.Context, cartID, attemptID, status string) error {
	query := `UPDATE CheckoutRecords SET status = ?, updatedAt = ? WHERE cartId = ? AND attemptId = ?`

	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), cartID, attemptID)
	if err != nil {
		return fmt.Errorf("updating checkout record status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("checkout record for cart %s attempt %s not found", cartID, attemptID))
	}

	return nil
}
