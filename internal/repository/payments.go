package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"geoconnect/internal/apperrors"
	"geoconnect/internal/models"
)

const selectPayment = `
	SELECT id, tenant_id, provider_id, booking_id, psp, psp_reference,
	       amount, currency, status, metadata, created_at, updated_at
	FROM payment_transactions`

func scanPayment(row rowScanner) (*models.PaymentTransaction, error) {
	p := &models.PaymentTransaction{}
	var metadata []byte
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.ProviderID,
		&p.BookingID,
		&p.PSP,
		&p.PSPReference,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode payment metadata: %w", err)
		}
	}
	return p, nil
}

// CreatePayment records a new payment attempt in INITIATED state.
func (q *queries) CreatePayment(ctx context.Context, payment *models.PaymentTransaction) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode payment metadata: %w", err)
	}

	return q.q.QueryRowContext(ctx, `
		INSERT INTO payment_transactions (id, tenant_id, provider_id, booking_id, psp,
		                                  psp_reference, amount, currency, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		payment.ID,
		payment.TenantID,
		payment.ProviderID,
		payment.BookingID,
		payment.PSP,
		payment.PSPReference,
		payment.Amount,
		payment.Currency,
		payment.Status,
		metadata,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// PaymentByReference resolves the provider-assigned reference a webhook
// carries.
func (q *queries) PaymentByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	row := q.q.QueryRowContext(ctx, selectPayment+` WHERE psp_reference = $1`, reference)
	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindPaymentNotFound, "payment transaction not found")
	}
	return payment, err
}

// UpdatePaymentStatus applies a webhook-driven status change.
func (q *queries) UpdatePaymentStatus(ctx context.Context, paymentID uuid.UUID, status models.PaymentStatus) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE payment_transactions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, paymentID)
	return err
}
