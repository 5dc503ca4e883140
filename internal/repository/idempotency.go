package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"geoconnect/internal/apperrors"
)

// Postgres unique_violation.
const uniqueViolation = "23505"

// RegisterIdempotencyKey claims a (key, scope) pair with a single insert.
// The unique constraint is the only concurrency mechanism: a duplicate,
// racing or not, surfaces as IDEMPOTENCY_KEY_USED.
func (q *queries) RegisterIdempotencyKey(ctx context.Context, key, scope string, ttl time.Duration) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (id, key, endpoint_scope, expires_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), key, scope, time.Now().Add(ttl))

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return apperrors.Newf(apperrors.KindIdempotencyKeyUsed, "idempotency key already used for %s", scope)
	}
	if err != nil {
		return fmt.Errorf("failed to register idempotency key: %w", err)
	}
	return nil
}
