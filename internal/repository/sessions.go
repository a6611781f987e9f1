package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/lib/pq"
)

const sessionColumns = `id, user_id, idempotency_key, status, cart_snapshot, address_id, coupon, totals,
	payment_method, payment_intent_id, client_secret, delivery, order_id, failure_reason, created_at, updated_at`

// sessionRow holds the JSON columns before they are decoded.
type sessionRow struct {
	snapshot []byte
	coupon   []byte
	totals   []byte
	delivery []byte
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.CheckoutSession, error) {
	var s domain.CheckoutSession
	var raw sessionRow
	var paymentMethod string
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.IdempotencyKey,
		&s.Status,
		&raw.snapshot,
		&s.AddressID,
		&raw.coupon,
		&raw.totals,
		&paymentMethod,
		&s.PaymentIntentID,
		&s.ClientSecret,
		&raw.delivery,
		&s.OrderID,
		&s.FailureReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.PaymentMethod = domain.PaymentMethod(paymentMethod)

	if err := json.Unmarshal(raw.snapshot, &s.CartSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	if len(raw.coupon) > 0 {
		s.Coupon = &domain.AppliedCoupon{}
		if err := json.Unmarshal(raw.coupon, s.Coupon); err != nil {
			return nil, fmt.Errorf("unmarshal coupon: %w", err)
		}
	}
	if err := json.Unmarshal(raw.totals, &s.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal totals: %w", err)
	}
	if err := json.Unmarshal(raw.delivery, &s.Delivery); err != nil {
		return nil, fmt.Errorf("unmarshal delivery: %w", err)
	}
	return &s, nil
}

func marshalSession(s *domain.CheckoutSession) (sessionRow, error) {
	var raw sessionRow
	var err error
	if raw.snapshot, err = json.Marshal(s.CartSnapshot); err != nil {
		return raw, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	if s.Coupon != nil {
		if raw.coupon, err = json.Marshal(s.Coupon); err != nil {
			return raw, fmt.Errorf("marshal coupon: %w", err)
		}
	}
	if raw.totals, err = json.Marshal(s.Totals); err != nil {
		return raw, fmt.Errorf("marshal totals: %w", err)
	}
	if raw.delivery, err = json.Marshal(s.Delivery); err != nil {
		return raw, fmt.Errorf("marshal delivery: %w", err)
	}
	return raw, nil
}

// CreateSession inserts s. A second session for the same user and idempotency key
// returns ErrDuplicateCheckout.
func (r *Repository) CreateSession(ctx context.Context, s *domain.CheckoutSession) error {
	raw, err := marshalSession(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO checkout_sessions (id, user_id, idempotency_key, status, cart_snapshot, address_id, coupon,
	          totals, payment_method, payment_intent_id, client_secret, delivery, order_id, failure_reason, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	          RETURNING created_at, updated_at`

	insertErr := r.db.QueryRowContext(ctx, query,
		s.ID,
		s.UserID,
		s.IdempotencyKey,
		s.Status,
		raw.snapshot,
		s.AddressID,
		nullJSON(raw.coupon),
		raw.totals,
		string(s.PaymentMethod),
		s.PaymentIntentID,
		s.ClientSecret,
		raw.delivery,
		s.OrderID,
		s.FailureReason,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCheckout
		}
		return fmt.Errorf("insert checkout session: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout session: %w", err)
	}
	return s, nil
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, userID, key string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE user_id = $1 AND idempotency_key = $2`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout session by idempotency key: %w", err)
	}
	return s, nil
}

// UpdateSession writes s only if the stored status is still from, so two requests
// cannot both move the same session forward.
func (r *Repository) UpdateSession(ctx context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus) error {
	return r.updateSession(ctx, r.db, s, from)
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repository) updateSession(ctx context.Context, db execer, s *domain.CheckoutSession, from domain.CheckoutStatus) error {
	raw, err := marshalSession(s)
	if err != nil {
		return err
	}

	query := `UPDATE checkout_sessions SET status = $3, cart_snapshot = $4, address_id = $5, coupon = $6, totals = $7,
	          payment_method = $8, payment_intent_id = $9, client_secret = $10, delivery = $11, order_id = $12,
	          failure_reason = $13, updated_at = NOW()
	          WHERE id = $1 AND status = $2
	          RETURNING updated_at`

	err = db.QueryRowContext(ctx, query,
		s.ID,
		from,
		s.Status,
		raw.snapshot,
		s.AddressID,
		nullJSON(raw.coupon),
		raw.totals,
		string(s.PaymentMethod),
		s.PaymentIntentID,
		s.ClientSecret,
		raw.delivery,
		s.OrderID,
		s.FailureReason,
	).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleSession
	}
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	return nil
}

// CompleteSession stores the final session and its outbox event atomically.
func (r *Repository) CompleteSession(ctx context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus, event *OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.updateSession(ctx, tx, s, from); err != nil {
		return err
	}
	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListSessionsByStatus returns sessions that have sat in status for at least idleFor.
func (r *Repository) ListSessionsByStatus(ctx context.Context, status domain.CheckoutStatus, idleFor time.Duration, limit int) ([]*domain.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
	          WHERE status = $1 AND updated_at <= NOW() - make_interval(secs => $2)
	          ORDER BY updated_at LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, status, idleFor.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions by status: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CheckoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
