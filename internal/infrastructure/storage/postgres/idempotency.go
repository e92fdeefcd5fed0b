package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"columbarium/internal/core/apperror"
)

// IdempotencyStatus is the lifecycle state of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// IdempotencyReplay is a stored response sent back for a repeated key.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// keyRow is a sys_idempotency row as returned by the acquiring upsert.
// Inserted is true only for the request that created the row.
type keyRow struct {
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	UpdatedAt   time.Time         `db:"updated_at"`
	Inserted    bool              `db:"inserted"`
}

type keyOutcome int

const (
	keyAcquired keyOutcome = iota
	keyReplay
	keyStale
)

// resolve decides what a request holding the same key may do with row.
func (r *keyRow) resolve(key, userID, operation, requestHash string, now time.Time, staleAfter time.Duration) (keyOutcome, error) {
	if r.Inserted {
		return keyAcquired, nil
	}
	if r.UserID != userID || r.Operation != operation || r.RequestHash != requestHash {
		return 0, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", r.Operation).
			WithDetail("request_operation", operation)
	}
	if r.Status != IdempotencyStatusPending {
		return keyReplay, nil
	}
	if now.Sub(r.UpdatedAt) > staleAfter {
		return keyStale, nil
	}
	return 0, apperror.NewIdempotencyConflict(key)
}

func (r *keyRow) replay() *IdempotencyReplay {
	out := &IdempotencyReplay{StatusCode: r.StatusCode, ContentType: r.ContentType, Body: r.Response}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusOK
	}
	if out.ContentType == "" && len(out.Body) > 0 {
		out.ContentType = "application/json"
	}
	return out
}

// IdempotencyStore keeps the first response of every keyed write in
// sys_idempotency until the key expires.
type IdempotencyStore struct {
	txManager  *TxManager
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl. A pending key
// untouched for a minute is treated as abandoned by a crashed request.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager:  txManager,
		ttl:        ttl,
		staleAfter: time.Minute,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AcquireKey claims key for the caller. It returns (nil, nil) when the caller
// owns the key, a replay when the key already finished, and an
// IDEMPOTENCY_CONFLICT error when the key is in flight or was issued for a
// different request.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now()

	var row keyRow
	err := pgxscan.Get(ctx, s.txManager.GetQuerier(ctx), &row, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE
			SET expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING user_id, operation, status, request_hash, response, response_status,
			response_content_type, updated_at, (xmax = 0) AS inserted`,
		key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl))
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}

	outcome, err := row.resolve(key, userID, operation, requestHash, now, s.staleAfter)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case keyReplay:
		return row.replay(), nil
	case keyStale:
		// Only one of several racing retries wins the takeover.
		tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
			UPDATE sys_idempotency SET updated_at = $1
			WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
			now, key, IdempotencyStatusPending, row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("reclaim idempotency key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, apperror.NewIdempotencyConflict(key)
		}
	}
	return nil, nil
}

// CompleteKey stores a successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	body, err := encodeResponse(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return s.finish(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, body)
}

// FailKey stores an error response for replay. A body that cannot be encoded
// is replaced by a minimal error object so the key still settles.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	body, err := encodeResponse(response)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return s.finish(ctx, key, IdempotencyStatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6 AND status = $7`,
		status, body, statusCode, contentType, s.now(), key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("settle idempotency key %s: %w", status, err)
	}
	return nil
}

func encodeResponse(response any) ([]byte, error) {
	if response == nil {
		return nil, nil
	}
	return json.Marshal(response)
}

// CleanupExpired deletes expired keys and reports how many were removed.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
