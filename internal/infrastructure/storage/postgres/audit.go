package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"columbarium/internal/core/id"
	"columbarium/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which details are compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry represents a single sys_audit row.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	Action            string          `db:"action"`
	Module            string          `db:"module"`
	ResourceType      string          `db:"resource_type"`
	ResourceID        string          `db:"resource_id"`
	ActorID           string          `db:"actor_id"`
	ActorName         string          `db:"actor_name"`
	IP                string          `db:"ip"`
	UserAgent         string          `db:"user_agent"`
	Status            string          `db:"status"`
	Details           json.RawMessage `db:"details"`
	DetailsCompressed []byte          `db:"details_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditSink implements audit.Sink on the sys_audit table. Entries are written
// on the querier bound to ctx, so they commit or roll back with the operation.
type AuditSink struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Sink = (*AuditSink)(nil)

// NewAuditSink creates a new audit sink.
func NewAuditSink(txManager *TxManager) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditSink{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// Record implements audit.Sink.
func (s *AuditSink) Record(ctx context.Context, e audit.Event) error {
	entry, err := s.toEntry(e)
	if err != nil {
		return err
	}

	sql := `
		INSERT INTO sys_audit (
			id, action, module, resource_type, resource_id, actor_id, actor_name,
			ip, user_agent, status, details, details_compressed, compression_algo,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.Action, entry.Module, entry.ResourceType, entry.ResourceID,
		entry.ActorID, entry.ActorName, entry.IP, entry.UserAgent, entry.Status,
		entry.Details, entry.DetailsCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// toEntry marshals details and compresses payloads above the threshold.
func (s *AuditSink) toEntry(e audit.Event) (AuditEntry, error) {
	entry := AuditEntry{
		ID:              id.New(),
		Action:          string(e.Action),
		Module:          e.Module,
		ResourceType:    e.ResourceType,
		ResourceID:      e.ResourceID,
		ActorID:         e.ActorID,
		ActorName:       e.ActorName,
		IP:              e.IP,
		UserAgent:       e.UserAgent,
		Status:          e.Status,
		CompressionAlgo: CompressionNone,
		CreatedAt:       e.OccurredAt,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if len(e.Details) > 0 {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("marshal audit details: %w", err)
		}
		entry.Details = details
	}

	if len(entry.Details) > s.compressThreshold {
		entry.DetailsCompressed = s.encoder.EncodeAll(entry.Details, nil)
		entry.Details = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// History retrieves the audit trail of a resource, newest first.
func (s *AuditSink) History(ctx context.Context, resourceType, resourceID string, limit int) ([]AuditEntry, error) {
	sql := `
		SELECT id, action, module, resource_type, resource_id, actor_id, actor_name,
		       ip, user_agent, status, details, details_compressed, compression_algo,
		       created_at
		FROM sys_audit
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.Action, &e.Module, &e.ResourceType, &e.ResourceID, &e.ActorID, &e.ActorName,
			&e.IP, &e.UserAgent, &e.Status, &e.Details, &e.DetailsCompressed, &e.CompressionAlgo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := s.decompress(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *AuditSink) decompress(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.DetailsCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(e.DetailsCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress details: %w", err)
	}
	e.Details = decompressed
	e.DetailsCompressed = nil
	return nil
}
