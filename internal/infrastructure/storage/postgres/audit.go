package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/security"
	"stockforecast/internal/domain/forecast"
)

// CompressionAlgo specifies how a journal payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// EntityForecastRow is the sys_audit entity type of report rows.
const EntityForecastRow = "forecast_row"

// AuditEntry is one sys_audit record.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Metadata          json.RawMessage `db:"metadata"`
	CreatedAt         time.Time       `db:"created_at"`
}

var (
	_ forecast.ChangeRecorder = (*Journal)(nil)
	_ forecast.HistoryReader  = (*Journal)(nil)
)

// Journal stores report row changes in sys_audit. Payloads over the
// threshold are zstd-compressed.
type Journal struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewJournal creates a journal with a 10KB compression threshold.
func NewJournal(txm *TxManager) (*Journal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Journal{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// RecordChange journals change on the caller's transaction.
func (j *Journal) RecordChange(ctx context.Context, change forecast.RowChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal row change: %w", err)
	}

	meta, err := json.Marshal(map[string]any{
		"causeEvent": change.CauseEvent,
		"causeId":    change.CauseID,
		"productId":  change.ProductID,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	entry := AuditEntry{
		ID:         id.New(),
		EntityType: EntityForecastRow,
		EntityID:   change.RowID,
		Action:     string(change.Action),
		UserID:     change.ChangedBy,
		Changes:    payload,
		Metadata:   meta,
		CreatedAt:  change.ChangedAt,
	}
	return j.log(ctx, entry)
}

func (j *Journal) log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = security.GetUserID(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > j.compressThreshold {
		entry.ChangesCompressed = j.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	_, err := j.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.Metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the changes of rowID, newest first.
func (j *Journal) History(ctx context.Context, rowID id.ID, limit int) ([]forecast.RowChange, error) {
	if limit <= 0 {
		limit = 100
	}

	var entries []AuditEntry
	err := pgxscan.Select(ctx, j.txm.GetQuerier(ctx), &entries, `
		SELECT id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, metadata, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, EntityForecastRow, rowID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out := make([]forecast.RowChange, 0, len(entries))
	for _, e := range entries {
		payload, err := j.payload(e)
		if err != nil {
			return nil, err
		}
		var change forecast.RowChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return nil, fmt.Errorf("decode row change %s: %w", e.ID, err)
		}
		out = append(out, change)
	}
	return out, nil
}

func (j *Journal) payload(e AuditEntry) ([]byte, error) {
	if e.CompressionAlgo != CompressionZstd {
		return e.Changes, nil
	}
	decompressed, err := j.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress changes: %w", err)
	}
	return decompressed, nil
}
