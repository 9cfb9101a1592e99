package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dverran/audiodrop/internal/model"
)

// Postgres wraps all SQL used by the API and worker.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ AssetRepository = (*Postgres)(nil)

// NewPostgres constructs a Postgres repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Create inserts a freshly uploaded asset.
func (r *Postgres) Create(ctx context.Context, asset *model.Asset) error {
	now := time.Now().UTC()
	asset.Status = model.StatusUploaded
	asset.CreatedAt = now
	asset.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assets (id, original_name, stored_key, processed_key, mime_type, size_bytes, status, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, asset.ID, asset.OriginalName, asset.StoredKey, nil, asset.MimeType, asset.SizeBytes, asset.Status, nil, asset.CreatedAt, asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Get returns an asset by id.
func (r *Postgres) Get(ctx context.Context, id string) (*model.Asset, error) {
	var (
		asset        model.Asset
		processedKey sql.NullString
		errorMsg     sql.NullString
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, original_name, stored_key, processed_key, mime_type, size_bytes, status, error_message, created_at, updated_at
		FROM assets WHERE id=$1
	`, id)
	if err := row.Scan(&asset.ID, &asset.OriginalName, &asset.StoredKey, &processedKey, &asset.MimeType, &asset.SizeBytes, &asset.Status, &errorMsg, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select asset: %w", err)
	}
	if processedKey.Valid {
		key := processedKey.String
		asset.ProcessedKey = &key
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		asset.ErrorMessage = &msg
	}
	return &asset, nil
}

// TryMarkProcessing performs the compare-and-swap on status.
func (r *Postgres) TryMarkProcessing(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET status=$1, updated_at=$2
		WHERE id=$3 AND status=$4
	`, model.StatusProcessing, time.Now().UTC(), id, model.StatusUploaded)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// The swap missed: either the record is gone or another caller moved it.
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// MarkProcessed records the artifact key; guarded on the processing state so
// a stale caller cannot overwrite a terminal record.
func (r *Postgres) MarkProcessed(ctx context.Context, id, processedKey string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET status=$1, processed_key=$2, error_message=NULL, updated_at=$3
		WHERE id=$4 AND status=$5
	`, model.StatusProcessed, processedKey, time.Now().UTC(), id, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errNotProcessing(id)
	}
	return nil
}

// MarkFailed stores the failure message for any non-terminal record.
func (r *Postgres) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assets SET status=$1, error_message=$2, updated_at=$3
		WHERE id=$4 AND status IN ($5, $6)
	`, model.StatusFailed, message, time.Now().UTC(), id, model.StatusUploaded, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errTerminal(id)
	}
	return nil
}
