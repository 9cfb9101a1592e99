// Package repository is the metadata store for asset records, the single
// source of truth for lifecycle status. Status transitions are conditional
// writes so two concurrent Process calls can never both win.
package repository

import (
	"context"
	"errors"

	"github.com/dverran/audiodrop/internal/model"
)

// ErrNotFound is returned when no asset record exists for an id.
var ErrNotFound = errors.New("asset not found")

// AssetRepository persists asset records. Implementations must make each
// status transition atomic per record.
type AssetRepository interface {
	// Create inserts a new record. The caller only invokes this after the
	// raw storage write succeeded, so a record never references bytes that
	// do not exist.
	Create(ctx context.Context, asset *model.Asset) error

	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Asset, error)

	// TryMarkProcessing atomically transitions uploaded -> processing.
	// It returns false without modifying the record when the asset was not
	// in the uploaded state, which is how concurrent Process calls elect a
	// single winner.
	TryMarkProcessing(ctx context.Context, id string) (bool, error)

	// MarkProcessed transitions processing -> processed and records the
	// processed artifact key.
	MarkProcessed(ctx context.Context, id, processedKey string) error

	// MarkFailed transitions any non-terminal state to failed and stores
	// the failure message.
	MarkFailed(ctx context.Context, id, message string) error
}
