// Package lifecycle implements the asset state machine: upload, process,
// status query and signed-link issuance. Assets move uploaded -> processing
// -> processed, with failed reachable from any non-terminal state; processed
// and failed are terminal.
package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dverran/audiodrop/internal/apperr"
	"github.com/dverran/audiodrop/internal/model"
	"github.com/dverran/audiodrop/internal/naming"
	"github.com/dverran/audiodrop/internal/objectstore"
	"github.com/dverran/audiodrop/internal/processing"
	"github.com/dverran/audiodrop/internal/repository"
	"github.com/dverran/audiodrop/internal/validate"
)

// UploadInput is the file payload as handed over by the multipart boundary.
type UploadInput struct {
	Data         []byte
	OriginalName string
	MimeType     string
	SizeBytes    int64
}

// UploadResult is returned by Upload.
type UploadResult struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
}

// ProcessResult is returned by Process. DownloadURL and OutputName are only
// set once the asset reached the processed state.
type ProcessResult struct {
	Status      model.AssetStatus `json:"status"`
	DownloadURL string            `json:"download_url,omitempty"`
	OutputName  string            `json:"output_name,omitempty"`
}

// StatusResult is returned by GetStatus. DownloadURL is null until the asset
// is processed.
type StatusResult struct {
	Status      model.AssetStatus `json:"status"`
	DownloadURL *string           `json:"download_url"`
}

// Options carries the policy values injected at construction.
type Options struct {
	UploadBucket string
	OutputBucket string
	SignedURLTTL time.Duration
	CallTimeout  time.Duration
	Policy       validate.Policy
	Logger       *slog.Logger
}

// Orchestrator coordinates the storage gateway, the metadata repository and
// the transformer. It holds no mutable state of its own; all status lives in
// the repository, which is the correct design for a multi-instance service.
type Orchestrator struct {
	store     objectstore.Store
	repo      repository.AssetRepository
	transform processing.Transformer
	opts      Options
	logger    *slog.Logger
}

// New constructs an Orchestrator.
func New(store objectstore.Store, repo repository.AssetRepository, transform processing.Transformer, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     store,
		repo:      repo,
		transform: transform,
		opts:      opts,
		logger:    logger,
	}
}

// Upload validates the payload, stores the raw bytes and creates the asset
// record. The storage write strictly precedes the metadata write so a record
// never references content that does not exist; conversely a failed Put
// creates no record at all.
func (o *Orchestrator) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	check := validate.Upload{Name: in.OriginalName, MimeType: in.MimeType, Size: in.SizeBytes}
	if err := o.opts.Policy.Check(check); err != nil {
		return nil, err
	}

	key := naming.StorageKey(in.OriginalName)
	putCtx, cancel := o.bound(ctx)
	defer cancel()
	if err := o.store.Put(putCtx, o.opts.UploadBucket, key, bytes.NewReader(in.Data), in.SizeBytes, in.MimeType); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "failed to store file", err)
	}

	asset := &model.Asset{
		ID:           uuid.NewString(),
		OriginalName: in.OriginalName,
		StoredKey:    key,
		MimeType:     in.MimeType,
		SizeBytes:    in.SizeBytes,
	}
	createCtx, cancel := o.bound(ctx)
	defer cancel()
	if err := o.repo.Create(createCtx, asset); err != nil {
		// Known inconsistency window: the stored object is now orphaned.
		// Reconciliation is an external sweep, so log enough to find it.
		o.logger.Error("metadata write failed after storage write",
			"storedKey", key, "bucket", o.opts.UploadBucket, "error", err)
		return nil, apperr.Wrap(apperr.KindRepository, "failed to store metadata", err)
	}

	o.logger.Info("asset uploaded", "id", asset.ID, "storedKey", key, "size", in.SizeBytes)
	return &UploadResult{ID: asset.ID, OriginalName: asset.OriginalName}, nil
}

// Process runs the transformation for an uploaded asset. It is idempotent:
// re-invocation on a processed asset returns the existing artifact, a call
// that loses the processing race reports the in-flight status, and a failed
// asset surfaces its stored failure. At most one caller ever transforms a
// given asset, enforced by the repository's conditional status update.
func (o *Orchestrator) Process(ctx context.Context, id string) (*ProcessResult, error) {
	asset, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if res, done, err := o.settled(ctx, asset); done {
		return res, err
	}

	casCtx, cancel := o.bound(ctx)
	won, err := o.repo.TryMarkProcessing(casCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "audio file not found")
		}
		return nil, apperr.Wrap(apperr.KindRepository, "failed to update status", err)
	}
	if !won {
		// Another caller holds the transition; re-read and report where the
		// record ended up instead of processing twice.
		asset, err = o.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if res, done, err := o.settled(ctx, asset); done {
			return res, err
		}
		return &ProcessResult{Status: asset.Status}, nil
	}

	processedKey, err := o.runTransform(ctx, asset)
	if err != nil {
		o.markFailed(ctx, id, err)
		return nil, err
	}

	url, err := o.signedURL(ctx, o.opts.OutputBucket, processedKey)
	if err != nil {
		// The asset is processed; only the link generation failed.
		return nil, err
	}
	o.logger.Info("asset processed", "id", id, "processedKey", processedKey)
	return &ProcessResult{
		Status:      model.StatusProcessed,
		DownloadURL: url,
		OutputName:  outputName(asset.OriginalName),
	}, nil
}

// Lookup verifies an asset exists and returns its current status. The async
// process path uses it to reject unknown ids before enqueueing a job.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (model.AssetStatus, error) {
	asset, err := o.get(ctx, id)
	if err != nil {
		return "", err
	}
	return asset.Status, nil
}

// GetStatus reports the asset's state, with a signed download link once it is
// processed. A signed-URL failure is surfaced as its own error kind so
// callers can distinguish "still processing" from "processed but link
// generation failed".
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (*StatusResult, error) {
	asset, err := o.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.Status != model.StatusProcessed {
		return &StatusResult{Status: asset.Status, DownloadURL: nil}, nil
	}
	url, err := o.signedURL(ctx, o.opts.OutputBucket, *asset.ProcessedKey)
	if err != nil {
		return nil, err
	}
	return &StatusResult{Status: asset.Status, DownloadURL: &url}, nil
}

// settled resolves terminal and in-flight states without reprocessing.
func (o *Orchestrator) settled(ctx context.Context, asset *model.Asset) (*ProcessResult, bool, error) {
	switch asset.Status {
	case model.StatusProcessed:
		url, err := o.signedURL(ctx, o.opts.OutputBucket, *asset.ProcessedKey)
		if err != nil {
			return nil, true, err
		}
		return &ProcessResult{
			Status:      model.StatusProcessed,
			DownloadURL: url,
			OutputName:  outputName(asset.OriginalName),
		}, true, nil
	case model.StatusProcessing:
		return &ProcessResult{Status: model.StatusProcessing}, true, nil
	case model.StatusFailed:
		msg := "processing previously failed"
		if asset.ErrorMessage != nil {
			msg = *asset.ErrorMessage
		}
		return nil, true, apperr.New(apperr.KindProcessing, msg)
	default:
		return nil, false, nil
	}
}

// runTransform reads the raw bytes, applies the transformer and writes the
// artifact to the output bucket. The output key reuses the stored key; the
// bucket split keeps raw and processed objects from colliding.
func (o *Orchestrator) runTransform(ctx context.Context, asset *model.Asset) (string, error) {
	getCtx, cancel := o.bound(ctx)
	data, err := o.store.Get(getCtx, o.opts.UploadBucket, asset.StoredKey)
	cancel()
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, "failed to read uploaded file", err)
	}

	out, outType, err := o.transform.Transform(ctx, data, asset.MimeType)
	if err != nil {
		return "", apperr.Wrap(apperr.KindProcessing, "audio processing failed", err)
	}

	processedKey := asset.StoredKey
	putCtx, cancel := o.bound(ctx)
	err = o.store.Put(putCtx, o.opts.OutputBucket, processedKey, bytes.NewReader(out), int64(len(out)), outType)
	cancel()
	if err != nil {
		return "", apperr.Wrap(apperr.KindProcessing, "failed to store processed file", err)
	}

	markCtx, cancel := o.bound(ctx)
	err = o.repo.MarkProcessed(markCtx, asset.ID, processedKey)
	cancel()
	if err != nil {
		return "", apperr.Wrap(apperr.KindRepository, "failed to update status", err)
	}
	return processedKey, nil
}

func (o *Orchestrator) markFailed(ctx context.Context, id string, cause error) {
	failCtx, cancel := o.bound(ctx)
	defer cancel()
	if err := o.repo.MarkFailed(failCtx, id, apperr.ClientMessage(cause)); err != nil {
		o.logger.Error("mark failed did not stick", "id", id, "error", err)
	}
}

func (o *Orchestrator) get(ctx context.Context, id string) (*model.Asset, error) {
	getCtx, cancel := o.bound(ctx)
	defer cancel()
	asset, err := o.repo.Get(getCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "audio file not found")
		}
		return nil, apperr.Wrap(apperr.KindRepository, "failed to load metadata", err)
	}
	return asset, nil
}

func (o *Orchestrator) signedURL(ctx context.Context, bucket, key string) (string, error) {
	urlCtx, cancel := o.bound(ctx)
	defer cancel()
	url, err := o.store.SignedURL(urlCtx, bucket, key, o.opts.SignedURLTTL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindSignedURL, "failed to generate download link", err)
	}
	return url, nil
}

// bound caps a single outbound call; timeouts surface as the wrapped call's
// error and are classified by the caller as storage/repository failures.
func (o *Orchestrator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

func outputName(originalName string) string {
	return "processed_" + originalName
}
