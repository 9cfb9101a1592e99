package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverran/audiodrop/internal/lifecycle"
	"github.com/dverran/audiodrop/internal/model"
	"github.com/dverran/audiodrop/internal/objectstore"
	"github.com/dverran/audiodrop/internal/processing"
	"github.com/dverran/audiodrop/internal/queue"
	"github.com/dverran/audiodrop/internal/repository"
	"github.com/dverran/audiodrop/internal/signing"
	"github.com/dverran/audiodrop/internal/validate"
)

func newTestProcessor(t *testing.T) (*Processor, *lifecycle.Orchestrator) {
	t.Helper()
	store := objectstore.NewMemory(signing.NewSigner([]byte("testsecret")), "")
	repo := repository.NewMemory()
	orch := lifecycle.New(store, repo, processing.Passthrough{}, lifecycle.Options{
		UploadBucket: "audio-uploads",
		OutputBucket: "audio-processed",
		SignedURLTTL: time.Hour,
		Policy: validate.Policy{
			MaxFileSizeBytes:  1 << 20,
			AllowedMimeTypes:  map[string]struct{}{"audio/mpeg": {}},
			AllowedExtensions: map[string]struct{}{".mp3": {}},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return NewProcessor(orch, slog.New(slog.NewTextHandler(io.Discard, nil))), orch
}

func processTask(t *testing.T, assetID string) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.ProcessPayload{AssetID: assetID})
	require.NoError(t, err)
	return asynq.NewTask(queue.ProcessAssetTask, data)
}

func TestHandleProcess(t *testing.T) {
	ctx := context.Background()
	proc, orch := newTestProcessor(t)

	res, err := orch.Upload(ctx, lifecycle.UploadInput{
		Data:         []byte("0123456789"),
		OriginalName: "track.mp3",
		MimeType:     "audio/mpeg",
		SizeBytes:    10,
	})
	require.NoError(t, err)

	require.NoError(t, proc.Handler().ProcessTask(ctx, processTask(t, res.ID)))

	status, err := orch.GetStatus(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, status.Status)
}

func TestHandleProcessUnknownIDSkipsRetry(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	err := proc.Handler().ProcessTask(ctx, processTask(t, "does-not-exist"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "unknown ids must not be retried")
}

func TestHandleProcessBadPayloadSkipsRetry(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	err := proc.Handler().ProcessTask(ctx, asynq.NewTask(queue.ProcessAssetTask, []byte("not-json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
