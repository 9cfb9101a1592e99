// Package worker plugs the lifecycle orchestrator into the asynq worker loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dverran/audiodrop/internal/apperr"
	"github.com/dverran/audiodrop/internal/lifecycle"
	"github.com/dverran/audiodrop/internal/queue"
)

// Processor handles queued processing jobs.
type Processor struct {
	orch   *lifecycle.Orchestrator
	logger *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(orch *lifecycle.Orchestrator, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{orch: orch, logger: logger}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessAssetTask, p.handleProcess)
	return mux
}

func (p *Processor) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}

	res, err := p.orch.Process(ctx, payload.AssetID)
	if err != nil {
		// Unknown ids and terminal failures will not heal on retry.
		if apperr.IsKind(err, apperr.KindNotFound) || apperr.IsKind(err, apperr.KindProcessing) {
			p.logger.Warn("dropping unretryable process job", "id", payload.AssetID, "error", err)
			return fmt.Errorf("process %s: %w: %w", payload.AssetID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("process %s: %w", payload.AssetID, err)
	}
	p.logger.Info("queued processing finished", "id", payload.AssetID, "status", res.Status)
	return nil
}
