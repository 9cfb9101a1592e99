// Package queue defines the asynq task used when processing runs off the
// request path.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// ProcessAssetTask is scheduled when async processing is enabled and a
// client requests processing for an uploaded asset.
const ProcessAssetTask = "asset:process"

// ProcessPayload tells the worker which asset to process.
type ProcessPayload struct {
	AssetID string `json:"asset_id"`
}

// EnqueueProcess enqueues a processing job. Process is idempotent, so asynq
// retries after transient failures are safe.
func EnqueueProcess(ctx context.Context, client *asynq.Client, payload ProcessPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessAssetTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}
