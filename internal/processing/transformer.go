// Package processing holds the transformation applied to raw audio between
// the upload and output buckets.
package processing

import "context"

// Transformer converts raw uploaded bytes into the processed artifact. It
// receives the upload's content type and returns the output bytes together
// with the content type to store them under.
type Transformer interface {
	Transform(ctx context.Context, data []byte, contentType string) ([]byte, string, error)
}

// Passthrough copies bytes unchanged. A real transcoding step (FFmpeg,
// filter chains) would slot in here without touching the orchestrator.
type Passthrough struct{}

// Transform returns an identical copy of the input.
func (Passthrough) Transform(_ context.Context, data []byte, contentType string) ([]byte, string, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, contentType, nil
}
