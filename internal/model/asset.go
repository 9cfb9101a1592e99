// Package model contains the data records shared across packages.
package model

import (
	"time"
)

// AssetStatus describes where an uploaded audio file sits in its lifecycle.
// Transitions are one-directional: uploaded -> processing -> processed, with
// failed reachable from any non-terminal state.
type AssetStatus string

const (
	StatusUploaded   AssetStatus = "uploaded"
	StatusProcessing AssetStatus = "processing"
	StatusProcessed  AssetStatus = "processed"
	StatusFailed     AssetStatus = "failed"
)

// Terminal reports whether no further transition out of s is allowed.
func (s AssetStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Asset is the metadata record for one uploaded audio file. StoredKey is set
// exactly when the raw upload succeeded; ProcessedKey is non-nil iff the
// status is processed. Clients address assets by ID only, never by storage
// key, so storage can be reorganized without changing the external contract.
type Asset struct {
	ID           string      `json:"id"`
	OriginalName string      `json:"originalName"`
	StoredKey    string      `json:"storedKey"`
	ProcessedKey *string     `json:"processedKey,omitempty"`
	MimeType     string      `json:"mimeType"`
	SizeBytes    int64       `json:"sizeBytes"`
	Status       AssetStatus `json:"status"`
	ErrorMessage *string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
