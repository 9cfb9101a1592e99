package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dverran/audiodrop/internal/apperr"
)

func testPolicy() Policy {
	return Policy{
		MaxFileSizeBytes:  1 << 20,
		AllowedMimeTypes:  map[string]struct{}{"audio/mpeg": {}, "audio/wav": {}},
		AllowedExtensions: map[string]struct{}{".mp3": {}, ".wav": {}},
	}
}

func TestCheckAccepts(t *testing.T) {
	p := testPolicy()
	assert.NoError(t, p.Check(Upload{Name: "track.mp3", MimeType: "audio/mpeg", Size: 10}))
	// Case differences in the declared type and extension are tolerated.
	assert.NoError(t, p.Check(Upload{Name: "TRACK.MP3", MimeType: "Audio/MPEG", Size: 10}))
}

func TestCheckRejectsEmptyPayload(t *testing.T) {
	// A 0-byte part is a different failure from a missing part and is
	// reported as such.
	err := testPolicy().Check(Upload{Name: "track.mp3", MimeType: "audio/mpeg", Size: 0})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	assert.Contains(t, err.Error(), "empty file")
}

func TestCheckRejectsOversize(t *testing.T) {
	err := testPolicy().Check(Upload{Name: "track.mp3", MimeType: "audio/mpeg", Size: 2 << 20})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestCheckRequiresBothMimeAndExtension(t *testing.T) {
	p := testPolicy()

	// MIME type allowed, extension not.
	err := p.Check(Upload{Name: "track.ogg", MimeType: "audio/mpeg", Size: 10})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	// Extension allowed, MIME type not (text/plain with .mp3 spoof).
	err = p.Check(Upload{Name: "track.mp3", MimeType: "text/plain", Size: 10})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	// No extension at all.
	err = p.Check(Upload{Name: "track", MimeType: "audio/mpeg", Size: 10})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}
