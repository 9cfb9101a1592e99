// Package validate applies the ingress checks that run before any storage or
// repository call. A rejected upload creates no partial state anywhere.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dverran/audiodrop/internal/apperr"
)

// Policy holds the configured upload limits. MIME type and extension must
// both be allow-listed: the MIME type is client-supplied and spoofable, the
// extension is a weak secondary signal, and requiring both narrows (but does
// not eliminate) the spoofing surface.
type Policy struct {
	MaxFileSizeBytes  int64
	AllowedMimeTypes  map[string]struct{}
	AllowedExtensions map[string]struct{}
}

// Upload describes the file payload as delivered by the multipart boundary.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
}

// Check returns an InvalidInput error for any payload the policy rejects.
func (p Policy) Check(u Upload) error {
	if u.Size == 0 {
		return apperr.New(apperr.KindInvalidInput, "empty file")
	}
	if u.Size > p.MaxFileSizeBytes {
		return apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("file exceeds limit of %d bytes", p.MaxFileSizeBytes))
	}

	mime := strings.ToLower(strings.TrimSpace(u.MimeType))
	ext := strings.ToLower(filepath.Ext(u.Name))
	_, mimeOK := p.AllowedMimeTypes[mime]
	_, extOK := p.AllowedExtensions[ext]
	if !mimeOK || !extOK {
		return apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("unsupported file type: mimetype=%s, extension=%s", mime, ext))
	}
	return nil
}
