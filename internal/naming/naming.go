// Package naming derives collision-resistant, URL-safe storage keys from
// user-supplied filenames. The original name is untrusted and used only for
// display; the storage key is what the object store sees.
package naming

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNameLength bounds sanitized names to satisfy storage-key limits.
const maxNameLength = 100

// fallbackName is used when sanitization strips a name down to nothing.
const fallbackName = "audio"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// Sanitize normalizes raw to a lowercase name matching [a-z0-9._-]{1,100}.
// Diacritics are decomposed and dropped, every other disallowed character
// becomes an underscore. Sanitize is idempotent.
func Sanitize(raw string) string {
	decomposed, _, err := transform.String(stripMarks, raw)
	if err != nil {
		decomposed = raw
	}
	lowered := strings.ToLower(decomposed)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	if out == "" {
		out = fallbackName
	}
	return out
}

// StorageKey returns "{uuid}-{sanitized name}". The uuid prefix guarantees
// global uniqueness even when two uploads share a sanitized name; a collision
// would silently overwrite an unrelated asset.
func StorageKey(rawName string) string {
	return uuid.NewString() + "-" + Sanitize(rawName)
}
