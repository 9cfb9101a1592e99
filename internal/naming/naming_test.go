package naming

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var safeName = regexp.MustCompile(`^[a-z0-9._-]{1,100}$`)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Résumé Track.mp3":   "resume_track.mp3",
		"track.mp3":          "track.mp3",
		"Über Söng!.MP3":     "uber_song_.mp3",
		"la fête/été.mp3":    "la_fete_ete.mp3",
		"..weird--name__":    "..weird--name__",
		"日本語トラック.mp3":        "_______.mp3",
		"CAPS AND SPACES.Mp3": "caps_and_spaces.mp3",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"Résumé Track.mp3",
		"already_safe.mp3",
		"Ünïcode Mix 123.flac",
		"",
		strings.Repeat("é", 300),
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.Regexp(t, safeName, once, "input %q", in)
	}
}

func TestSanitizeEmptyFallsBack(t *testing.T) {
	assert.Equal(t, "audio", Sanitize(""))
}

func TestSanitizeTruncates(t *testing.T) {
	out := Sanitize(strings.Repeat("a", 500))
	assert.Len(t, out, 100)
}

func TestStorageKey(t *testing.T) {
	key := StorageKey("Résumé Track.mp3")
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}-resume_track\.mp3$`), key)

	// Two keys from the same name must never collide.
	assert.NotEqual(t, key, StorageKey("Résumé Track.mp3"))
}
