package objectstore

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverran/audiodrop/internal/signing"
)

func newTestMemory() *Memory {
	return NewMemory(signing.NewSigner([]byte("testsecret")), "")
}

func TestMemoryPutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	err := m.Put(ctx, "raw", "key1", strings.NewReader("payload"), 7, "audio/mpeg")
	require.NoError(t, err)

	data, err := m.Get(ctx, "raw", "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	ok, err := m.Exists(ctx, "raw", "key1")
	require.NoError(t, err)
	assert.True(t, ok)

	size, contentType, err := m.Stat("raw", "key1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
	assert.Equal(t, "audio/mpeg", contentType)

	require.NoError(t, m.Delete(ctx, "raw", "key1"))
	_, err = m.Get(ctx, "raw", "key1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	require.NoError(t, m.Put(ctx, "raw", "key1", strings.NewReader("abc"), 3, "audio/mpeg"))

	first, err := m.Get(ctx, "raw", "key1")
	require.NoError(t, err)
	first[0] = 'x'

	second, err := m.Get(ctx, "raw", "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), second)
}

func TestMemorySignedURL(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	require.NoError(t, m.Put(ctx, "out", "key1", strings.NewReader("abc"), 3, "audio/mpeg"))

	before := time.Now().Unix()
	link, err := m.SignedURL(ctx, "out", "key1", time.Hour)
	require.NoError(t, err)
	after := time.Now().Unix()

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/local/download/out/key1", u.Path)

	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, expires, before+3600)
	assert.LessOrEqual(t, expires, after+3600)

	signer := signing.NewSigner([]byte("testsecret"))
	assert.True(t, signer.Validate("out/key1", u.Query().Get("expires"), u.Query().Get("signature")))
}

func TestMemorySignedURLMissingKey(t *testing.T) {
	m := newTestMemory()
	_, err := m.SignedURL(context.Background(), "out", "missing", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
}
