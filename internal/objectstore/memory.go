package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/dverran/audiodrop/internal/signing"
)

type object struct {
	data        []byte
	contentType string
}

// Memory is an in-memory object store. It backs tests and credential-less
// development. Signed URLs point at the API's local download route and carry
// an HMAC signature plus a unix expiry, so they behave like real presigned
// URLs: decodable expiry, verifiable signature, rejected after expiry.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
	signer  *signing.Signer
	baseURL string
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory constructs a Memory store. baseURL prefixes signed URLs and may
// be empty for relative links.
func NewMemory(signer *signing.Signer, baseURL string) *Memory {
	return &Memory{
		buckets: make(map[string]map[string]object),
		signer:  signer,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// Put stores the object bytes.
func (m *Memory) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read payload for %s/%s: %w", bucket, key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]object)
		m.buckets[bucket] = b
	}
	b[key] = object{data: data, contentType: contentType}
	return nil
}

// Get returns a copy of the object bytes.
func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, nil
}

// Exists reports whether the key is present.
func (m *Memory) Exists(ctx context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket][key]
	return ok, nil
}

// Delete removes the object if present.
func (m *Memory) Delete(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

// SignedURL issues a local download link with an HMAC signature and expiry.
func (m *Memory) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.buckets[bucket][key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	expires := m.now().Add(ttl).Unix()
	sig := m.signer.Sign(bucket+"/"+key, expires)
	return fmt.Sprintf("%s/local/download/%s/%s?expires=%d&signature=%s",
		m.baseURL, url.PathEscape(bucket), url.PathEscape(key), expires, sig), nil
}

// Stat returns the size and content type of a stored object. It serves the
// local download route, which needs the content type the object was stored
// under; it is not part of the Store contract.
func (m *Memory) Stat(bucket, key string) (int64, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return 0, "", ErrNotFound
	}
	return int64(len(obj.data)), obj.contentType, nil
}
