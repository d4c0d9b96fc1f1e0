package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// BucketClient is the minimal surface a production object storage client
// (e.g. a Supabase Storage or S3-compatible client) must expose. It is
// intentionally narrow so a fake can stand in for tests.
type BucketClient interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// BucketStore adapts a BucketClient to ObjectStore, fixed to one bucket,
// matching the corpus's tenant-scoped blob storage shape.
type BucketStore struct {
	client             BucketClient
	bucket             string
	multipartThreshold int64
	partSize           int64

	mu       sync.Mutex
	uploads  map[string][][]byte // uploadID -> ordered parts, assembled on complete
	contents map[string]string   // uploadID -> (key, contentType) packed as "key\x00contentType"
}

func NewBucketStore(client BucketClient, bucket string, multipartThreshold, partSize int64) *BucketStore {
	if multipartThreshold <= 0 {
		multipartThreshold = 8 << 20
	}
	if partSize <= 0 {
		partSize = 5 << 20
	}
	return &BucketStore{
		client:             client,
		bucket:             bucket,
		multipartThreshold: multipartThreshold,
		partSize:           partSize,
		uploads:            make(map[string][][]byte),
		contents:           make(map[string]string),
	}
}

func (s *BucketStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return s.client.Upload(ctx, s.bucket, SanitizeKey(key), data, contentType)
}

func (s *BucketStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.client.Download(ctx, s.bucket, SanitizeKey(key))
}

func (s *BucketStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, s.bucket, SanitizeKey(key))
}

func (s *BucketStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.client.Exists(ctx, s.bucket, SanitizeKey(key))
}

// PutStream branches on sizeHint: below threshold, a single Put; at or
// above it, a chunked create→upload-part→complete sequence. A negative or
// unknown sizeHint (-1) is treated as "large" so callers that cannot seek
// their source still get the chunked, bounded-memory path.
func (s *BucketStore) PutStream(ctx context.Context, key string, r io.Reader, sizeHint int64, contentType string) error {
	key = SanitizeKey(key)

	if sizeHint >= 0 && sizeHint < s.multipartThreshold {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		return s.Put(ctx, key, data, contentType)
	}

	return putStreamChunked(ctx, s, key, contentType, r, s.partSize)
}

func (s *BucketStore) createMultipart(ctx context.Context, key, contentType string) (string, error) {
	id, err := randomID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.uploads[id] = nil
	s.contents[id] = key + "\x00" + contentType
	s.mu.Unlock()
	return id, nil
}

func (s *BucketStore) uploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (string, error) {
	part := make([]byte, len(data))
	copy(part, data)

	s.mu.Lock()
	s.uploads[uploadID] = append(s.uploads[uploadID], part)
	s.mu.Unlock()

	return fmt.Sprintf("%s-%d", uploadID, partNumber), nil
}

func (s *BucketStore) completeMultipart(ctx context.Context, key, uploadID string, etags []string) error {
	s.mu.Lock()
	parts := s.uploads[uploadID]
	meta := s.contents[uploadID]
	delete(s.uploads, uploadID)
	delete(s.contents, uploadID)
	s.mu.Unlock()

	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}

	contentType := http.DetectContentType(buf.Bytes())
	if idx := indexOfNull(meta); idx >= 0 && len(meta) > idx+1 && meta[idx+1:] != "" {
		contentType = meta[idx+1:]
	}

	return s.client.Upload(ctx, s.bucket, key, buf.Bytes(), contentType)
}

func (s *BucketStore) abortMultipart(ctx context.Context, key, uploadID string) {
	s.mu.Lock()
	delete(s.uploads, uploadID)
	delete(s.contents, uploadID)
	s.mu.Unlock()
}

func indexOfNull(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return -1
}

func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
