// Package objectstore implements the bucket/key object storage contract
// for uploaded course materials, including a pull-based chunked-upload
// path for large files.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ObjectStore is the contract every storage backend implements.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutStream(ctx context.Context, key string, r io.Reader, sizeHint int64, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SanitizeKey trims a leading slash, cleans the path, and replaces any
// ".." segment to prevent directory traversal, matching the corpus's
// tenant-scoped blob storage convention.
func SanitizeKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	key = path.Clean(key)
	key = strings.ReplaceAll(key, "..", "_")
	return key
}

// MaterialKey builds the canonical {course_id}/{uuid}/{filename} key.
func MaterialKey(courseID, uuid, filename string) string {
	return SanitizeKey(path.Join(courseID, uuid, filename))
}

// multipartPutter is satisfied by backends that support create/upload-part/
// complete; PutStream uses it above the size threshold.
type multipartPutter interface {
	createMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	uploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (etag string, err error)
	completeMultipart(ctx context.Context, key, uploadID string, etags []string) error
	abortMultipart(ctx context.Context, key, uploadID string)
}

// putStreamChunked implements the async-generator-shaped upload guidance:
// a pull-based byte-chunk producer, create-multipart → per-part upload →
// complete, aborting cleanly on any error.
func putStreamChunked(ctx context.Context, m multipartPutter, key, contentType string, r io.Reader, partSize int64) error {
	uploadID, err := m.createMultipart(ctx, key, contentType)
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}

	var etags []string
	buf := make([]byte, partSize)
	partNumber := 1

	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			etag, err := m.uploadPart(ctx, key, uploadID, partNumber, buf[:n])
			if err != nil {
				m.abortMultipart(ctx, key, uploadID)
				return fmt.Errorf("upload part %d: %w", partNumber, err)
			}
			etags = append(etags, etag)
			partNumber++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			m.abortMultipart(ctx, key, uploadID)
			return fmt.Errorf("read chunk %d: %w", partNumber, readErr)
		}
	}

	if err := m.completeMultipart(ctx, key, uploadID, etags); err != nil {
		m.abortMultipart(ctx, key, uploadID)
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}
