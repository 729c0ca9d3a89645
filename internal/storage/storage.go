// Package storage keeps uploaded image files, on local disk or in S3.
package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalidKey = errors.New("invalid_storage_key")

// Store writes and removes blobs addressed by a slash separated key.
// Put returns the public path clients use to fetch the blob.
type Store interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromPath(publicPath string) (string, error)
}

// ProductImageKey returns a sortable unique key under products/<productID>/.
func ProductImageKey(productID int64, ext string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return fmt.Sprintf("products/%d/%s%s", productID, strings.ToLower(id.String()), normalizeExt(ext))
}

// ThreadAttachmentKey returns a sortable unique key under threads/<threadID>/.
func ThreadAttachmentKey(threadID int64, ext string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return fmt.Sprintf("threads/%d/%s%s", threadID, strings.ToLower(id.String()), normalizeExt(ext))
}

// BoutiqueImageKey returns boutique/boutique-<unix ms>-<random>.<ext>.
func BoutiqueImageKey(ext string, now time.Time) string {
	entropy := ulid.MustNew(ulid.Timestamp(now), rand.Reader).Entropy()
	var n uint32
	for _, b := range entropy[:4] {
		n = n<<8 | uint32(b)
	}
	return fmt.Sprintf("boutique/boutique-%d-%d%s", now.UnixMilli(), n%1_000_000_000, normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	if path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
