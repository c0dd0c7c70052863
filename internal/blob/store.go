// Package blob is the object-storage adapter. It exposes two logical
// buckets, permanent images and ephemeral temp images, behind one Store
// contract. The adapter never retries; callers decide what a failure means.
package blob

import (
	"context"
	"time"
)

const (
	BucketImages = "images"
	BucketTemp   = "temp-images"
)

// Object describes a stored object without its bytes.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SignedURL is a time-limited access URL.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Store interface {
	Bucket() string
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (SignedURL, error)
	PublicURL(key string) string
	Remove(ctx context.Context, keys []string) ([]string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
}
