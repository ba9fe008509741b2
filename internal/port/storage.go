package port

import (
	"context"
	"io"
)

// PutObjectInput describes one artifact write.
type PutObjectInput struct {
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
}

// PutObjectOutput is the location of a stored artifact.
type PutObjectOutput struct {
	Location string
	ETag     string
}

// ArtifactStorage stores converted files and hands out time-limited download links.
// Implementations are bound to a single bucket at construction time.
type ArtifactStorage interface {
	Put(ctx context.Context, input PutObjectInput) (*PutObjectOutput, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expirySeconds int64) (string, error)
}
