package storage

import (
	"context"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// MediaStorage resolves stored exercise reference media (demonstration
// videos, diagrams) into temporary view URLs. Uploading media is handled
// elsewhere; the engine only links to it.
type MediaStorage interface {
	// GeneratePresignedViewURL creates a temporary URL that allows GET
	// requests for an object directly from the storage provider.
	GeneratePresignedViewURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}
