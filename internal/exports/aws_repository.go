package exports

import "context"

// AWSRepository archives finished artifacts to object storage.
type AWSRepository interface {
	PutArtifact(ctx context.Context, key, localPath string) error
	RemoveArtifact(ctx context.Context, key string) error
}
