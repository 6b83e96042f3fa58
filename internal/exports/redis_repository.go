package exports

import (
	"context"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
)

// RedisRepository mirrors job status for consumers outside this process.
type RedisRepository interface {
	PublishStatus(ctx context.Context, job *models.ExportJob) error
	DeleteStatus(ctx context.Context, jobID string) error
}
