package exports

import (
	"context"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
)

// Store is the job registry. Every method returns snapshots; callers never hold
// a pointer into the store's own records.
type Store interface {
	FindOrCreate(ctx context.Context, key models.JobKey, sourceURL string, quality models.Quality) (*models.ExportJob, bool, error)
	Get(ctx context.Context, jobID string) (*models.ExportJob, error)
	List(ctx context.Context) ([]*models.ExportJob, error)

	MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error
	UpdateProgress(ctx context.Context, jobID string, percent float64, remaining *float64) error
	Complete(ctx context.Context, jobID string, result *CompletedResult) error
	Fail(ctx context.Context, jobID string, jobErr *models.JobError, finishedAt time.Time) error

	Remove(ctx context.Context, jobID string) error
}

type CompletedResult struct {
	ResultPath string
	SizeBytes  int64
	Variant    models.Variant
	FinishedAt time.Time
}
