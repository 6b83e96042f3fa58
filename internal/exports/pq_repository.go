package exports

import (
	"context"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
)

// Repository keeps a history row for every job that reached a terminal state.
type Repository interface {
	SaveOutcome(ctx context.Context, job *models.ExportJob) error
}
