package exports

import (
	"context"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
)

type UseCase interface {
	Intake(ctx context.Context, input *models.ExportInput) (*models.IntakeResult, error)
	GetStatus(ctx context.Context, jobID string) (*models.ExportStatus, error)
	OpenArtifact(ctx context.Context, jobID string) (*Artifact, error)
	GetPlayerPage(ctx context.Context, jobID string) (*models.PlayerPage, error)
	ActiveJobs(ctx context.Context) (int, error)
}
