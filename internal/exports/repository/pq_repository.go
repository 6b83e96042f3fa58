package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/jmoiron/sqlx"
)

type historyRepo struct {
	db *sqlx.DB
}

func NewHistoryRepo(db *sqlx.DB) exports.Repository {
	return &historyRepo{
		db: db,
	}
}

func (h *historyRepo) SaveOutcome(ctx context.Context, job *models.ExportJob) error {
	var errKind, errMsg string
	if job.Error != nil {
		errKind = string(job.Error.Kind)
		errMsg = job.Error.Message
	}
	startedAt := sql.NullTime{Time: job.StartedAt, Valid: !job.StartedAt.IsZero()}

	if _, err := h.db.ExecContext(
		ctx,
		saveOutcomeQuery,
		job.ID,
		string(job.Key),
		string(job.Quality),
		string(job.State),
		errKind,
		errMsg,
		job.Width,
		job.Height,
		job.SizeBytes,
		job.CreatedAt,
		startedAt,
		job.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to save export outcome: %w", err)
	}
	return nil
}
