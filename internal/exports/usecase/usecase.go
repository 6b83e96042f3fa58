package usecase

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/amankumarsingh77/playlist-exporter/internal/config"
	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/amankumarsingh77/playlist-exporter/pkg/utils"
	"github.com/pkg/errors"
)

const exportsBasePath = "/api/v1/exports"

type exportsUC struct {
	cfg        *config.Config
	store      exports.Store
	dispatcher exports.Dispatcher
	logger     logger.Logger
}

func NewExportsUseCase(
	cfg *config.Config,
	store exports.Store,
	dispatcher exports.Dispatcher,
	log logger.Logger,
) exports.UseCase {
	return &exportsUC{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// Intake returns the live job for the request's key, creating and dispatching
// one when no reusable job exists.
func (u *exportsUC) Intake(ctx context.Context, input *models.ExportInput) (*models.IntakeResult, error) {
	if input == nil {
		return nil, &exports.InputError{Msg: "exportsUC.Intake: input is nil"}
	}
	input.SourceURL = strings.TrimSpace(input.SourceURL)
	input.Quality = strings.ToLower(strings.TrimSpace(input.Quality))

	if err := utils.ValidateStruct(ctx, input); err != nil {
		u.logger.Debugf("Intake - ValidateStruct error: %v", err)
		return nil, &exports.InputError{Msg: "exportsUC.Intake.ValidateStruct", Causes: utils.ValidationCauses(err)}
	}
	if err := checkScheme(input.SourceURL); err != nil {
		return nil, &exports.InputError{Msg: err.Error(), Causes: map[string]string{"source_url": "scheme"}}
	}

	quality := models.Quality(input.Quality)
	key := models.NewJobKey(input.SourceURL, quality)
	job, created, err := u.store.FindOrCreate(ctx, key, input.SourceURL, quality)
	if err != nil {
		u.logger.Errorf("Intake - FindOrCreate error: %v", err)
		return nil, errors.Wrap(err, "exportsUC.Intake.FindOrCreate")
	}

	if created {
		u.logger.Infof("Job %s: created for quality %s", job.ID, quality)
		u.dispatcher.Dispatch(job)
	} else {
		u.logger.Debugf("Job %s: reused (%s)", job.ID, job.State)
	}
	return &models.IntakeResult{Job: job, Created: created, StatusURL: u.StatusURL(job.ID)}, nil
}

func (u *exportsUC) GetStatus(ctx context.Context, jobID string) (*models.ExportStatus, error) {
	job, err := u.store.Get(ctx, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "exportsUC.GetStatus")
	}

	status := &models.ExportStatus{
		JobID:            job.ID,
		State:            job.State,
		Progress:         job.Progress,
		RemainingSeconds: job.RemainingSeconds,
	}
	switch job.State {
	case models.JobStateDone:
		status.ResultURL = u.ArtifactURL(job.ID)
		status.PlayerURL = u.PlayerURL(job.ID)
	case models.JobStateFailed:
		status.Error = job.Error
	}
	return status, nil
}

func (u *exportsUC) OpenArtifact(ctx context.Context, jobID string) (*exports.Artifact, error) {
	job, err := u.doneJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "exportsUC.OpenArtifact")
	}

	f, err := os.Open(job.ResultPath)
	if err != nil {
		if os.IsNotExist(err) {
			// swept between the lookup and the open
			return nil, errors.Wrap(exports.ErrNotFound, "exportsUC.OpenArtifact")
		}
		u.logger.Errorf("OpenArtifact - Open job %s: %v", jobID, err)
		return nil, errors.Wrap(err, "exportsUC.OpenArtifact")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "exportsUC.OpenArtifact.Stat")
	}

	return &exports.Artifact{
		Name:    job.ID + ".mp4",
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Content: f,
	}, nil
}

func (u *exportsUC) GetPlayerPage(ctx context.Context, jobID string) (*models.PlayerPage, error) {
	job, err := u.doneJob(ctx, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "exportsUC.GetPlayerPage")
	}
	return &models.PlayerPage{
		VideoURL: u.ArtifactURL(job.ID),
		Width:    job.Width,
		Height:   job.Height,
	}, nil
}

func (u *exportsUC) ActiveJobs(ctx context.Context) (int, error) {
	jobs, err := u.store.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "exportsUC.ActiveJobs")
	}
	active := 0
	for _, job := range jobs {
		if job.IsActive() {
			active++
		}
	}
	return active, nil
}

func (u *exportsUC) StatusURL(jobID string) string {
	return u.cfg.Export.PublicBaseURL + exportsBasePath + "/" + jobID
}

func (u *exportsUC) ArtifactURL(jobID string) string {
	return u.StatusURL(jobID) + "/artifact"
}

func (u *exportsUC) PlayerURL(jobID string) string {
	return u.StatusURL(jobID) + "/player"
}

func (u *exportsUC) doneJob(ctx context.Context, jobID string) (*models.ExportJob, error) {
	job, err := u.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != models.JobStateDone {
		return nil, errors.Wrapf(exports.ErrNotReady, "job %s is %s", job.ID, job.State)
	}
	return job, nil
}

// checkScheme restricts sources to remote playlists.
func checkScheme(sourceURL string) error {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return fmt.Errorf("source_url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("source_url: missing host")
	}
	return nil
}
