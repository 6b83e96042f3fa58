package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/config"
	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/amankumarsingh77/playlist-exporter/pkg/utils"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

const sinkTimeout = 30 * time.Second

// Sinks are the optional outside observers of job outcomes. Any of them may be nil.
type Sinks struct {
	Redis   exports.RedisRepository
	AWS     exports.AWSRepository
	History exports.Repository
}

// Runner owns every dispatched job until it reaches a terminal state. It is the
// only writer of a job's state, progress, result and error.
type Runner struct {
	cfg        *config.Config
	logger     logger.Logger
	store      exports.Store
	transcoder exports.Transcoder
	sinks      Sinks
	clock      clockwork.Clock
	cpuCheck   func(maxUsage float64) (bool, float64)

	sem     chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	aborts  map[string]context.CancelFunc
	running int
}

func NewRunner(cfg *config.Config, log logger.Logger, store exports.Store, transcoder exports.Transcoder, sinks Sinks, clock clockwork.Clock) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:        cfg,
		logger:     log,
		store:      store,
		transcoder: transcoder,
		sinks:      sinks,
		clock:      clock,
		cpuCheck:   utils.CheckCPUUsage,
		sem:        make(chan struct{}, cfg.Export.MaxConcurrent),
		ctx:        ctx,
		cancel:     cancel,
		aborts:     make(map[string]context.CancelFunc),
	}
}

// ArtifactPath is where the runner writes the artifact of a job.
func ArtifactPath(workDir, jobID string) string {
	return filepath.Join(workDir, jobID+".mp4")
}

// Dispatch starts the job in the background and returns immediately. The job
// is owned by the runner from this call until it reaches a terminal state.
func (r *Runner) Dispatch(job *models.ExportJob) {
	jobCtx, abort := context.WithCancel(r.ctx)
	r.track(job.ID, abort)
	r.wg.Add(1)
	go r.run(jobCtx, abort, job.Clone())
}

// Abort cancels the conversion of a job, if one is in flight.
func (r *Runner) Abort(jobID string) {
	r.mu.Lock()
	cancel, ok := r.aborts[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// Owns reports whether a runner goroutine still holds the job, either queued
// for a slot or converting.
func (r *Runner) Owns(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.aborts[jobID]
	return ok
}

// Running reports how many conversions are currently executing.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Shutdown cancels every in-flight conversion and waits for the runners to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) run(jobCtx context.Context, abort context.CancelFunc, job *models.ExportJob) {
	defer r.wg.Done()
	defer abort()
	defer r.untrack(job.ID)

	select {
	case r.sem <- struct{}{}:
	case <-jobCtx.Done():
		r.fail(job.ID, models.ErrorKindInternal, "conversion cancelled before start")
		return
	}
	defer func() { <-r.sem }()

	if err := r.waitForCPU(jobCtx, job.ID); err != nil {
		r.fail(job.ID, models.ErrorKindInternal, "conversion cancelled before start")
		return
	}

	startedAt := r.clock.Now()
	if err := r.store.MarkRunning(jobCtx, job.ID, startedAt); err != nil {
		r.logger.Errorf("Runner - MarkRunning job %s: %v", job.ID, err)
		r.fail(job.ID, models.ErrorKindInternal, err.Error())
		return
	}
	r.publish(job.ID)

	r.mu.Lock()
	r.running++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
	}()

	r.convert(jobCtx, job, startedAt)
}

func (r *Runner) convert(jobCtx context.Context, job *models.ExportJob, startedAt time.Time) {
	maxDuration := r.cfg.Export.MaxConversionDuration
	convCtx, cancel := context.WithTimeout(jobCtx, maxDuration)
	defer cancel()

	outputPath := ArtifactPath(r.cfg.Export.WorkDir, job.ID)
	req := &models.ConvertRequest{
		JobID:      job.ID,
		SourceURL:  job.SourceURL,
		Quality:    job.Quality,
		OutputPath: outputPath,
	}

	r.logger.Infof("Job %s: conversion started (quality %s)", job.ID, job.Quality)
	result, err := r.transcoder.Convert(convCtx, req, r.progressFunc(job.ID, startedAt))
	if err != nil {
		_ = removeFile(outputPath)
		switch {
		case errors.Is(convCtx.Err(), context.DeadlineExceeded):
			r.logger.Warnf("Job %s: conversion exceeded %s", job.ID, maxDuration)
			r.fail(job.ID, models.ErrorKindConversionTimeout, fmt.Sprintf("conversion exceeded the maximum duration of %s", maxDuration))
		case jobCtx.Err() != nil:
			r.fail(job.ID, models.ErrorKindInternal, "conversion aborted")
		default:
			r.logger.Errorf("Job %s: conversion failed: %v", job.ID, err)
			r.fail(job.ID, models.ErrorKindConversionFailed, err.Error())
		}
		return
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		_ = removeFile(outputPath)
		r.fail(job.ID, models.ErrorKindConversionFailed, "engine reported success but the artifact is missing or empty")
		return
	}

	err = r.store.Complete(jobCtx, job.ID, &exports.CompletedResult{
		ResultPath: outputPath,
		SizeBytes:  info.Size(),
		Variant:    result.Variant,
		FinishedAt: r.clock.Now(),
	})
	if err != nil {
		r.logger.Errorf("Runner - Complete job %s: %v", job.ID, err)
		_ = removeFile(outputPath)
		r.fail(job.ID, models.ErrorKindInternal, err.Error())
		return
	}

	r.logger.Infof("Job %s: conversion done in %s (%d bytes)", job.ID, r.clock.Since(startedAt), info.Size())
	r.archive(job.ID, outputPath)
	r.finalize(job.ID)
}

func (r *Runner) progressFunc(jobID string, startedAt time.Time) exports.ProgressFunc {
	return func(p models.ConvertProgress) {
		var remaining *float64
		if p.Percent > 0 {
			elapsed := r.clock.Since(startedAt).Seconds()
			eta := elapsed/(p.Percent/100) - elapsed
			remaining = &eta
		}
		if err := r.store.UpdateProgress(r.ctx, jobID, p.Percent, remaining); err != nil {
			r.logger.Debugf("Job %s: progress update dropped: %v", jobID, err)
		}
	}
}

func (r *Runner) waitForCPU(ctx context.Context, jobID string) error {
	maxUsage := r.cfg.Export.MaxCPUUsage
	if maxUsage <= 0 {
		return nil
	}
	for {
		ok, usage := r.cpuCheck(maxUsage)
		if ok {
			return nil
		}
		r.logger.Infof("Job %s: CPU usage %.2f%% too high, waiting...", jobID, usage)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(r.cfg.Export.CPUCheckInterval):
		}
	}
}

// fail records a terminal failure. A job that is already gone or terminal is
// only logged.
func (r *Runner) fail(jobID string, kind models.ErrorKind, msg string) {
	err := r.store.Fail(context.Background(), jobID, &models.JobError{Kind: kind, Message: msg}, r.clock.Now())
	if err != nil {
		r.logger.Errorf("Runner - Fail job %s (%s): %v", jobID, kind, err)
		return
	}
	r.finalize(jobID)
}

func (r *Runner) finalize(jobID string) {
	job := r.publish(jobID)
	if job == nil || r.sinks.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := r.sinks.History.SaveOutcome(ctx, job); err != nil {
		r.logger.Errorf("Runner - SaveOutcome job %s: %v", jobID, err)
	}
}

func (r *Runner) publish(jobID string) *models.ExportJob {
	job, err := r.store.Get(context.Background(), jobID)
	if err != nil {
		return nil
	}
	if r.sinks.Redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		if err := r.sinks.Redis.PublishStatus(ctx, job); err != nil {
			r.logger.Errorf("Runner - PublishStatus job %s: %v", jobID, err)
		}
	}
	return job
}

func (r *Runner) archive(jobID, outputPath string) {
	if r.sinks.AWS == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Export.MaxConversionDuration)
	defer cancel()
	if err := r.sinks.AWS.PutArtifact(ctx, ArchiveKey(r.cfg.S3.KeyPrefix, jobID), outputPath); err != nil {
		r.logger.Errorf("Runner - PutArtifact job %s: %v", jobID, err)
	}
}

// ArchiveKey is the object key of a job's archived artifact.
func ArchiveKey(prefix, jobID string) string {
	return prefix + jobID + ".mp4"
}

func (r *Runner) track(jobID string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.aborts[jobID] = cancel
	r.mu.Unlock()
}

func (r *Runner) untrack(jobID string) {
	r.mu.Lock()
	delete(r.aborts, jobID)
	r.mu.Unlock()
}

// removeFile deletes path; a file that is already gone is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PrepareWorkDir creates the artifact directory and wipes anything left over
// from a previous process; jobs do not survive restarts.
func PrepareWorkDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read work directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clean work directory: %w", err)
		}
	}
	return nil
}
