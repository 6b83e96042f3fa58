package repository

import (
	"context"
	"sync"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// memoryStore keeps every job in process memory. A single RWMutex serializes all
// writes, so a job's fields never have two concurrent writers while pollers read
// snapshots in parallel.
type memoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.ExportJob
	byKey     map[models.JobKey]string
	clock     clockwork.Clock
	retention time.Duration
}

func NewMemoryStore(clock clockwork.Clock, retention time.Duration) exports.Store {
	return &memoryStore{
		jobs:      make(map[string]*models.ExportJob),
		byKey:     make(map[models.JobKey]string),
		clock:     clock,
		retention: retention,
	}
}

func (s *memoryStore) FindOrCreate(ctx context.Context, key models.JobKey, sourceURL string, quality models.Quality) (*models.ExportJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[key]; ok {
		if job, ok := s.jobs[id]; ok && s.reusable(job) {
			return job.Clone(), false, nil
		}
	}

	job := &models.ExportJob{
		ID:        uuid.New().String(),
		Key:       key,
		SourceURL: sourceURL,
		Quality:   quality,
		State:     models.JobStatePending,
		CreatedAt: s.clock.Now(),
	}
	s.jobs[job.ID] = job
	s.byKey[key] = job.ID
	return job.Clone(), true, nil
}

// reusable reports whether a new request for the same key may share this job.
// Failed jobs and done jobs past retention always force a fresh job.
func (s *memoryStore) reusable(job *models.ExportJob) bool {
	switch job.State {
	case models.JobStatePending, models.JobStateRunning:
		return true
	case models.JobStateDone:
		return s.clock.Since(job.FinishedAt) < s.retention
	}
	return false
}

func (s *memoryStore) Get(ctx context.Context, jobID string) (*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, exports.ErrNotFound
	}
	return job.Clone(), nil
}

func (s *memoryStore) List(ctx context.Context) ([]*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.ExportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	return jobs, nil
}

func (s *memoryStore) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	return s.mutate(jobID, func(job *models.ExportJob) error {
		if job.State != models.JobStatePending {
			return errors.Wrapf(exports.ErrInvalidTransition, "%s -> %s", job.State, models.JobStateRunning)
		}
		job.State = models.JobStateRunning
		job.StartedAt = startedAt
		zero := 0.0
		job.Progress = &zero
		return nil
	})
}

func (s *memoryStore) UpdateProgress(ctx context.Context, jobID string, percent float64, remaining *float64) error {
	return s.mutate(jobID, func(job *models.ExportJob) error {
		if job.State != models.JobStateRunning {
			return errors.Wrapf(exports.ErrInvalidTransition, "progress update in state %s", job.State)
		}
		if percent > 100 {
			percent = 100
		}
		// never move backwards
		if job.Progress != nil && percent < *job.Progress {
			return nil
		}
		job.Progress = &percent
		if remaining != nil {
			r := *remaining
			job.RemainingSeconds = &r
		}
		return nil
	})
}

func (s *memoryStore) Complete(ctx context.Context, jobID string, result *exports.CompletedResult) error {
	return s.mutate(jobID, func(job *models.ExportJob) error {
		if job.State != models.JobStateRunning {
			return errors.Wrapf(exports.ErrInvalidTransition, "%s -> %s", job.State, models.JobStateDone)
		}
		full := 100.0
		job.State = models.JobStateDone
		job.ResultPath = result.ResultPath
		job.SizeBytes = result.SizeBytes
		job.Width = result.Variant.Width
		job.Height = result.Variant.Height
		job.FinishedAt = result.FinishedAt
		job.Progress = &full
		job.RemainingSeconds = nil
		return nil
	})
}

func (s *memoryStore) Fail(ctx context.Context, jobID string, jobErr *models.JobError, finishedAt time.Time) error {
	return s.mutate(jobID, func(job *models.ExportJob) error {
		if job.IsTerminal() {
			return errors.Wrapf(exports.ErrInvalidTransition, "%s -> %s", job.State, models.JobStateFailed)
		}
		e := *jobErr
		job.State = models.JobStateFailed
		job.Error = &e
		job.FinishedAt = finishedAt
		job.RemainingSeconds = nil
		return nil
	})
}

func (s *memoryStore) Remove(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	delete(s.jobs, jobID)
	if s.byKey[job.Key] == jobID {
		delete(s.byKey, job.Key)
	}
	return nil
}

func (s *memoryStore) mutate(jobID string, fn func(job *models.ExportJob) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return errors.Wrapf(exports.ErrNotFound, "job %s", jobID)
	}
	return fn(job)
}
