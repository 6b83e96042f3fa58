package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/config"
	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/amankumarsingh77/playlist-exporter/pkg/logger"
	"github.com/jonboulle/clockwork"
)

// Aborter is the runner side of stale reclaim. Owns reports whether a live
// runner goroutine still holds the job, queued or converting.
type Aborter interface {
	Abort(jobID string)
	Owns(jobID string) bool
}

// Sweeper evicts finished jobs after the retention window, independent of
// request traffic. Pending and running jobs are only reclaimed once they pass
// the explicit StaleAfter cutoff: running jobs measured from StartedAt, pending
// jobs from CreatedAt and only when no runner owns them.
type Sweeper struct {
	cfg     *config.Config
	logger  logger.Logger
	store   exports.Store
	sinks   Sinks
	aborter Aborter
	clock   clockwork.Clock

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type SweepReport struct {
	Expired int
	Stale   int
	Evicted int
}

func (r SweepReport) Total() int {
	return r.Expired + r.Stale + r.Evicted
}

func NewSweeper(cfg *config.Config, log logger.Logger, store exports.Store, sinks Sinks, aborter Aborter, clock clockwork.Clock) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		logger:  log,
		store:   store,
		sinks:   sinks,
		aborter: aborter,
		clock:   clock,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.Export.SweepInterval)
	go func() {
		defer close(s.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.Chan():
				if report := s.SweepOnce(ctx); report.Total() > 0 {
					s.logger.Infof("Sweeper: removed %d expired, %d stale, %d over capacity",
						report.Expired, report.Stale, report.Evicted)
				}
			}
		}
	}()
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.doneCh
}

func (s *Sweeper) SweepOnce(ctx context.Context) SweepReport {
	var report SweepReport

	jobs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Errorf("Sweeper - List: %v", err)
		return report
	}

	now := s.clock.Now()
	retention := s.cfg.Export.Retention
	staleAfter := s.cfg.Export.StaleAfter

	kept := make([]*models.ExportJob, 0, len(jobs))
	for _, job := range jobs {
		switch {
		case job.IsTerminal() && now.Sub(job.FinishedAt) >= retention:
			s.evict(ctx, job)
			report.Expired++
		case s.isStale(job, now, staleAfter):
			s.logger.Warnf("Sweeper: reclaiming stale job %s stuck in %s since %s (cutoff %s)",
				job.ID, job.State, staleSince(job).Format(time.RFC3339), staleAfter)
			if s.aborter != nil {
				s.aborter.Abort(job.ID)
			}
			s.evict(ctx, job)
			report.Stale++
		default:
			kept = append(kept, job)
		}
	}

	report.Evicted = s.enforceCapacity(ctx, kept)
	return report
}

// isStale reports whether an active job outlived the cutoff. A queued job still
// owned by a runner is waiting on the semaphore or CPU gate, not stuck.
func (s *Sweeper) isStale(job *models.ExportJob, now time.Time, staleAfter time.Duration) bool {
	switch job.State {
	case models.JobStateRunning:
		return now.Sub(staleSince(job)) >= staleAfter
	case models.JobStatePending:
		if s.aborter != nil && s.aborter.Owns(job.ID) {
			return false
		}
		return now.Sub(staleSince(job)) >= staleAfter
	}
	return false
}

func staleSince(job *models.ExportJob) time.Time {
	if job.State == models.JobStateRunning && !job.StartedAt.IsZero() {
		return job.StartedAt
	}
	return job.CreatedAt
}

// enforceCapacity evicts the oldest done jobs until the retained artifacts fit
// into MaxRetainedBytes and their count into MaxRetainedJobs. Zero disables
// either cap.
func (s *Sweeper) enforceCapacity(ctx context.Context, jobs []*models.ExportJob) int {
	maxBytes := s.cfg.Export.MaxRetainedBytes
	maxJobs := s.cfg.Export.MaxRetainedJobs
	if maxBytes <= 0 && maxJobs <= 0 {
		return 0
	}

	var (
		done  []*models.ExportJob
		total int64
	)
	for _, job := range jobs {
		if job.State == models.JobStateDone {
			done = append(done, job)
			total += job.SizeBytes
		}
	}
	sort.Slice(done, func(i, j int) bool {
		return done[i].FinishedAt.Before(done[j].FinishedAt)
	})

	count := len(done)
	overCap := func() bool {
		return (maxBytes > 0 && total > maxBytes) || (maxJobs > 0 && count > maxJobs)
	}

	evicted := 0
	for _, job := range done {
		if !overCap() {
			break
		}
		s.evict(ctx, job)
		total -= job.SizeBytes
		count--
		evicted++
	}
	return evicted
}

// evict removes the record first so pollers see not-found before the file goes.
// Every step is best-effort and idempotent.
func (s *Sweeper) evict(ctx context.Context, job *models.ExportJob) {
	if err := s.store.Remove(ctx, job.ID); err != nil {
		s.logger.Errorf("Sweeper - Remove job %s: %v", job.ID, err)
	}
	if err := removeFile(ArtifactPath(s.cfg.Export.WorkDir, job.ID)); err != nil {
		s.logger.Errorf("Sweeper - remove artifact of job %s: %v", job.ID, err)
	}
	if s.sinks.Redis != nil {
		if err := s.sinks.Redis.DeleteStatus(ctx, job.ID); err != nil {
			s.logger.Errorf("Sweeper - DeleteStatus job %s: %v", job.ID, err)
		}
	}
	if s.sinks.AWS != nil && job.State == models.JobStateDone {
		if err := s.sinks.AWS.RemoveArtifact(ctx, ArchiveKey(s.cfg.S3.KeyPrefix, job.ID)); err != nil {
			s.logger.Errorf("Sweeper - RemoveArtifact job %s: %v", job.ID, err)
		}
	}
}
