package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/exports"
	"github.com/amankumarsingh77/playlist-exporter/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

const source = "https://cdn.example.com/show/master.m3u8"

func newTestStore() (exports.Store, clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewMemoryStore(clock, 24*time.Hour), clock
}

func finish(t *testing.T, s exports.Store, clock clockwork.Clock, id string) {
	t.Helper()
	ctx := context.Background()
	if err := s.MarkRunning(ctx, id, clock.Now()); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := s.Complete(ctx, id, &exports.CompletedResult{ResultPath: "/tmp/" + id + ".mp4", FinishedAt: clock.Now()}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestFindOrCreateConcurrentDedup(t *testing.T) {
	s, _ := newTestStore()
	key := models.NewJobKey(source, models.QualityHigh)

	const callers = 64
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, ok, err := s.FindOrCreate(context.Background(), key, source, models.QualityHigh)
			if err != nil {
				t.Errorf("FindOrCreate: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[job.ID] = struct{}{}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	if len(ids) != 1 {
		t.Errorf("distinct ids = %d, want 1", len(ids))
	}
}

func TestFindOrCreateDistinctKeys(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	high, _, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityHigh), source, models.QualityHigh)
	low, created, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityLow), source, models.QualityLow)
	if !created || high.ID == low.ID {
		t.Fatal("different qualities shared a job")
	}
}

func TestFindOrCreateReuse(t *testing.T) {
	ctx := context.Background()
	key := models.NewJobKey(source, models.QualityMedium)

	t.Run("done within retention is reused", func(t *testing.T) {
		s, clock := newTestStore()
		job, _, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		finish(t, s, clock, job.ID)
		clock.Advance(23 * time.Hour)

		again, created, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		if created || again.ID != job.ID {
			t.Fatal("fresh done job was not reused")
		}
	})

	t.Run("done past retention is replaced", func(t *testing.T) {
		s, clock := newTestStore()
		job, _, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		finish(t, s, clock, job.ID)
		clock.Advance(25 * time.Hour)

		again, created, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		if !created || again.ID == job.ID {
			t.Fatal("expired done job was reused")
		}
	})

	t.Run("failed is never reused", func(t *testing.T) {
		s, clock := newTestStore()
		job, _, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		_ = s.MarkRunning(ctx, job.ID, clock.Now())
		_ = s.Fail(ctx, job.ID, &models.JobError{Kind: models.ErrorKindConversionFailed, Message: "boom"}, clock.Now())

		again, created, _ := s.FindOrCreate(ctx, key, source, models.QualityMedium)
		if !created || again.ID == job.ID {
			t.Fatal("failed job was reused")
		}
		// the old record stays visible to pollers until swept
		old, err := s.Get(ctx, job.ID)
		if err != nil || old.State != models.JobStateFailed {
			t.Fatalf("failed job lookup = %v, %v", old, err)
		}
	})
}

func TestTransitionsOnlyMoveForward(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	job, _, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityHigh), source, models.QualityHigh)

	if err := s.Complete(ctx, job.ID, &exports.CompletedResult{ResultPath: "x"}); !errors.Is(err, exports.ErrInvalidTransition) {
		t.Errorf("pending -> done err = %v", err)
	}
	finish(t, s, clock, job.ID)

	if err := s.MarkRunning(ctx, job.ID, clock.Now()); !errors.Is(err, exports.ErrInvalidTransition) {
		t.Errorf("done -> running err = %v", err)
	}
	if err := s.Fail(ctx, job.ID, &models.JobError{Kind: models.ErrorKindInternal}, clock.Now()); !errors.Is(err, exports.ErrInvalidTransition) {
		t.Errorf("done -> failed err = %v", err)
	}

	got, _ := s.Get(ctx, job.ID)
	if got.State != models.JobStateDone || got.ResultPath == "" || got.Error != nil {
		t.Fatalf("unexpected final job %+v", got)
	}
}

func TestFailSetsErrorOnly(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	job, _, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityHigh), source, models.QualityHigh)
	_ = s.MarkRunning(ctx, job.ID, clock.Now())
	if err := s.Fail(ctx, job.ID, &models.JobError{Kind: models.ErrorKindConversionTimeout, Message: "slow"}, clock.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, job.ID)
	if got.ResultPath != "" || got.Error == nil || got.Error.Kind != models.ErrorKindConversionTimeout || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected failed job %+v", got)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	job, _, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityHigh), source, models.QualityHigh)

	if err := s.UpdateProgress(ctx, job.ID, 10, nil); !errors.Is(err, exports.ErrInvalidTransition) {
		t.Errorf("progress while pending err = %v", err)
	}
	_ = s.MarkRunning(ctx, job.ID, clock.Now())
	for _, p := range []float64{10, 40, 25, 150} {
		if err := s.UpdateProgress(ctx, job.ID, p, nil); err != nil {
			t.Fatalf("UpdateProgress(%v): %v", p, err)
		}
	}
	got, _ := s.Get(ctx, job.ID)
	if got.Progress == nil || *got.Progress != 100 {
		t.Fatalf("progress = %v, want 100", got.Progress)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	job, _, _ := s.FindOrCreate(ctx, models.NewJobKey(source, models.QualityHigh), source, models.QualityHigh)
	_ = s.MarkRunning(ctx, job.ID, clock.Now())

	snap, _ := s.Get(ctx, job.ID)
	snap.State = models.JobStateDone
	*snap.Progress = 77

	got, _ := s.Get(ctx, job.ID)
	if got.State != models.JobStateRunning || *got.Progress != 0 {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestRemove(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	key := models.NewJobKey(source, models.QualityHigh)
	job, _, _ := s.FindOrCreate(ctx, key, source, models.QualityHigh)
	finish(t, s, clock, job.ID)

	if err := s.Remove(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, job.ID); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := s.Get(ctx, job.ID); !errors.Is(err, exports.ErrNotFound) {
		t.Fatalf("Get after Remove err = %v", err)
	}
	if _, created, _ := s.FindOrCreate(ctx, key, source, models.QualityHigh); !created {
		t.Fatal("removed job still indexed by key")
	}
	if err := s.MarkRunning(ctx, "missing", clock.Now()); !errors.Is(err, exports.ErrNotFound) {
		t.Fatalf("mutation of missing job err = %v", err)
	}
}

func TestRemoveKeepsNewerKeyOwner(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	key := models.NewJobKey(source, models.QualityHigh)

	old, _, _ := s.FindOrCreate(ctx, key, source, models.QualityHigh)
	_ = s.MarkRunning(ctx, old.ID, clock.Now())
	_ = s.Fail(ctx, old.ID, &models.JobError{Kind: models.ErrorKindConversionFailed}, clock.Now())
	fresh, _, _ := s.FindOrCreate(ctx, key, source, models.QualityHigh)

	_ = s.Remove(ctx, old.ID)
	again, created, _ := s.FindOrCreate(ctx, key, source, models.QualityHigh)
	if created || again.ID != fresh.ID {
		t.Fatal("removing the old job dropped the newer job's key index")
	}
}
