package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type stubLock struct {
	held     bool
	acquires int
	releases int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	l.acquires++
	return !l.held, nil
}

func (l *stubLock) Release(context.Context) error {
	l.releases++
	return nil
}

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestCycleRunsJobsInOrder(t *testing.T) {
	first := &recordingJob{name: "first"}
	second := &recordingJob{name: "second", err: errors.New("boom")}
	third := &recordingJob{name: "third"}
	lock := &stubLock{}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(first, second, third),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	// A failing job does not stop the ones behind it.
	if first.runs != 1 || second.runs != 1 || third.runs != 1 {
		t.Fatalf("runs = %d/%d/%d, want 1 each", first.runs, second.runs, third.runs)
	}
	if lock.acquires != 1 || lock.releases != 1 {
		t.Fatalf("lock acquires/releases = %d/%d, want 1/1", lock.acquires, lock.releases)
	}
}

func TestCycleSkipsWhenLockHeld(t *testing.T) {
	job := &recordingJob{name: "only"}
	lock := &stubLock{held: true}

	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job ran %d times under a held lock", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("released a lock we never held")
	}
}

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (s *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusion(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	a, err := NewRedisLock(store, "cron:test", time.Hour)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}
	b, err := NewRedisLock(store, "cron:test", time.Hour)
	if err != nil {
		t.Fatalf("build lock: %v", err)
	}

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok = %v, err = %v", ok, err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire while held: ok = %v, err = %v", ok, err)
	}

	// Releasing a lock you do not own is a no-op.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("release unowned: %v", err)
	}
	if _, held := store.values["cron:test"]; !held {
		t.Fatalf("unowned release freed the lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release owned: %v", err)
	}
	ok, err = b.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok = %v, err = %v", ok, err)
	}
}

type fakeWarner struct {
	warned int
	refs   []time.Time
	err    error
}

func (w *fakeWarner) SendFineWarnings(_ context.Context, _ []uuid.UUID, ref time.Time) (int, error) {
	w.refs = append(w.refs, ref)
	return w.warned, w.err
}

func TestFineWarningJob(t *testing.T) {
	warner := &fakeWarner{warned: 3}
	job, err := NewFineWarningJob(warner, testLogger())
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if job.Name() != "fine_warnings" {
		t.Fatalf("name = %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(warner.refs) != 1 {
		t.Fatalf("warner called %d times, want 1", len(warner.refs))
	}

	warner.err = errors.New("smtp down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from failing warner")
	}
}
