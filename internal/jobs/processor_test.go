package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

type fakeTableStore struct {
	job         *domain.Job
	rescheduled []string
	failed      []string
	lastErrSeen string
}

func (f *fakeTableStore) SelectNextDue(ctx context.Context) (*domain.Job, int, error) {
	if f.job == nil {
		return nil, 0, nil
	}
	j := *f.job
	f.job = nil
	return &j, 0, nil
}

func (f *fakeTableStore) Reschedule(ctx context.Context, jobID uuid.UUID, lastError string, availableAt time.Time) error {
	f.rescheduled = append(f.rescheduled, lastError)
	f.lastErrSeen = lastError
	return nil
}

func (f *fakeTableStore) Fail(ctx context.Context, jobID uuid.UUID, lastError string) error {
	f.failed = append(f.failed, lastError)
	f.lastErrSeen = lastError
	return nil
}

func TestProcessor_RunOnce_NoJobDue(t *testing.T) {
	store := &fakeTableStore{}
	p := &Processor[int]{Store: store, MaxAttempts: 5, Process: func(ctx context.Context, job domain.Job, jobCtx int) (map[string]any, error) {
		t.Fatalf("should not be called")
		return nil, nil
	}}
	worked, err := p.RunOnce(context.Background())
	if err != nil || worked {
		t.Fatalf("expected no work, got worked=%v err=%v", worked, err)
	}
}

func TestProcessor_RunOnce_SuccessCompletes(t *testing.T) {
	id := uuid.New()
	store := &fakeTableStore{job: &domain.Job{JobID: id, Attempts: 1}}
	p := &Processor[int]{Store: store, MaxAttempts: 5, Process: func(ctx context.Context, job domain.Job, jobCtx int) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}}
	worked, err := p.RunOnce(context.Background())
	if err != nil || !worked {
		t.Fatalf("expected work done, got worked=%v err=%v", worked, err)
	}
	if len(store.rescheduled) != 0 || len(store.failed) != 0 {
		t.Fatalf("success path must not touch Reschedule/Fail, the process func already wrote its own terminal status: rescheduled=%v failed=%v", store.rescheduled, store.failed)
	}
}

func TestProcessor_RunOnce_RetryableBelowMaxReschedules(t *testing.T) {
	store := &fakeTableStore{job: &domain.Job{JobID: uuid.New(), Attempts: 2}}
	p := &Processor[int]{Store: store, MaxAttempts: 5, Process: func(ctx context.Context, job domain.Job, jobCtx int) (map[string]any, error) {
		return nil, &ledgererr.TransientStoreError{Op: "append", Err: errors.New("timeout")}
	}}
	worked, err := p.RunOnce(context.Background())
	if err != nil || !worked {
		t.Fatalf("expected work done, got worked=%v err=%v", worked, err)
	}
	if len(store.rescheduled) != 1 || len(store.failed) != 0 {
		t.Fatalf("expected reschedule not fail, rescheduled=%v failed=%v", store.rescheduled, store.failed)
	}
}

func TestProcessor_RunOnce_RetryableAtMaxAttemptsFails(t *testing.T) {
	store := &fakeTableStore{job: &domain.Job{JobID: uuid.New(), Attempts: 5}}
	p := &Processor[int]{Store: store, MaxAttempts: 5, Process: func(ctx context.Context, job domain.Job, jobCtx int) (map[string]any, error) {
		return nil, &ledgererr.TransientStoreError{Op: "append", Err: errors.New("timeout")}
	}}
	worked, err := p.RunOnce(context.Background())
	if err != nil || !worked {
		t.Fatalf("expected work done, got worked=%v err=%v", worked, err)
	}
	if len(store.failed) != 1 {
		t.Fatalf("expected failed, got rescheduled=%v failed=%v", store.rescheduled, store.failed)
	}
}

func TestProcessor_RunOnce_NonretryableFailsImmediately(t *testing.T) {
	store := &fakeTableStore{job: &domain.Job{JobID: uuid.New(), Attempts: 1}}
	p := &Processor[int]{Store: store, MaxAttempts: 5, Process: func(ctx context.Context, job domain.Job, jobCtx int) (map[string]any, error) {
		return nil, ledgererr.ErrInsufficientLots
	}}
	worked, err := p.RunOnce(context.Background())
	if err != nil || !worked {
		t.Fatalf("expected work done, got worked=%v err=%v", worked, err)
	}
	if len(store.failed) != 1 || len(store.rescheduled) != 0 {
		t.Fatalf("expected immediate fail, rescheduled=%v failed=%v", store.rescheduled, store.failed)
	}
}
