package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/pennyledger/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	ctx := context.Background()

	var (
		mu        sync.Mutex
		processed []string
	)
	done := make(chan struct{})
	handler := func(_ context.Context, job *jobs.IngestJob) error {
		mu.Lock()
		processed = append(processed, job.AccountID)
		mu.Unlock()
		close(done)
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := &jobs.IngestJob{Type: jobs.JobTypeRecurringScan, AccountID: "acct-1"}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(processed) != 1 || processed[0] != "acct-1" {
		t.Errorf("processed = %v", processed)
	}

	saved, err := store.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if saved.Status != jobs.JobStatusCompleted {
		t.Errorf("status = %q, want completed", saved.Status)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := q.Publish(context.Background(), &jobs.IngestJob{Type: jobs.JobTypeSyncAccount})
	if err == nil {
		t.Fatal("expected error publishing to a closed queue")
	}
}

func TestQueue_FailedJobRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	ctx := context.Background()

	attempts := make(chan int, 10)
	var count int
	var mu sync.Mutex
	handler := func(_ context.Context, _ *jobs.IngestJob) error {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		attempts <- n
		if n < 2 {
			return errors.New("transient failure")
		}
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := &jobs.IngestJob{Type: jobs.JobTypeNotionExport, MaxRetries: 2}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-deadline:
			t.Fatalf("only %d attempts before timeout", i)
		}
	}
}

func TestStore_ListJobsFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, j := range []*jobs.IngestJob{
		{JobID: "j1", Type: jobs.JobTypeSyncAccount, AccountID: "a1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", Type: jobs.JobTypeRecurringScan, AccountID: "a1", Status: jobs.JobStatusPending},
		{JobID: "j3", Type: jobs.JobTypeSyncAccount, AccountID: "a2", Status: jobs.JobStatusFailed},
	} {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob %s: %v", j.JobID, err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{AccountID: "a1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("a1 jobs = %d, want 2", len(got))
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Type: jobs.JobTypeSyncAccount, Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "j3" {
		t.Errorf("filtered jobs = %+v", got)
	}
}
