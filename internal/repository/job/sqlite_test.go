package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quotefeed/prices-api/internal/apperror"
	domain "github.com/quotefeed/prices-api/internal/job"
	"github.com/quotefeed/prices-api/internal/platform/sqlite"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob() *domain.Job {
	return &domain.Job{
		Source:    "yahoo",
		Symbol:    "QQQ",
		StartDate: time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2021, 3, 12, 0, 0, 0, 0, time.UTC),
		Interval:  "1d",
		Status:    domain.StatusPending,
	}
}

func TestCreate_And_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID == 0 {
		t.Fatal("expected ID to be assigned")
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "QQQ" || got.Source != "yahoo" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Interval != "1d" {
		t.Errorf("expected interval 1d, got %q", got.Interval)
	}
	if !got.StartDate.Equal(j.StartDate) || !got.EndDate.Equal(j.EndDate) {
		t.Errorf("date mismatch: %v..%v", got.StartDate, got.EndDate)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}

func TestCreate_DefaultsInterval(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob()
	j.Interval = ""
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Interval != "1d" {
		t.Errorf("expected default interval 1d, got %q", got.Interval)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)

	_, err := repo.Get(context.Background(), 999)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperror.IsCode(err, apperror.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.Status = domain.StatusFailed
	j.Error = "upstream down"
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Error != "upstream down" {
		t.Errorf("expected error message persisted, got %q", got.Error)
	}
}

func TestList_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	a := newJob()
	b := newJob()
	b.Symbol = "AAPL"
	_ = repo.Create(ctx, a)
	_ = repo.Create(ctx, b)

	jobs, err := repo.List(ctx, "", "AAPL")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Symbol != "AAPL" {
		t.Errorf("expected only AAPL job, got %+v", jobs)
	}

	jobs, err = repo.List(ctx, "yahoo", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestFindActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob()
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindActive(ctx, "yahoo", "QQQ", "2021-03-08", "2021-03-12")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got == nil || got.ID != j.ID {
		t.Fatalf("expected pending job found, got %+v", got)
	}

	// A completed job no longer counts as active.
	j.Status = domain.StatusCompleted
	_ = repo.Update(ctx, j)

	got, err = repo.FindActive(ctx, "yahoo", "QQQ", "2021-03-08", "2021-03-12")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no active job, got %+v", got)
	}
}

func TestClaimPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	first := newJob()
	second := newJob()
	second.Symbol = "AAPL"
	_ = repo.Create(ctx, first)
	_ = repo.Create(ctx, second)

	claimed, err := repo.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest pending job claimed, got %+v", claimed)
	}
	if claimed.Status != domain.StatusRunning {
		t.Errorf("expected running, got %s", claimed.Status)
	}

	// The claimed job must not be handed out twice.
	next, err := repo.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job claimed, got %+v", next)
	}

	none, err := repo.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("expected no pending jobs left, got %+v", none)
	}
}

func TestClaimPending_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	const jobCount = 10
	for i := 0; i < jobCount; i++ {
		j := newJob()
		j.Symbol = fmt.Sprintf("SYM%d", i)
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	// Several claimers drain the queue at once; every job must be handed out
	// exactly once.
	var mu sync.Mutex
	seen := make(map[int64]int)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := repo.ClaimPending(ctx)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				seen[j.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobCount {
		t.Errorf("expected %d distinct jobs claimed, got %d", jobCount, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("job %d claimed %d times", id, n)
		}
	}
}

func TestRecoverStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db.DB)
	ctx := context.Background()

	j := newJob()
	_ = repo.Create(ctx, j)

	claimed, err := repo.ClaimPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}

	n, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered, got %d", n)
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending after recovery, got %s", got.Status)
	}
}
