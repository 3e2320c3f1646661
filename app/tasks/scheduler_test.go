package tasks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/notion-cal/app/feed"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not met before timeout")
}

func TestNewSchedulerRejectsInvalidCron(t *testing.T) {
	_, err := NewScheduler(nil, &mockFeedRepo{}, nil, nil, nil, 1, "not a schedule")
	if err == nil {
		t.Fatal("Expected error for invalid cron expression")
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	s, err := NewScheduler(nil, &mockFeedRepo{}, nil, nil, nil, 1, "")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < taskQueueSize; i++ {
		if err := s.EnqueueTask(newCountingTask(0)); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	err = s.EnqueueTask(newCountingTask(0))
	if err == nil || !strings.Contains(err.Error(), "task queue is full") {
		t.Errorf("Expected queue full error, got: %v", err)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	s, err := NewScheduler(nil, &mockFeedRepo{}, nil, nil, nil, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Stop()

	if err := s.EnqueueTask(newCountingTask(0)); err == nil {
		t.Error("Expected error when enqueueing on a stopped scheduler")
	}
}

func TestSchedulerRunsStartupTasks(t *testing.T) {
	dir := t.TempDir()
	content := "name: Team\ntoken: secret\ndatabase_id: 0123456789abcdef0123456789abcdef\nmapping:\n  name: Title\n  date: When\n"
	if err := os.WriteFile(filepath.Join(dir, "team.yml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cache := feed.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}

	repo := &mockFeedRepo{}
	plans := &mockPlanMaintainer{}
	s, err := NewScheduler(cache, repo, &mockPlanRepo{}, plans, nil, 2, "@every 1h")
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return repo.count() == 1 && plans.expireCalls() == 1
	})
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	s, err := NewScheduler(nil, &mockFeedRepo{}, nil, nil, nil, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	task := newCountingTask(1)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool {
		return task.runCount() == 2
	})
	if task.GetRetryCount() != 1 {
		t.Errorf("Expected retry count 1, got %d", task.GetRetryCount())
	}
}
