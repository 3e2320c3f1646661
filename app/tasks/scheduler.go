package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const taskQueueSize = 300

type Scheduler struct {
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepositoryInterface
	planRepo    database.PlanRepositoryInterface
	plans       PlanMaintainer
	paypal      SubscriptionFetcher
	workerCount int
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

// NewScheduler builds the worker pool. paypal may be nil, in which case
// subscriptions are never refreshed in the background.
func NewScheduler(configCache *feed.ConfigCache, feedRepo database.FeedRepositoryInterface,
	planRepo database.PlanRepositoryInterface, plans PlanMaintainer, paypal SubscriptionFetcher,
	workerCount int, maintenanceCron string) (*Scheduler, error) {
	if workerCount <= 0 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		configCache: configCache,
		feedRepo:    feedRepo,
		planRepo:    planRepo,
		plans:       plans,
		paypal:      paypal,
		workerCount: workerCount,
		cron:        cron.New(),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}

	if maintenanceCron != "" {
		if _, err := s.cron.AddFunc(maintenanceCron, s.enqueueMaintenanceTasks); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid maintenance schedule %q: %w", maintenanceCron, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueStartupTasks()
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.configCache != nil {
		feedConfigs := s.configCache.GetConfigs()
		slog.Debug("Processing feed configurations", "count", len(feedConfigs))

		for _, feedConfig := range feedConfigs {
			syncTask := NewSyncFeedConfigTask(feedConfig, s.feedRepo)
			if err := s.EnqueueTask(syncTask); err != nil {
				slog.Warn("Failed to enqueue SyncFeedConfigTask", "feed", feedConfig.ID, "error", err)
			}
		}
	}

	s.enqueueMaintenanceTasks()
}

func (s *Scheduler) enqueueMaintenanceTasks() {
	if s.plans == nil {
		return
	}

	if err := s.EnqueueTask(NewExpirePlansTask(s.plans)); err != nil {
		slog.Warn("Failed to enqueue ExpirePlansTask", "error", err)
	}

	if s.paypal == nil || s.planRepo == nil {
		return
	}

	if err := s.EnqueueTask(NewRefreshSubscriptionsTask(s.planRepo, s.plans, s.paypal)); err != nil {
		slog.Warn("Failed to enqueue RefreshSubscriptionsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from one second and caps at thirty.
func retryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := time.Duration(1<<uint(retryCount-1)) * time.Second
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}
