package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/notion-cal/app/database"
	"github.com/lysyi3m/notion-cal/app/feed"
)

// SyncFeedConfigTask stores a feed defined on disk so it can be served
// like any other feed.
type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.StaticConfig
	feedRepo   database.FeedRepositoryInterface
}

func NewSyncFeedConfigTask(feedConfig *feed.StaticConfig, feedRepo database.FeedRepositoryInterface) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedConfig.ID),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	changed, err := t.feedRepo.UpsertStaticFeed(
		t.FeedConfig.ID,
		t.FeedConfig.Name,
		t.FeedConfig.Token,
		t.FeedConfig.DatabaseID,
		feed.SerializeMapping(t.FeedConfig.Mapping))
	if err != nil {
		slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.Subject, "error", err)
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.Subject,
		"changed", changed,
		"duration", t.GetDuration())

	return nil
}
