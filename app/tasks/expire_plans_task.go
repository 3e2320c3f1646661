package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type ExpirePlansTask struct {
	Task
	plans PlanMaintainer
}

func NewExpirePlansTask(plans PlanMaintainer) *ExpirePlansTask {
	return &ExpirePlansTask{
		Task:  NewTask(TaskTypeExpirePlans, "plans"),
		plans: plans,
	}
}

func (t *ExpirePlansTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	expired, err := t.plans.ExpirePlans()
	if err != nil {
		return fmt.Errorf("failed to expire plans: %w", err)
	}

	slog.Info("Task completed",
		"type", "ExpirePlans",
		"expired", expired,
		"duration", t.GetDuration())

	return nil
}
