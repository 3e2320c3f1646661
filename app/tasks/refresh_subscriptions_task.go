package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/notion-cal/app/database"
)

// RefreshSubscriptionsTask re-reads every stored PayPal subscription so that
// cancellations missed by the webhook still downgrade the plan.
type RefreshSubscriptionsTask struct {
	Task
	planRepo database.PlanRepositoryInterface
	plans    PlanMaintainer
	paypal   SubscriptionFetcher
}

func NewRefreshSubscriptionsTask(planRepo database.PlanRepositoryInterface, plans PlanMaintainer, paypal SubscriptionFetcher) *RefreshSubscriptionsTask {
	return &RefreshSubscriptionsTask{
		Task:     NewTask(TaskTypeRefreshSubscriptions, "subscriptions"),
		planRepo: planRepo,
		plans:    plans,
		paypal:   paypal,
	}
}

func (t *RefreshSubscriptionsTask) Execute(ctx context.Context) error {
	stored, err := t.planRepo.ListPayPalPlans()
	if err != nil {
		return fmt.Errorf("failed to list paypal plans: %w", err)
	}

	var errs []error
	refreshed := 0
	for _, plan := range stored {
		if err := ctx.Err(); err != nil {
			return err
		}

		sub, err := t.paypal.GetSubscription(ctx, plan.PayPalSubscriptionID)
		if err != nil {
			slog.Warn("Failed to fetch subscription", "owner", plan.OwnerKey, "subscription", plan.PayPalSubscriptionID, "error", err)
			errs = append(errs, err)
			continue
		}

		if err := t.plans.SyncSubscription(plan.OwnerKey, *sub); err != nil {
			errs = append(errs, err)
			continue
		}
		refreshed++
	}

	slog.Info("Task completed",
		"type", "RefreshSubscriptions",
		"refreshed", refreshed,
		"failed", len(errs),
		"duration", t.GetDuration())

	return errors.Join(errs...)
}
