package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ PlanRepositoryInterface = (*PlanRepository)(nil)

// PlanRepository handles database operations for owner plans
type PlanRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `owner_key, tier, source, trial_used_at, period_ends_at,
	paypal_subscription_id, paypal_subscription_status, paypal_plan_id, paypal_payer_id,
	created_at, updated_at`

// GetPlan returns nil, nil when the owner has no stored plan.
func (r *PlanRepository) GetPlan(ownerKey string) (*OwnerPlan, error) {
	row := r.db.QueryRow(`SELECT `+planColumns+` FROM owner_plans WHERE owner_key = ?`, ownerKey)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// UpsertPlan writes the full plan row keyed by owner.
func (r *PlanRepository) UpsertPlan(plan *OwnerPlan) error {
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO owner_plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_key) DO UPDATE SET
			tier = excluded.tier,
			source = excluded.source,
			trial_used_at = excluded.trial_used_at,
			period_ends_at = excluded.period_ends_at,
			paypal_subscription_id = excluded.paypal_subscription_id,
			paypal_subscription_status = excluded.paypal_subscription_status,
			paypal_plan_id = excluded.paypal_plan_id,
			paypal_payer_id = excluded.paypal_payer_id,
			updated_at = excluded.updated_at
	`, plan.OwnerKey, plan.Tier, plan.Source, nullTime(plan.TrialUsedAt), nullTime(plan.PeriodEndsAt),
		plan.PayPalSubscriptionID, plan.PayPalSubscriptionStatus, plan.PayPalPlanID, plan.PayPalPayerID,
		plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}

	return nil
}

func (r *PlanRepository) GetPlanBySubscription(subscriptionID string) (*OwnerPlan, error) {
	row := r.db.QueryRow(`
		SELECT `+planColumns+` FROM owner_plans
		WHERE paypal_subscription_id = ?
		LIMIT 1
	`, subscriptionID)

	plan, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan by subscription: %w", err)
	}

	return plan, nil
}

// ListExpiredPlans returns premium plans whose paid or trial period ended before now.
func (r *PlanRepository) ListExpiredPlans(now time.Time) ([]OwnerPlan, error) {
	rows, err := r.db.Query(`
		SELECT `+planColumns+` FROM owner_plans
		WHERE tier = ? AND period_ends_at IS NOT NULL AND period_ends_at < ?
	`, TierPremium, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired plans: %w", err)
	}
	defer rows.Close()

	return collectPlans(rows)
}

func (r *PlanRepository) ListPayPalPlans() ([]OwnerPlan, error) {
	rows, err := r.db.Query(`
		SELECT `+planColumns+` FROM owner_plans
		WHERE paypal_subscription_id != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list paypal plans: %w", err)
	}
	defer rows.Close()

	return collectPlans(rows)
}

func scanPlan(row rowScanner) (*OwnerPlan, error) {
	var plan OwnerPlan
	var trialUsedAt, periodEndsAt sql.NullTime

	err := row.Scan(&plan.OwnerKey, &plan.Tier, &plan.Source, &trialUsedAt, &periodEndsAt,
		&plan.PayPalSubscriptionID, &plan.PayPalSubscriptionStatus, &plan.PayPalPlanID,
		&plan.PayPalPayerID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	plan.TrialUsedAt = timePtr(trialUsedAt)
	plan.PeriodEndsAt = timePtr(periodEndsAt)

	return &plan, nil
}

func collectPlans(rows *sql.Rows) ([]OwnerPlan, error) {
	var plans []OwnerPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	return plans, nil
}
