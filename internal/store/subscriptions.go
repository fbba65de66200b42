package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const planColumns = `id, name, price, billing_interval, stripe_price_id, paypal_plan_id,
	features, max_listings, max_featured_listings, listing_duration, created_at, updated_at`

func scanPlan(row rowScanner) (SubscriptionPlan, error) {
	var plan SubscriptionPlan
	var features []byte
	err := row.Scan(
		&plan.ID, &plan.Name, &plan.Price, &plan.Interval,
		&plan.StripePriceID, &plan.PaypalPlanID,
		&features, &plan.MaxListings, &plan.MaxFeaturedListings, &plan.ListingDuration,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if err != nil {
		return SubscriptionPlan{}, err
	}
	if len(features) > 0 {
		_ = json.Unmarshal(features, &plan.Features)
	}
	return plan, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context) ([]SubscriptionPlan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price ASC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]SubscriptionPlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) GetPlan(ctx context.Context, planID string) (SubscriptionPlan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id=$1`, planID)
	return scanPlan(row)
}

func (s *PostgresStore) UpsertPlan(ctx context.Context, plan SubscriptionPlan) error {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("encode plan features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscription_plans (
			id, name, price, billing_interval, stripe_price_id, paypal_plan_id,
			features, max_listings, max_featured_listings, listing_duration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, price=EXCLUDED.price, billing_interval=EXCLUDED.billing_interval,
			stripe_price_id=EXCLUDED.stripe_price_id, paypal_plan_id=EXCLUDED.paypal_plan_id,
			features=EXCLUDED.features, max_listings=EXCLUDED.max_listings,
			max_featured_listings=EXCLUDED.max_featured_listings,
			listing_duration=EXCLUDED.listing_duration, updated_at=NOW()
	`, plan.ID, plan.Name, plan.Price, plan.Interval, plan.StripePriceID, plan.PaypalPlanID,
		features, plan.MaxListings, plan.MaxFeaturedListings, plan.ListingDuration)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// GetUserSubscription returns the user's most recent subscription with its
// plan joined, or nil when the user has never subscribed.
func (s *PostgresStore) GetUserSubscription(ctx context.Context, userID string) (*Subscription, error) {
	const query = `
		SELECT s.id, s.user_id, s.plan_id, s.status,
			s.stripe_subscription_id, s.paypal_subscription_id,
			s.current_period_start, s.current_period_end,
			s.cancel_at_period_end, s.canceled_at, s.trial_start, s.trial_end,
			s.created_at, s.updated_at,
			p.id, p.name, p.price, p.billing_interval, p.stripe_price_id, p.paypal_plan_id,
			p.features, p.max_listings, p.max_featured_listings, p.listing_duration,
			p.created_at, p.updated_at
		FROM subscriptions s
		JOIN subscription_plans p ON p.id = s.plan_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
		LIMIT 1
	`
	var sub Subscription
	var plan SubscriptionPlan
	var planFeatures []byte
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.StripeSubscriptionID, &sub.PaypalSubscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd, &sub.CanceledAt, &sub.TrialStart, &sub.TrialEnd,
		&sub.CreatedAt, &sub.UpdatedAt,
		&plan.ID, &plan.Name, &plan.Price, &plan.Interval, &plan.StripePriceID, &plan.PaypalPlanID,
		&planFeatures, &plan.MaxListings, &plan.MaxFeaturedListings, &plan.ListingDuration,
		&plan.CreatedAt, &plan.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user subscription: %w", err)
	}
	if len(planFeatures) > 0 {
		_ = json.Unmarshal(planFeatures, &plan.Features)
	}
	sub.Plan = &plan
	return &sub, nil
}

func (s *PostgresStore) InsertSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status,
			stripe_subscription_id, paypal_subscription_id,
			current_period_start, current_period_end,
			cancel_at_period_end, trial_start, trial_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sub.ID, sub.UserID, sub.PlanID, sub.Status,
		sub.StripeSubscriptionID, sub.PaypalSubscriptionID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.TrialStart, sub.TrialEnd)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}
