package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/repo"
)

// Planner creates trips on behalf of users, charging a consumable credit when
// the user is not premium. The trip write and the credit decrement commit or
// roll back together.
type Planner struct {
	tx  repo.Transactor
	now func() time.Time
	log *slog.Logger
}

// NewPlanner constructs a Planner over the provided Transactor.
func NewPlanner(tx repo.Transactor, now func() time.Time, log *slog.Logger) *Planner {
	return &Planner{tx: tx, now: now, log: log}
}

// CreateTrip validates plan, checks the user's entitlement, creates the trip
// and consumes one credit.
// Returns domain.ErrValidation for a bad plan and domain.ErrEntitlementRequired
// when the user has neither an active subscription nor a credit left.
func (p *Planner) CreateTrip(ctx context.Context, plan domain.TripPlan) (domain.PlacedTrip, error) {
	now := p.now()
	if err := validatePlan(plan, now); err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.Planner.CreateTrip: %w", err)
	}

	var placed domain.PlacedTrip
	err := p.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Profiles.Lock(ctx, plan.UserID); err != nil {
			return err
		}
		profile, _, err := loadProfile(ctx, r.Profiles, plan.UserID)
		if err != nil {
			return err
		}
		if !domain.DeriveAccess(profile, now).HasFreeTripAccess {
			return fmt.Errorf("%w: a subscription or trip credit is required to create a trip", domain.ErrEntitlementRequired)
		}

		placed, err = createTrip(ctx, r.Partitions, plan, now)
		if err != nil {
			return err
		}
		return consumeCredit(ctx, r.Profiles, plan.UserID, now)
	})
	if err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.Planner.CreateTrip: %w", err)
	}

	p.log.Info("trip created", "user_id", plan.UserID, "trip_id", placed.ID, "country_id", plan.CountryID)
	return placed, nil
}
