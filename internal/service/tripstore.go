// Package service contains the business logic for the Voyage Sûr backend.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/metrics"
	"github.com/voyagesur/backend/internal/repo"
)

// TripStore implements the trip lifecycle across a user's active and past
// partitions. Reads go straight to the partition repo; every mutation runs
// in its own transaction under the per-user lock.
type TripStore struct {
	partitions repo.PartitionRepo
	tx         repo.Transactor
	now        func() time.Time
	log        *slog.Logger
}

// NewTripStore constructs a TripStore. now is the clock used for creation
// stamps, the "not in the past" rule, and expiry; pass time.Now in production.
func NewTripStore(partitions repo.PartitionRepo, tx repo.Transactor, now func() time.Time, log *slog.Logger) *TripStore {
	return &TripStore{partitions: partitions, tx: tx, now: now, log: log}
}

// Create validates the plan and appends a new trip to the user's active partition.
// Returns domain.ErrValidation if the plan violates a creation rule.
func (s *TripStore) Create(ctx context.Context, plan domain.TripPlan) (domain.PlacedTrip, error) {
	now := s.now()
	if err := validatePlan(plan, now); err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.TripStore.Create: %w", err)
	}

	var placed domain.PlacedTrip
	err := s.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		var err error
		placed, err = createTrip(ctx, r.Partitions, plan, now)
		return err
	})
	if err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.TripStore.Create: %w", err)
	}
	return placed, nil
}

// ListByUser returns both partitions in array order, read together.
// Always returns non-nil slices so callers can safely range over them.
func (s *TripStore) ListByUser(ctx context.Context, userID string) (active, past []domain.PlacedTrip, err error) {
	a, p, err := s.partitions.LoadAll(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("service.TripStore.ListByUser: %w", err)
	}
	return place(a), place(p), nil
}

// GetByID returns one trip, looking in the active partition before the past one.
// tripID is either the trip's UUID or its positional reference.
// Returns domain.ErrNotFound if neither partition holds it.
func (s *TripStore) GetByID(ctx context.Context, userID, tripID string) (domain.PlacedTrip, error) {
	active, past, err := s.partitions.LoadAll(ctx, userID)
	if err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.TripStore.GetByID: %w", err)
	}
	for _, p := range []domain.Partition{active, past} {
		if i, ok := locate(p.Trips, userID, tripID); ok {
			return domain.PlacedTrip{Trip: p.Trips[i], Bucket: p.Bucket, Position: i}, nil
		}
	}
	return domain.PlacedTrip{}, fmt.Errorf("service.TripStore.GetByID: trip %s: %w", tripID, domain.ErrNotFound)
}

// Update merges patch into an active trip. Past trips are read-only.
// Returns domain.ErrNotFound if the trip is not in the active partition and
// domain.ErrValidation if the merged trip breaks a field rule.
func (s *TripStore) Update(ctx context.Context, userID, tripID string, patch domain.TripPatch) (domain.PlacedTrip, error) {
	var placed domain.PlacedTrip
	err := s.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Partitions.Lock(ctx, userID); err != nil {
			return err
		}
		active, err := r.Partitions.Load(ctx, userID, domain.BucketActive)
		if err != nil {
			return err
		}
		i, ok := locate(active.Trips, userID, tripID)
		if !ok {
			return fmt.Errorf("trip %s: %w", tripID, domain.ErrNotFound)
		}

		trip := applyPatch(active.Trips[i], patch)
		if err := validateTrip(trip); err != nil {
			return err
		}
		trip.UpdatedAt = s.now()
		active.Trips[i] = trip

		if _, err := r.Partitions.Save(ctx, active); err != nil {
			return err
		}
		placed = domain.PlacedTrip{Trip: trip, Bucket: domain.BucketActive, Position: i}
		return nil
	})
	if err != nil {
		return domain.PlacedTrip{}, fmt.Errorf("service.TripStore.Update: %w", err)
	}
	return placed, nil
}

// Delete removes a trip from whichever partition holds it.
// Returns domain.ErrNotFound if neither does.
func (s *TripStore) Delete(ctx context.Context, userID, tripID string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Partitions.Lock(ctx, userID); err != nil {
			return err
		}
		for _, b := range []domain.Bucket{domain.BucketActive, domain.BucketPast} {
			p, err := r.Partitions.Load(ctx, userID, b)
			if err != nil {
				return err
			}
			i, ok := locate(p.Trips, userID, tripID)
			if !ok {
				continue
			}
			p.Trips = append(p.Trips[:i:i], p.Trips[i+1:]...)
			_, err = r.Partitions.Save(ctx, p)
			return err
		}
		return fmt.Errorf("trip %s: %w", tripID, domain.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("service.TripStore.Delete: %w", err)
	}
	return nil
}

// MigrateExpired moves every active trip whose end date has passed to the
// past partition and returns how many moved. Both partitions are written in
// one transaction, so a trip is never in both or neither.
func (s *TripStore) MigrateExpired(ctx context.Context, userID string) (int, error) {
	now := s.now()
	moved := 0
	err := s.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Partitions.Lock(ctx, userID); err != nil {
			return err
		}
		active, err := r.Partitions.Load(ctx, userID, domain.BucketActive)
		if err != nil {
			return err
		}

		kept := make([]domain.Trip, 0, len(active.Trips))
		var expired []domain.Trip
		for _, t := range active.Trips {
			if t.EndDate.Before(now) {
				expired = append(expired, t)
			} else {
				kept = append(kept, t)
			}
		}
		if len(expired) == 0 {
			return nil
		}

		past, err := r.Partitions.Load(ctx, userID, domain.BucketPast)
		if err != nil {
			return err
		}
		past.Trips = append(past.Trips, expired...)
		if _, err := r.Partitions.Save(ctx, past); err != nil {
			return err
		}
		active.Trips = kept
		if _, err := r.Partitions.Save(ctx, active); err != nil {
			return err
		}
		moved = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service.TripStore.MigrateExpired: %w", err)
	}

	if moved == 0 {
		s.log.Debug("no expired trips", "user_id", userID)
		return 0, nil
	}
	metrics.TripsMigrated.Add(float64(moved))
	s.log.Info("migrated expired trips", "user_id", userID, "count", moved)
	return moved, nil
}

// createTrip appends a new trip built from plan to the active partition.
// The caller must already be inside a transaction and have validated plan.
func createTrip(ctx context.Context, partitions repo.PartitionRepo, plan domain.TripPlan, now time.Time) (domain.PlacedTrip, error) {
	if err := partitions.Lock(ctx, plan.UserID); err != nil {
		return domain.PlacedTrip{}, err
	}
	active, err := partitions.Load(ctx, plan.UserID, domain.BucketActive)
	if err != nil {
		return domain.PlacedTrip{}, err
	}

	trip := domain.Trip{
		ID:         uuid.New(),
		UserID:     plan.UserID,
		Country:    strings.TrimSpace(plan.Country),
		CountryID:  plan.CountryID,
		City:       strings.TrimSpace(plan.City),
		CityID:     plan.CityID,
		StartDate:  plan.StartDate,
		EndDate:    plan.EndDate,
		Duration:   domain.DurationDays(plan.StartDate, plan.EndDate),
		TravelType: plan.TravelType,
		Travelers:  plan.Travelers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	active.Trips = append(active.Trips, trip)

	if _, err := partitions.Save(ctx, active); err != nil {
		return domain.PlacedTrip{}, err
	}
	return domain.PlacedTrip{Trip: trip, Bucket: domain.BucketActive, Position: len(active.Trips) - 1}, nil
}

// validatePlan enforces the creation rules.
//   - A user id and a destination are required.
//   - The end date must be after the start date.
//   - The start date must not be before the start of the current UTC day.
//   - Travelers and travel type must be valid (see validateTrip).
func validatePlan(plan domain.TripPlan, now time.Time) error {
	if strings.TrimSpace(plan.UserID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if plan.StartDate.Before(today) {
		return fmt.Errorf("%w: start date cannot be in the past", domain.ErrValidation)
	}
	return validateTrip(domain.Trip{
		Country:    plan.Country,
		CountryID:  plan.CountryID,
		StartDate:  plan.StartDate,
		EndDate:    plan.EndDate,
		TravelType: plan.TravelType,
		Travelers:  plan.Travelers,
	})
}

// validateTrip enforces the rules common to creation and update.
func validateTrip(t domain.Trip) error {
	if strings.TrimSpace(t.Country) == "" || t.CountryID == "" {
		return fmt.Errorf("%w: select a destination first", domain.ErrValidation)
	}
	if !t.EndDate.After(t.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", domain.ErrValidation)
	}
	if t.Travelers < 1 {
		return fmt.Errorf("%w: travelers must be at least 1", domain.ErrValidation)
	}
	if !t.TravelType.Valid() {
		return fmt.Errorf("%w: unknown travel type %q", domain.ErrValidation, t.TravelType)
	}
	return nil
}

// applyPatch returns t with every non-nil patch field applied. Duration is
// recomputed when either date changes.
func applyPatch(t domain.Trip, p domain.TripPatch) domain.Trip {
	if p.Country != nil {
		t.Country = strings.TrimSpace(*p.Country)
	}
	if p.CountryID != nil {
		t.CountryID = *p.CountryID
	}
	if p.City != nil {
		t.City = strings.TrimSpace(*p.City)
	}
	if p.CityID != nil {
		t.CityID = *p.CityID
	}
	if p.TravelType != nil {
		t.TravelType = *p.TravelType
	}
	if p.Travelers != nil {
		t.Travelers = *p.Travelers
	}
	if p.StartDate != nil || p.EndDate != nil {
		if p.StartDate != nil {
			t.StartDate = *p.StartDate
		}
		if p.EndDate != nil {
			t.EndDate = *p.EndDate
		}
		t.Duration = domain.DurationDays(t.StartDate, t.EndDate)
	}
	return t
}

// locate finds tripID in trips. A UUID matches on Trip.ID; anything else is
// treated as a positional reference and must match the reference recomputed
// for the trip currently at that index.
func locate(trips []domain.Trip, userID, tripID string) (int, bool) {
	if id, err := uuid.Parse(tripID); err == nil {
		for i := range trips {
			if trips[i].ID == id {
				return i, true
			}
		}
		return 0, false
	}

	i, err := domain.ParseRefIndex(tripID)
	if err != nil || i >= len(trips) {
		return 0, false
	}
	if domain.PositionalRef(userID, trips[i].CreatedAt, i) != tripID {
		return 0, false
	}
	return i, true
}

func place(p domain.Partition) []domain.PlacedTrip {
	out := make([]domain.PlacedTrip, len(p.Trips))
	for i, t := range p.Trips {
		out[i] = domain.PlacedTrip{Trip: t, Bucket: p.Bucket, Position: i}
	}
	return out
}
