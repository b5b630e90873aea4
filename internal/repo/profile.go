package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/voyagesur/backend/internal/domain"
)

// ProfileRepo defines the persistence operations for user profiles.
// The subscription and consumable-credit records are stored on the profile.
type ProfileRepo interface {
	// Lock takes the per-user write lock for the rest of the surrounding transaction.
	// It is the same lock PartitionRepo.Lock takes.
	Lock(ctx context.Context, userID string) error

	// Get retrieves a profile by user id.
	// Returns domain.ErrNotFound if the user has no profile yet.
	Get(ctx context.Context, userID string) (domain.Profile, error)

	// Save upserts the whole profile and returns the persisted record with
	// created_at and updated_at populated by the database.
	Save(ctx context.Context, p domain.Profile) (domain.Profile, error)
}

// pgProfileRepo is the Postgres implementation of ProfileRepo.
type pgProfileRepo struct {
	db db
}

// NewProfileRepo constructs a ProfileRepo backed by the provided db connection.
func NewProfileRepo(db db) ProfileRepo {
	return &pgProfileRepo{db: db}
}

func (r *pgProfileRepo) Lock(ctx context.Context, userID string) error {
	if err := lockUser(ctx, r.db, userID); err != nil {
		return fmt.Errorf("repo.ProfileRepo.Lock: %w", err)
	}
	return nil
}

// Get retrieves a profile by primary key.
func (r *pgProfileRepo) Get(ctx context.Context, userID string) (domain.Profile, error) {
	const q = `
		SELECT user_id, first_name, last_name, age, gender, emergency_contact,
		       is_premium, onboarding_complete, subscription, consumable_credit,
		       created_at, updated_at
		FROM profiles
		WHERE user_id = @user_id`

	p, err := scanProfile(r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID}))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Get: %w", err)
	}
	return p, nil
}

// Save inserts or overwrites a profile row. Nil entitlement records are stored as NULL.
func (r *pgProfileRepo) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	const q = `
		INSERT INTO profiles (user_id, first_name, last_name, age, gender, emergency_contact,
		                      is_premium, onboarding_complete, subscription, consumable_credit)
		VALUES (@user_id, @first_name, @last_name, @age, @gender, @emergency_contact,
		        @is_premium, @onboarding_complete, @subscription, @consumable_credit)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name          = EXCLUDED.first_name,
		    last_name           = EXCLUDED.last_name,
		    age                 = EXCLUDED.age,
		    gender              = EXCLUDED.gender,
		    emergency_contact   = EXCLUDED.emergency_contact,
		    is_premium          = EXCLUDED.is_premium,
		    onboarding_complete = EXCLUDED.onboarding_complete,
		    subscription        = EXCLUDED.subscription,
		    consumable_credit   = EXCLUDED.consumable_credit,
		    updated_at          = now()
		RETURNING user_id, first_name, last_name, age, gender, emergency_contact,
		          is_premium, onboarding_complete, subscription, consumable_credit,
		          created_at, updated_at`

	contact, err := jsonOrNil(p.EmergencyContact)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Save: %w", err)
	}
	sub, err := jsonOrNil(p.Subscription)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Save: %w", err)
	}
	credit, err := jsonOrNil(p.ConsumableCredit)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Save: %w", err)
	}

	args := pgx.NamedArgs{
		"user_id":             p.UserID,
		"first_name":          p.FirstName,
		"last_name":           p.LastName,
		"age":                 p.Age, // nil becomes NULL
		"gender":              p.Gender,
		"emergency_contact":   contact,
		"is_premium":          p.IsPremium,
		"onboarding_complete": p.OnboardingComplete,
		"subscription":        sub,
		"consumable_credit":   credit,
	}

	result, err := scanProfile(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("repo.ProfileRepo.Save: %w", err)
	}
	return result, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanProfile maps a single database row into a domain.Profile.
// It handles the nullable age and the three JSONB sub-documents.
func scanProfile(s scanner) (domain.Profile, error) {
	var (
		p                    domain.Profile
		age                  pgtype.Int4
		contact, sub, credit []byte
	)

	err := s.Scan(&p.UserID, &p.FirstName, &p.LastName, &age, &p.Gender, &contact,
		&p.IsPremium, &p.OnboardingComplete, &sub, &credit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	if age.Valid {
		a := int(age.Int32)
		p.Age = &a
	}
	if err := decodeOptional(contact, &p.EmergencyContact); err != nil {
		return domain.Profile{}, err
	}
	if err := decodeOptional(sub, &p.Subscription); err != nil {
		return domain.Profile{}, err
	}
	if err := decodeOptional(credit, &p.ConsumableCredit); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// jsonOrNil encodes v for a JSONB column, returning nil (SQL NULL) for a nil pointer.
func jsonOrNil[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return string(b), nil
}

// decodeOptional unmarshals a nullable JSONB column into *dst, leaving it nil for NULL.
func decodeOptional[T any](raw []byte, dst **T) error {
	if len(raw) == 0 || string(raw) == "null" {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %T: %w", domain.ErrStorage, v, err)
	}
	*dst = v
	return nil
}
