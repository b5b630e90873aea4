package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/repo"
)

// ProfileService implements the user-editable part of the profile document.
// Entitlement fields are owned by Ledger and are never touched here.
type ProfileService struct {
	profiles repo.ProfileRepo
	tx       repo.Transactor
}

// NewProfileService constructs a ProfileService backed by the provided repos.
func NewProfileService(profiles repo.ProfileRepo, tx repo.Transactor) *ProfileService {
	return &ProfileService{profiles: profiles, tx: tx}
}

// Get returns the user's profile.
// Returns domain.ErrNotFound if the user has never saved one.
func (s *ProfileService) Get(ctx context.Context, userID string) (domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Get: %w", err)
	}
	return p, nil
}

// Update applies patch to the user's profile, creating it on first write.
// Returns domain.ErrValidation if the patch violates a field rule.
func (s *ProfileService) Update(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error) {
	if err := validateProfilePatch(patch); err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Update: %w", err)
	}

	var saved domain.Profile
	err := s.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Profiles.Lock(ctx, userID); err != nil {
			return err
		}
		p, _, err := loadProfile(ctx, r.Profiles, userID)
		if err != nil {
			return err
		}
		saved, err = r.Profiles.Save(ctx, applyProfilePatch(p, patch))
		return err
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("service.ProfileService.Update: %w", err)
	}
	return saved, nil
}

func validateProfilePatch(p domain.ProfilePatch) error {
	if p.Age != nil && *p.Age < 0 {
		return fmt.Errorf("%w: age cannot be negative", domain.ErrValidation)
	}
	if p.EmergencyContact != nil && strings.TrimSpace(p.EmergencyContact.Phone) == "" {
		return fmt.Errorf("%w: emergency contact phone is required", domain.ErrValidation)
	}
	return nil
}

func applyProfilePatch(p domain.Profile, patch domain.ProfilePatch) domain.Profile {
	if patch.FirstName != nil {
		p.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		p.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Age != nil {
		p.Age = patch.Age
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.EmergencyContact != nil {
		ec := *patch.EmergencyContact
		p.EmergencyContact = &ec
	}
	if patch.OnboardingComplete != nil {
		p.OnboardingComplete = *patch.OnboardingComplete
	}
	return p
}
