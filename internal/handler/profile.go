package handler

import (
	"net/http"

	"github.com/voyagesur/backend/internal/domain"
)

type emergencyContactRequest struct {
	Name  string `json:"name" validate:"max=120"`
	Phone string `json:"phone" validate:"max=32"`
}

// updateProfileRequest is the PATCH /v1/profile body. Entitlement fields
// are not accepted here; they change only through the billing webhook.
type updateProfileRequest struct {
	FirstName          *string                  `json:"first_name" validate:"omitempty,max=100"`
	LastName           *string                  `json:"last_name" validate:"omitempty,max=100"`
	Age                *int                     `json:"age" validate:"omitempty,max=150"`
	Gender             *string                  `json:"gender" validate:"omitempty,max=32"`
	EmergencyContact   *emergencyContactRequest `json:"emergency_contact"`
	OnboardingComplete *bool                    `json:"onboarding_complete"`
}

// GetProfile implements GET /v1/profile.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	p, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile implements PATCH /v1/profile, creating the profile on first use.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	patch := domain.ProfilePatch{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Age:                req.Age,
		Gender:             req.Gender,
		OnboardingComplete: req.OnboardingComplete,
	}
	if req.EmergencyContact != nil {
		patch.EmergencyContact = &domain.EmergencyContact{
			Name:  req.EmergencyContact.Name,
			Phone: req.EmergencyContact.Phone,
		}
	}
	p, err := s.profiles.Update(r.Context(), userID, patch)
	if err != nil {
		s.writeServiceError(w, r, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
