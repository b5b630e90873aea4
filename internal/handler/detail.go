package handler

import (
	"net/http"

	"github.com/voyagesur/backend/internal/domain"
)

// TripDetailResponse is the full display model for one trip. Weather and
// advice carry their own status so a failed lookup degrades one section
// instead of the whole response.
type TripDetailResponse struct {
	Trip         TripResponse          `json:"trip"`
	Country      *domain.Country       `json:"country,omitempty"`
	City         *domain.City          `json:"city,omitempty"`
	Vaccines     []domain.Vaccine      `json:"vaccines"`
	Medicines    []domain.Medicine     `json:"medicines"`
	Symptoms     []domain.Symptom      `json:"symptoms"`
	SymptomIndex map[string][]string   `json:"symptom_index"`
	Weather      domain.WeatherSection `json:"weather"`
	Advice       domain.AdviceSection  `json:"advice"`
	Unresolved   domain.Unresolved     `json:"unresolved"`
}

// GetTripDetail implements GET /v1/trips/{tripID}/detail.
func (s *Server) GetTripDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tripID, ok := pathParam(w, r, "tripID")
	if !ok {
		return
	}
	d, err := s.details.BuildDetail(r.Context(), userID, tripID)
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, TripDetailResponse{
		Trip:         tripToResponse(d.Trip),
		Country:      d.Country,
		City:         d.City,
		Vaccines:     nonNil(d.Vaccines),
		Medicines:    nonNil(d.Medicines),
		Symptoms:     nonNil(d.Symptoms),
		SymptomIndex: d.SymptomIndex,
		Weather:      d.Weather,
		Advice:       d.Advice,
		Unresolved:   d.Unresolved,
	})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
