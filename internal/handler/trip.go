package handler

import (
	"net/http"
	"time"

	"github.com/voyagesur/backend/internal/domain"
)

// createTripRequest is the POST /v1/trips body. Field rules that carry
// business meaning (dates, travelers, travel type) are checked by the
// service layer so their messages stay consistent across callers.
type createTripRequest struct {
	Country    string    `json:"country" validate:"max=120"`
	CountryID  string    `json:"country_id" validate:"max=64"`
	City       string    `json:"city" validate:"max=120"`
	CityID     string    `json:"city_id" validate:"max=64"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TravelType string    `json:"travel_type" validate:"max=32"`
	Travelers  int       `json:"travelers"`
}

// updateTripRequest is the PATCH /v1/trips/{tripID} body. Omitted fields are unchanged.
type updateTripRequest struct {
	Country    *string    `json:"country" validate:"omitempty,max=120"`
	CountryID  *string    `json:"country_id" validate:"omitempty,max=64"`
	City       *string    `json:"city" validate:"omitempty,max=120"`
	CityID     *string    `json:"city_id" validate:"omitempty,max=64"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	TravelType *string    `json:"travel_type" validate:"omitempty,max=32"`
	Travelers  *int       `json:"travelers"`
}

// TripResponse is the wire shape of one trip.
type TripResponse struct {
	ID         string    `json:"id"`
	Ref        string    `json:"ref"`
	Bucket     string    `json:"bucket"`
	Country    string    `json:"country"`
	CountryID  string    `json:"country_id"`
	City       string    `json:"city,omitempty"`
	CityID     string    `json:"city_id,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Duration   int       `json:"duration"`
	TravelType string    `json:"travel_type"`
	Travelers  int       `json:"travelers"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TripListResponse splits a user's trips by partition.
type TripListResponse struct {
	Active []TripResponse `json:"active"`
	Past   []TripResponse `json:"past"`
}

type migrateResponse struct {
	Migrated int `json:"migrated"`
}

// ListTrips implements GET /v1/trips.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	active, past, err := s.trips.ListByUser(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "trips not found")
		return
	}
	writeJSON(w, http.StatusOK, TripListResponse{
		Active: tripsToResponse(active),
		Past:   tripsToResponse(past),
	})
}

// CreateTrip implements POST /v1/trips. It consumes one trip credit unless
// the user holds an active subscription.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createTripRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	trip, err := s.planner.CreateTrip(r.Context(), requestToPlan(userID, req))
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(trip))
}

// GetTrip implements GET /v1/trips/{tripID}. tripID is either the trip's
// UUID or its legacy positional reference.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tripID, ok := pathParam(w, r, "tripID")
	if !ok {
		return
	}
	trip, err := s.trips.GetByID(r.Context(), userID, tripID)
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// UpdateTrip implements PATCH /v1/trips/{tripID}. Only active trips can be edited.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tripID, ok := pathParam(w, r, "tripID")
	if !ok {
		return
	}
	var req updateTripRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	trip, err := s.trips.Update(r.Context(), userID, tripID, requestToPatch(req))
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(trip))
}

// DeleteTrip implements DELETE /v1/trips/{tripID}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	tripID, ok := pathParam(w, r, "tripID")
	if !ok {
		return
	}
	if err := s.trips.Delete(r.Context(), userID, tripID); err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MigrateTrips implements POST /v1/trips/migrate, moving every ended
// active trip into the past partition.
func (s *Server) MigrateTrips(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := s.trips.MigrateExpired(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "trips not found")
		return
	}
	writeJSON(w, http.StatusOK, migrateResponse{Migrated: n})
}

// ---- mapping helpers --------------------------------------------------------

func requestToPlan(userID string, req createTripRequest) domain.TripPlan {
	return domain.TripPlan{
		UserID:     userID,
		Country:    req.Country,
		CountryID:  req.CountryID,
		City:       req.City,
		CityID:     req.CityID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		TravelType: domain.TravelType(req.TravelType),
		Travelers:  req.Travelers,
	}
}

func requestToPatch(req updateTripRequest) domain.TripPatch {
	patch := domain.TripPatch{
		Country:   req.Country,
		CountryID: req.CountryID,
		City:      req.City,
		CityID:    req.CityID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Travelers: req.Travelers,
	}
	if req.TravelType != nil {
		tt := domain.TravelType(*req.TravelType)
		patch.TravelType = &tt
	}
	return patch
}

func tripToResponse(t domain.PlacedTrip) TripResponse {
	return TripResponse{
		ID:         t.ID.String(),
		Ref:        t.Ref(),
		Bucket:     string(t.Bucket),
		Country:    t.Country,
		CountryID:  t.CountryID,
		City:       t.City,
		CityID:     t.CityID,
		StartDate:  t.StartDate,
		EndDate:    t.EndDate,
		Duration:   t.Duration,
		TravelType: string(t.TravelType),
		Travelers:  t.Travelers,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// tripsToResponse never returns nil so empty lists encode as [].
func tripsToResponse(trips []domain.PlacedTrip) []TripResponse {
	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, tripToResponse(t))
	}
	return out
}
