// Package domain contains the core data types for the Voyage Sûr backend.
// This package depends only on uuid and is imported by every other
// internal package (repo, service, advisor, handler).
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Bucket names one of the two partitions a user's trips live in.
type Bucket string

const (
	BucketActive Bucket = "active"
	BucketPast   Bucket = "past"
)

// TravelType tags the kind of journey a trip is.
type TravelType string

const (
	TravelTourism     TravelType = "tourism"
	TravelBusiness    TravelType = "business"
	TravelBackpacking TravelType = "backpacking"
	TravelWedding     TravelType = "wedding"
	TravelFamily      TravelType = "family"
	TravelGroup       TravelType = "group"
	TravelCouple      TravelType = "couple"
	TravelSolitary    TravelType = "solitary"
	TravelYouth       TravelType = "youth"
	TravelSeniors     TravelType = "seniors"
)

// TravelTypes lists every accepted travel type in display order.
var TravelTypes = []TravelType{
	TravelTourism, TravelBusiness, TravelBackpacking, TravelWedding, TravelFamily,
	TravelGroup, TravelCouple, TravelSolitary, TravelYouth, TravelSeniors,
}

// Valid reports whether t is one of TravelTypes.
func (t TravelType) Valid() bool {
	for _, v := range TravelTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Trip is a single journey owned by one user. It is stored embedded in the
// user's active or past partition document, never as its own row.
//
// Duration is derived once, when the trip is created (or its dates are
// edited), and is not recomputed on read.
type Trip struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"user_id"`
	Country    string     `json:"country"`
	CountryID  string     `json:"country_id"`
	City       string     `json:"city,omitempty"`
	CityID     string     `json:"city_id,omitempty"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	Duration   int        `json:"duration"`
	TravelType TravelType `json:"travel_type"`
	Travelers  int        `json:"travelers"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Destination is the human-readable place used for advisory lookups:
// "City, Country" when a city is set, otherwise the country alone.
func (t Trip) Destination() string {
	if t.City != "" {
		return t.City + ", " + t.Country
	}
	return t.Country
}

// DurationDays returns the whole number of days between start and end,
// rounding any partial day up.
func DurationDays(start, end time.Time) int {
	return int(math.Ceil(end.Sub(start).Hours() / 24))
}

// TripPlan is the caller's input for creating a trip.
type TripPlan struct {
	UserID     string
	Country    string
	CountryID  string
	City       string
	CityID     string
	StartDate  time.Time
	EndDate    time.Time
	TravelType TravelType
	Travelers  int
}

// TripPatch carries the mutable trip fields for an update. Nil fields are
// left unchanged.
type TripPatch struct {
	Country    *string
	CountryID  *string
	City       *string
	CityID     *string
	StartDate  *time.Time
	EndDate    *time.Time
	TravelType *TravelType
	Travelers  *int
}

// Partition is one of a user's two trip documents. Trips keep insertion
// order; identity comes from Trip.ID, never from position.
type Partition struct {
	UserID    string
	Bucket    Bucket
	Trips     []Trip
	UpdatedAt time.Time
}

// PlacedTrip is a trip together with where it currently lives.
type PlacedTrip struct {
	Trip
	Bucket   Bucket `json:"bucket"`
	Position int    `json:"position"`
}

// Ref returns the trip's positional reference.
func (p PlacedTrip) Ref() string {
	return PositionalRef(p.UserID, p.CreatedAt, p.Position)
}

// PositionalRef builds the legacy "{userId}_{createdAtMillis}_{index}" trip
// reference older clients still hold.
func PositionalRef(userID string, createdAt time.Time, index int) string {
	return fmt.Sprintf("%s_%d_%d", userID, createdAt.UnixMilli(), index)
}

// ParseRefIndex extracts the trailing array index of a positional reference.
func ParseRefIndex(ref string) (int, error) {
	i := strings.LastIndex(ref, "_")
	if i < 0 || i == len(ref)-1 {
		return 0, fmt.Errorf("%w: malformed trip reference %q", ErrNotFound, ref)
	}
	n, err := strconv.Atoi(ref[i+1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: malformed trip reference %q", ErrNotFound, ref)
	}
	return n, nil
}
