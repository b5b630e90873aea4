package domain

import "time"

// Weather is the LLM-generated forecast summary for a destination and date range.
// Degraded is set when the upstream answer could not be parsed and Summary
// holds the raw text instead.
type Weather struct {
	Summary         string    `json:"weather"`
	Temperature     string    `json:"temperature"`
	Conditions      string    `json:"conditions"`
	Recommendations []string  `json:"recommendations"`
	Degraded        bool      `json:"degraded,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// TravelAdvice is the LLM-generated travel recommendation set for a trip.
type TravelAdvice struct {
	GeneralAdvice   string    `json:"generalAdvice"`
	HealthTips      []string  `json:"healthTips"`
	SafetyTips      []string  `json:"safetyTips"`
	CulturalTips    []string  `json:"culturalTips"`
	PackingTips     []string  `json:"packingTips"`
	LocalCustoms    []string  `json:"localCustoms"`
	EmergencyInfo   []string  `json:"emergencyInfo"`
	Recommendations []string  `json:"recommendations"`
	Degraded        bool      `json:"degraded,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// WeatherQuery identifies one weather lookup.
type WeatherQuery struct {
	Destination string
	Start       time.Time
	End         time.Time
}

// AdviceQuery identifies one travel-advice lookup.
type AdviceQuery struct {
	Destination string
	Start       time.Time
	End         time.Time
	TravelType  TravelType
}
