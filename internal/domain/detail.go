package domain

// SectionStatus reports whether an advisory section of a trip detail could be filled.
type SectionStatus string

const (
	SectionOK          SectionStatus = "ok"
	SectionUnavailable SectionStatus = "unavailable"
	SectionRateLimited SectionStatus = "rate_limited"
)

// SectionStatusFor maps an upstream failure onto the status shown to the user.
func SectionStatusFor(err error) SectionStatus {
	if err == nil {
		return SectionOK
	}
	if UpstreamKindOf(err) == UpstreamRateLimited {
		return SectionRateLimited
	}
	return SectionUnavailable
}

type WeatherSection struct {
	Status SectionStatus `json:"status"`
	Data   *Weather      `json:"data,omitempty"`
}

type AdviceSection struct {
	Status SectionStatus `json:"status"`
	Data   *TravelAdvice `json:"data,omitempty"`
}

// Unresolved counts reference ids the detail build could not find.
type Unresolved struct {
	Country   int `json:"country"`
	City      int `json:"city"`
	Vaccines  int `json:"vaccines"`
	Medicines int `json:"medicines"`
	Symptoms  int `json:"symptoms"`
}

// Total returns the number of unresolved ids across all collections.
func (u Unresolved) Total() int {
	return u.Country + u.City + u.Vaccines + u.Medicines + u.Symptoms
}

// TripDetail is the full display model for one trip.
// SymptomIndex maps a symptom id to the ids of the medicines that treat it.
type TripDetail struct {
	Trip         PlacedTrip          `json:"trip"`
	Country      *Country            `json:"country,omitempty"`
	City         *City               `json:"city,omitempty"`
	Vaccines     []Vaccine           `json:"vaccines"`
	Medicines    []Medicine          `json:"medicines"`
	Symptoms     []Symptom           `json:"symptoms"`
	SymptomIndex map[string][]string `json:"symptom_index"`
	Weather      WeatherSection      `json:"weather"`
	Advice       AdviceSection       `json:"advice"`
	Unresolved   Unresolved          `json:"unresolved"`
}

// BuildSymptomIndex derives symptomId -> [medicineId] from the medicines'
// symptom lists. A medicine listing a symptom twice appears once.
func BuildSymptomIndex(medicines []Medicine) map[string][]string {
	index := make(map[string][]string)
	for _, m := range medicines {
		seen := make(map[string]bool, len(m.SymptomIDs))
		for _, sid := range m.SymptomIDs {
			if seen[sid] {
				continue
			}
			seen[sid] = true
			index[sid] = append(index[sid], m.ID)
		}
	}
	return index
}
