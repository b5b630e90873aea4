package domain

// Collection names a read-only reference collection.
type Collection string

const (
	CollectionCountries Collection = "countries"
	CollectionCities    Collection = "cities"
	CollectionVaccines  Collection = "vaccines"
	CollectionMedicines Collection = "medicines"
	CollectionSymptoms  Collection = "symptoms"
)

// EmergencyNumbers are the local numbers shown on a country's emergency card.
type EmergencyNumbers struct {
	Police    string `json:"police,omitempty"`
	Ambulance string `json:"ambulance,omitempty"`
	Fire      string `json:"fire,omitempty"`
}

type Country struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Code             string           `json:"code"`
	EmergencyNumbers EmergencyNumbers `json:"emergency_numbers"`
}

// City links a destination to the vaccines and medicines recommended there.
type City struct {
	ID          string   `json:"id"`
	CountryID   string   `json:"country_id"`
	Name        string   `json:"name"`
	VaccineIDs  []string `json:"vaccine_ids"`
	MedicineIDs []string `json:"medicine_ids"`
}

type Vaccine struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mandatory   bool   `json:"mandatory"`
}

// Medicine lists the symptoms it treats by id.
type Medicine struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	SymptomIDs  []string `json:"symptom_ids"`
}

type Symptom struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
