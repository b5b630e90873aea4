package domain

// ExportRow is a single row in the trip export.
// It is a flat, denormalized view: one row per trip across both partitions.
type ExportRow struct {
	TripID     string
	Ref        string
	Bucket     string
	Country    string
	City       string
	StartDate  string // "2006-01-02" formatted date
	EndDate    string // "2006-01-02" formatted date
	Duration   int
	TravelType string
	Travelers  int
}
