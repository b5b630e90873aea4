package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/voyagesur/backend/internal/domain"
)

// csvHeaders defines the column names written as the first row of any CSV export.
var csvHeaders = []string{
	"trip_id", "ref", "bucket", "country", "city",
	"start_date", "end_date", "duration", "travel_type", "travelers",
}

// ExportRow is the JSON shape of one exported trip.
type ExportRow struct {
	TripID     string             `json:"trip_id"`
	Ref        string             `json:"ref"`
	Bucket     string             `json:"bucket"`
	Country    string             `json:"country"`
	City       string             `json:"city,omitempty"`
	StartDate  openapi_types.Date `json:"start_date"`
	EndDate    openapi_types.Date `json:"end_date"`
	Duration   int                `json:"duration"`
	TravelType string             `json:"travel_type"`
	Travelers  int                `json:"travelers"`
}

// ExportTrips implements GET /v1/trips/export.
// It returns one flat row per trip across both partitions.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) ExportTrips(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var format string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		requestError(w, "invalid format")
		return
	}
	if format != "" && format != "csv" && format != "json" {
		requestError(w, "format must be csv or json")
		return
	}

	rows, err := s.export.Export(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "trips not found")
		return
	}

	if format == "csv" {
		writeCSV(w, rows)
		return
	}
	out := make([]ExportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domainRowToJSONRow(row))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeCSV encodes domain rows as CSV with a header row.
func writeCSV(w http.ResponseWriter, rows []domain.ExportRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	//nolint:errcheck // bytes.Buffer.Write never returns an error.
	cw.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		cw.Write(domainRowToCSVRecord(r))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trips.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck
	w.Write(buf.Bytes())
}

func domainRowToJSONRow(r domain.ExportRow) ExportRow {
	return ExportRow{
		TripID:     r.TripID,
		Ref:        r.Ref,
		Bucket:     r.Bucket,
		Country:    r.Country,
		City:       r.City,
		StartDate:  mustParseDate(r.StartDate),
		EndDate:    mustParseDate(r.EndDate),
		Duration:   r.Duration,
		TravelType: r.TravelType,
		Travelers:  r.Travelers,
	}
}

func domainRowToCSVRecord(r domain.ExportRow) []string {
	return []string{
		r.TripID,
		r.Ref,
		r.Bucket,
		r.Country,
		r.City,
		r.StartDate,
		r.EndDate,
		strconv.Itoa(r.Duration),
		r.TravelType,
		strconv.Itoa(r.Travelers),
	}
}

// mustParseDate parses an "2006-01-02" string into an openapi_types.Date.
// Panics on malformed input; callers are expected to pass service-generated dates.
func mustParseDate(s string) openapi_types.Date {
	t, err := time.Parse(openapi_types.DateFormat, s)
	if err != nil {
		panic("handler: malformed date from service: " + s)
	}
	return openapi_types.Date{Time: t}
}
