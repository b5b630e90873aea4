package handler_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/handler"
)

func exportFixture() []domain.ExportRow {
	return []domain.ExportRow{
		{TripID: "t1", Ref: "u1_1_0", Bucket: "active", Country: "Kenya", City: "Nairobi",
			StartDate: "2025-03-10", EndDate: "2025-03-17", Duration: 7, TravelType: "tourism", Travelers: 2},
		{TripID: "t2", Ref: "u1_2_0", Bucket: "past", Country: "Peru",
			StartDate: "2024-05-01", EndDate: "2024-05-03", Duration: 2, TravelType: "business", Travelers: 1},
	}
}

func newExportHandler() http.Handler {
	return newHTTPHandler(handler.Deps{Export: &mockExporter{
		export: func(_ context.Context, _ string) ([]domain.ExportRow, error) { return exportFixture(), nil },
	}})
}

func TestExportTrips_JSONByDefault(t *testing.T) {
	rec := do(t, newExportHandler(), http.MethodGet, "/v1/trips/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []handler.ExportRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-03-10", rows[0].StartDate.Format("2006-01-02"))
	assert.Equal(t, "past", rows[1].Bucket)
}

func TestExportTrips_CSV(t *testing.T) {
	rec := do(t, newExportHandler(), http.MethodGet, "/v1/trips/export?format=csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "trip_id", records[0][0])
	assert.Equal(t, []string{"t2", "u1_2_0", "past", "Peru", "", "2024-05-01", "2024-05-03", "2", "business", "1"}, records[2])
}

func TestExportTrips_422_UnknownFormat(t *testing.T) {
	rec := do(t, newExportHandler(), http.MethodGet, "/v1/trips/export?format=xml", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
