package service

import (
	"context"
	"fmt"

	"github.com/voyagesur/backend/internal/domain"
)

// tripLister is the slice of TripStore the export needs.
type tripLister interface {
	ListByUser(ctx context.Context, userID string) (active, past []domain.PlacedTrip, err error)
}

// ExportService assembles a flat export of a user's trips.
type ExportService struct {
	trips tripLister
}

// NewExportService constructs an ExportService over the provided trip lister.
func NewExportService(trips tripLister) *ExportService {
	return &ExportService{trips: trips}
}

// Export returns one ExportRow per trip: active trips first, then past ones,
// each in partition order. Always returns a non-nil slice.
func (s *ExportService) Export(ctx context.Context, userID string) ([]domain.ExportRow, error) {
	active, past, err := s.trips.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	rows := make([]domain.ExportRow, 0, len(active)+len(past))
	for _, list := range [][]domain.PlacedTrip{active, past} {
		for _, t := range list {
			rows = append(rows, domain.ExportRow{
				TripID:     t.ID.String(),
				Ref:        t.Ref(),
				Bucket:     string(t.Bucket),
				Country:    t.Country,
				City:       t.City,
				StartDate:  t.StartDate.Format("2006-01-02"),
				EndDate:    t.EndDate.Format("2006-01-02"),
				Duration:   t.Duration,
				TravelType: string(t.TravelType),
				Travelers:  t.Travelers,
			})
		}
	}
	return rows, nil
}
