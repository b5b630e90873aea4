package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voyagesur/backend/internal/domain"
)

// tripGetter is the slice of TripStore the aggregator needs.
type tripGetter interface {
	GetByID(ctx context.Context, userID, tripID string) (domain.PlacedTrip, error)
}

// referenceSource is the slice of ReferenceService the aggregator needs.
type referenceSource interface {
	Country(ctx context.Context, id string) (domain.Country, error)
	City(ctx context.Context, id string) (domain.City, error)
	Vaccines(ctx context.Context, ids []string) ([]domain.Vaccine, []string, error)
	Medicines(ctx context.Context, ids []string) ([]domain.Medicine, []string, error)
	Symptoms(ctx context.Context, ids []string) ([]domain.Symptom, []string, error)
}

// Advisor produces weather and travel advice for a destination.
// advisor.Service is the production implementation.
type Advisor interface {
	Weather(ctx context.Context, q domain.WeatherQuery) (domain.Weather, error)
	Advice(ctx context.Context, q domain.AdviceQuery) (domain.TravelAdvice, error)
}

// Aggregator joins a trip with its reference data and advisories into the
// display model. Advisory failures degrade their own section only.
type Aggregator struct {
	trips   tripGetter
	refs    referenceSource
	advisor Advisor
	timeout time.Duration
	log     *slog.Logger
}

// NewAggregator constructs an Aggregator. timeout bounds each advisory call;
// zero means no bound beyond the request context.
func NewAggregator(trips tripGetter, refs referenceSource, advisor Advisor, timeout time.Duration, log *slog.Logger) *Aggregator {
	return &Aggregator{trips: trips, refs: refs, advisor: advisor, timeout: timeout, log: log}
}

// BuildDetail assembles the full detail view of one trip.
// Returns domain.ErrNotFound if the trip does not exist and domain.ErrStorage
// if reference data cannot be read. Missing reference ids are counted, not errors.
func (a *Aggregator) BuildDetail(ctx context.Context, userID, tripID string) (domain.TripDetail, error) {
	placed, err := a.trips.GetByID(ctx, userID, tripID)
	if err != nil {
		return domain.TripDetail{}, fmt.Errorf("service.Aggregator.BuildDetail: %w", err)
	}

	detail := domain.TripDetail{
		Trip:         placed,
		Vaccines:     []domain.Vaccine{},
		Medicines:    []domain.Medicine{},
		Symptoms:     []domain.Symptom{},
		SymptomIndex: map[string][]string{},
	}

	advCtx, cancel := a.advisoryContext(ctx)
	defer cancel()

	// Each advisory goroutine writes only its own section field.
	var adv errgroup.Group
	adv.Go(func() error {
		detail.Weather = a.weather(advCtx, placed.Trip)
		return nil
	})
	adv.Go(func() error {
		detail.Advice = a.advice(advCtx, placed.Trip)
		return nil
	})

	refErr := a.resolveReferences(ctx, placed.Trip, &detail)
	if refErr != nil {
		cancel()
	}
	_ = adv.Wait()
	if refErr != nil {
		return domain.TripDetail{}, fmt.Errorf("service.Aggregator.BuildDetail: %w", refErr)
	}

	if n := detail.Unresolved.Total(); n > 0 {
		a.log.Debug("trip detail has unresolved references",
			"trip_id", placed.ID, "unresolved", n, "country_id", placed.CountryID, "city_id", placed.CityID)
	}
	return detail, nil
}

// resolveReferences fills the country, city, vaccine, medicine and symptom
// fields of detail.
func (a *Aggregator) resolveReferences(ctx context.Context, trip domain.Trip, detail *domain.TripDetail) error {
	if trip.CountryID != "" {
		country, err := a.refs.Country(ctx, trip.CountryID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			detail.Unresolved.Country = 1
		case err != nil:
			return err
		default:
			detail.Country = &country
		}
	}

	if trip.CityID == "" {
		return nil
	}
	city, err := a.refs.City(ctx, trip.CityID)
	if errors.Is(err, domain.ErrNotFound) {
		detail.Unresolved.City = 1
		return nil
	}
	if err != nil {
		return err
	}
	detail.City = &city

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, missing, err := a.refs.Vaccines(gctx, city.VaccineIDs)
		if err != nil {
			return err
		}
		detail.Vaccines = found
		detail.Unresolved.Vaccines = len(missing)
		return nil
	})
	g.Go(func() error {
		found, missing, err := a.refs.Medicines(gctx, city.MedicineIDs)
		if err != nil {
			return err
		}
		detail.Medicines = found
		detail.Unresolved.Medicines = len(missing)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var symptomIDs []string
	for _, m := range detail.Medicines {
		symptomIDs = append(symptomIDs, m.SymptomIDs...)
	}
	symptoms, missing, err := a.refs.Symptoms(ctx, symptomIDs)
	if err != nil {
		return err
	}
	detail.Symptoms = symptoms
	detail.Unresolved.Symptoms = len(missing)
	detail.SymptomIndex = domain.BuildSymptomIndex(detail.Medicines)
	return nil
}

func (a *Aggregator) weather(ctx context.Context, t domain.Trip) domain.WeatherSection {
	w, err := a.advisor.Weather(ctx, domain.WeatherQuery{
		Destination: t.Destination(),
		Start:       t.StartDate,
		End:         t.EndDate,
	})
	if err != nil {
		a.log.Warn("weather unavailable", "trip_id", t.ID, "error", err)
		return domain.WeatherSection{Status: domain.SectionStatusFor(err)}
	}
	return domain.WeatherSection{Status: domain.SectionOK, Data: &w}
}

func (a *Aggregator) advice(ctx context.Context, t domain.Trip) domain.AdviceSection {
	adv, err := a.advisor.Advice(ctx, domain.AdviceQuery{
		Destination: t.Destination(),
		Start:       t.StartDate,
		End:         t.EndDate,
		TravelType:  t.TravelType,
	})
	if err != nil {
		a.log.Warn("travel advice unavailable", "trip_id", t.ID, "error", err)
		return domain.AdviceSection{Status: domain.SectionStatusFor(err)}
	}
	return domain.AdviceSection{Status: domain.SectionOK, Data: &adv}
}

func (a *Aggregator) advisoryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
