package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/repo"
)

// ReferenceService serves the read-only reference collections as typed
// documents. Batch reads skip ids that do not exist and report them back.
type ReferenceService struct {
	repo repo.ReferenceRepo
}

// NewReferenceService constructs a ReferenceService backed by the provided repo.
func NewReferenceService(r repo.ReferenceRepo) *ReferenceService {
	return &ReferenceService{repo: r}
}

func (s *ReferenceService) Country(ctx context.Context, id string) (domain.Country, error) {
	return getOne(ctx, s.repo, domain.CollectionCountries, id, func(c *domain.Country, id string) { c.ID = id })
}

func (s *ReferenceService) City(ctx context.Context, id string) (domain.City, error) {
	return getOne(ctx, s.repo, domain.CollectionCities, id, func(c *domain.City, id string) { c.ID = id })
}

func (s *ReferenceService) Vaccine(ctx context.Context, id string) (domain.Vaccine, error) {
	return getOne(ctx, s.repo, domain.CollectionVaccines, id, func(v *domain.Vaccine, id string) { v.ID = id })
}

func (s *ReferenceService) Medicine(ctx context.Context, id string) (domain.Medicine, error) {
	return getOne(ctx, s.repo, domain.CollectionMedicines, id, func(m *domain.Medicine, id string) { m.ID = id })
}

func (s *ReferenceService) Symptom(ctx context.Context, id string) (domain.Symptom, error) {
	return getOne(ctx, s.repo, domain.CollectionSymptoms, id, func(v *domain.Symptom, id string) { v.ID = id })
}

func (s *ReferenceService) Countries(ctx context.Context, ids []string) ([]domain.Country, []string, error) {
	return getMany(ctx, s.repo, domain.CollectionCountries, ids, func(c *domain.Country, id string) { c.ID = id })
}

func (s *ReferenceService) Cities(ctx context.Context, ids []string) ([]domain.City, []string, error) {
	return getMany(ctx, s.repo, domain.CollectionCities, ids, func(c *domain.City, id string) { c.ID = id })
}

func (s *ReferenceService) Vaccines(ctx context.Context, ids []string) ([]domain.Vaccine, []string, error) {
	return getMany(ctx, s.repo, domain.CollectionVaccines, ids, func(v *domain.Vaccine, id string) { v.ID = id })
}

func (s *ReferenceService) Medicines(ctx context.Context, ids []string) ([]domain.Medicine, []string, error) {
	return getMany(ctx, s.repo, domain.CollectionMedicines, ids, func(m *domain.Medicine, id string) { m.ID = id })
}

func (s *ReferenceService) Symptoms(ctx context.Context, ids []string) ([]domain.Symptom, []string, error) {
	return getMany(ctx, s.repo, domain.CollectionSymptoms, ids, func(v *domain.Symptom, id string) { v.ID = id })
}

// Lookup returns one document of any collection, for the generic reference endpoint.
// Returns domain.ErrNotFound for an unknown collection or id.
func (s *ReferenceService) Lookup(ctx context.Context, c domain.Collection, id string) (any, error) {
	switch c {
	case domain.CollectionCountries:
		return s.Country(ctx, id)
	case domain.CollectionCities:
		return s.City(ctx, id)
	case domain.CollectionVaccines:
		return s.Vaccine(ctx, id)
	case domain.CollectionMedicines:
		return s.Medicine(ctx, id)
	case domain.CollectionSymptoms:
		return s.Symptom(ctx, id)
	}
	return nil, fmt.Errorf("service.ReferenceService.Lookup: collection %q: %w", c, domain.ErrNotFound)
}

// LookupMany is the batch form of Lookup. found is a typed slice in request order.
func (s *ReferenceService) LookupMany(ctx context.Context, c domain.Collection, ids []string) (found any, missing []string, err error) {
	switch c {
	case domain.CollectionCountries:
		return s.Countries(ctx, ids)
	case domain.CollectionCities:
		return s.Cities(ctx, ids)
	case domain.CollectionVaccines:
		return s.Vaccines(ctx, ids)
	case domain.CollectionMedicines:
		return s.Medicines(ctx, ids)
	case domain.CollectionSymptoms:
		return s.Symptoms(ctx, ids)
	}
	return nil, nil, fmt.Errorf("service.ReferenceService.LookupMany: collection %q: %w", c, domain.ErrNotFound)
}

// getOne reads and decodes one document. The stored document does not carry
// its own key, so setID stamps it on.
func getOne[T any](ctx context.Context, r repo.ReferenceRepo, c domain.Collection, id string, setID func(*T, string)) (T, error) {
	var doc T
	raw, err := r.Get(ctx, c, id)
	if err != nil {
		return doc, fmt.Errorf("service.ReferenceService: %s %s: %w", c, id, err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("service.ReferenceService: decode %s %s: %w: %w", c, id, domain.ErrStorage, err)
	}
	setID(&doc, id)
	return doc, nil
}

// getMany reads a batch of documents. Results keep the order of the first
// occurrence of each id; ids with no document are returned in missing.
func getMany[T any](ctx context.Context, r repo.ReferenceRepo, c domain.Collection, ids []string, setID func(*T, string)) ([]T, []string, error) {
	ids = dedupe(ids)
	found := make([]T, 0, len(ids))
	if len(ids) == 0 {
		return found, nil, nil
	}

	docs, err := r.GetMany(ctx, c, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("service.ReferenceService: %s batch: %w", c, err)
	}

	var missing []string
	for _, id := range ids {
		raw, ok := docs[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("service.ReferenceService: decode %s %s: %w: %w", c, id, domain.ErrStorage, err)
		}
		setID(&doc, id)
		found = append(found, doc)
	}
	return found, missing, nil
}

// dedupe drops empty and repeated ids, keeping first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
