package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voyagesur/backend/internal/domain"
)

// ReferenceRepo reads the immutable reference collections. Documents are
// returned as raw JSON; decoding into domain types is the service's job.
type ReferenceRepo interface {
	// Get returns one document by id.
	// Returns domain.ErrNotFound if no document with that id exists.
	Get(ctx context.Context, c domain.Collection, id string) (json.RawMessage, error)

	// GetMany returns the documents found for ids, keyed by id.
	// Ids with no document are simply absent from the map.
	GetMany(ctx context.Context, c domain.Collection, ids []string) (map[string]json.RawMessage, error)
}

// referenceTables whitelists the table behind each collection. Table names
// cannot be bound as query parameters, so they never come from user input.
var referenceTables = map[domain.Collection]string{
	domain.CollectionCountries: "countries",
	domain.CollectionCities:    "cities",
	domain.CollectionVaccines:  "vaccines",
	domain.CollectionMedicines: "medicines",
	domain.CollectionSymptoms:  "symptoms",
}

// pgReferenceRepo is the Postgres implementation of ReferenceRepo.
type pgReferenceRepo struct {
	db db
}

// NewReferenceRepo constructs a ReferenceRepo backed by the provided db connection.
func NewReferenceRepo(db db) ReferenceRepo {
	return &pgReferenceRepo{db: db}
}

func (r *pgReferenceRepo) Get(ctx context.Context, c domain.Collection, id string) (json.RawMessage, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.Get: %w", err)
	}

	var raw []byte
	err = r.db.QueryRow(ctx, `SELECT data FROM `+table+` WHERE id = @id`, pgx.NamedArgs{"id": id}).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repo.ReferenceRepo.Get: %s %q: %w", c, id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("repo.ReferenceRepo.Get: %w: %w", domain.ErrStorage, err)
	}
	return raw, nil
}

func (r *pgReferenceRepo) GetMany(ctx context.Context, c domain.Collection, ids []string) (map[string]json.RawMessage, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.GetMany: %w", err)
	}
	docs := make(map[string]json.RawMessage, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id, data FROM `+table+` WHERE id = ANY(@ids)`, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.GetMany: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("repo.ReferenceRepo.GetMany: scan: %w: %w", domain.ErrStorage, err)
		}
		docs[id] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ReferenceRepo.GetMany: rows: %w: %w", domain.ErrStorage, err)
	}
	return docs, nil
}

func tableFor(c domain.Collection) (string, error) {
	table, ok := referenceTables[c]
	if !ok {
		return "", fmt.Errorf("%w: unknown collection %q", domain.ErrNotFound, c)
	}
	return table, nil
}
