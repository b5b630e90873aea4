package repo

import (
	"context"
	"fmt"

	"github.com/voyagesur/backend/internal/domain"
)

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Partitions PartitionRepo
	Profiles   ProfileRepo
}

// Transactor runs a unit of work inside a single database transaction.
// The service layer depends on this interface so tests can run the work
// against in-memory repos without a database.
type Transactor interface {
	// InTx begins a transaction, calls fn with repos bound to it, and commits
	// when fn returns nil. Any error from fn rolls everything back and is
	// returned unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type pgTransactor struct {
	db db
}

// NewTransactor constructs a Transactor over the provided db connection.
func NewTransactor(db db) Transactor {
	return &pgTransactor{db: db}
}

func (t *pgTransactor) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo.Transactor.InTx: begin: %w: %w", domain.ErrStorage, err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, Repos{
		Partitions: NewPartitionRepo(tx),
		Profiles:   NewProfileRepo(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo.Transactor.InTx: commit: %w: %w", domain.ErrStorage, err)
	}
	return nil
}
