// Package repo contains all database access logic for the Voyage Sûr backend.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and document mapping.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voyagesur/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup. Begin on a pgx.Tx opens a
// savepoint, so Transactor works unchanged inside a test transaction.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PartitionRepo defines the persistence operations for a user's trip partitions.
// Each (user, bucket) pair is one JSONB document holding an ordered trip array.
type PartitionRepo interface {
	// Lock takes the per-user write lock for the rest of the surrounding
	// transaction. Outside a transaction it has no lasting effect.
	Lock(ctx context.Context, userID string) error

	// Load returns the partition document. A partition that was never written
	// is returned empty, not as domain.ErrNotFound.
	Load(ctx context.Context, userID string, bucket domain.Bucket) (domain.Partition, error)

	// LoadAll returns both partitions from a single statement, so a trip
	// moved between buckets by a concurrent writer is seen exactly once.
	LoadAll(ctx context.Context, userID string) (active, past domain.Partition, err error)

	// Save writes the whole partition back, creating it if absent, and
	// returns it with the store's updated_at.
	Save(ctx context.Context, p domain.Partition) (domain.Partition, error)
}

// pgPartitionRepo is the Postgres implementation of PartitionRepo.
type pgPartitionRepo struct {
	db db
}

// NewPartitionRepo constructs a PartitionRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPartitionRepo(db db) PartitionRepo {
	return &pgPartitionRepo{db: db}
}

// Lock acquires a transaction-scoped advisory lock keyed on the user id.
func (r *pgPartitionRepo) Lock(ctx context.Context, userID string) error {
	if err := lockUser(ctx, r.db, userID); err != nil {
		return fmt.Errorf("repo.PartitionRepo.Lock: %w", err)
	}
	return nil
}

// Load reads one partition document.
func (r *pgPartitionRepo) Load(ctx context.Context, userID string, bucket domain.Bucket) (domain.Partition, error) {
	const q = `
		SELECT trips, updated_at
		FROM trip_partitions
		WHERE user_id = @user_id AND bucket = @bucket`

	p := domain.Partition{UserID: userID, Bucket: bucket, Trips: []domain.Trip{}}

	var raw []byte
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID, "bucket": string(bucket)}).
		Scan(&raw, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, nil
		}
		return domain.Partition{}, fmt.Errorf("repo.PartitionRepo.Load: %w: %w", domain.ErrStorage, err)
	}

	if err := json.Unmarshal(raw, &p.Trips); err != nil {
		return domain.Partition{}, fmt.Errorf("repo.PartitionRepo.Load: decode trips: %w: %w", domain.ErrStorage, err)
	}
	return p, nil
}

// LoadAll reads the active and past documents in one query.
func (r *pgPartitionRepo) LoadAll(ctx context.Context, userID string) (active, past domain.Partition, err error) {
	const q = `
		SELECT bucket, trips, updated_at
		FROM trip_partitions
		WHERE user_id = @user_id AND bucket IN ('active', 'past')`

	active = domain.Partition{UserID: userID, Bucket: domain.BucketActive, Trips: []domain.Trip{}}
	past = domain.Partition{UserID: userID, Bucket: domain.BucketPast, Trips: []domain.Trip{}}

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return domain.Partition{}, domain.Partition{}, fmt.Errorf("repo.PartitionRepo.LoadAll: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bucket string
			raw    []byte
			at     time.Time
		)
		if err := rows.Scan(&bucket, &raw, &at); err != nil {
			return domain.Partition{}, domain.Partition{}, fmt.Errorf("repo.PartitionRepo.LoadAll: %w: %w", domain.ErrStorage, err)
		}
		p := &active
		if domain.Bucket(bucket) == domain.BucketPast {
			p = &past
		}
		p.UpdatedAt = at
		if err := json.Unmarshal(raw, &p.Trips); err != nil {
			return domain.Partition{}, domain.Partition{}, fmt.Errorf("repo.PartitionRepo.LoadAll: decode %s trips: %w: %w", bucket, domain.ErrStorage, err)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Partition{}, domain.Partition{}, fmt.Errorf("repo.PartitionRepo.LoadAll: %w: %w", domain.ErrStorage, err)
	}
	return active, past, nil
}

// Save upserts the partition document.
func (r *pgPartitionRepo) Save(ctx context.Context, p domain.Partition) (domain.Partition, error) {
	const q = `
		INSERT INTO trip_partitions (user_id, bucket, trips)
		VALUES (@user_id, @bucket, @trips)
		ON CONFLICT (user_id, bucket) DO UPDATE
		SET trips      = EXCLUDED.trips,
		    updated_at = now()
		RETURNING updated_at`

	if p.Trips == nil {
		p.Trips = []domain.Trip{}
	}
	raw, err := json.Marshal(p.Trips)
	if err != nil {
		return domain.Partition{}, fmt.Errorf("repo.PartitionRepo.Save: encode trips: %w", err)
	}

	args := pgx.NamedArgs{
		"user_id": p.UserID,
		"bucket":  string(p.Bucket),
		"trips":   string(raw), // text is accepted verbatim by the jsonb codec
	}

	var updatedAt time.Time
	if err := r.db.QueryRow(ctx, q, args).Scan(&updatedAt); err != nil {
		return domain.Partition{}, fmt.Errorf("repo.PartitionRepo.Save: %w: %w", domain.ErrStorage, err)
	}
	p.UpdatedAt = updatedAt
	return p, nil
}

// lockUser serialises writers of one user's documents for the rest of the
// current transaction. Re-acquiring within the same transaction is allowed.
func lockUser(ctx context.Context, db db, userID string) error {
	const q = `SELECT pg_advisory_xact_lock(hashtext(@user_id))`
	if _, err := db.Exec(ctx, q, pgx.NamedArgs{"user_id": userID}); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}
