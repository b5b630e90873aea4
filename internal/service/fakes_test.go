package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/repo"
)

// memStore is an in-memory stand-in for Postgres. It implements
// repo.Transactor by snapshotting state before each unit of work and
// restoring it when the work fails, so rollback behaviour is observable.
type memStore struct {
	txMu sync.Mutex // serialises units of work like the per-user advisory lock

	mu         sync.Mutex
	partitions map[string][]domain.Trip
	profiles   map[string]domain.Profile

	// Injected failures, returned wrapped in domain.ErrStorage.
	failPartitionSave error
	failProfileSave   error
	failLoad          error

	// afterRead runs after every read statement, outside mu, to stand in
	// for a writer committing between statements.
	afterRead func()
}

func newMemStore() *memStore {
	return &memStore{
		partitions: map[string][]domain.Trip{},
		profiles:   map[string]domain.Profile{},
	}
}

func partKey(userID string, b domain.Bucket) string { return userID + "|" + string(b) }

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, r repo.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapParts := make(map[string][]domain.Trip, len(s.partitions))
	for k, v := range s.partitions {
		snapParts[k] = append([]domain.Trip(nil), v...)
	}
	snapProfiles := make(map[string]domain.Profile, len(s.profiles))
	for k, v := range s.profiles {
		snapProfiles[k] = cloneProfile(v)
	}
	s.mu.Unlock()

	if err := fn(ctx, repo.Repos{Partitions: s.partitionRepo(), Profiles: s.profileRepo()}); err != nil {
		s.mu.Lock()
		s.partitions = snapParts
		s.profiles = snapProfiles
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) partitionRepo() repo.PartitionRepo { return &memPartitions{s: s} }
func (s *memStore) profileRepo() repo.ProfileRepo     { return &memProfiles{s: s} }

// seed puts trips directly into a partition, bypassing validation.
func (s *memStore) seed(userID string, b domain.Bucket, trips ...domain.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[partKey(userID, b)] = append(s.partitions[partKey(userID, b)], trips...)
}

func (s *memStore) trips(userID string, b domain.Bucket) []domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Trip{}, s.partitions[partKey(userID, b)]...)
}

func (s *memStore) putProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = cloneProfile(p)
}

func (s *memStore) profile(userID string) (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return cloneProfile(p), ok
}

// partition copies one stored partition. Callers hold mu.
func (s *memStore) partition(userID string, b domain.Bucket) domain.Partition {
	return domain.Partition{
		UserID: userID,
		Bucket: b,
		Trips:  append([]domain.Trip{}, s.partitions[partKey(userID, b)]...),
	}
}

func (s *memStore) read() {
	if s.afterRead != nil {
		s.afterRead()
	}
}

type memPartitions struct{ s *memStore }

func (m *memPartitions) Lock(context.Context, string) error { return nil }

func (m *memPartitions) Load(_ context.Context, userID string, b domain.Bucket) (domain.Partition, error) {
	defer m.s.read()
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failLoad != nil {
		return domain.Partition{}, storageErr(m.s.failLoad)
	}
	return m.s.partition(userID, b), nil
}

func (m *memPartitions) LoadAll(_ context.Context, userID string) (active, past domain.Partition, err error) {
	defer m.s.read()
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failLoad != nil {
		return domain.Partition{}, domain.Partition{}, storageErr(m.s.failLoad)
	}
	return m.s.partition(userID, domain.BucketActive), m.s.partition(userID, domain.BucketPast), nil
}

func (m *memPartitions) Save(_ context.Context, p domain.Partition) (domain.Partition, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failPartitionSave != nil {
		return domain.Partition{}, storageErr(m.s.failPartitionSave)
	}
	m.s.partitions[partKey(p.UserID, p.Bucket)] = append([]domain.Trip{}, p.Trips...)
	p.UpdatedAt = time.Now()
	return p, nil
}

type memProfiles struct{ s *memStore }

func (m *memProfiles) Lock(context.Context, string) error { return nil }

func (m *memProfiles) Get(_ context.Context, userID string) (domain.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (m *memProfiles) Save(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failProfileSave != nil {
		return domain.Profile{}, storageErr(m.s.failProfileSave)
	}
	m.s.profiles[p.UserID] = cloneProfile(p)
	return cloneProfile(p), nil
}

// compile-time checks: the fakes must satisfy the repo interfaces.
var (
	_ repo.Transactor    = (*memStore)(nil)
	_ repo.PartitionRepo = (*memPartitions)(nil)
	_ repo.ProfileRepo   = (*memProfiles)(nil)
)

func storageErr(err error) error {
	return &wrapped{sentinel: domain.ErrStorage, err: err}
}

type wrapped struct {
	sentinel error
	err      error
}

func (w *wrapped) Error() string   { return w.sentinel.Error() + ": " + w.err.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.sentinel, w.err} }

func cloneProfile(p domain.Profile) domain.Profile {
	if p.Age != nil {
		age := *p.Age
		p.Age = &age
	}
	if p.EmergencyContact != nil {
		ec := *p.EmergencyContact
		p.EmergencyContact = &ec
	}
	if p.Subscription != nil {
		sub := *p.Subscription
		p.Subscription = &sub
	}
	if p.ConsumableCredit != nil {
		c := *p.ConsumableCredit
		p.ConsumableCredit = &c
	}
	return p
}

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }
