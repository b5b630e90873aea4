package cleanup_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/cleanup"
)

// mockMigrator records every call it receives.
type mockMigrator struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newMockMigrator() *mockMigrator {
	return &mockMigrator{calls: map[string]int{}}
}

func (m *mockMigrator) MigrateExpired(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[userID]++
	return 0, m.err
}

func (m *mockMigrator) count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[userID]
}

var _ cleanup.Migrator = (*mockMigrator)(nil)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestScheduler_RunsImmediately(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, time.Hour, discard())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return m.count("u1") == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, 10*time.Millisecond, discard())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return m.count("u1") >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_SecondStartIsNoop(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, time.Hour, discard())

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return m.count("u1") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, m.count("u1"), "a second loop would have run a second immediate migration")
}

func TestScheduler_StopHaltsTicks(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, 5*time.Millisecond, discard())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return m.count("u1") >= 1 }, time.Second, time.Millisecond)
	s.Stop()
	after := m.count("u1")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, m.count("u1"))
	assert.False(t, s.Running())
	s.Stop() // stopping twice is harmless
}

func TestScheduler_ErrorsAreSwallowed(t *testing.T) {
	m := newMockMigrator()
	m.err = errors.New("storage error")
	s := cleanup.NewScheduler("u1", m, 5*time.Millisecond, discard())

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return m.count("u1") >= 2 }, time.Second, time.Millisecond,
		"a failed run must not stop later runs")
}

func TestScheduler_ContextCancelStops(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, 5*time.Millisecond, discard())
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	require.Eventually(t, func() bool { return m.count("u1") >= 1 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(10 * time.Millisecond)
	before := m.count("u1")
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, before, m.count("u1"))
	s.Stop()
}

func TestScheduler_RestartAfterContextCancel(t *testing.T) {
	m := newMockMigrator()
	s := cleanup.NewScheduler("u1", m, time.Hour, discard())
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	require.Eventually(t, func() bool { return m.count("u1") == 1 }, time.Second, time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, time.Millisecond)

	s.Start(context.Background())
	defer s.Stop()

	assert.True(t, s.Running())
	require.Eventually(t, func() bool { return m.count("u1") == 2 }, time.Second, time.Millisecond)
}

func TestSessions_SignInSignOut(t *testing.T) {
	m := newMockMigrator()
	sessions := cleanup.NewSessions(m, time.Hour, discard())
	defer sessions.Close()

	sessions.SignIn("u1")
	sessions.SignIn("u1")
	sessions.SignIn("u2")

	require.Eventually(t, func() bool { return m.count("u1") == 1 && m.count("u2") == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, sessions.Active("u1"))

	sessions.SignOut("u1")
	assert.False(t, sessions.Active("u1"))
	assert.True(t, sessions.Active("u2"))
	sessions.SignOut("nobody")
}

func TestSessions_SignInAgainRunsAgain(t *testing.T) {
	m := newMockMigrator()
	sessions := cleanup.NewSessions(m, time.Hour, discard())
	defer sessions.Close()

	sessions.SignIn("u1")
	require.Eventually(t, func() bool { return m.count("u1") == 1 }, time.Second, 5*time.Millisecond)
	sessions.SignOut("u1")
	sessions.SignIn("u1")

	require.Eventually(t, func() bool { return m.count("u1") == 2 }, time.Second, 5*time.Millisecond)
}

func TestSessions_Close(t *testing.T) {
	m := newMockMigrator()
	sessions := cleanup.NewSessions(m, time.Hour, discard())

	sessions.SignIn("u1")
	sessions.SignIn("u2")
	sessions.Close()

	assert.False(t, sessions.Active("u1"))
	assert.False(t, sessions.Active("u2"))
}
