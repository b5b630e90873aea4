package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/handler"
	"github.com/voyagesur/backend/internal/middleware"
)

// Test doubles for the handler's consumer interfaces.
// Set only the method fields your test needs.

type mockTripServicer struct {
	list    func(ctx context.Context, userID string) ([]domain.PlacedTrip, []domain.PlacedTrip, error)
	getByID func(ctx context.Context, userID, tripID string) (domain.PlacedTrip, error)
	update  func(ctx context.Context, userID, tripID string, patch domain.TripPatch) (domain.PlacedTrip, error)
	delete  func(ctx context.Context, userID, tripID string) error
	migrate func(ctx context.Context, userID string) (int, error)
}

func (m *mockTripServicer) ListByUser(ctx context.Context, userID string) ([]domain.PlacedTrip, []domain.PlacedTrip, error) {
	return m.list(ctx, userID)
}
func (m *mockTripServicer) GetByID(ctx context.Context, userID, tripID string) (domain.PlacedTrip, error) {
	return m.getByID(ctx, userID, tripID)
}
func (m *mockTripServicer) Update(ctx context.Context, userID, tripID string, patch domain.TripPatch) (domain.PlacedTrip, error) {
	return m.update(ctx, userID, tripID, patch)
}
func (m *mockTripServicer) Delete(ctx context.Context, userID, tripID string) error {
	return m.delete(ctx, userID, tripID)
}
func (m *mockTripServicer) MigrateExpired(ctx context.Context, userID string) (int, error) {
	return m.migrate(ctx, userID)
}

type mockPlanner struct {
	create func(ctx context.Context, plan domain.TripPlan) (domain.PlacedTrip, error)
}

func (m *mockPlanner) CreateTrip(ctx context.Context, plan domain.TripPlan) (domain.PlacedTrip, error) {
	return m.create(ctx, plan)
}

type mockDetails struct {
	build func(ctx context.Context, userID, tripID string) (domain.TripDetail, error)
}

func (m *mockDetails) BuildDetail(ctx context.Context, userID, tripID string) (domain.TripDetail, error) {
	return m.build(ctx, userID, tripID)
}

type mockLedger struct {
	snapshot     func(ctx context.Context, userID string) (domain.AccessSnapshot, error)
	subscription func(ctx context.Context, userID, productID string, price float64, at time.Time) error
	consumable   func(ctx context.Context, userID, productID string, at time.Time) error
	status       func(ctx context.Context, userID, status string) error
}

func (m *mockLedger) Snapshot(ctx context.Context, userID string) (domain.AccessSnapshot, error) {
	return m.snapshot(ctx, userID)
}
func (m *mockLedger) RecordSubscriptionPurchase(ctx context.Context, userID, productID string, price float64, at time.Time) error {
	return m.subscription(ctx, userID, productID, price, at)
}
func (m *mockLedger) RecordConsumablePurchase(ctx context.Context, userID, productID string, at time.Time) error {
	return m.consumable(ctx, userID, productID, at)
}
func (m *mockLedger) SetSubscriptionStatus(ctx context.Context, userID, status string) error {
	return m.status(ctx, userID, status)
}

type mockProfiles struct {
	get    func(ctx context.Context, userID string) (domain.Profile, error)
	update func(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error)
}

func (m *mockProfiles) Get(ctx context.Context, userID string) (domain.Profile, error) {
	return m.get(ctx, userID)
}
func (m *mockProfiles) Update(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error) {
	return m.update(ctx, userID, patch)
}

type mockReferences struct {
	lookup     func(ctx context.Context, c domain.Collection, id string) (any, error)
	lookupMany func(ctx context.Context, c domain.Collection, ids []string) (any, []string, error)
}

func (m *mockReferences) Lookup(ctx context.Context, c domain.Collection, id string) (any, error) {
	return m.lookup(ctx, c, id)
}
func (m *mockReferences) LookupMany(ctx context.Context, c domain.Collection, ids []string) (any, []string, error) {
	return m.lookupMany(ctx, c, ids)
}

type mockExporter struct {
	export func(ctx context.Context, userID string) ([]domain.ExportRow, error)
}

func (m *mockExporter) Export(ctx context.Context, userID string) ([]domain.ExportRow, error) {
	return m.export(ctx, userID)
}

type mockSessions struct {
	signedIn  []string
	signedOut []string
}

func (m *mockSessions) SignIn(userID string)  { m.signedIn = append(m.signedIn, userID) }
func (m *mockSessions) SignOut(userID string) { m.signedOut = append(m.signedOut, userID) }

// compile-time checks: every mock must satisfy its handler interface.
var (
	_ handler.TripServicer      = (*mockTripServicer)(nil)
	_ handler.TripPlanner       = (*mockPlanner)(nil)
	_ handler.DetailBuilder     = (*mockDetails)(nil)
	_ handler.EntitlementLedger = (*mockLedger)(nil)
	_ handler.ProfileServicer   = (*mockProfiles)(nil)
	_ handler.ReferenceServicer = (*mockReferences)(nil)
	_ handler.Exporter          = (*mockExporter)(nil)
	_ handler.SessionManager    = (*mockSessions)(nil)
)

// ---- helpers ---------------------------------------------------------------

const testUser = "u1"

// fakeAuth stands in for the JWT middleware and authenticates every request as testUser.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), testUser)))
	})
}

// newHTTPHandler wires a Server with the given mocks into a chi router,
// the same way main.go mounts it in production.
func newHTTPHandler(d handler.Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := chi.NewRouter()
	handler.NewServer(d).Routes(r, fakeAuth)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func tripFixture() domain.PlacedTrip {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.PlacedTrip{
		Trip: domain.Trip{
			ID:         uuid.New(),
			UserID:     testUser,
			Country:    "Kenya",
			CountryID:  "ke",
			City:       "Nairobi",
			CityID:     "nbo",
			StartDate:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC),
			Duration:   7,
			TravelType: domain.TravelTourism,
			Travelers:  2,
			CreatedAt:  created,
			UpdatedAt:  created,
		},
		Bucket:   domain.BucketActive,
		Position: 0,
	}
}
