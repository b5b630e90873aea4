// Package handler implements the HTTP handlers for the Voyage Sûr API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (trip.go, billing.go, etc.) but share the same Server struct so they
// can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/voyagesur/backend/internal/domain"
)

// TripServicer defines the trip lifecycle operations the handlers depend on.
// Defining the interfaces here (in the consumer package) lets handler tests
// inject mocks without touching the database or service layer.
type TripServicer interface {
	ListByUser(ctx context.Context, userID string) (active, past []domain.PlacedTrip, err error)
	GetByID(ctx context.Context, userID, tripID string) (domain.PlacedTrip, error)
	Update(ctx context.Context, userID, tripID string, patch domain.TripPatch) (domain.PlacedTrip, error)
	Delete(ctx context.Context, userID, tripID string) error
	MigrateExpired(ctx context.Context, userID string) (int, error)
}

// TripPlanner creates trips, charging entitlement.
type TripPlanner interface {
	CreateTrip(ctx context.Context, plan domain.TripPlan) (domain.PlacedTrip, error)
}

// DetailBuilder assembles the trip detail view.
type DetailBuilder interface {
	BuildDetail(ctx context.Context, userID, tripID string) (domain.TripDetail, error)
}

// EntitlementLedger reads and records a user's purchases.
type EntitlementLedger interface {
	Snapshot(ctx context.Context, userID string) (domain.AccessSnapshot, error)
	RecordSubscriptionPurchase(ctx context.Context, userID, productID string, price float64, purchasedAt time.Time) error
	RecordConsumablePurchase(ctx context.Context, userID, productID string, purchasedAt time.Time) error
	SetSubscriptionStatus(ctx context.Context, userID, status string) error
}

type ProfileServicer interface {
	Get(ctx context.Context, userID string) (domain.Profile, error)
	Update(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.Profile, error)
}

type ReferenceServicer interface {
	Lookup(ctx context.Context, c domain.Collection, id string) (any, error)
	LookupMany(ctx context.Context, c domain.Collection, ids []string) (found any, missing []string, err error)
}

type Exporter interface {
	Export(ctx context.Context, userID string) ([]domain.ExportRow, error)
}

// SessionManager starts and stops a user's background trip cleanup.
type SessionManager interface {
	SignIn(userID string)
	SignOut(userID string)
}

// Deps lists everything the Server needs. Every field is required.
type Deps struct {
	Trips      TripServicer
	Planner    TripPlanner
	Details    DetailBuilder
	Ledger     EntitlementLedger
	Profiles   ProfileServicer
	References ReferenceServicer
	Export     Exporter
	Sessions   SessionManager

	// WebhookAuth is the exact Authorization header value the billing
	// provider sends. Empty rejects every webhook call.
	WebhookAuth string

	Log *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	trips       TripServicer
	planner     TripPlanner
	details     DetailBuilder
	ledger      EntitlementLedger
	profiles    ProfileServicer
	references  ReferenceServicer
	export      Exporter
	sessions    SessionManager
	webhookAuth string
	log         *slog.Logger
	validate    *validator.Validate
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names, in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Server{
		trips:       d.Trips,
		planner:     d.Planner,
		details:     d.Details,
		ledger:      d.Ledger,
		profiles:    d.Profiles,
		references:  d.References,
		export:      d.Export,
		sessions:    d.Sessions,
		webhookAuth: d.WebhookAuth,
		log:         d.Log,
		validate:    v,
	}
}

// Routes mounts every endpoint on r. auth guards the /v1 API; the health
// check and the billing webhook (which has its own shared secret) stay public.
func (s *Server) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/healthz", s.GetHealth)
	r.Post("/webhooks/revenuecat", s.RevenueCatWebhook)

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth)

		r.Post("/session", s.SignIn)
		r.Delete("/session", s.SignOut)

		r.Get("/access", s.GetAccess)

		r.Get("/profile", s.GetProfile)
		r.Patch("/profile", s.UpdateProfile)

		r.Route("/trips", func(r chi.Router) {
			r.Get("/", s.ListTrips)
			r.Post("/", s.CreateTrip)
			r.Get("/export", s.ExportTrips)
			r.Post("/migrate", s.MigrateTrips)
			r.Get("/{tripID}", s.GetTrip)
			r.Patch("/{tripID}", s.UpdateTrip)
			r.Delete("/{tripID}", s.DeleteTrip)
			r.Get("/{tripID}/detail", s.GetTripDetail)
		})

		r.Get("/reference/{collection}", s.ListReferences)
		r.Get("/reference/{collection}/{id}", s.GetReference)
	})
}
