package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/metrics"
)

// RevenueCat event types the ledger reacts to.
const (
	eventInitialPurchase     = "INITIAL_PURCHASE"
	eventRenewal             = "RENEWAL"
	eventProductChange       = "PRODUCT_CHANGE"
	eventNonRenewingPurchase = "NON_RENEWING_PURCHASE"
	eventCancellation        = "CANCELLATION"
	eventExpiration          = "EXPIRATION"
)

type webhookEvent struct {
	Type          string  `json:"type" validate:"required"`
	AppUserID     string  `json:"app_user_id" validate:"required"`
	ProductID     string  `json:"product_id"`
	PurchasedAtMs int64   `json:"purchased_at_ms"`
	Price         float64 `json:"price"`
}

// webhookRequest is the RevenueCat webhook envelope.
type webhookRequest struct {
	Event webhookEvent `json:"event" validate:"required"`
}

type webhookResponse struct {
	Status string `json:"status"`
}

// GetAccess implements GET /v1/access.
// A user without a profile gets a snapshot with no access.
func (s *Server) GetAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	snap, err := s.ledger.Snapshot(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RevenueCatWebhook implements POST /webhooks/revenuecat.
// Unknown event types are acknowledged with 200 so the provider stops retrying them.
func (s *Server) RevenueCatWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.webhookAuthorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook credentials")
		return
	}
	var req webhookRequest
	if !s.decodeJSON(w, r, &req) {
		metrics.BillingEvents.WithLabelValues("invalid", "rejected").Inc()
		return
	}
	ev := req.Event
	purchasedAt := time.UnixMilli(ev.PurchasedAtMs).UTC()
	if ev.PurchasedAtMs == 0 {
		purchasedAt = time.Now().UTC()
	}

	var err error
	switch ev.Type {
	case eventInitialPurchase, eventRenewal, eventProductChange:
		err = s.ledger.RecordSubscriptionPurchase(r.Context(), ev.AppUserID, ev.ProductID, ev.Price, purchasedAt)
	case eventNonRenewingPurchase:
		err = s.ledger.RecordConsumablePurchase(r.Context(), ev.AppUserID, ev.ProductID, purchasedAt)
	case eventCancellation:
		err = s.ledger.SetSubscriptionStatus(r.Context(), ev.AppUserID, domain.SubscriptionCancelled)
	case eventExpiration:
		err = s.ledger.SetSubscriptionStatus(r.Context(), ev.AppUserID, domain.SubscriptionExpired)
	default:
		s.log.InfoContext(r.Context(), "billing event ignored", slog.String("type", ev.Type))
		metrics.BillingEvents.WithLabelValues(ev.Type, "ignored").Inc()
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}
	if err != nil {
		metrics.BillingEvents.WithLabelValues(ev.Type, "error").Inc()
		s.writeServiceError(w, r, err, "profile not found")
		return
	}

	s.log.InfoContext(r.Context(), "billing event applied",
		slog.String("type", ev.Type),
		slog.String("user_id", ev.AppUserID),
		slog.String("product_id", ev.ProductID),
	)
	metrics.BillingEvents.WithLabelValues(ev.Type, "applied").Inc()
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
}

func (s *Server) webhookAuthorized(r *http.Request) bool {
	if s.webhookAuth == "" {
		return false
	}
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookAuth)) == 1
}
