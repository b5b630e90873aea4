package domain

import (
	"strings"
	"time"
)

// Subscription statuses as reported by the billing provider.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is the normalised record of the user's latest subscription purchase.
type Subscription struct {
	ProductID   string    `json:"product_id"`
	PurchasedAt time.Time `json:"purchased_at"`
	Status      string    `json:"status"`
	Price       float64   `json:"price"`
}

// Term returns how long the subscription lasts after purchase. ok is false
// for product ids that match no known term; such subscriptions never expire.
func (s Subscription) Term() (term time.Duration, ok bool) {
	id := strings.ToLower(s.ProductID)
	switch {
	case strings.Contains(id, "monthly"):
		return 30 * 24 * time.Hour, true
	case strings.Contains(id, "years"), strings.Contains(id, "annual"):
		return 365 * 24 * time.Hour, true
	}
	return 0, false
}

// ExpiresAt returns the expiry instant, or nil when the subscription never expires.
func (s Subscription) ExpiresAt() *time.Time {
	term, ok := s.Term()
	if !ok {
		return nil
	}
	t := s.PurchasedAt.Add(term)
	return &t
}

// Active reports whether the subscription grants premium access at now.
func (s Subscription) Active(now time.Time) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	exp := s.ExpiresAt()
	return exp == nil || now.Before(*exp)
}

// ConsumableCredit is a finite pack of single-trip accesses.
type ConsumableCredit struct {
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// EmergencyContact is who to call when something goes wrong abroad.
type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Profile is the per-user document. Entitlement records hang off it.
type Profile struct {
	UserID             string            `json:"user_id"`
	FirstName          string            `json:"first_name"`
	LastName           string            `json:"last_name"`
	Age                *int              `json:"age,omitempty"`
	Gender             string            `json:"gender,omitempty"`
	EmergencyContact   *EmergencyContact `json:"emergency_contact,omitempty"`
	IsPremium          bool              `json:"is_premium"`
	OnboardingComplete bool              `json:"onboarding_complete"`
	Subscription       *Subscription     `json:"subscription,omitempty"`
	ConsumableCredit   *ConsumableCredit `json:"consumable_credit,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ProfilePatch carries user-editable profile fields. Nil fields are left unchanged.
type ProfilePatch struct {
	FirstName          *string
	LastName           *string
	Age                *int
	Gender             *string
	EmergencyContact   *EmergencyContact
	OnboardingComplete *bool
}

// AccessSnapshot is the user's entitlement at one instant.
type AccessSnapshot struct {
	IsPremium         bool              `json:"is_premium"`
	HasFreeTripAccess bool              `json:"has_free_trip_access"`
	Subscription      *Subscription     `json:"subscription,omitempty"`
	ConsumableCredit  *ConsumableCredit `json:"consumable_credit,omitempty"`
}

// DeriveAccess computes the access snapshot for p at now.
func DeriveAccess(p Profile, now time.Time) AccessSnapshot {
	snap := AccessSnapshot{
		Subscription:     p.Subscription,
		ConsumableCredit: p.ConsumableCredit,
	}
	if p.Subscription != nil {
		snap.IsPremium = p.Subscription.Active(now)
	}
	snap.HasFreeTripAccess = snap.IsPremium ||
		(p.ConsumableCredit != nil && p.ConsumableCredit.Quantity > 0)
	return snap
}
