package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/voyagesur/backend/internal/domain"
	"github.com/voyagesur/backend/internal/metrics"
	"github.com/voyagesur/backend/internal/repo"
)

// Ledger owns the entitlement records stored on a user's profile: the latest
// subscription and the consumable trip credit.
type Ledger struct {
	profiles repo.ProfileRepo
	tx       repo.Transactor
	now      func() time.Time
	log      *slog.Logger
}

// NewLedger constructs a Ledger backed by the provided repos.
func NewLedger(profiles repo.ProfileRepo, tx repo.Transactor, now func() time.Time, log *slog.Logger) *Ledger {
	return &Ledger{profiles: profiles, tx: tx, now: now, log: log}
}

// Snapshot returns the user's access at this instant.
// A user with no profile has no access; that is not an error.
func (l *Ledger) Snapshot(ctx context.Context, userID string) (domain.AccessSnapshot, error) {
	p, _, err := loadProfile(ctx, l.profiles, userID)
	if err != nil {
		return domain.AccessSnapshot{}, fmt.Errorf("service.Ledger.Snapshot: %w", err)
	}
	return domain.DeriveAccess(p, l.now()), nil
}

// ConsumeOneCredit spends one consumable credit unless the user is premium.
// It never takes quantity below zero and removes the record when it reaches zero.
func (l *Ledger) ConsumeOneCredit(ctx context.Context, userID string) error {
	err := l.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		return consumeCredit(ctx, r.Profiles, userID, l.now())
	})
	if err != nil {
		return fmt.Errorf("service.Ledger.ConsumeOneCredit: %w", err)
	}
	return nil
}

// RecordSubscriptionPurchase replaces the user's subscription with a new
// active one, creating the profile if it does not exist yet.
func (l *Ledger) RecordSubscriptionPurchase(ctx context.Context, userID, productID string, price float64, purchasedAt time.Time) error {
	if err := requireBillingFields(userID, productID); err != nil {
		return fmt.Errorf("service.Ledger.RecordSubscriptionPurchase: %w", err)
	}
	err := l.mutate(ctx, userID, true, func(p *domain.Profile) bool {
		p.Subscription = &domain.Subscription{
			ProductID:   productID,
			PurchasedAt: purchasedAt,
			Status:      domain.SubscriptionActive,
			Price:       price,
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("service.Ledger.RecordSubscriptionPurchase: %w", err)
	}
	l.log.Info("subscription recorded", "user_id", userID, "product_id", productID)
	return nil
}

// RecordConsumablePurchase replaces the user's consumable credit with a fresh
// pack sized by CreditsForProduct.
func (l *Ledger) RecordConsumablePurchase(ctx context.Context, userID, productID string, purchasedAt time.Time) error {
	if err := requireBillingFields(userID, productID); err != nil {
		return fmt.Errorf("service.Ledger.RecordConsumablePurchase: %w", err)
	}
	qty := CreditsForProduct(productID)
	err := l.mutate(ctx, userID, true, func(p *domain.Profile) bool {
		p.ConsumableCredit = &domain.ConsumableCredit{
			ProductID:   productID,
			Quantity:    qty,
			PurchasedAt: purchasedAt,
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("service.Ledger.RecordConsumablePurchase: %w", err)
	}
	l.log.Info("consumable credit recorded", "user_id", userID, "product_id", productID, "quantity", qty)
	return nil
}

// SetSubscriptionStatus updates the status of the user's current subscription.
// Users without a profile or subscription are left untouched.
func (l *Ledger) SetSubscriptionStatus(ctx context.Context, userID, status string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("service.Ledger.SetSubscriptionStatus: %w: user id is required", domain.ErrValidation)
	}
	err := l.mutate(ctx, userID, false, func(p *domain.Profile) bool {
		if p.Subscription == nil {
			return false
		}
		p.Subscription.Status = status
		return true
	})
	if err != nil {
		return fmt.Errorf("service.Ledger.SetSubscriptionStatus: %w", err)
	}
	return nil
}

// mutate runs fn against the user's profile inside a transaction and saves
// it when fn reports a change. IsPremium is refreshed before every save.
// With create false a missing profile is a silent no-op.
func (l *Ledger) mutate(ctx context.Context, userID string, create bool, fn func(p *domain.Profile) bool) error {
	return l.tx.InTx(ctx, func(ctx context.Context, r repo.Repos) error {
		if err := r.Profiles.Lock(ctx, userID); err != nil {
			return err
		}
		p, found, err := loadProfile(ctx, r.Profiles, userID)
		if err != nil {
			return err
		}
		if !found && !create {
			l.log.Debug("billing event for unknown user ignored", "user_id", userID)
			return nil
		}
		if !fn(&p) {
			return nil
		}
		p.IsPremium = domain.DeriveAccess(p, l.now()).IsPremium
		_, err = r.Profiles.Save(ctx, p)
		return err
	})
}

// consumeCredit is the body of ConsumeOneCredit, usable inside a caller's transaction.
func consumeCredit(ctx context.Context, profiles repo.ProfileRepo, userID string, now time.Time) error {
	if err := profiles.Lock(ctx, userID); err != nil {
		return err
	}
	p, found, err := loadProfile(ctx, profiles, userID)
	if err != nil || !found {
		return err
	}
	if domain.DeriveAccess(p, now).IsPremium {
		return nil
	}
	if p.ConsumableCredit == nil || p.ConsumableCredit.Quantity <= 0 {
		return nil
	}

	credit := *p.ConsumableCredit
	credit.Quantity--
	if credit.Quantity == 0 {
		p.ConsumableCredit = nil
	} else {
		p.ConsumableCredit = &credit
	}
	if _, err := profiles.Save(ctx, p); err != nil {
		return err
	}
	metrics.CreditsConsumed.Inc()
	return nil
}

// loadProfile returns the user's profile, or a blank one with found=false
// when the user has none yet.
func loadProfile(ctx context.Context, profiles repo.ProfileRepo, userID string) (domain.Profile, bool, error) {
	p, err := profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{UserID: userID}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, err
	}
	return p, true, nil
}

// CreditsForProduct returns how many trip credits a consumable product grants:
// the integer the product id ends with ("trip_pack_3" grants 3), or 1.
func CreditsForProduct(productID string) int {
	end := len(productID)
	start := end
	for start > 0 && productID[start-1] >= '0' && productID[start-1] <= '9' {
		start--
	}
	n, err := strconv.Atoi(productID[start:end])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func requireBillingFields(userID, productID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrValidation)
	}
	return nil
}
