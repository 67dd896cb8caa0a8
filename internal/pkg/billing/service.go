package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
)

// Service owns the subscription reconciliation state machine:
// none -> active -> (active | cancelled | payment_failed).
type Service struct {
	repo   Repository
	naming TierNaming
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, naming TierNaming) *Service {
	return &Service{repo: repo, naming: naming}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, naming TierNaming) *Service {
	return NewService(NewRepository(db), naming)
}

// Naming exposes the configured tier naming convention.
func (s *Service) Naming() TierNaming {
	return s.naming
}

// ActivateSubscription applies a completed payment: it resolves the owner
// container, then either extends the existing active subscription (renewal)
// or upserts a fresh active one. This is part of the primary transition; its
// error fails the webhook with a 500.
func (s *Service) ActivateSubscription(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	_ = ctx
	tier := NormalizeTier(in.PlanTier)
	plan, err := s.repo.GetPlanByTier(tier)
	if err != nil {
		return nil, fmt.Errorf("resolving plan for tier %q: %w", tier, err)
	}

	org, err := s.resolveContainer(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSubscriptionByOwner(in.Scope, org.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := in.now()
	billing := normalizeBilling(in.Billing)
	seats := in.Seats
	if seats <= 0 {
		seats = plan.DefaultSeats()
	}

	formatted := FormatTier(tier, s.naming)
	previousTier := org.PlanTier

	renewal := existing != nil &&
		existing.Status == models.SubscriptionStatusActive &&
		hasRecurringIndicator(in)

	var sub *models.Subscription
	if renewal {
		// Extend from the current period end, not from now, so early renewal
		// notifications do not shorten the paid period.
		anchor := ExtensionAnchor(existing.EndsAt, now)
		existing.EndsAt = NextPeriodEnd(anchor, billing)
		existing.PlanID = plan.ID
		existing.PlanTier = formatted
		existing.BillingFrequency = billing
		existing.SeatsTotal = seats
		if token := strings.TrimSpace(in.Token); token != "" {
			existing.PayFastToken = token
		}
		if err := s.repo.SaveSubscription(existing); err != nil {
			return nil, fmt.Errorf("extending subscription %d: %w", existing.ID, err)
		}
		sub = existing
	} else {
		sub = &models.Subscription{
			OwnerType:        in.Scope,
			OrganizationID:   org.ID,
			PlanID:           plan.ID,
			PlanTier:         formatted,
			Status:           models.SubscriptionStatusActive,
			BillingFrequency: billing,
			StartsAt:         now,
			EndsAt:           NextPeriodEnd(now, billing),
			SeatsTotal:       seats,
			PayFastToken:     strings.TrimSpace(in.Token),
			CancelledAt:      nil,
		}
		if err := s.repo.UpsertSubscription(sub); err != nil {
			return nil, fmt.Errorf("upserting subscription for org %d: %w", org.ID, err)
		}
	}

	return &ReconcileResult{
		Subscription:  sub,
		Organization:  org,
		PreviousTier:  previousTier,
		EffectiveTier: formatted,
		Renewed:       renewal,
		TierChanged:   NormalizeTier(previousTier) != tier,
	}, nil
}

// DeactivateSubscription applies a cancelled or failed payment by flipping
// the matching subscription's status. Container tiers are left alone; the
// paid tier rides until period expiry or an ops resync. Individual-scope
// cancellation additionally downgrades the owner's tier assignment to free,
// unconditionally.
func (s *Service) DeactivateSubscription(ctx context.Context, in ReconcileInput, newStatus string) (*ReconcileResult, error) {
	_ = ctx
	if newStatus != models.SubscriptionStatusCancelled && newStatus != models.SubscriptionStatusPaymentFailed {
		return nil, fmt.Errorf("unsupported deactivation status %q", newStatus)
	}

	org, err := s.lookupContainer(in)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result := &ReconcileResult{Organization: org}

	if org != nil {
		result.PreviousTier = org.PlanTier
		sub, err := s.repo.GetSubscriptionByOwner(in.Scope, org.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if sub != nil && sub.Status == models.SubscriptionStatusActive {
			now := in.now()
			sub.Status = newStatus
			if newStatus == models.SubscriptionStatusCancelled {
				sub.CancelledAt = &now
			}
			if err := s.repo.SaveSubscription(sub); err != nil {
				return nil, fmt.Errorf("deactivating subscription %d: %w", sub.ID, err)
			}
			result.Subscription = sub
			result.TierChanged = true
		}
	}

	if in.Scope == models.ScopeIndividual && newStatus == models.SubscriptionStatusCancelled {
		if err := s.repo.UpdateProfileTierByUUID(in.OwnerUUID, FreeTier(s.naming)); err != nil {
			return nil, fmt.Errorf("downgrading profile %s: %w", in.OwnerUUID, err)
		}
		result.TierChanged = true
	}

	return result, nil
}

// FanOutTier writes the denormalized tier onto the owning organization and
// every member profile. Best-effort: callers run it as a post-commit action.
// A result without an effective tier (a deactivation) fans out nothing.
func (s *Service) FanOutTier(ctx context.Context, result *ReconcileResult) error {
	_ = ctx
	if result == nil || result.Organization == nil || result.EffectiveTier == "" {
		return nil
	}
	org := result.Organization
	tier := result.EffectiveTier

	if err := s.repo.UpdateOrganizationTier(org.ID, tier); err != nil {
		return fmt.Errorf("updating organization %d tier: %w", org.ID, err)
	}
	if err := s.repo.UpdateMemberProfileTiers(org.ID, tier); err != nil {
		return fmt.Errorf("updating member tiers for organization %d: %w", org.ID, err)
	}
	if org.IsPersonal && org.OwnerUserUUID != "" {
		if err := s.repo.UpdateProfileTierByUUID(org.OwnerUserUUID, tier); err != nil {
			return fmt.Errorf("updating owner profile %s tier: %w", org.OwnerUserUUID, err)
		}
	}
	return nil
}

// ReconcileOwnerTier recomputes an owner's effective tier from their
// subscription row and re-applies the fan-out. Used by the ops resync
// endpoint.
func (s *Service) ReconcileOwnerTier(ctx context.Context, scope, ownerUUID string) (string, error) {
	org, err := s.lookupContainer(ReconcileInput{Scope: scope, OwnerUUID: ownerUUID})
	if err != nil {
		return "", err
	}

	effective := FreeTier(s.naming)
	sub, err := s.repo.GetSubscriptionByOwner(scope, org.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if sub != nil && sub.IsCurrent(time.Now()) {
		effective = FormatTier(sub.PlanTier, s.naming)
	}

	result := &ReconcileResult{Organization: org, EffectiveTier: effective}
	if err := s.FanOutTier(ctx, result); err != nil {
		return "", err
	}
	return effective, nil
}

// OwnerSubscription looks up an owner's container and subscription without
// touching anything. Used by the ops API.
func (s *Service) OwnerSubscription(scope, ownerUUID string) (*models.Subscription, *models.Organization, error) {
	org, err := s.lookupContainer(ReconcileInput{Scope: scope, OwnerUUID: ownerUUID})
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.repo.GetSubscriptionByOwner(scope, org.ID)
	if err != nil {
		return nil, org, err
	}
	return sub, org, nil
}

// resolveContainer finds the owner container for an activation, lazily
// creating the personal container for individual owners.
func (s *Service) resolveContainer(in ReconcileInput) (*models.Organization, error) {
	if in.Scope == models.ScopeIndividual {
		org, err := s.repo.GetOrCreatePersonalOrganization(in.OwnerUUID, in.OwnerEmail)
		if err != nil {
			return nil, fmt.Errorf("resolving personal container for %s: %w", in.OwnerUUID, err)
		}
		return org, nil
	}
	org, err := s.repo.GetOrganizationByUUID(in.OwnerUUID)
	if err != nil {
		return nil, fmt.Errorf("resolving organization %s: %w", in.OwnerUUID, err)
	}
	return org, nil
}

// lookupContainer is resolveContainer without the lazy create, for
// deactivation paths that must not invent containers.
func (s *Service) lookupContainer(in ReconcileInput) (*models.Organization, error) {
	if in.Scope == models.ScopeIndividual {
		return s.repo.GetPersonalOrganization(in.OwnerUUID)
	}
	return s.repo.GetOrganizationByUUID(in.OwnerUUID)
}

func normalizeBilling(billing string) string {
	if strings.EqualFold(strings.TrimSpace(billing), models.BillingFrequencyAnnual) {
		return models.BillingFrequencyAnnual
	}
	return models.BillingFrequencyMonthly
}
