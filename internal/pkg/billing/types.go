package billing

import (
	"strings"
	"time"

	"github.com/edudashpro/billing-service/app/models"
)

// ReconcileInput is the normalized shape the reconciler consumes after a
// completed payment, provider fields already parsed and validated.
type ReconcileInput struct {
	Scope      string // organization or individual
	OwnerUUID  string
	OwnerEmail string
	PlanTier   string
	Billing    string // monthly or annual
	Seats      int    // 0 means plan default
	Recurring  bool   // explicit recurring flag from the provider
	Token      string // provider subscription token, if any
	ItemName   string
	Now        time.Time // zero means time.Now()
}

// ReconcileResult reports what a reconciliation did so the handler can run
// its post-commit actions.
type ReconcileResult struct {
	Subscription  *models.Subscription
	Organization  *models.Organization
	PreviousTier  string
	EffectiveTier string
	Renewed       bool
	TierChanged   bool
}

// hasRecurringIndicator applies the detection priority order: the explicit
// recurring flag first, then the presence of a subscription token, then the
// item naming convention.
func hasRecurringIndicator(in ReconcileInput) bool {
	if in.Recurring {
		return true
	}
	if strings.TrimSpace(in.Token) != "" {
		return true
	}
	return strings.Contains(strings.ToLower(in.ItemName), "renewal")
}

func (in ReconcileInput) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}
