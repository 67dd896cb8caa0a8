package billing

import (
	"time"

	"github.com/edudashpro/billing-service/app/models"
)

// NextPeriodEnd computes the billing period end from an anchor date: one
// calendar month for monthly billing, one calendar year for annual.
func NextPeriodEnd(anchor time.Time, frequency string) time.Time {
	if frequency == models.BillingFrequencyAnnual {
		return anchor.AddDate(1, 0, 0)
	}
	return anchor.AddDate(0, 1, 0)
}

// ExtensionAnchor picks the date a renewal extends from: the existing period
// end while it is still in the future, otherwise now. A lapsed subscription
// does not get credit for the gap.
func ExtensionAnchor(existingEnd, now time.Time) time.Time {
	if existingEnd.After(now) {
		return existingEnd
	}
	return now
}
