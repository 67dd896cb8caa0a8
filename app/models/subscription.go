package models

import (
	"time"
)

const (
	SubscriptionStatusActive        = "active"
	SubscriptionStatusCancelled     = "cancelled"
	SubscriptionStatusPaymentFailed = "payment_failed"
	SubscriptionStatusExpired       = "expired"
)

// Subscription belongs to exactly one organization container (individual
// owners get a personal container, see Organization.IsPersonal). The unique
// (owner_type, organization_id) index enforces at most one subscription row
// per owner; renewals extend it in place.
type Subscription struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	OwnerType        string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_owner,unique,priority:1" json:"owner_type" validate:"oneof=organization individual"`
	OrganizationID   uint       `gorm:"not null;index:ux_subscriptions_owner,unique,priority:2" json:"organization_id"`
	PlanID           uint       `gorm:"not null;index" json:"plan_id"`
	PlanTier         string     `gorm:"type:varchar(50);not null;index" json:"plan_tier"`
	Status           string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status" validate:"oneof=active cancelled payment_failed expired"`
	BillingFrequency string     `gorm:"type:varchar(10);not null;default:'monthly'" json:"billing_frequency" validate:"oneof=monthly annual"`
	StartsAt         time.Time  `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt           time.Time  `gorm:"type:timestamp;not null;index" json:"ends_at"`
	SeatsTotal       int        `gorm:"not null;default:0" json:"seats_total" validate:"gte=0"`
	SeatsUsed        int        `gorm:"not null;default:0" json:"seats_used" validate:"gte=0"`
	PayFastToken     string     `gorm:"type:varchar(100);default:null;index" json:"payfast_token,omitempty"`
	CancelledAt      *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrent reports whether the subscription entitles its owner right now.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndsAt.After(now)
}
