package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProfile carries the per-user tier assignment. PlanTier mirrors the tier
// of whichever subscription currently covers the user (their organization's,
// or their own individual one) and is maintained by the billing reconciler.
type UserProfile struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Email          string         `gorm:"type:varchar(200);index" json:"email" validate:"omitempty,email,max=200"`
	Name           string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	OrganizationID *uint          `gorm:"index" json:"organization_id,omitempty"`
	PlanTier       string         `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_tier"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
