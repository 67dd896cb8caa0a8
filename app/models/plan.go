package models

import (
	"time"
)

const (
	TierFree       = "free"
	TierStarter    = "starter"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

const (
	BillingFrequencyMonthly = "monthly"
	BillingFrequencyAnnual  = "annual"
)

// Plan is a static catalog entry. The webhook only ever reads plans; they are
// maintained through migrations.
type Plan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Tier         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"tier" validate:"required,lowercase"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	MaxTeachers  int       `gorm:"not null;default:0" json:"max_teachers" validate:"gte=0"`
	MaxStudents  int       `gorm:"not null;default:0" json:"max_students" validate:"gte=0"`
	PriceMonthly float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price_monthly" validate:"gte=0"`
	PriceAnnual  float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price_annual" validate:"gte=0"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultSeats returns the seat count used when a purchase does not carry an
// explicit seat choice.
func (p *Plan) DefaultSeats() int {
	return p.MaxTeachers
}
