package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is a preschool (or a personal container for an individual
// subscriber, see IsPersonal). PlanTier is a denormalized copy of the active
// subscription tier so authorization checks avoid a join.
type Organization struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Name          string         `gorm:"type:varchar(200);not null" json:"name" validate:"required,max=200"`
	PlanTier      string         `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_tier"`
	IsPersonal    bool           `gorm:"default:false;index:idx_organizations_personal_owner,priority:1" json:"is_personal"`
	OwnerUserUUID string         `gorm:"type:varchar(36);default:null;index:idx_organizations_personal_owner,priority:2" json:"owner_user_uuid,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// NewPersonalOrganization builds the lazily-created container that backs an
// individual-scope subscription.
func NewPersonalOrganization(ownerUUID, ownerName string) *Organization {
	name := ownerName
	if name == "" {
		name = "Personal"
	}
	return &Organization{
		UUID:          uuid.New().String(),
		Name:          name,
		PlanTier:      TierFree,
		IsPersonal:    true,
		OwnerUserUUID: ownerUUID,
	}
}

// GetOrCreatePersonalOrganization resolves the personal container for a user,
// creating it on first use. Idempotent by (owner_user_uuid, is_personal).
func GetOrCreatePersonalOrganization(db *gorm.DB, ownerUUID, ownerName string) (*Organization, error) {
	var org Organization
	err := db.Where("owner_user_uuid = ? AND is_personal = ?", ownerUUID, true).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	org = *NewPersonalOrganization(ownerUUID, ownerName)
	if err := db.Create(&org).Error; err != nil {
		// A concurrent delivery may have created it between lookup and insert.
		var existing Organization
		if lookupErr := db.Where("owner_user_uuid = ? AND is_personal = ?", ownerUUID, true).
			First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &org, nil
}
