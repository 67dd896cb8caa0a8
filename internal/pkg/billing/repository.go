package billing

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/edudashpro/billing-service/app/models"
)

// Repository provides the DB operations used by the billing service.
type Repository interface {
	GetPlanByTier(tier string) (*models.Plan, error)
	GetOrganizationByUUID(uuid string) (*models.Organization, error)
	GetPersonalOrganization(ownerUUID string) (*models.Organization, error)
	GetOrCreatePersonalOrganization(ownerUUID, ownerName string) (*models.Organization, error)
	GetSubscriptionByOwner(ownerType string, organizationID uint) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	UpdateOrganizationTier(organizationID uint, tier string) error
	UpdateMemberProfileTiers(organizationID uint, tier string) error
	UpdateProfileTierByUUID(ownerUUID, tier string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetPlanByTier(tier string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("tier = ? AND is_active = ?", tier, true).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetOrganizationByUUID(uuid string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("uuid = ?", uuid).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) GetPersonalOrganization(ownerUUID string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("owner_user_uuid = ? AND is_personal = ?", ownerUUID, true).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) GetOrCreatePersonalOrganization(ownerUUID, ownerName string) (*models.Organization, error) {
	return models.GetOrCreatePersonalOrganization(r.db, ownerUUID, ownerName)
}

func (r *gormRepository) GetSubscriptionByOwner(ownerType string, organizationID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("owner_type = ? AND organization_id = ?", ownerType, organizationID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_type"},
			{Name: "organization_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"plan_tier",
			"status",
			"billing_frequency",
			"starts_at",
			"ends_at",
			"seats_total",
			"payfast_token",
			"cancelled_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("owner_type = ? AND organization_id = ?", sub.OwnerType, sub.OrganizationID).
		First(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) UpdateOrganizationTier(organizationID uint, tier string) error {
	return r.db.Model(&models.Organization{}).
		Where("id = ?", organizationID).
		Update("plan_tier", tier).Error
}

func (r *gormRepository) UpdateMemberProfileTiers(organizationID uint, tier string) error {
	return r.db.Model(&models.UserProfile{}).
		Where("organization_id = ?", organizationID).
		Update("plan_tier", tier).Error
}

func (r *gormRepository) UpdateProfileTierByUUID(ownerUUID, tier string) error {
	return r.db.Model(&models.UserProfile{}).
		Where("uuid = ?", ownerUUID).
		Update("plan_tier", tier).Error
}
