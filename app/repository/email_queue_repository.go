package repository

import (
	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
)

type emailQueueRepository struct {
	db *gorm.DB
}

// NewEmailQueueRepository creates an email queue repository backed by GORM.
func NewEmailQueueRepository(db *gorm.DB) EmailQueueRepository {
	return &emailQueueRepository{db: db}
}

func (r *emailQueueRepository) Create(email *models.EmailQueue) error {
	return r.db.Create(email).Error
}

func (r *emailQueueRepository) GetByID(id uint) (*models.EmailQueue, error) {
	var email models.EmailQueue
	if err := r.db.First(&email, id).Error; err != nil {
		return nil, err
	}
	return &email, nil
}

func (r *emailQueueRepository) Update(email *models.EmailQueue) error {
	return r.db.Save(email).Error
}

func (r *emailQueueRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.EmailQueue{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *emailQueueRepository) ListRetryable(maxAttempts, limit int) ([]models.EmailQueue, error) {
	var emails []models.EmailQueue
	err := r.db.
		Where("status = ? AND attempts < ?", models.EmailStatusFailed, maxAttempts).
		Order("updated_at ASC").
		Limit(limit).
		Find(&emails).Error
	return emails, err
}
