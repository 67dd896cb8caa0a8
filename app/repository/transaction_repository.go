package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a transaction repository backed by GORM.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(tx *models.PaymentTransaction) error {
	return r.db.Create(tx).Error
}

func (r *transactionRepository) GetByMerchantRef(ref string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := r.db.Where("merchant_ref = ?", ref).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkProcessed performs the terminal transition as a single conditional
// update guarded by `status <> 'completed'`. Zero rows affected means another
// delivery already finalized the transaction; the caller treats that as the
// idempotent no-op. The amount and completion timestamp are written only on
// completion; cancelled and failed deliveries carry no gross amount and must
// not clobber the value recorded when the payment was initiated.
func (r *transactionRepository) MarkProcessed(ref, status string, amount float64, providerPaymentID string) (bool, error) {
	updates := map[string]interface{}{
		"status":              status,
		"provider_payment_id": providerPaymentID,
	}
	if status == models.TransactionStatusCompleted {
		now := time.Now()
		updates["amount"] = amount
		updates["completed_at"] = &now
	}

	res := r.db.Model(&models.PaymentTransaction{}).
		Where("merchant_ref = ? AND status <> ?", ref, models.TransactionStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *transactionRepository) List(offset, limit int) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentTransaction{}).Count(&count).Error
	return count, err
}
