package repository

import (
	"github.com/edudashpro/billing-service/app/models"
)

// TransactionRepository defines the database operations on payment
// transactions. MarkProcessed is the atomic idempotency gate: it only
// transitions rows that are not already completed and reports whether this
// call won the transition.
type TransactionRepository interface {
	Create(tx *models.PaymentTransaction) error
	GetByMerchantRef(ref string) (*models.PaymentTransaction, error)
	MarkProcessed(ref, status string, amount float64, providerPaymentID string) (bool, error)
	List(offset, limit int) ([]models.PaymentTransaction, error)
	Count() (int64, error)
}

// WebhookEventRepository persists raw webhook deliveries for auditing and
// deduplication.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
	ListRecent(limit int) ([]models.PaymentWebhookEvent, error)
}

// EmailQueueRepository owns the queued-email rows.
type EmailQueueRepository interface {
	Create(email *models.EmailQueue) error
	GetByID(id uint) (*models.EmailQueue, error)
	Update(email *models.EmailQueue) error
	CountByStatus(status string) (int64, error)
	ListRetryable(maxAttempts, limit int) ([]models.EmailQueue, error)
}
