package payfast

import (
	"strings"

	"github.com/edudashpro/billing-service/app/models"
)

// MapPaymentStatus maps PayFast's payment_status values onto internal
// transaction statuses. Unknown values map to pending.
func MapPaymentStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETE":
		return models.TransactionStatusCompleted
	case "CANCELLED":
		return models.TransactionStatusCancelled
	case "FAILED":
		return models.TransactionStatusFailed
	default:
		return models.TransactionStatusPending
	}
}
