package models

import (
	"time"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
	TransactionStatusFailed    = "failed"
)

const (
	ScopeOrganization = "organization"
	ScopeIndividual   = "individual"
)

// PaymentTransaction is created client-side when a payment is initiated and
// moved to a terminal status exactly once by the ITN webhook. MerchantRef is
// the idempotency key (m_payment_id on the wire).
type PaymentTransaction struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	MerchantRef       string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"merchant_ref" validate:"required,max=100"`
	ProviderPaymentID string     `gorm:"type:varchar(100);index" json:"provider_payment_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending completed cancelled failed"`
	Amount            float64    `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	OwnerScope        string     `gorm:"type:varchar(20);not null;index:idx_payment_transactions_owner,priority:1" json:"owner_scope" validate:"oneof=organization individual"`
	OwnerUUID         string     `gorm:"type:varchar(36);not null;index:idx_payment_transactions_owner,priority:2" json:"owner_uuid"`
	PlanTier          string     `gorm:"type:varchar(50)" json:"plan_tier"`
	InvoiceNo         string     `gorm:"type:varchar(100)" json:"invoice_no"`
	ItemName          string     `gorm:"type:varchar(255)" json:"item_name"`
	MetadataJSON      string     `gorm:"type:text" json:"metadata_json"`
	CompletedAt       *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the transaction has already reached a final
// status and must not be reprocessed.
func (t *PaymentTransaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusFailed:
		return true
	default:
		return false
	}
}
