package models

import "time"

const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailQueue is a row describing an email for out-of-band delivery. The
// webhook only ever inserts here; the mail queue workers own the rest of the
// lifecycle.
type EmailQueue struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Recipient    string     `gorm:"type:varchar(200);not null;index" json:"recipient" validate:"required,email"`
	Subject      string     `gorm:"type:varchar(255);not null" json:"subject" validate:"required,max=255"`
	HTMLBody     string     `gorm:"type:longtext;not null" json:"html_body"`
	MetadataJSON string     `gorm:"type:text" json:"metadata_json"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status" validate:"oneof=pending sent failed"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	LastError    string     `gorm:"type:text" json:"last_error"`
	SentAt       *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkSent records a successful delivery.
func (e *EmailQueue) MarkSent() {
	now := time.Now()
	e.Status = EmailStatusSent
	e.SentAt = &now
	e.LastError = ""
}

// MarkFailed records a delivery failure.
func (e *EmailQueue) MarkFailed(errMsg string) {
	e.Status = EmailStatusFailed
	e.Attempts++
	e.LastError = errMsg
}
