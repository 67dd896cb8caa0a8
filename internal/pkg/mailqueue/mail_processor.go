package mailqueue

import (
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/app/repository"
	"github.com/edudashpro/billing-service/internal/pkg/mail"
)

// processMailDeliveryJob loads the queued email row and delivers it via SMTP.
// The row is the source of truth for status; jobs whose row is already sent
// are treated as duplicates and dropped.
func (q *Queue) processMailDeliveryJob(job *Job) error {
	payload, err := MailDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid mail delivery payload: %w", err)
	}

	factory := repository.GetGlobalFactory()
	if factory == nil {
		return fmt.Errorf("repository factory not initialized")
	}
	repo := factory.GetEmailQueueRepository()

	email, err := repo.GetByID(payload.EmailID)
	if err != nil {
		return fmt.Errorf("loading email %d: %w", payload.EmailID, err)
	}

	if email.Status == models.EmailStatusSent {
		log.Debugf("[MailQueue] Email %d already sent, skipping", email.ID)
		return nil
	}

	if sendErr := mail.SendMail(email.Recipient, email.Subject, email.HTMLBody); sendErr != nil {
		email.MarkFailed(sendErr.Error())
		if updateErr := repo.Update(email); updateErr != nil {
			log.Errorf("[MailQueue] Failed to record delivery failure for email %d: %v", email.ID, updateErr)
		}
		return fmt.Errorf("sending email %d to %s: %w", email.ID, email.Recipient, sendErr)
	}

	email.MarkSent()
	if err := repo.Update(email); err != nil {
		// Delivery succeeded; a bookkeeping failure must not trigger a resend.
		log.Errorf("[MailQueue] Failed to mark email %d as sent: %v", email.ID, err)
	}
	return nil
}

// RetryFailedDeliveries re-enqueues failed email rows that still have retry
// budget left. Called periodically by the manager.
func (q *Queue) RetryFailedDeliveries() error {
	factory := repository.GetGlobalFactory()
	if factory == nil {
		return fmt.Errorf("repository factory not initialized")
	}
	repo := factory.GetEmailQueueRepository()

	emails, err := repo.ListRetryable(DefaultMaxRetries, 50)
	if err != nil {
		return fmt.Errorf("listing retryable emails: %w", err)
	}

	for _, email := range emails {
		payload := MailDeliveryJobPayload{EmailID: email.ID}
		if _, err := q.EnqueueJob(JobTypeMailDelivery, payload.ToMap()); err != nil {
			log.Errorf("[MailQueue] Failed to re-enqueue email %d: %v", email.ID, err)
			continue
		}
		log.Infof("[MailQueue] Re-enqueued failed email %d (attempt %d)", email.ID, email.Attempts+1)
	}
	return nil
}
