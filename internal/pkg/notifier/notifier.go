package notifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/app/repository"
)

// NoticeKind selects the email template for a billing transition.
type NoticeKind string

const (
	NoticeActivated     NoticeKind = "activated"
	NoticeRenewed       NoticeKind = "renewed"
	NoticeCancelled     NoticeKind = "cancelled"
	NoticePaymentFailed NoticeKind = "payment_failed"
)

// Notice describes a billing transition worth telling the owner about.
type Notice struct {
	Kind        NoticeKind
	Recipient   string
	PlanTier    string
	Amount      float64
	MerchantRef string
	InvoiceNo   string
	PeriodEnd   time.Time
}

// EnqueueFunc hands a stored email row to the delivery queue.
type EnqueueFunc func(emailID uint) error

// Notifier stores outbound emails and hands them to the mail queue. It is
// always called from a post-commit action, so every error here is advisory.
type Notifier struct {
	emails  repository.EmailQueueRepository
	enqueue EnqueueFunc
}

// New creates a notifier over the given email repository and queue hook.
func New(emails repository.EmailQueueRepository, enqueue EnqueueFunc) *Notifier {
	return &Notifier{emails: emails, enqueue: enqueue}
}

// NotifyPayment renders the notice, inserts the email_queue row and enqueues
// the delivery job. A missing recipient is not an error; the provider does
// not always echo the buyer email back.
func (n *Notifier) NotifyPayment(notice Notice) error {
	recipient := strings.TrimSpace(notice.Recipient)
	if recipient == "" {
		log.Debugf("[Notifier] No recipient for %s notice on %s, skipping", notice.Kind, notice.MerchantRef)
		return nil
	}

	subject, body := renderNotice(notice)

	metadata, err := json.Marshal(map[string]interface{}{
		"kind":         string(notice.Kind),
		"merchant_ref": notice.MerchantRef,
		"invoice_no":   notice.InvoiceNo,
		"plan_tier":    notice.PlanTier,
	})
	if err != nil {
		return fmt.Errorf("marshalling notice metadata: %w", err)
	}

	email := &models.EmailQueue{
		Recipient:    recipient,
		Subject:      subject,
		HTMLBody:     body,
		MetadataJSON: string(metadata),
		Status:       models.EmailStatusPending,
	}
	if err := n.emails.Create(email); err != nil {
		return fmt.Errorf("storing %s notice for %s: %w", notice.Kind, recipient, err)
	}

	if err := n.enqueue(email.ID); err != nil {
		// The row is stored; delivery will happen when someone re-enqueues it.
		return fmt.Errorf("enqueuing email %d: %w", email.ID, err)
	}

	log.Infof("[Notifier] Queued %s notice %d for %s", notice.Kind, email.ID, recipient)
	return nil
}

func renderNotice(notice Notice) (subject, body string) {
	tier := notice.PlanTier
	if tier == "" {
		tier = "your plan"
	}

	switch notice.Kind {
	case NoticeActivated:
		subject = fmt.Sprintf("Your %s subscription is active", tier)
		body = fmt.Sprintf(
			"<h2>Subscription activated</h2>"+
				"<p>Thank you for your payment of R%.2f. Your <strong>%s</strong> subscription is now active until %s.</p>"+
				"<p>Payment reference: %s</p>",
			notice.Amount, tier, notice.PeriodEnd.Format("2 January 2006"), notice.MerchantRef)
	case NoticeRenewed:
		subject = fmt.Sprintf("Your %s subscription has been renewed", tier)
		body = fmt.Sprintf(
			"<h2>Subscription renewed</h2>"+
				"<p>We received your payment of R%.2f. Your <strong>%s</strong> subscription now runs until %s.</p>"+
				"<p>Payment reference: %s</p>",
			notice.Amount, tier, notice.PeriodEnd.Format("2 January 2006"), notice.MerchantRef)
	case NoticeCancelled:
		subject = "Your subscription has been cancelled"
		body = fmt.Sprintf(
			"<h2>Subscription cancelled</h2>"+
				"<p>Your <strong>%s</strong> subscription has been cancelled and will not renew; the free plan applies from then on.</p>"+
				"<p>Payment reference: %s</p>",
			tier, notice.MerchantRef)
	case NoticePaymentFailed:
		subject = "We could not process your payment"
		body = fmt.Sprintf(
			"<h2>Payment failed</h2>"+
				"<p>A payment for your <strong>%s</strong> subscription failed. Please check your payment details.</p>"+
				"<p>Payment reference: %s</p>",
			tier, notice.MerchantRef)
	default:
		subject = "Update on your subscription"
		body = fmt.Sprintf("<p>There has been an update on your subscription (reference %s).</p>", notice.MerchantRef)
	}

	if notice.InvoiceNo != "" {
		body += fmt.Sprintf("<p>Invoice: %s</p>", notice.InvoiceNo)
	}
	return subject, body
}
