package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/app/repository"
	"github.com/edudashpro/billing-service/internal/pkg/billing"
	"github.com/edudashpro/billing-service/internal/pkg/mailqueue"
	"github.com/edudashpro/billing-service/internal/pkg/notifier"
	"github.com/edudashpro/billing-service/internal/pkg/payfast"
)

// ITNController handles PayFast Instant Transaction Notifications. All
// integrity checks run before any state is touched; the only permitted write
// on a rejected delivery is the audit event row.
type ITNController struct {
	cfg       payfast.Config
	validator *payfast.Validator
	repos     *repository.Repositories
	billing   *billing.Service
	notifier  *notifier.Notifier
}

// NewITNController wires an ITN controller from explicit dependencies.
func NewITNController(cfg payfast.Config, validator *payfast.Validator, repos *repository.Repositories, svc *billing.Service, n *notifier.Notifier) *ITNController {
	return &ITNController{
		cfg:       cfg,
		validator: validator,
		repos:     repos,
		billing:   svc,
		notifier:  n,
	}
}

// NewITNControllerFromGlobals wires the controller from the process-wide
// factory, environment config and the mail queue manager.
func NewITNControllerFromGlobals(db *gorm.DB) *ITNController {
	cfg := payfast.LoadConfig()
	repos := repository.GetGlobalFactory().GetRepositories()
	svc := billing.NewServiceFromDB(db, billing.TierNamingFromEnv())
	n := notifier.New(repos.EmailQueue, func(emailID uint) error {
		payload := mailqueue.MailDeliveryJobPayload{EmailID: emailID}
		_, err := mailqueue.GetManager().GetQueue().EnqueueJob(mailqueue.JobTypeMailDelivery, payload.ToMap())
		return err
	})
	return NewITNController(cfg, payfast.NewValidator(cfg.ValidateHost), repos, svc, n)
}

// HandleITN processes a POST from PayFast. The response body is always bare
// text; PayFast only looks at the status code.
func (ic *ITNController) HandleITN(c *fiber.Ctx) error {
	raw := c.Body()

	n, err := payfast.ParseITN(raw)
	if err != nil {
		log.Warnf("[ITN] Rejecting malformed body: %v", err)
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}

	sigOK := payfast.VerifySignature(n.Fields, n.Signature, ic.cfg.Passphrase, ic.cfg.Mode)

	// Audit row first; every delivery leaves a trace even when rejected.
	event := ic.recordEvent(n, raw, sigOK)

	if ic.cfg.MerchantID != "" && n.MerchantID != ic.cfg.MerchantID {
		log.Warnf("[ITN] Merchant id mismatch: got %q", n.MerchantID)
		ic.finishEvent(event, "merchant id mismatch")
		return c.Status(fiber.StatusForbidden).SendString("INVALID")
	}

	if !sigOK {
		if ic.cfg.Production() {
			log.Warnf("[ITN] Invalid signature on %s", n.MerchantRef)
			ic.finishEvent(event, "invalid signature")
			return c.Status(fiber.StatusBadRequest).SendString("INVALID")
		}
		log.Warnf("[ITN] Invalid signature on %s (sandbox, continuing)", n.MerchantRef)
	}

	if err := n.RequireFields(); err != nil {
		ic.finishEvent(event, err.Error())
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}
	if err := n.ValidateCustom(); err != nil {
		log.Warnf("[ITN] Rejecting %s: %v", n.MerchantRef, err)
		ic.finishEvent(event, err.Error())
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}

	if !ic.validator.Validate(c.UserContext(), raw) {
		if ic.cfg.Production() {
			log.Warnf("[ITN] Remote validation failed for %s", n.MerchantRef)
			ic.finishEvent(event, "remote validation failed")
			return c.Status(fiber.StatusBadRequest).SendString("INVALID")
		}
		log.Warnf("[ITN] Remote validation failed for %s (sandbox, continuing)", n.MerchantRef)
	}

	tx, err := ic.repos.Transaction.GetByMerchantRef(n.MerchantRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[ITN] Unknown transaction %s", n.MerchantRef)
			ic.finishEvent(event, "unknown transaction")
			return c.Status(fiber.StatusNotFound).SendString("INVALID")
		}
		log.Errorf("[ITN] Loading transaction %s failed: %v", n.MerchantRef, err)
		ic.finishEvent(event, err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("ERROR")
	}

	mapped := payfast.MapPaymentStatus(n.PaymentStatus)

	if tx.Status == models.TransactionStatusCompleted && mapped == models.TransactionStatusCompleted {
		log.Infof("[ITN] Duplicate COMPLETE for %s, acknowledging", n.MerchantRef)
		ic.finishEvent(event, "")
		return c.SendString("OK")
	}

	if mapped == models.TransactionStatusPending {
		// Non-terminal provider status; acknowledge without a transition.
		log.Infof("[ITN] Non-terminal status %q for %s, acknowledging", n.PaymentStatus, n.MerchantRef)
		ic.finishEvent(event, "")
		return c.SendString("OK")
	}

	var amount float64
	if mapped == models.TransactionStatusCompleted {
		amount, err = payfast.NormalizeAmount(n.AmountGross)
		if err != nil {
			log.Warnf("[ITN] Rejecting %s: %v", n.MerchantRef, err)
			ic.finishEvent(event, err.Error())
			return c.Status(fiber.StatusBadRequest).SendString("INVALID")
		}
	}

	won, err := ic.repos.Transaction.MarkProcessed(n.MerchantRef, mapped, amount, n.PFPaymentID)
	if err != nil {
		log.Errorf("[ITN] Transition for %s failed: %v", n.MerchantRef, err)
		ic.finishEvent(event, err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("ERROR")
	}
	if !won {
		// A concurrent delivery already completed this reference.
		log.Infof("[ITN] Lost idempotency race on %s, acknowledging", n.MerchantRef)
		ic.finishEvent(event, "")
		return c.SendString("OK")
	}

	in := billing.ReconcileInput{
		Scope:      n.Custom.Scope,
		OwnerUUID:  n.Custom.OwnerUUID,
		OwnerEmail: n.EmailAddress,
		PlanTier:   n.Custom.PlanTier,
		Billing:    n.Custom.Options.Billing,
		Seats:      n.Custom.Options.Seats,
		Recurring:  n.Recurring,
		Token:      n.Token,
		ItemName:   n.ItemName,
	}

	var result *billing.ReconcileResult
	switch mapped {
	case models.TransactionStatusCompleted:
		result, err = ic.billing.ActivateSubscription(c.UserContext(), in)
	case models.TransactionStatusCancelled:
		result, err = ic.billing.DeactivateSubscription(c.UserContext(), in, models.SubscriptionStatusCancelled)
	case models.TransactionStatusFailed:
		result, err = ic.billing.DeactivateSubscription(c.UserContext(), in, models.SubscriptionStatusPaymentFailed)
	}
	if err != nil {
		log.Errorf("[ITN] Reconciling %s failed: %v", n.MerchantRef, err)
		ic.finishEvent(event, err.Error())
		return c.Status(fiber.StatusInternalServerError).SendString("ERROR")
	}

	billing.RunPostActions(ic.postActions(n, mapped, amount, result))

	ic.finishEvent(event, "")
	return c.SendString("OK")
}

// postActions assembles the best-effort side effects for a committed
// transition. None of them can fail the webhook. The tier fan-out runs for
// completed payments only; cancellations and failures flip the subscription
// but keep the paid tier until period expiry.
func (ic *ITNController) postActions(n *payfast.Notification, mapped string, amount float64, result *billing.ReconcileResult) []billing.PostAction {
	var actions []billing.PostAction
	if mapped == models.TransactionStatusCompleted {
		actions = append(actions, billing.PostAction{Name: "tier-fanout", Run: func() error {
			return ic.billing.FanOutTier(context.Background(), result)
		}})
	}

	notice := notifier.Notice{
		Recipient:   n.EmailAddress,
		MerchantRef: n.MerchantRef,
		InvoiceNo:   n.Custom.InvoiceNo,
		Amount:      amount,
	}
	switch mapped {
	case models.TransactionStatusCompleted:
		notice.Kind = notifier.NoticeActivated
		if result != nil && result.Renewed {
			notice.Kind = notifier.NoticeRenewed
		}
		if result != nil {
			notice.PlanTier = result.EffectiveTier
			if result.Subscription != nil {
				notice.PeriodEnd = result.Subscription.EndsAt
			}
		}
	case models.TransactionStatusCancelled:
		notice.Kind = notifier.NoticeCancelled
		if result != nil {
			notice.PlanTier = result.PreviousTier
		}
	case models.TransactionStatusFailed:
		notice.Kind = notifier.NoticePaymentFailed
		if result != nil {
			notice.PlanTier = result.PreviousTier
		}
	}

	actions = append(actions, billing.PostAction{Name: "owner-email", Run: func() error {
		return ic.notifier.NotifyPayment(notice)
	}})
	return actions
}

// recordEvent stores the audit row for a delivery. Failures are logged and
// ignored; auditing must never block processing.
func (ic *ITNController) recordEvent(n *payfast.Notification, raw []byte, sigOK bool) *models.PaymentWebhookEvent {
	eventID := n.EventID()
	if eventID == "" {
		sum := sha256.Sum256(raw)
		eventID = "raw:" + hex.EncodeToString(sum[:16])
	}

	event := &models.PaymentWebhookEvent{
		Provider:        payfast.Provider,
		ProviderEventID: eventID,
		PaymentStatus:   strings.ToUpper(strings.TrimSpace(n.PaymentStatus)),
		PayloadRaw:      string(raw),
		SignatureValid:  sigOK,
	}

	created, stored, err := ic.repos.WebhookEvent.CreateIfNotExists(event)
	if err != nil {
		log.Errorf("[ITN] Storing audit event failed: %v", err)
		return nil
	}
	if !created {
		log.Infof("[ITN] Redelivery of event %s", eventID)
	}
	return stored
}

// finishEvent stamps the audit row with the processing outcome.
func (ic *ITNController) finishEvent(event *models.PaymentWebhookEvent, processingError string) {
	if event == nil {
		return
	}
	if err := ic.repos.WebhookEvent.MarkProcessed(event.ID, processingError); err != nil {
		log.Errorf("[ITN] Marking audit event %d failed: %v", event.ID, err)
	}
}

// merchantLabel is used by the admin endpoints when echoing configuration.
func merchantLabel(cfg payfast.Config) string {
	if cfg.MerchantID == "" {
		return "(unset)"
	}
	return fmt.Sprintf("%s (%s)", cfg.MerchantID, cfg.Mode)
}
