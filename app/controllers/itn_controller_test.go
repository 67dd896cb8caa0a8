package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/app/repository"
	"github.com/edudashpro/billing-service/internal/pkg/billing"
	"github.com/edudashpro/billing-service/internal/pkg/notifier"
	"github.com/edudashpro/billing-service/internal/pkg/payfast"
)

const (
	testMerchantID = "10000100"
	testOwnerUUID  = "8f14e45f-ceea-4672-a398-73a24b1001c9"
	testPassphrase = "jt7NOE43FZPn"
)

type stubTxRepo struct {
	transactions map[string]*models.PaymentTransaction
	markCalls    int
	markWon      bool
}

func newStubTxRepo() *stubTxRepo {
	return &stubTxRepo{transactions: map[string]*models.PaymentTransaction{}, markWon: true}
}

func (r *stubTxRepo) Create(tx *models.PaymentTransaction) error {
	r.transactions[tx.MerchantRef] = tx
	return nil
}

func (r *stubTxRepo) GetByMerchantRef(ref string) (*models.PaymentTransaction, error) {
	if tx, ok := r.transactions[ref]; ok {
		copied := *tx
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubTxRepo) MarkProcessed(ref, status string, amount float64, providerPaymentID string) (bool, error) {
	r.markCalls++
	if !r.markWon {
		return false, nil
	}
	tx, ok := r.transactions[ref]
	if !ok {
		return false, nil
	}
	if tx.Status == models.TransactionStatusCompleted {
		return false, nil
	}
	tx.Status = status
	tx.ProviderPaymentID = providerPaymentID
	if status == models.TransactionStatusCompleted {
		tx.Amount = amount
	}
	return true, nil
}

func (r *stubTxRepo) List(offset, limit int) ([]models.PaymentTransaction, error) {
	var out []models.PaymentTransaction
	for _, tx := range r.transactions {
		out = append(out, *tx)
	}
	return out, nil
}

func (r *stubTxRepo) Count() (int64, error) { return int64(len(r.transactions)), nil }

type stubEventRepo struct {
	events []*models.PaymentWebhookEvent
	marked map[uint]string
}

func newStubEventRepo() *stubEventRepo {
	return &stubEventRepo{marked: map[uint]string{}}
}

func (r *stubEventRepo) CreateIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	for _, e := range r.events {
		if e.Provider == event.Provider && e.ProviderEventID == event.ProviderEventID {
			return false, e, nil
		}
	}
	event.ID = uint(len(r.events) + 1)
	r.events = append(r.events, event)
	return true, event, nil
}

func (r *stubEventRepo) MarkProcessed(id uint, processingError string) error {
	r.marked[id] = processingError
	return nil
}

func (r *stubEventRepo) ListRecent(limit int) ([]models.PaymentWebhookEvent, error) {
	var out []models.PaymentWebhookEvent
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out, nil
}

type stubEmailRepo struct {
	created []*models.EmailQueue
}

func (r *stubEmailRepo) Create(email *models.EmailQueue) error {
	email.ID = uint(len(r.created) + 1)
	r.created = append(r.created, email)
	return nil
}

func (r *stubEmailRepo) GetByID(id uint) (*models.EmailQueue, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *stubEmailRepo) Update(email *models.EmailQueue) error      { return nil }
func (r *stubEmailRepo) CountByStatus(status string) (int64, error) { return 0, nil }
func (r *stubEmailRepo) ListRetryable(maxAttempts, limit int) ([]models.EmailQueue, error) {
	return nil, nil
}

// billingStubRepo is a minimal in-memory billing.Repository for handler tests.
type billingStubRepo struct {
	plans        map[string]*models.Plan
	orgs         map[string]*models.Organization
	subs         map[string]*models.Subscription
	orgTiers     map[uint]string
	memberTiers  map[uint]string
	profileTiers map[string]string
}

func newBillingStubRepo() *billingStubRepo {
	return &billingStubRepo{
		plans: map[string]*models.Plan{
			"premium": {ID: 3, Tier: "premium", Name: "Premium", MaxTeachers: 10},
		},
		orgs:         map[string]*models.Organization{},
		subs:         map[string]*models.Subscription{},
		orgTiers:     map[uint]string{},
		memberTiers:  map[uint]string{},
		profileTiers: map[string]string{},
	}
}

func subKey(ownerType string, orgID uint) string {
	return fmt.Sprintf("%s:%d", ownerType, orgID)
}

func (r *billingStubRepo) GetPlanByTier(tier string) (*models.Plan, error) {
	if p, ok := r.plans[tier]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *billingStubRepo) GetOrganizationByUUID(uuid string) (*models.Organization, error) {
	if o, ok := r.orgs[uuid]; ok {
		return o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *billingStubRepo) GetPersonalOrganization(ownerUUID string) (*models.Organization, error) {
	for _, o := range r.orgs {
		if o.IsPersonal && o.OwnerUserUUID == ownerUUID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *billingStubRepo) GetOrCreatePersonalOrganization(ownerUUID, ownerName string) (*models.Organization, error) {
	if o, err := r.GetPersonalOrganization(ownerUUID); err == nil {
		return o, nil
	}
	o := &models.Organization{
		ID: uint(len(r.orgs) + 100), UUID: "personal-" + ownerUUID,
		IsPersonal: true, OwnerUserUUID: ownerUUID, PlanTier: models.TierFree,
	}
	r.orgs[o.UUID] = o
	return o, nil
}

func (r *billingStubRepo) GetSubscriptionByOwner(ownerType string, orgID uint) (*models.Subscription, error) {
	if s, ok := r.subs[subKey(ownerType, orgID)]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *billingStubRepo) UpsertSubscription(sub *models.Subscription) error {
	copied := *sub
	r.subs[subKey(sub.OwnerType, sub.OrganizationID)] = &copied
	return nil
}

func (r *billingStubRepo) SaveSubscription(sub *models.Subscription) error {
	return r.UpsertSubscription(sub)
}

func (r *billingStubRepo) UpdateOrganizationTier(orgID uint, tier string) error {
	r.orgTiers[orgID] = tier
	return nil
}

func (r *billingStubRepo) UpdateMemberProfileTiers(orgID uint, tier string) error {
	r.memberTiers[orgID] = tier
	return nil
}

func (r *billingStubRepo) UpdateProfileTierByUUID(ownerUUID, tier string) error {
	r.profileTiers[ownerUUID] = tier
	return nil
}

type itnHarness struct {
	app      *fiber.App
	txRepo   *stubTxRepo
	events   *stubEventRepo
	emails   *stubEmailRepo
	billing  *billingStubRepo
	enqueued []uint
	validate *httptest.Server
}

func newITNHarness(t *testing.T, mode payfast.Mode, passphrase, validateResponse string) *itnHarness {
	t.Helper()

	h := &itnHarness{
		txRepo:  newStubTxRepo(),
		events:  newStubEventRepo(),
		emails:  &stubEmailRepo{},
		billing: newBillingStubRepo(),
	}

	h.validate = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, validateResponse)
	}))
	t.Cleanup(h.validate.Close)

	cfg := payfast.Config{
		Mode:         mode,
		MerchantID:   testMerchantID,
		Passphrase:   passphrase,
		ValidateHost: h.validate.URL,
	}

	repos := &repository.Repositories{
		Transaction:  h.txRepo,
		WebhookEvent: h.events,
		EmailQueue:   h.emails,
	}
	svc := billing.NewService(h.billing, billing.TierNamingAligned)
	n := notifier.New(h.emails, func(emailID uint) error {
		h.enqueued = append(h.enqueued, emailID)
		return nil
	})

	ic := NewITNController(cfg, payfast.NewValidator(cfg.ValidateHost), repos, svc, n)

	h.app = fiber.New()
	h.app.Post("/webhooks/payfast/itn", ic.HandleITN)
	return h
}

// signedBody builds a form body the way PayFast does: ordered fields plus a
// trailing signature over the preceding ones.
func signedBody(t *testing.T, passphrase string, pairs [][2]string) string {
	t.Helper()

	fields := make([]payfast.Field, 0, len(pairs))
	for _, p := range pairs {
		fields = append(fields, payfast.Field{Key: p[0], Value: p[1]})
	}
	sig := payfast.ComputeSignature(fields, passphrase)

	var b strings.Builder
	for _, p := range pairs {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	b.WriteString("&signature=")
	b.WriteString(sig)
	return b.String()
}

func completePairs(merchantID string) [][2]string {
	return [][2]string{
		{"m_payment_id", "EDU-1234"},
		{"pf_payment_id", "PF-9001"},
		{"payment_status", "COMPLETE"},
		{"item_name", "Premium Plan"},
		{"amount_gross", "15000"},
		{"merchant_id", merchantID},
		{"email_address", "principal@school.example"},
		{"custom_str1", "organization"},
		{"custom_str2", testOwnerUUID},
		{"custom_str3", "premium"},
		{"custom_str4", `{"billing":"monthly","seats":5}`},
		{"custom_str5", "INV-77"},
	}
}

func (h *itnHarness) post(t *testing.T, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payfast/itn", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHandleITN_CompletePayment(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
		OwnerScope: models.ScopeOrganization, OwnerUUID: testOwnerUUID,
	})
	h.billing.orgs[testOwnerUUID] = &models.Organization{ID: 7, UUID: testOwnerUUID, PlanTier: "free"}

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	tx := h.txRepo.transactions["EDU-1234"]
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.InDelta(t, 150.00, tx.Amount, 0.001)
	assert.Equal(t, "PF-9001", tx.ProviderPaymentID)

	sub := h.billing.subs[subKey(models.ScopeOrganization, 7)]
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, 5, sub.SeatsTotal)
	assert.Equal(t, "premium", h.billing.orgTiers[7])
	assert.Equal(t, "premium", h.billing.memberTiers[7])

	require.Len(t, h.emails.created, 1)
	assert.Equal(t, "principal@school.example", h.emails.created[0].Recipient)
	assert.Len(t, h.enqueued, 1)

	require.Len(t, h.events.events, 1)
	assert.True(t, h.events.events[0].SignatureValid)
	assert.Equal(t, "", h.events.marked[h.events.events[0].ID])
}

func TestHandleITN_DuplicateCompleteIsNoOp(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusCompleted,
	})

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, 0, h.txRepo.markCalls)
	assert.Empty(t, h.billing.subs)
	assert.Empty(t, h.emails.created)
}

func TestHandleITN_MerchantMismatchRejectedBothModes(t *testing.T) {
	for _, mode := range []payfast.Mode{payfast.ModeSandbox, payfast.ModeProduction} {
		t.Run(string(mode), func(t *testing.T) {
			h := newITNHarness(t, mode, testPassphrase, "VALID")
			h.txRepo.Create(&models.PaymentTransaction{
				MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
			})

			resp := h.post(t, signedBody(t, testPassphrase, completePairs("999999")))
			assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
			assert.Equal(t, 0, h.txRepo.markCalls)
			// The audit row is the only write.
			assert.Len(t, h.events.events, 1)
		})
	}
}

func TestHandleITN_BadSignatureProduction(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
	})

	// Sign with the wrong passphrase so the recomputed digest differs.
	resp := h.post(t, signedBody(t, "wrong-passphrase", completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, h.txRepo.markCalls)

	require.Len(t, h.events.events, 1)
	assert.False(t, h.events.events[0].SignatureValid)
}

func TestHandleITN_BadSignatureSandboxContinues(t *testing.T) {
	h := newITNHarness(t, payfast.ModeSandbox, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
		OwnerScope: models.ScopeOrganization, OwnerUUID: testOwnerUUID,
	})
	h.billing.orgs[testOwnerUUID] = &models.Organization{ID: 7, UUID: testOwnerUUID, PlanTier: "free"}

	resp := h.post(t, signedBody(t, "wrong-passphrase", completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.TransactionStatusCompleted, h.txRepo.transactions["EDU-1234"].Status)
}

func TestHandleITN_UnknownReference(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleITN_RemoteValidationFailsClosed(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "INVALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
	})

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, h.txRepo.markCalls)
}

func TestHandleITN_RemoteValidationAdvisoryInSandbox(t *testing.T) {
	h := newITNHarness(t, payfast.ModeSandbox, testPassphrase, "INVALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
		OwnerScope: models.ScopeOrganization, OwnerUUID: testOwnerUUID,
	})
	h.billing.orgs[testOwnerUUID] = &models.Organization{ID: 7, UUID: testOwnerUUID, PlanTier: "free"}

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.TransactionStatusCompleted, h.txRepo.transactions["EDU-1234"].Status)
}

func TestHandleITN_CancelledFlipsSubscription(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending, Amount: 150.00,
	})
	org := &models.Organization{ID: 7, UUID: testOwnerUUID, PlanTier: "premium"}
	h.billing.orgs[testOwnerUUID] = org
	h.billing.subs[subKey(models.ScopeOrganization, 7)] = &models.Subscription{
		ID: 1, OwnerType: models.ScopeOrganization, OrganizationID: 7,
		PlanTier: "premium", Status: models.SubscriptionStatusActive,
		EndsAt: time.Now().AddDate(0, 1, 0),
	}

	pairs := completePairs(testMerchantID)
	pairs[2] = [2]string{"payment_status", "CANCELLED"}
	resp := h.post(t, signedBody(t, testPassphrase, pairs))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	tx := h.txRepo.transactions["EDU-1234"]
	assert.Equal(t, models.TransactionStatusCancelled, tx.Status)
	// The amount recorded at initiation survives the cancellation.
	assert.InDelta(t, 150.00, tx.Amount, 0.001)

	sub := h.billing.subs[subKey(models.ScopeOrganization, 7)]
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	// The paid tier stays in place until the period runs out.
	assert.Empty(t, h.billing.orgTiers)
	assert.Empty(t, h.billing.memberTiers)

	require.Len(t, h.emails.created, 1)
	assert.Contains(t, h.emails.created[0].Subject, "cancelled")
}

func TestHandleITN_PaymentFailedKeepsPaidTier(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending, Amount: 150.00,
	})
	h.billing.orgs[testOwnerUUID] = &models.Organization{ID: 7, UUID: testOwnerUUID, PlanTier: "premium"}
	h.billing.subs[subKey(models.ScopeOrganization, 7)] = &models.Subscription{
		ID: 1, OwnerType: models.ScopeOrganization, OrganizationID: 7,
		PlanTier: "premium", Status: models.SubscriptionStatusActive,
		EndsAt: time.Now().AddDate(0, 1, 0),
	}

	pairs := completePairs(testMerchantID)
	pairs[2] = [2]string{"payment_status", "FAILED"}
	resp := h.post(t, signedBody(t, testPassphrase, pairs))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	tx := h.txRepo.transactions["EDU-1234"]
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)
	assert.InDelta(t, 150.00, tx.Amount, 0.001)

	sub := h.billing.subs[subKey(models.ScopeOrganization, 7)]
	assert.Equal(t, models.SubscriptionStatusPaymentFailed, sub.Status)
	// A failed renewal charge on a paid-up period must not downgrade anyone.
	assert.Empty(t, h.billing.orgTiers)
	assert.Empty(t, h.billing.memberTiers)
	assert.Empty(t, h.billing.profileTiers)
}

func TestHandleITN_LostIdempotencyRace(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
	})
	h.txRepo.markWon = false

	resp := h.post(t, signedBody(t, testPassphrase, completePairs(testMerchantID)))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, h.billing.subs)
	assert.Empty(t, h.emails.created)
}

func TestHandleITN_PendingStatusAcknowledged(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")
	h.txRepo.Create(&models.PaymentTransaction{
		MerchantRef: "EDU-1234", Status: models.TransactionStatusPending,
	})

	pairs := completePairs(testMerchantID)
	pairs[2] = [2]string{"payment_status", "PENDING"}
	resp := h.post(t, signedBody(t, testPassphrase, pairs))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, h.txRepo.markCalls)
	assert.Equal(t, models.TransactionStatusPending, h.txRepo.transactions["EDU-1234"].Status)
}

func TestHandleITN_MalformedBody(t *testing.T) {
	h := newITNHarness(t, payfast.ModeProduction, testPassphrase, "VALID")

	resp := h.post(t, "%zz=broken")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
