package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/app/repository"
	"github.com/edudashpro/billing-service/internal/pkg/billing"
	"github.com/edudashpro/billing-service/internal/pkg/mailqueue"
	"github.com/edudashpro/billing-service/internal/pkg/payfast"
)

// AdminController serves the API-key-protected ops endpoints: transaction
// lookups, subscription state, forced re-reconcile and queue stats.
type AdminController struct {
	cfg     payfast.Config
	repos   *repository.Repositories
	billing *billing.Service
}

// NewAdminController wires the ops controller from explicit dependencies.
func NewAdminController(cfg payfast.Config, repos *repository.Repositories, svc *billing.Service) *AdminController {
	return &AdminController{cfg: cfg, repos: repos, billing: svc}
}

// NewAdminControllerFromGlobals wires the controller from the process-wide
// factory and environment config.
func NewAdminControllerFromGlobals(db *gorm.DB) *AdminController {
	return NewAdminController(
		payfast.LoadConfig(),
		repository.GetGlobalFactory().GetRepositories(),
		billing.NewServiceFromDB(db, billing.TierNamingFromEnv()),
	)
}

// HandleListTransactions returns recent payment transactions, newest first.
func (ac *AdminController) HandleListTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	transactions, err := ac.repos.Transaction.List(offset, limit)
	if err != nil {
		log.Errorf("[Admin] Listing transactions failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list transactions"})
	}
	total, err := ac.repos.Transaction.Count()
	if err != nil {
		log.Errorf("[Admin] Counting transactions failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count transactions"})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// HandleGetTransaction returns one transaction by merchant reference.
func (ac *AdminController) HandleGetTransaction(c *fiber.Ctx) error {
	ref := strings.TrimSpace(c.Params("ref"))
	if ref == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing reference"})
	}

	tx, err := ac.repos.Transaction.GetByMerchantRef(ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Transaction not found"})
		}
		log.Errorf("[Admin] Loading transaction %s failed: %v", ref, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load transaction"})
	}

	return c.JSON(tx)
}

// HandleGetSubscription returns the subscription state for an owner.
func (ac *AdminController) HandleGetSubscription(c *fiber.Ctx) error {
	scope, ownerUUID, err := ownerParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	sub, org, err := ac.billing.OwnerSubscription(scope, ownerUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No subscription for owner"})
		}
		log.Errorf("[Admin] Loading subscription for %s/%s failed: %v", scope, ownerUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(fiber.Map{
		"subscription": sub,
		"organization": org,
	})
}

// HandleReconcileOwner recomputes and re-applies an owner's effective tier.
func (ac *AdminController) HandleReconcileOwner(c *fiber.Ctx) error {
	scope, ownerUUID, err := ownerParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	tier, err := ac.billing.ReconcileOwnerTier(c.UserContext(), scope, ownerUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Owner not found"})
		}
		log.Errorf("[Admin] Reconciling %s/%s failed: %v", scope, ownerUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Reconcile failed"})
	}

	log.Infof("[Admin] Reconciled %s/%s to tier %s", scope, ownerUUID, tier)
	return c.JSON(fiber.Map{
		"scope":          scope,
		"owner_uuid":     ownerUUID,
		"effective_tier": tier,
	})
}

// HandleListEvents returns recent webhook audit rows.
func (ac *AdminController) HandleListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	events, err := ac.repos.WebhookEvent.ListRecent(limit)
	if err != nil {
		log.Errorf("[Admin] Listing webhook events failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list events"})
	}

	return c.JSON(fiber.Map{"events": events, "limit": limit})
}

// HandleQueueStats reports mail queue depth and email row counts.
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	queue := mailqueue.GetManager().GetQueue()
	ctx := c.UserContext()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[Admin] Loading queue stats failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load queue stats"})
	}
	queueSize, _ := queue.GetQueueSize(ctx)
	processingSize, _ := queue.GetProcessingSize(ctx)

	emailCounts := fiber.Map{}
	for _, status := range []string{models.EmailStatusPending, models.EmailStatusSent, models.EmailStatusFailed} {
		count, err := ac.repos.EmailQueue.CountByStatus(status)
		if err != nil {
			log.Errorf("[Admin] Counting %s emails failed: %v", status, err)
			continue
		}
		emailCounts[status] = count
	}

	return c.JSON(fiber.Map{
		"merchant":   merchantLabel(ac.cfg),
		"jobs":       stats,
		"pending":    queueSize,
		"processing": processingSize,
		"emails":     emailCounts,
	})
}

func ownerParams(c *fiber.Ctx) (scope, ownerUUID string, err error) {
	scope = strings.ToLower(strings.TrimSpace(c.Params("scope")))
	ownerUUID = strings.TrimSpace(c.Params("uuid"))
	if scope != models.ScopeOrganization && scope != models.ScopeIndividual {
		return "", "", errors.New("scope must be organization or individual")
	}
	if ownerUUID == "" {
		return "", "", errors.New("missing owner uuid")
	}
	return scope, ownerUUID, nil
}
