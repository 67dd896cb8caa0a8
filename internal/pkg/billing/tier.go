package billing

import (
	"strings"

	"github.com/edudashpro/billing-service/app/models"
	"github.com/edudashpro/billing-service/internal/pkg/env"
)

// TierNaming selects the tier-string format written to denormalized fields.
// Legacy consumers expect mixed case ("Premium"); aligned consumers expect
// lower case ("premium"). One knob instead of duplicated code paths.
type TierNaming string

const (
	TierNamingLegacy  TierNaming = "legacy"
	TierNamingAligned TierNaming = "aligned"
)

// TierNamingFromEnv reads the configured naming convention, defaulting to
// aligned.
func TierNamingFromEnv() TierNaming {
	if strings.EqualFold(strings.TrimSpace(env.GetEnv("TIER_NAMING", "aligned")), string(TierNamingLegacy)) {
		return TierNamingLegacy
	}
	return TierNamingAligned
}

// NormalizeTier maps any observed tier spelling onto the canonical lowercase
// tier set. "pro" survives as a historical alias for premium. Unknown values
// map to free.
func NormalizeTier(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.TierStarter:
		return models.TierStarter
	case models.TierPremium, "pro":
		return models.TierPremium
	case models.TierEnterprise:
		return models.TierEnterprise
	default:
		return models.TierFree
	}
}

// FormatTier renders a canonical tier in the configured naming convention.
func FormatTier(tier string, naming TierNaming) string {
	canonical := NormalizeTier(tier)
	if naming != TierNamingLegacy {
		return canonical
	}
	return strings.ToUpper(canonical[:1]) + canonical[1:]
}

// TierRank orders tiers for comparisons; higher is better.
func TierRank(tier string) int {
	switch NormalizeTier(tier) {
	case models.TierEnterprise:
		return 3
	case models.TierPremium:
		return 2
	case models.TierStarter:
		return 1
	default:
		return 0
	}
}

// FreeTier returns the lowest tier in the configured format.
func FreeTier(naming TierNaming) string {
	return FormatTier(models.TierFree, naming)
}
