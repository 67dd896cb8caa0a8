package payfast

import (
	"strings"

	"github.com/edudashpro/billing-service/internal/pkg/env"
)

// Provider is the provider key written to audit rows.
const Provider = "payfast"

type Mode string

const (
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
)

const (
	sandboxHost    = "sandbox.payfast.co.za"
	productionHost = "www.payfast.co.za"
)

// Config carries the merchant credentials and enforcement mode for ITN
// processing. Sandbox mode downgrades integrity failures to warnings; the
// merchant id check is enforced in both modes.
type Config struct {
	Mode         Mode
	MerchantID   string
	MerchantKey  string
	Passphrase   string
	ValidateHost string
}

// LoadConfig reads the PayFast settings from the environment.
func LoadConfig() Config {
	mode := ModeSandbox
	if strings.EqualFold(strings.TrimSpace(env.GetEnv("PAYFAST_MODE", "sandbox")), string(ModeProduction)) {
		mode = ModeProduction
	}

	host := strings.TrimSpace(env.GetEnv("PAYFAST_VALIDATE_HOST", ""))
	if host == "" {
		host = sandboxHost
		if mode == ModeProduction {
			host = productionHost
		}
	}

	return Config{
		Mode:         mode,
		MerchantID:   strings.TrimSpace(env.GetEnv("PAYFAST_MERCHANT_ID", "")),
		MerchantKey:  strings.TrimSpace(env.GetEnv("PAYFAST_MERCHANT_KEY", "")),
		Passphrase:   strings.TrimSpace(env.GetEnv("PAYFAST_PASSPHRASE", "")),
		ValidateHost: host,
	}
}

// Production reports whether strict enforcement applies.
func (c Config) Production() bool {
	return c.Mode == ModeProduction
}
