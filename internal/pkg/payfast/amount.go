package payfast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// centsThreshold is the compatibility cutoff: raw amounts above it are
// assumed to be minor units (cents). Values at or below are taken as major
// units unchanged. TODO: replace with the provider's documented unit
// convention once confirmed; large legitimate major-unit payments would be
// misread by this heuristic.
const centsThreshold = 1000

// NormalizeAmount parses the amount_gross field into major units, applying
// the legacy cents heuristic: "15000" becomes 150.00, "150" stays 150.
func NormalizeAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("payfast: empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("payfast: unparseable amount %q: %w", raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("payfast: negative amount %q", raw)
	}
	if v > centsThreshold {
		v = v / 100
	}
	return math.Round(v*100) / 100, nil
}
