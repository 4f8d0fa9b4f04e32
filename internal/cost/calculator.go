// Package cost estimates provider spend for a geocoding run. Purely
// informational; estimates never affect control flow.
package cost

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rates holds the tiered per-1000-request geocoding prices in USD.
type Rates struct {
	Geocoding GeocodingRate `yaml:"geocoding" mapstructure:"geocoding"`
}

// GeocodingRate prices requests in volume tiers: the first TierOneLimit
// requests at TierOnePer1000, everything beyond at TierTwoPer1000.
type GeocodingRate struct {
	TierOnePer1000 float64 `yaml:"tier_one_per_1000" mapstructure:"tier_one_per_1000"`
	TierTwoPer1000 float64 `yaml:"tier_two_per_1000" mapstructure:"tier_two_per_1000"`
	TierOneLimit   int     `yaml:"tier_one_limit" mapstructure:"tier_one_limit"`
}

// Calculator computes costs for provider usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Geocoding returns the estimated USD cost of issuing n geocoding requests.
func (c *Calculator) Geocoding(n int) float64 {
	if n <= 0 {
		return 0
	}

	r := c.rates.Geocoding
	tierOne := n
	if tierOne > r.TierOneLimit {
		tierOne = r.TierOneLimit
	}
	tierTwo := n - tierOne

	return (float64(tierOne)/1000)*r.TierOnePer1000 + (float64(tierTwo)/1000)*r.TierTwoPer1000
}

// FormatUSD renders an estimate as a currency string.
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// DefaultRates returns the published Google Geocoding API prices: $5 per
// 1000 requests up to 100k per month, $4 per 1000 beyond.
func DefaultRates() Rates {
	return Rates{
		Geocoding: GeocodingRate{
			TierOnePer1000: 5.00,
			TierTwoPer1000: 4.00,
			TierOneLimit:   100_000,
		},
	}
}

// LoadRates reads a rates file, falling back to defaults for a blank path.
func LoadRates(path string) (Rates, error) {
	if path == "" {
		return DefaultRates(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, eris.Wrap(err, "cost: read rates file")
	}

	rates := DefaultRates()
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return Rates{}, eris.Wrap(err, "cost: parse rates file")
	}

	return rates, nil
}
