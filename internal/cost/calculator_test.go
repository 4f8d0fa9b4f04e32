package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() Rates {
	return Rates{
		Geocoding: GeocodingRate{
			TierOnePer1000: 5.00,
			TierTwoPer1000: 4.00,
			TierOneLimit:   100_000,
		},
	}
}

func TestGeocoding(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		requests int
		want     float64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"single request", 1, 0.005},
		{"one thousand", 1000, 5.00},
		{"within tier one", 50_000, 250.00},
		{"exactly tier one limit", 100_000, 500.00},
		{"spills into tier two", 150_000, 500.00 + 200.00},
		{"deep into tier two", 600_000, 500.00 + 2000.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Geocoding(tt.requests), 0.0001)
		})
	}
}

func TestFormatUSD(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$0.00", FormatUSD(0))
	assert.Equal(t, "$5.00", FormatUSD(5))
	assert.Equal(t, "$12.35", FormatUSD(12.345))
}

func TestLoadRates_Default(t *testing.T) {
	rates, err := LoadRates("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRates(), rates)
}

func TestLoadRates_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	yaml := `
geocoding:
  tier_one_per_1000: 7.5
  tier_two_per_1000: 6.0
  tier_one_limit: 50000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	rates, err := LoadRates(path)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, rates.Geocoding.TierOnePer1000, 0.0001)
	assert.InDelta(t, 6.0, rates.Geocoding.TierTwoPer1000, 0.0001)
	assert.Equal(t, 50_000, rates.Geocoding.TierOneLimit)
}

func TestLoadRates_MissingFile(t *testing.T) {
	_, err := LoadRates(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
