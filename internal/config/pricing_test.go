package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePricingConfig(t *testing.T) {
	require.NoError(t, validatePricingConfig(DefaultPricingConfig()))

	cases := map[string]func(*PricingConfig){
		"empty currency":     func(c *PricingConfig) { c.Currency = " " },
		"negative grant":     func(c *PricingConfig) { c.SignupGrant = -1 },
		"zero feature cost":  func(c *PricingConfig) { c.FeatureCosts = map[string]int64{FeaturePriceView: 0} },
		"missing price view": func(c *PricingConfig) { c.FeatureCosts = map[string]int64{FeatureAIQuery: 1} },
		"rate above 100":     func(c *PricingConfig) { c.DefaultRecoveryRates.Rh = 101 },
		"negative cache ttl": func(c *PricingConfig) { c.PriceCacheTTLSeconds = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultPricingConfig()
			mutate(&cfg)
			assert.Error(t, validatePricingConfig(cfg))
		})
	}
}

func TestFeatureCostNormalizesKey(t *testing.T) {
	cfg := DefaultPricingConfig()

	cost, ok := cfg.FeatureCost(" PRICE_VIEW ")
	require.True(t, ok)
	assert.Equal(t, int64(1), cost)

	_, ok = cfg.FeatureCost("unknown")
	assert.False(t, ok)
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := DefaultPricingConfig()
	cfg.SignupGrant = 42

	holder := NewStaticPricingConfigHolder(cfg)
	assert.Equal(t, int64(42), holder.Get().SignupGrant)
}
