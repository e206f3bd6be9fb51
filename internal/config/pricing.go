package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	FeaturePriceView           = "price_view"
	FeatureAIQuery             = "ai_query"
	FeatureImageIdentification = "image_identification"
)

// PricingConfig holds the tunables of the credit-metered pricing flow.
type PricingConfig struct {
	Currency             string               `mapstructure:"currency"`
	SignupGrant          int64                `mapstructure:"signupGrant"`
	FeatureCosts         map[string]int64     `mapstructure:"featureCosts"`
	DefaultRecoveryRates RecoveryRateDefaults `mapstructure:"defaultRecoveryRates"`
	PriceCacheTTLSeconds int                  `mapstructure:"priceCacheTTLSeconds"`
}

// RecoveryRateDefaults are used until an operator stores recovery rates.
type RecoveryRateDefaults struct {
	Pt float64 `mapstructure:"pt"`
	Pd float64 `mapstructure:"pd"`
	Rh float64 `mapstructure:"rh"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:    "USD",
		SignupGrant: 20,
		FeatureCosts: map[string]int64{
			FeaturePriceView:           1,
			FeatureAIQuery:             1,
			FeatureImageIdentification: 2,
		},
		DefaultRecoveryRates: RecoveryRateDefaults{Pt: 95, Pd: 95, Rh: 85},
		PriceCacheTTLSeconds: 60,
	}
}

// FeatureCost returns the credit cost of a metered feature.
func (c PricingConfig) FeatureCost(feature string) (int64, bool) {
	cost, ok := c.FeatureCosts[strings.ToLower(strings.TrimSpace(feature))]
	return cost, ok
}

type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/catalyser/config")
	v.AddConfigPath("/etc/catalyser")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CATALYSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.currency", defaults.Currency)
	v.SetDefault("pricing.signupGrant", defaults.SignupGrant)
	v.SetDefault("pricing.featureCosts", defaults.FeatureCosts)
	v.SetDefault("pricing.defaultRecoveryRates", map[string]float64{
		"pt": defaults.DefaultRecoveryRates.Pt,
		"pd": defaults.DefaultRecoveryRates.Pd,
		"rh": defaults.DefaultRecoveryRates.Rh,
	})
	v.SetDefault("pricing.priceCacheTTLSeconds", defaults.PriceCacheTTLSeconds)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPricingConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingConfigHolder wraps a fixed config, mostly for tests.
func NewStaticPricingConfigHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if cfg.SignupGrant < 0 {
		return errors.New("pricing.signupGrant cannot be negative")
	}
	if len(cfg.FeatureCosts) == 0 {
		return errors.New("pricing.featureCosts cannot be empty")
	}
	for feature, cost := range cfg.FeatureCosts {
		if cost <= 0 {
			return fmt.Errorf("pricing.featureCosts.%s must be positive", feature)
		}
	}
	if _, ok := cfg.FeatureCost(FeaturePriceView); !ok {
		return fmt.Errorf("pricing.featureCosts.%s is required", FeaturePriceView)
	}
	rates := cfg.DefaultRecoveryRates
	for name, rate := range map[string]float64{"pt": rates.Pt, "pd": rates.Pd, "rh": rates.Rh} {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("pricing.defaultRecoveryRates.%s must be within 0..100", name)
		}
	}
	if cfg.PriceCacheTTLSeconds < 0 {
		return errors.New("pricing.priceCacheTTLSeconds cannot be negative")
	}
	return nil
}
