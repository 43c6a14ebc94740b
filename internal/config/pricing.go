package config

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DiscountTier maps a minimum quantity to a discount percentage.
type DiscountTier struct {
	MinQuantity int64 `mapstructure:"minQuantity"`
	Percentage  int64 `mapstructure:"percentage"`
}

// PricingConfig holds the rates used by the pricing calculator.
type PricingConfig struct {
	VATRate        float64        `mapstructure:"vatRate"`
	CautionFeeRate float64        `mapstructure:"cautionFeeRate"`
	DiscountTiers  []DiscountTier `mapstructure:"discountTiers"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		VATRate:        0.075,
		CautionFeeRate: 0.5,
		DiscountTiers: []DiscountTier{
			{MinQuantity: 10, Percentage: 10},
			{MinQuantity: 6, Percentage: 7},
			{MinQuantity: 3, Percentage: 5},
		},
	}
}

// PricingConfigHolder serves the current pricing config and hot-reloads it
// from an optional pricing.yml file.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder(log *zap.Logger) (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/atelier/config")
	v.AddConfigPath("/etc/atelier")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ATELIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PricingConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultPricingConfig())
		return holder, nil
	}

	cfg, err := unmarshalPricing(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		reloaded, err := unmarshalPricing(v)
		if err != nil {
			if log != nil {
				log.Warn("ignoring invalid pricing config reload", zap.Error(err))
			}
			return
		}
		holder.current.Store(reloaded)
		if log != nil {
			log.Info("pricing config reloaded")
		}
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active pricing config.
func (h *PricingConfigHolder) Current() PricingConfig {
	if v, ok := h.current.Load().(PricingConfig); ok {
		return v
	}
	return DefaultPricingConfig()
}

func unmarshalPricing(v *viper.Viper) (PricingConfig, error) {
	cfg := DefaultPricingConfig()
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return PricingConfig{}, err
	}
	if err := validatePricing(cfg); err != nil {
		return PricingConfig{}, err
	}
	// Tier lookup is first-match top-down over descending minimums.
	sort.Slice(cfg.DiscountTiers, func(i, j int) bool {
		return cfg.DiscountTiers[i].MinQuantity > cfg.DiscountTiers[j].MinQuantity
	})
	return cfg, nil
}

func validatePricing(cfg PricingConfig) error {
	if cfg.VATRate < 0 || cfg.VATRate >= 1 {
		return errors.New("vat rate must be in [0, 1)")
	}
	if cfg.CautionFeeRate < 0 || cfg.CautionFeeRate > 1 {
		return errors.New("caution fee rate must be in [0, 1]")
	}
	for _, tier := range cfg.DiscountTiers {
		if tier.MinQuantity < 1 {
			return errors.New("discount tier minimum quantity must be positive")
		}
		if tier.Percentage < 0 || tier.Percentage > 100 {
			return errors.New("discount tier percentage must be in [0, 100]")
		}
	}
	return nil
}
