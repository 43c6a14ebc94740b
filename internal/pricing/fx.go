package pricing

import (
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing",
	fx.Provide(provideCalculator),
)

func provideCalculator(holder *config.PricingConfigHolder) *Calculator {
	return NewCalculator(func() Rates {
		cfg := holder.Current()
		tiers := make([]Tier, 0, len(cfg.DiscountTiers))
		for _, tier := range cfg.DiscountTiers {
			tiers = append(tiers, Tier{MinQuantity: tier.MinQuantity, Percentage: tier.Percentage})
		}
		return Rates{
			VATRate:        cfg.VATRate,
			CautionFeeRate: cfg.CautionFeeRate,
			Tiers:          tiers,
		}
	})
}
