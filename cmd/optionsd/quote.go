package main

import (
	"github.com/spf13/cobra"
	pricingapp "github.com/wyfcoding/optionescrow/internal/pricing/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/logger"
)

var quoteFlags struct {
	spot       uint64
	strike     uint64
	seconds    uint64
	rate       string
	volatility string
	formula    string
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a call option offline and print the intermediate values",
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := pricing.ParseRate(quoteFlags.rate)
		if err != nil {
			return err
		}
		vol, err := pricing.ParseRate(quoteFlags.volatility)
		if err != nil {
			return err
		}
		formula, err := pricing.ParseFormula(quoteFlags.formula)
		if err != nil {
			return err
		}

		pricer := pricingapp.NewPricer(formula, nil, 0, logger.Discard())
		q, err := pricer.Quote(cmd.Context(), pricing.BlackScholesInput{
			Spot:                quoteFlags.spot,
			Strike:              quoteFlags.strike,
			TimeToExpirySeconds: quoteFlags.seconds,
			RiskFreeRate:        rate,
			Volatility:          vol,
		}, formula)
		if err != nil {
			return err
		}
		return printJSON(cmd, q)
	},
}

func init() {
	f := quoteCmd.Flags()
	f.Uint64Var(&quoteFlags.spot, "spot", 0, "spot price in raw units")
	f.Uint64Var(&quoteFlags.strike, "strike", 0, "strike price in raw units")
	f.Uint64Var(&quoteFlags.seconds, "seconds", pricing.SecondsPerYear, "time to expiry in seconds")
	f.StringVar(&quoteFlags.rate, "rate", "0.05", "annual risk-free rate as a decimal")
	f.StringVar(&quoteFlags.volatility, "volatility", "0.2", "annual volatility as a decimal")
	f.StringVar(&quoteFlags.formula, "formula", "", "pricing formula: discounted-v2 or legacy-v1")
	_ = quoteCmd.MarkFlagRequired("spot")
	_ = quoteCmd.MarkFlagRequired("strike")
}
