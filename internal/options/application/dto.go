package application

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
)

// CreateCommand 创建期权合约
type CreateCommand struct {
	Creator           string
	UnderlyingAssetID string
	StrikeAssetID     string
	StrikePrice       uint64
	Expiration        time.Time
	Spot              uint64
	RiskFreeRate      uint64
	Volatility        uint64
	Amount            uint64
}

// ExerciseCommand 行权
type ExerciseCommand struct {
	Exerciser string
	Address   string
}

// QuoteCommand 只报价不创建
type QuoteCommand struct {
	Spot                uint64
	Strike              uint64
	TimeToExpirySeconds uint64
	RiskFreeRate        uint64
	Volatility          uint64
	Formula             string
}

// OptionView 对外展示的合约视图
type OptionView struct {
	Address           string     `json:"address"`
	Creator           string     `json:"creator"`
	Nonce             uint64     `json:"nonce"`
	UnderlyingAssetID string     `json:"underlying_asset_id"`
	StrikeAssetID     string     `json:"strike_asset_id"`
	StrikePrice       uint64     `json:"strike_price"`
	Expiration        time.Time  `json:"expiration"`
	OptionPrice       uint64     `json:"option_price"`
	Amount            uint64     `json:"amount"`
	FormulaVersion    string     `json:"formula_version"`
	IsExercised       bool       `json:"is_exercised"`
	Exerciser         string     `json:"exerciser,omitempty"`
	ExercisedAt       *time.Time `json:"exercised_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	Status            string     `json:"status"`
}

func toView(c *domain.OptionContract, now time.Time) (*OptionView, error) {
	v := &OptionView{}
	if err := copier.Copy(v, c); err != nil {
		return nil, err
	}
	v.FormulaVersion = c.FormulaVersion.String()
	v.Status = string(c.Status(now))
	return v, nil
}

func (c QuoteCommand) input() pricing.BlackScholesInput {
	return pricing.BlackScholesInput{
		Spot:                c.Spot,
		Strike:              c.Strike,
		TimeToExpirySeconds: c.TimeToExpirySeconds,
		RiskFreeRate:        c.RiskFreeRate,
		Volatility:          c.Volatility,
	}
}
