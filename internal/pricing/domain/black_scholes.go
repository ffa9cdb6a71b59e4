package domain

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

// SecondsPerYear 年化时间使用的近似秒数（365 天，非日历精确）
const SecondsPerYear uint64 = 31_536_000

// BlackScholesInput Black-Scholes 模型输入
type BlackScholesInput struct {
	Spot                uint64 `json:"spot"`                   // 标的价格（原始单位）
	Strike              uint64 `json:"strike"`                 // 行权价格（原始单位）
	TimeToExpirySeconds uint64 `json:"time_to_expiry_seconds"` // 距到期秒数
	RiskFreeRate        uint64 `json:"risk_free_rate"`         // 无风险利率，已按 Scale 缩放
	Volatility          uint64 `json:"volatility"`             // 波动率，已按 Scale 缩放
}

// Evaluation 一次定价的全部中间量（定点表示）
type Evaluation struct {
	Formula    FormulaVersion
	D1         *uint256.Int
	D2         *uint256.Int
	ND1        *uint256.Int
	ND2        *uint256.Int
	Discount   *uint256.Int
	SigmaSqrtT *uint256.Int
	Premium    uint64
}

// Fixed 把定点中间量转换为十进制表示，便于展示
func Fixed(v *uint256.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -fixedpoint.Decimals)
}

// PriceOption 计算看涨期权权利金（原始单位，截断）
func PriceOption(in BlackScholesInput, formula FormulaVersion) (uint64, error) {
	ev, err := Evaluate(in, formula)
	if err != nil {
		return 0, err
	}
	return ev.Premium, nil
}

// Evaluate 按固定顺序执行定点 Black-Scholes 近似：
//
//	d1 = [ln(S/K) + (r + σ²/2)·t] / (σ·√t)
//	d2 = d1 - σ·√t
//	C  = max(0, S·N(d1) - K·e^{-rt}·N(d2))
//
// 每一步的截断顺序都是结果的一部分，改变顺序会改变已存储的权利金。
// σ·√t 为 0（零波动率或零期限）时权利金定义为 0。
func Evaluate(in BlackScholesInput, formula FormulaVersion) (*Evaluation, error) {
	if !formula.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, formula)
	}

	s := fixedpoint.ScaleIn(in.Spot)
	k := fixedpoint.ScaleIn(in.Strike)
	r := fixedpoint.FromRaw(in.RiskFreeRate)
	sigma := fixedpoint.FromRaw(in.Volatility)
	t, err := fixedpoint.MulDiv(fixedpoint.FromRaw(in.TimeToExpirySeconds), fixedpoint.One(), uint256.NewInt(SecondsPerYear))
	if err != nil {
		return nil, err
	}

	sqrtT, err := formula.sqrt(t)
	if err != nil {
		return nil, err
	}
	sigmaSqrtT, err := fixedpoint.MulFixed(sigma, sqrtT)
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{Formula: formula, SigmaSqrtT: sigmaSqrtT}
	if sigmaSqrtT.IsZero() {
		return ev, nil
	}

	ratio, err := fixedpoint.DivFixed(s, k)
	if err != nil {
		return nil, fmt.Errorf("spot/strike: %w", err)
	}
	lnRatio, err := fixedpoint.Ln(ratio)
	if err != nil {
		return nil, err
	}

	sigmaSq, err := fixedpoint.MulFixed(sigma, sigma)
	if err != nil {
		return nil, err
	}
	drift, err := fixedpoint.Add(r, new(uint256.Int).Rsh(sigmaSq, 1))
	if err != nil {
		return nil, err
	}
	driftT, err := fixedpoint.MulFixed(drift, t)
	if err != nil {
		return nil, err
	}
	numerator, err := fixedpoint.Add(lnRatio, driftT)
	if err != nil {
		return nil, err
	}

	if ev.D1, err = fixedpoint.DivFixed(numerator, sigmaSqrtT); err != nil {
		return nil, err
	}
	if ev.D2, err = fixedpoint.Sub(ev.D1, sigmaSqrtT); err != nil {
		return nil, fmt.Errorf("d2: %w", err)
	}
	ev.ND1 = fixedpoint.NormalCDF(ev.D1)
	ev.ND2 = fixedpoint.NormalCDF(ev.D2)

	sND1, err := fixedpoint.MulFixed(s, ev.ND1)
	if err != nil {
		return nil, err
	}
	rt, err := fixedpoint.MulFixed(r, t)
	if err != nil {
		return nil, err
	}
	if ev.Discount, err = formula.discount(rt); err != nil {
		return nil, err
	}
	kDiscounted, err := fixedpoint.MulFixed(k, ev.Discount)
	if err != nil {
		return nil, err
	}
	kDiscountedND2, err := fixedpoint.MulFixed(kDiscounted, ev.ND2)
	if err != nil {
		return nil, err
	}

	call := new(uint256.Int)
	if !sND1.Lt(kDiscountedND2) {
		call.Sub(sND1, kDiscountedND2)
	}
	if ev.Premium, err = fixedpoint.ScaleOut(call); err != nil {
		return nil, err
	}
	return ev, nil
}
