// Package domain 定点期权定价的领域模型。
package domain

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

// ErrUnknownFormula 未知的定价公式版本
var ErrUnknownFormula = errors.New("unknown pricing formula")

// FormulaVersion 定价公式版本，随合约一起持久化
type FormulaVersion string

const (
	// FormulaDiscounted 折现因子 = Scale² / Exp(r·t)，即 e^{-rt} 的近似（默认）；
	// √t 使用收敛到 ⌊√(t·Scale)⌋ 的 fixedpoint.Sqrt。
	FormulaDiscounted FormulaVersion = "discounted-v2"
	// FormulaLegacy 逐位复现首个部署版本的权利金：折现因子为 Exp(Scale - r·t)，
	// √t 使用 legacySqrt（t ≤ 1 年时原样返回 t）。r·t > 1 时折现式下溢，返回 ErrArithmeticFault。
	FormulaLegacy FormulaVersion = "legacy-v1"
)

// DefaultFormula 新合约使用的公式。
// 从 legacy-v1 切换到 discounted-v2 是有意的破坏性变更，同时改变折现因子与 √t，
// 不满一年的合约权利金会与历史值不同。
const DefaultFormula = FormulaDiscounted

// ParseFormula 解析配置中的公式名，空串返回默认值
func ParseFormula(s string) (FormulaVersion, error) {
	if s == "" {
		return DefaultFormula, nil
	}
	f := FormulaVersion(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormula, s)
	}
	return f, nil
}

func (f FormulaVersion) Valid() bool {
	return f == FormulaDiscounted || f == FormulaLegacy
}

func (f FormulaVersion) String() string { return string(f) }

func (f FormulaVersion) discount(rt *uint256.Int) (*uint256.Int, error) {
	if f == FormulaLegacy {
		x, err := fixedpoint.Sub(fixedpoint.One(), rt)
		if err != nil {
			return nil, fmt.Errorf("legacy discount: %w", err)
		}
		return fixedpoint.Exp(x)
	}
	growth, err := fixedpoint.Exp(rt)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DivFixed(fixedpoint.One(), growth)
}

func (f FormulaVersion) sqrt(t *uint256.Int) (*uint256.Int, error) {
	if f == FormulaLegacy {
		return legacySqrt(t)
	}
	return fixedpoint.Sqrt(t)
}

// legacySqrt 首个部署版本的巴比伦迭代：以 x 本身作为比较起点，
// 初值 (x+Scale)/2 不小于 x 时直接返回 x，因此 x ≤ 1.0 时 √x = x。
// x > 1.0 时与 fixedpoint.Sqrt 收敛到同一个值。
func legacySqrt(x *uint256.Int) (*uint256.Int, error) {
	if !x.Gt(fixedpoint.One()) {
		return new(uint256.Int).Set(x), nil
	}
	return fixedpoint.Sqrt(x)
}
