package domain

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

// ErrInvalidRate 利率或波动率无法精确表示为定点数
var ErrInvalidRate = errors.New("invalid rate")

var maxRate = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ParseRate 把十进制字符串（如 "0.05"）精确转换为按 Scale 缩放的整数，
// 超出 6 位小数、负数或溢出都会被拒绝
func ParseRate(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	scaled := d.Shift(fixedpoint.Decimals)
	if scaled.IsNegative() || !scaled.IsInteger() || scaled.GreaterThan(maxRate) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	return scaled.BigInt().Uint64(), nil
}

// FormatRate ParseRate 的逆运算
func FormatRate(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -fixedpoint.Decimals).String()
}
