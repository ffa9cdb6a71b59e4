package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Sqrt2PiScaled sqrt(2π) * Scale
const Sqrt2PiScaled uint64 = 2_506_628

var sqrt2Pi = uint256.NewInt(Sqrt2PiScaled)

// Ln 一阶自然对数近似：ln(x) ≈ x - 1。
//
// 只在 x 接近 1.0 时准确：比值位于 [1, 1.1] 时绝对误差小于 0.005，
// 偏离越远误差越大。这是刻意的简化而不是完整级数；替换公式会改变已存储的权利金。
// 无符号表示下 x < 1.0 没有定义，返回 ErrArithmeticFault。
func Ln(x *uint256.Int) (*uint256.Int, error) {
	z, err := Sub(x, scale)
	if err != nil {
		return nil, fmt.Errorf("ln of ratio below 1.0: %w", err)
	}
	return z, nil
}

// Exp 三阶截断级数 e^x ≈ 1 + x + x²/2! + x³/3!。
//
// x ≤ 0.5 时相对误差小于 0.3%；更大的输入不做保护，调用方需自行限制幅度。
// 仅在结果超过 128 位时返回 ErrArithmeticFault。
func Exp(x *uint256.Int) (*uint256.Int, error) {
	x2, err := MulFixed(x, x)
	if err != nil {
		return nil, err
	}
	x3, err := MulFixed(x2, x)
	if err != nil {
		return nil, err
	}
	term3 := new(uint256.Int).Div(x2, uint256.NewInt(2))
	term4 := new(uint256.Int).Div(x3, uint256.NewInt(6))

	sum, err := Add(scale, x)
	if err != nil {
		return nil, err
	}
	if sum, err = Add(sum, term3); err != nil {
		return nil, err
	}
	return Add(sum, term4)
}

// Sqrt 定点空间的巴比伦法平方根，返回 ⌊√(x·Scale)⌋。
//
// 初值 y0 = (x+Scale)/2 由算术-几何平均不等式保证 y0 ≥ √(x·Scale)，
// 此后 y_{n+1} = (x·Scale/y_n + y_n)/2 严格递减直到 ⌊√(x·Scale)⌋，
// 下一项不再递减时终止。序列是有下界的正整数严格递减序列，循环必然结束。
func Sqrt(x *uint256.Int) (*uint256.Int, error) {
	if x.IsZero() {
		return new(uint256.Int), nil
	}
	n, overflow := new(uint256.Int).MulOverflow(x, scale)
	if overflow {
		return nil, fmt.Errorf("%w: sqrt operand overflow", ErrArithmeticFault)
	}
	y, overflow := new(uint256.Int).AddOverflow(x, scale)
	if overflow {
		return nil, fmt.Errorf("%w: sqrt seed overflow", ErrArithmeticFault)
	}
	y.Rsh(y, 1)

	next := new(uint256.Int)
	for {
		next.Div(n, y)
		next.Add(next, y)
		next.Rsh(next, 1)
		if !next.Lt(y) {
			return y, nil
		}
		y.Set(next)
	}
}

// NormalCDF 标准正态分布 CDF 的线性近似 N(d) ≈ 0.5 + d/√(2π)，结果截断到 [0, Scale]。
//
// 这不是误差函数展开：仅在 0 ≤ d ≤ 0.5 时绝对误差小于 0.01，d 越大误差越大。
// 输入无符号，因此下界 0 恒成立；过大的 d 直接饱和到 Scale 而不报错。
func NormalCDF(d *uint256.Int) *uint256.Int {
	nd, err := MulDiv(d, scale, sqrt2Pi)
	if err != nil {
		return One()
	}
	nd, err = Add(half, nd)
	if err != nil || nd.Gt(scale) {
		return One()
	}
	return nd
}
