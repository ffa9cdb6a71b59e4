// Package fixedpoint 提供确定性的无符号定点数运算。
//
// 所有数值均为按 Scale (10^6) 缩放的整数，结果限制在 128 位以内；
// 中间乘积使用 256 位宽度计算，因此 a*b/d 形式的运算不会在中间步骤溢出。
// 任何溢出、下溢或除零都以 ErrArithmeticFault 返回，绝不回绕或 panic。
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// Scale 定点缩放因子（6 位小数精度）
	Scale uint64 = 1_000_000
	// Decimals Scale 对应的小数位数
	Decimals = 6
	// MaxBits 结果的最大位宽
	MaxBits = 128
)

// ErrArithmeticFault 溢出、下溢或未定义运算（如除零）
var ErrArithmeticFault = errors.New("arithmetic fault")

var (
	scale = uint256.NewInt(Scale)
	half  = uint256.NewInt(Scale / 2)
)

// One 返回定点数 1.0
func One() *uint256.Int {
	return new(uint256.Int).Set(scale)
}

// FromRaw 把已缩放的整数（如 50000 表示 5%）包装为定点数
func FromRaw(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ScaleIn 把原始整数提升为定点数 (x * Scale)，uint64 输入不会溢出
func ScaleIn(x uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(x), scale)
}

// ScaleOut 把定点数截断为原始整数 (x / Scale)
func ScaleOut(x *uint256.Int) (uint64, error) {
	z := new(uint256.Int).Div(x, scale)
	if !z.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit 64 bits", ErrArithmeticFault, z.Dec())
	}
	return z.Uint64(), nil
}

// Add 受检加法
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow || !fits(z) {
		return nil, fmt.Errorf("%w: addition overflow", ErrArithmeticFault)
	}
	return z, nil
}

// Sub 受检减法，a < b 时报告下溢
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("%w: subtraction underflow (%s - %s)", ErrArithmeticFault, a.Dec(), b.Dec())
	}
	return z, nil
}

// Mul 受检乘法（原始整数相乘，不做缩放）
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow || !fits(z) {
		return nil, fmt.Errorf("%w: multiplication overflow", ErrArithmeticFault)
	}
	return z, nil
}

// MulDiv 计算 a*b/d，乘积在 256 位中保持精确，商截断
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticFault)
	}
	p, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: intermediate product overflow", ErrArithmeticFault)
	}
	z := p.Div(p, d)
	if !fits(z) {
		return nil, fmt.Errorf("%w: quotient exceeds %d bits", ErrArithmeticFault, MaxBits)
	}
	return z, nil
}

// MulFixed 定点乘法 a*b/Scale
func MulFixed(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDiv(a, b, scale)
}

// DivFixed 定点除法 a*Scale/b
func DivFixed(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDiv(a, scale, b)
}

func fits(z *uint256.Int) bool {
	return z.BitLen() <= MaxBits
}
