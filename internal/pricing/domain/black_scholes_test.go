package domain

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

var atTheMoneyOneYear = BlackScholesInput{
	Spot:                100_000000,
	Strike:              100_000000,
	TimeToExpirySeconds: SecondsPerYear,
	RiskFreeRate:        50_000,
	Volatility:          200_000,
}

func TestEvaluate_AtTheMoneyOneYear(t *testing.T) {
	ev, err := Evaluate(atTheMoneyOneYear, FormulaDiscounted)
	require.NoError(t, err)

	assert.Equal(t, uint64(350_000), ev.D1.Uint64())
	assert.Equal(t, uint64(150_000), ev.D2.Uint64())
	assert.Equal(t, uint64(639_629), ev.ND1.Uint64())
	assert.Equal(t, uint64(559_841), ev.ND2.Uint64())
	assert.Equal(t, uint64(951_230), ev.Discount.Uint64())
	assert.Equal(t, uint64(10_709_144), ev.Premium)
	assert.Equal(t, "0.35", Fixed(ev.D1).String())
}

func TestPriceOption_LegacyFormulaMatchesFirstDeployment(t *testing.T) {
	premium, err := PriceOption(atTheMoneyOneYear, FormulaLegacy)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), premium)

	in := atTheMoneyOneYear
	in.RiskFreeRate = 2_000_000
	_, err = PriceOption(in, FormulaLegacy)
	assert.ErrorIs(t, err, fixedpoint.ErrArithmeticFault)
}

// firstDeploymentPremium 按首个部署版本的 u128 运算顺序逐步计算权利金。
// 任一无符号减法下溢或除零时 ok 为 false。
func firstDeploymentPremium(in BlackScholesInput) (premium uint64, ok bool) {
	n := func(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
	scale := n(fixedpoint.Scale)
	mul := func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) }
	div := func(a, b *big.Int) *big.Int { return new(big.Int).Quo(a, b) }
	add := func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }
	sub := func(a, b *big.Int) (*big.Int, bool) {
		if a.Cmp(b) < 0 {
			return nil, false
		}
		return new(big.Int).Sub(a, b), true
	}
	sqrt := func(x *big.Int) *big.Int {
		if x.Sign() == 0 {
			return new(big.Int)
		}
		z := x
		y := div(add(x, scale), n(2))
		for y.Cmp(z) < 0 {
			z = y
			y = div(add(div(mul(x, scale), y), y), n(2))
		}
		return z
	}
	cdf := func(d *big.Int) *big.Int {
		nd := add(div(scale, n(2)), div(mul(d, scale), n(fixedpoint.Sqrt2PiScaled)))
		if nd.Cmp(scale) > 0 {
			return scale
		}
		return nd
	}
	exp := func(x *big.Int) *big.Int {
		x2 := div(mul(x, x), scale)
		x3 := div(mul(x2, x), scale)
		return add(add(add(scale, x), div(x2, n(2))), div(x3, n(6)))
	}

	s := mul(n(in.Spot), scale)
	k := mul(n(in.Strike), scale)
	tt := div(mul(n(in.TimeToExpirySeconds), scale), n(SecondsPerYear))
	r := n(in.RiskFreeRate)
	sigma := n(in.Volatility)
	if k.Sign() == 0 {
		return 0, false
	}
	lnRatio, ok := sub(div(mul(s, scale), k), scale)
	if !ok {
		return 0, false
	}
	drift := add(r, div(div(mul(sigma, sigma), scale), n(2)))
	numerator := add(lnRatio, div(mul(drift, tt), scale))
	sigmaSqrtT := div(mul(sigma, sqrt(tt)), scale)
	if sigmaSqrtT.Sign() == 0 {
		return 0, true
	}
	d1 := div(mul(numerator, scale), sigmaSqrtT)
	d2, ok := sub(d1, sigmaSqrtT)
	if !ok {
		return 0, false
	}
	sND1 := div(mul(s, cdf(d1)), scale)
	expArg, ok := sub(scale, div(mul(r, tt), scale))
	if !ok {
		return 0, false
	}
	kDiscountedND2 := div(mul(div(mul(k, exp(expArg)), scale), cdf(d2)), scale)
	call, ok := sub(sND1, kDiscountedND2)
	if !ok {
		return 0, true
	}
	return div(call, scale).Uint64(), true
}

func TestPriceOption_LegacyFormulaShortDated(t *testing.T) {
	cases := []struct {
		name string
		in   BlackScholesInput
		want uint64
	}{
		{"quarter year high volatility", BlackScholesInput{Spot: 180_000000, Strike: 100_000000, TimeToExpirySeconds: SecondsPerYear / 4, RiskFreeRate: 50_000, Volatility: 2_000_000}, 0},
		{"half year d1 above raw time", BlackScholesInput{Spot: 150_000000, Strike: 100_000000, TimeToExpirySeconds: SecondsPerYear / 2, RiskFreeRate: 10_000, Volatility: 1_500_000}, 0},
		{"two years", BlackScholesInput{Spot: 120_000000, Strike: 100_000000, TimeToExpirySeconds: 2 * SecondsPerYear, RiskFreeRate: 50_000, Volatility: 200_000}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want, ok := firstDeploymentPremium(c.in)
			require.True(t, ok)
			require.Equal(t, c.want, want)

			got, err := PriceOption(c.in, FormulaLegacy)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPriceOption_LegacyFormulaMatchesFirstDeploymentAcrossInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	matched, positive := 0, 0
	for i := 0; i < 5000; i++ {
		strike := uint64(rng.Int63n(1_000_000_000)) + 1
		in := BlackScholesInput{
			Spot:                strike + uint64(rng.Int63n(int64(strike)+1)),
			Strike:              strike,
			TimeToExpirySeconds: uint64(rng.Int63n(int64(2 * SecondsPerYear))),
			RiskFreeRate:        uint64(rng.Int63n(100_000)),
			Volatility:          uint64(rng.Int63n(2_500_000)),
		}
		want, ok := firstDeploymentPremium(in)
		if !ok {
			continue
		}
		got, err := PriceOption(in, FormulaLegacy)
		require.NoError(t, err, "%+v", in)
		require.Equal(t, want, got, "%+v", in)
		matched++
		if got > 0 {
			positive++
		}
	}
	assert.Greater(t, matched, 1000)
	assert.Greater(t, positive, 0)
}

func TestLegacySqrt(t *testing.T) {
	quarter := fixedpoint.FromRaw(250_000)
	got, err := legacySqrt(quarter)
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000), got.Uint64())

	got, err = legacySqrt(fixedpoint.FromRaw(4_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), got.Uint64())

	got, err = legacySqrt(fixedpoint.FromRaw(0))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPriceOption_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		in   BlackScholesInput
		want uint64
	}{
		{"deep in the money short dated", BlackScholesInput{Spot: 110, Strike: 100, TimeToExpirySeconds: 100, RiskFreeRate: 50_000, Volatility: 200_000}, 10},
		{"in the money quarter year", BlackScholesInput{Spot: 120_000000, Strike: 100_000000, TimeToExpirySeconds: SecondsPerYear / 4, RiskFreeRate: 50_000, Volatility: 200_000}, 21_242_200},
		{"zero volatility", BlackScholesInput{Spot: 100, Strike: 100, TimeToExpirySeconds: SecondsPerYear, RiskFreeRate: 50_000}, 0},
		{"zero time", BlackScholesInput{Spot: 90, Strike: 100, RiskFreeRate: 50_000, Volatility: 200_000}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := PriceOption(c.in, FormulaDiscounted)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestPriceOption_ArithmeticFaults(t *testing.T) {
	cases := []struct {
		name string
		in   BlackScholesInput
	}{
		{"d1 below sigma sqrt t", BlackScholesInput{Spot: 100, Strike: 100, TimeToExpirySeconds: 100, RiskFreeRate: 50_000, Volatility: 200_000}},
		{"spot below strike", BlackScholesInput{Spot: 90, Strike: 100, TimeToExpirySeconds: SecondsPerYear, RiskFreeRate: 50_000, Volatility: 200_000}},
		{"zero strike", BlackScholesInput{Spot: 90, TimeToExpirySeconds: SecondsPerYear, RiskFreeRate: 50_000, Volatility: 200_000}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := PriceOption(c.in, FormulaDiscounted)
			assert.ErrorIs(t, err, fixedpoint.ErrArithmeticFault)
		})
	}
}

func TestPriceOption_BoundedBySpot(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		in := BlackScholesInput{
			Spot:                uint64(rng.Int63n(1_000_000_000_000)),
			Strike:              uint64(rng.Int63n(1_000_000_000_000)) + 1,
			TimeToExpirySeconds: uint64(rng.Int63n(int64(5 * SecondsPerYear))),
			RiskFreeRate:        uint64(rng.Int63n(300_000)),
			Volatility:          uint64(rng.Int63n(2_000_000)),
		}
		for _, f := range []FormulaVersion{FormulaDiscounted, FormulaLegacy} {
			premium, err := PriceOption(in, f)
			if err != nil {
				assert.ErrorIs(t, err, fixedpoint.ErrArithmeticFault)
				continue
			}
			assert.LessOrEqual(t, premium, in.Spot, "%+v %s", in, f)
		}
	}
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFormula, f)

	f, err = ParseFormula("legacy-v1")
	require.NoError(t, err)
	assert.Equal(t, FormulaLegacy, f)

	_, err = ParseFormula("black-76")
	assert.ErrorIs(t, err, ErrUnknownFormula)

	_, err = Evaluate(atTheMoneyOneYear, "black-76")
	assert.ErrorIs(t, err, ErrUnknownFormula)
}
