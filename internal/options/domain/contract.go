// Package domain 期权合约生命周期：创建（托管标的）、行权（两笔转移 + 标记）与派生的过期状态。
package domain

import (
	"time"

	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
)

// Status 合约状态；Expired 不落库，由当前时间与到期时间比较得出
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExercised Status = "EXERCISED"
	StatusExpired   Status = "EXPIRED"
)

// OptionContract 双边期权合约
type OptionContract struct {
	Address           string                 `json:"address"`
	Creator           string                 `json:"creator"`
	Nonce             uint64                 `json:"nonce"`
	UnderlyingAssetID string                 `json:"underlying_asset_id"`
	StrikeAssetID     string                 `json:"strike_asset_id"`
	StrikePrice       uint64                 `json:"strike_price"`
	Expiration        time.Time              `json:"expiration"`
	OptionPrice       uint64                 `json:"option_price"`
	Amount            uint64                 `json:"amount"`
	FormulaVersion    pricing.FormulaVersion `json:"formula_version"`
	IsExercised       bool                   `json:"is_exercised"`
	Exerciser         string                 `json:"exerciser,omitempty"`
	ExercisedAt       *time.Time             `json:"exercised_at,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// EscrowAuthority 托管账户的授权方即合约地址
func (c *OptionContract) EscrowAuthority() string { return c.Address }

// IsExpired 按整秒比较，严格晚于到期秒才算过期，到期那一秒内仍可行权
func (c *OptionContract) IsExpired(now time.Time) bool {
	return now.Unix() > c.Expiration.Unix()
}

// ExpiryCutoff 截断到整秒的当前时刻；到期时间早于它的合约已过期
func ExpiryCutoff(now time.Time) time.Time {
	return now.Truncate(time.Second)
}

// Status 派生状态
func (c *OptionContract) Status(now time.Time) Status {
	switch {
	case c.IsExercised:
		return StatusExercised
	case c.IsExpired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// CheckExercisable 先判断过期，再判断是否已行权
func (c *OptionContract) CheckExercisable(now time.Time) error {
	if c.IsExpired(now) {
		return ErrOptionExpired
	}
	if c.IsExercised {
		return ErrOptionAlreadyExercised
	}
	return nil
}

// MarkExercised 单调地把合约置为已行权
func (c *OptionContract) MarkExercised(exerciser string, at time.Time) error {
	if err := c.CheckExercisable(at); err != nil {
		return err
	}
	c.IsExercised = true
	c.Exerciser = exerciser
	c.ExercisedAt = &at
	return nil
}

// TimeToExpirySeconds 距到期的整秒数，已到期时为 0
func TimeToExpirySeconds(now, expiration time.Time) uint64 {
	d := expiration.Unix() - now.Unix()
	if d <= 0 {
		return 0
	}
	return uint64(d)
}

// ValidateExpiration 到期秒必须严格晚于创建时刻所在的秒
func ValidateExpiration(now, expiration time.Time) error {
	if expiration.Unix() <= now.Unix() {
		return ErrInvalidExpiration
	}
	return nil
}
