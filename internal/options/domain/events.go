package domain

import "time"

const (
	EventOptionCreated   = "OptionCreated"
	EventOptionExercised = "OptionExercised"
)

// OptionCreatedEvent 合约创建且托管到账
type OptionCreatedEvent struct {
	Address           string    `json:"address"`
	Creator           string    `json:"creator"`
	UnderlyingAssetID string    `json:"underlying_asset_id"`
	StrikeAssetID     string    `json:"strike_asset_id"`
	StrikePrice       uint64    `json:"strike_price"`
	Amount            uint64    `json:"amount"`
	OptionPrice       uint64    `json:"option_price"`
	FormulaVersion    string    `json:"formula_version"`
	Expiration        int64     `json:"expiration"`
	OccurredOn        time.Time `json:"occurred_on"`
}

// OptionExercisedEvent 合约行权完成
type OptionExercisedEvent struct {
	Address           string    `json:"address"`
	Creator           string    `json:"creator"`
	Exerciser         string    `json:"exerciser"`
	UnderlyingAssetID string    `json:"underlying_asset_id"`
	StrikeAssetID     string    `json:"strike_asset_id"`
	StrikePrice       uint64    `json:"strike_price"`
	Amount            uint64    `json:"amount"`
	OccurredOn        time.Time `json:"occurred_on"`
}

// OutboxMessage 与业务写入同一原子单元落地的待发消息
type OutboxMessage struct {
	ID        string     `json:"id"`
	EventType string     `json:"event_type"`
	Key       string     `json:"key"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
