package domain

import (
	"fmt"
	"time"
)

// Quote 一次报价的结果，中间量以十进制字符串展示
type Quote struct {
	Input      BlackScholesInput `json:"input"`
	Formula    FormulaVersion    `json:"formula"`
	Premium    uint64            `json:"premium"`
	D1         string            `json:"d1,omitempty"`
	D2         string            `json:"d2,omitempty"`
	ND1        string            `json:"nd1,omitempty"`
	ND2        string            `json:"nd2,omitempty"`
	Discount   string            `json:"discount,omitempty"`
	SigmaSqrtT string            `json:"sigma_sqrt_t"`
	QuotedAt   time.Time         `json:"quoted_at"`
}

// NewQuote 从一次求值构造报价；σ·√t 为 0 时没有 d1/d2 等中间量
func NewQuote(in BlackScholesInput, ev *Evaluation, at time.Time) *Quote {
	q := &Quote{
		Input:      in,
		Formula:    ev.Formula,
		Premium:    ev.Premium,
		SigmaSqrtT: Fixed(ev.SigmaSqrtT).String(),
		QuotedAt:   at,
	}
	if ev.D1 != nil {
		q.D1, q.D2 = Fixed(ev.D1).String(), Fixed(ev.D2).String()
		q.ND1, q.ND2 = Fixed(ev.ND1).String(), Fixed(ev.ND2).String()
		q.Discount = Fixed(ev.Discount).String()
	}
	return q
}

// QuoteKey 报价缓存键，输入与公式版本完全决定结果
func QuoteKey(in BlackScholesInput, formula FormulaVersion) string {
	return fmt.Sprintf("%s:%d:%d:%d:%d:%d", formula, in.Spot, in.Strike, in.TimeToExpirySeconds, in.RiskFreeRate, in.Volatility)
}
