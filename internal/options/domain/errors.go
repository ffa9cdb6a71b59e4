package domain

import (
	"errors"

	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/fixedpoint"
)

var (
	ErrInvalidExpiration      = errors.New("invalid expiration")
	ErrOptionAlreadyExercised = errors.New("option already exercised")
	ErrOptionExpired          = errors.New("option expired")
	ErrOptionNotFound         = errors.New("option not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrLockNotAcquired        = errors.New("contract is locked")

	ErrInsufficientFunds = custody.ErrInsufficientFunds
	ErrUnauthorized      = custody.ErrUnauthorized
	ErrInvalidAmount     = custody.ErrInvalidAmount
	ErrArithmeticFault   = fixedpoint.ErrArithmeticFault
)

// ErrorCode 稳定的错误码，HTTP 与 gRPC 传输层据此映射状态码
type ErrorCode string

const (
	CodeOK                     ErrorCode = "OK"
	CodeInvalidExpiration      ErrorCode = "INVALID_EXPIRATION"
	CodeOptionAlreadyExercised ErrorCode = "OPTION_ALREADY_EXERCISED"
	CodeOptionExpired          ErrorCode = "OPTION_EXPIRED"
	CodeInsufficientFunds      ErrorCode = "INSUFFICIENT_FUNDS"
	CodeArithmeticFault        ErrorCode = "ARITHMETIC_FAULT"
	CodeOptionNotFound         ErrorCode = "OPTION_NOT_FOUND"
	CodeInvalidAmount          ErrorCode = "INVALID_AMOUNT"
	CodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	CodeInvalidRequest         ErrorCode = "INVALID_REQUEST"
	CodeBusy                   ErrorCode = "BUSY"
	CodeInternal               ErrorCode = "INTERNAL"
)

var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidExpiration, CodeInvalidExpiration},
	{ErrOptionAlreadyExercised, CodeOptionAlreadyExercised},
	{ErrOptionExpired, CodeOptionExpired},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrArithmeticFault, CodeArithmeticFault},
	{ErrOptionNotFound, CodeOptionNotFound},
	{custody.ErrAccountNotFound, CodeInsufficientFunds},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrInvalidRequest, CodeInvalidRequest},
	{custody.ErrInvalidAccount, CodeInvalidRequest},
	{pricing.ErrUnknownFormula, CodeInvalidRequest},
	{pricing.ErrInvalidRate, CodeInvalidRequest},
	{ErrLockNotAcquired, CodeBusy},
}

// Code 返回 err 对应的错误码，nil 为 OK，未识别的错误为 INTERNAL
func Code(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return CodeInternal
}
