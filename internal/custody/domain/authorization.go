package domain

import "fmt"

// Authorization 转出授权。接口方法未导出，只能使用本包定义的两种授权。
type Authorization interface {
	check(source *Account) error
	String() string
}

// PartyAuthorization 参与方签名授权，只能转出该参与方自己的账户
type PartyAuthorization struct {
	Party string
}

func (a PartyAuthorization) check(source *Account) error {
	if a.Party == "" || source.Kind != AccountParty || source.Owner != a.Party {
		return fmt.Errorf("%w: party %q cannot debit %s", ErrUnauthorized, a.Party, source.Ref())
	}
	return nil
}

func (a PartyAuthorization) String() string { return "party:" + a.Party }

// EscrowAuthorization 合约托管授权，只对登记给该合约的托管账户有效
type EscrowAuthorization struct {
	Contract string
}

func (a EscrowAuthorization) check(source *Account) error {
	if a.Contract == "" || source.Kind != AccountEscrow || source.Authority != a.Contract {
		return fmt.Errorf("%w: escrow authority %q cannot debit %s", ErrUnauthorized, a.Contract, source.Ref())
	}
	return nil
}

func (a EscrowAuthorization) String() string { return "escrow:" + a.Contract }

// Authorize 校验授权能否从 source 转出；source 为 nil 表示账户不存在
func Authorize(auth Authorization, ref AccountRef, source *Account) error {
	if source == nil {
		switch a := auth.(type) {
		case PartyAuthorization:
			if a.Party == ref.Owner {
				// 参与方账户尚未开立，等同余额为 0
				return fmt.Errorf("%w: account %s does not exist", ErrInsufficientFunds, ref)
			}
		case EscrowAuthorization:
			if a.Contract != "" && a.Contract == ref.Owner {
				return fmt.Errorf("%w: escrow %s", ErrAccountNotFound, ref)
			}
		}
		return fmt.Errorf("%w: %s cannot debit unknown account %s", ErrUnauthorized, auth, ref)
	}
	return auth.check(source)
}
