package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

const addressDomain = "option_contract"

var addressEncMode cbor.EncMode

func init() {
	var err error
	addressEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// DeriveAddress 合约地址 = hex(blake2b-256(CBOR["option_contract", creator, nonce]))。
// 地址同时是记录主键和托管账户的授权方。
func DeriveAddress(creator string, nonce uint64) (string, error) {
	if creator == "" {
		return "", fmt.Errorf("%w: creator is required", ErrInvalidRequest)
	}
	seed, err := addressEncMode.Marshal([]any{addressDomain, creator, nonce})
	if err != nil {
		return "", fmt.Errorf("encode address seed: %w", err)
	}
	sum := blake2b.Sum256(seed)
	return hex.EncodeToString(sum[:]), nil
}
