package amm

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PairInitCodeHash stands in for the pair bytecode hash in CREATE2 address
// derivation.
var PairInitCodeHash = crypto.Keccak256Hash([]byte("pairEngine/pair/v1"))

// SortTokens orders two token addresses ascending.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// PairAddress derives the deterministic pool address a factory would deploy
// the pair to. It does not depend on argument order.
func PairAddress(factory, tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, [32]byte(salt), PairInitCodeHash.Bytes())
}
