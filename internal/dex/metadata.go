package dex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"pairEngine/internal/model"
)

// Liquidity share token metadata.
const (
	ShareName     = "Pair Liquidity"
	ShareSymbol   = "PAIR-LP"
	ShareDecimals = 18
)

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// NewPoolMeta describes a pool and its liquidity share token.
func NewPoolMeta(pool, factory, tokenA, tokenB common.Address) model.PoolMeta {
	meta := model.PoolMeta{
		TokenA: tokenA.Hex(),
		TokenB: tokenB.Hex(),
		Share: model.TokenMeta{
			Address:  pool.Hex(),
			Decimals: ShareDecimals,
			Symbol:   ShareSymbol,
			Name:     ShareName,
		},
	}
	if factory != (common.Address{}) {
		meta.Factory = factory.Hex()
	}
	return meta
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
