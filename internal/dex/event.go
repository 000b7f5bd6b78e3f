package dex

import "pairEngine/internal/model"

// PairEvent is a decoded pair log. Exactly one of Mint, Burn, Swap or Sync
// is set, matching Kind.
type PairEvent struct {
	ChainID   uint64         `json:"chain_id"`
	Step      uint64         `json:"step"`
	TxHash    string         `json:"tx_hash"`
	LogIndex  uint64         `json:"log_index"`
	Pool      string         `json:"pool"`
	Kind      string         `json:"kind"`
	Topic0    string         `json:"topic0"`
	Timestamp uint64         `json:"timestamp"`
	EmittedAt string         `json:"emitted_at,omitempty"`
	PoolMeta  model.PoolMeta `json:"pool_meta"`

	Mint *model.MintEventData `json:"mint,omitempty"`
	Burn *model.BurnEventData `json:"burn,omitempty"`
	Swap *model.SwapEventData `json:"swap,omitempty"`
	Sync *model.SyncEventData `json:"sync,omitempty"`
}

func newPairEvent(log model.LogRecord, kind string, meta model.PoolMeta) *PairEvent {
	return &PairEvent{
		ChainID:   log.ChainID,
		Step:      log.BlockNumber,
		TxHash:    log.TxHash,
		LogIndex:  log.LogIndex,
		Pool:      log.Address,
		Kind:      kind,
		Topic0:    log.Topic0(),
		Timestamp: log.Timestamp,
		EmittedAt: log.EmittedAt,
		PoolMeta:  meta,
	}
}
