package dex

import (
	"context"

	"go.uber.org/zap"

	"pairEngine/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*PairEvent, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context       context.Context
	PoolMetaCache *PoolMetaCache
	Logger        *zap.Logger
}
