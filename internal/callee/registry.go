package callee

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"pairEngine/internal/amm"
)

// ErrNotImplemented is returned for a recipient with no registered receiver.
var ErrNotImplemented = errors.New("flash-swap receiver not implemented")

// Func adapts a function to amm.Callee.
type Func func(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error

func (f Func) Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error {
	return f(ctx, recipient, sender, amountOutA, amountOutB, data)
}

// Registry routes flash-swap callbacks to the receiver registered for the
// recipient address.
type Registry struct {
	mu        sync.RWMutex
	receivers map[common.Address]amm.Callee
	fallback  amm.Callee
}

func NewRegistry() *Registry {
	return &Registry{receivers: make(map[common.Address]amm.Callee)}
}

// Register installs the receiver for recipient, replacing any previous one.
func (r *Registry) Register(recipient common.Address, receiver amm.Callee) {
	r.mu.Lock()
	r.receivers[recipient] = receiver
	r.mu.Unlock()
}

// SetFallback installs the receiver used for unregistered recipients.
func (r *Registry) SetFallback(receiver amm.Callee) {
	r.mu.Lock()
	r.fallback = receiver
	r.mu.Unlock()
}

func (r *Registry) lookup(recipient common.Address) (amm.Callee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if receiver, ok := r.receivers[recipient]; ok {
		return receiver, true
	}
	return r.fallback, r.fallback != nil
}

func (r *Registry) Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error {
	receiver, ok := r.lookup(recipient)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotImplemented, recipient.Hex())
	}
	return receiver.Notify(ctx, recipient, sender, amountOutA, amountOutB, data)
}
