package amm

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind names a pool event.
type EventKind string

const (
	EventMint EventKind = "Mint"
	EventBurn EventKind = "Burn"
	EventSwap EventKind = "Swap"
	EventSync EventKind = "Sync"
)

// Event is a pool event. Only the fields relevant to Kind are set:
//
//	Mint: Sender, AmountA, AmountB
//	Burn: Sender, To, AmountA, AmountB
//	Swap: Sender, To, AmountInA, AmountInB, AmountOutA, AmountOutB
//	Sync: ReserveA, ReserveB
type Event struct {
	Kind      EventKind
	Pool      common.Address
	Timestamp uint64

	Sender common.Address
	To     common.Address

	AmountA *uint256.Int
	AmountB *uint256.Int

	AmountInA  *uint256.Int
	AmountInB  *uint256.Int
	AmountOutA *uint256.Int
	AmountOutB *uint256.Int

	ReserveA *uint256.Int
	ReserveB *uint256.Int
}

// EventSink consumes the events of a committed operation, in order.
type EventSink interface {
	Emit(events []Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(events []Event) error

func (f SinkFunc) Emit(events []Event) error {
	return f(events)
}

type nopSink struct{}

func (nopSink) Emit([]Event) error { return nil }

// MultiSink fans events out to every sink and joins their errors.
func MultiSink(sinks ...EventSink) EventSink {
	return SinkFunc(func(events []Event) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Emit(events); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// EventBuffer collects emitted events until drained.
type EventBuffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *EventBuffer) Emit(events []Event) error {
	b.mu.Lock()
	b.events = append(b.events, events...)
	b.mu.Unlock()
	return nil
}

// Drain returns the buffered events and empties the buffer.
func (b *EventBuffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}
