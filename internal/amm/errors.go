package amm

import (
	"errors"
	"fmt"
)

// Domain faults. They leave the pool unchanged and the caller may resubmit.
var (
	ErrInsufficientOutputAmount    = errors.New("insufficient output amount")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInvalidRecipient            = errors.New("invalid recipient")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInvariantViolation          = errors.New("constant product invariant violated")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrReentrancy                  = errors.New("pool locked")
	ErrCallbackUnavailable         = errors.New("swap callback capability not configured")
	ErrSlippage                    = errors.New("output below minimum")
	ErrInvalidToken                = errors.New("token not in pair")
	ErrIdenticalTokens             = errors.New("identical token addresses")
	ErrZeroAddress                 = errors.New("zero address")
)

// PanicError reports a panic raised while an operation was running. The
// operation is rolled back like any other failure.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}

// ErrArithmetic is the root of every arithmetic fault.
var ErrArithmetic = errors.New("arithmetic fault")

// ArithmeticError reports an overflow, underflow or division by zero in
// checked pool arithmetic. It is fatal to the operation that raised it.
type ArithmeticError struct {
	Op string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s: %s", ErrArithmetic, e.Op)
}

func (e *ArithmeticError) Unwrap() error {
	return ErrArithmetic
}

// IsFatal reports whether err is an arithmetic fault. Callers must abort
// rather than retry or continue past it.
func IsFatal(err error) bool {
	return errors.Is(err, ErrArithmetic)
}
