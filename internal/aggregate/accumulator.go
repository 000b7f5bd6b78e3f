package aggregate

import (
	"math/big"

	"github.com/holiman/uint256"

	"pairEngine/internal/amm"
)

// swapFeePPM is the 0.3% trading fee in parts per million.
const swapFeePPM = 3000

// Accumulator folds committed pool events into running totals.
type Accumulator struct {
	PoolAddress string
	SwapCount   uint64
	MintCount   uint64
	BurnCount   uint64
	VolumeA     *big.Int
	VolumeB     *big.Int
	FeeA        *big.Int
	FeeB        *big.Int
	AddedA      *big.Int
	AddedB      *big.Int
	RemovedA    *big.Int
	RemovedB    *big.Int
	ReserveA    *big.Int
	ReserveB    *big.Int
	FirstTS     uint64
	LastTS      uint64

	seen bool
}

func NewAccumulator(poolAddress string) *Accumulator {
	return &Accumulator{
		PoolAddress: poolAddress,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		FeeA:        big.NewInt(0),
		FeeB:        big.NewInt(0),
		AddedA:      big.NewInt(0),
		AddedB:      big.NewInt(0),
		RemovedA:    big.NewInt(0),
		RemovedB:    big.NewInt(0),
		ReserveA:    big.NewInt(0),
		ReserveB:    big.NewInt(0),
	}
}

// AddEvents applies the events of one committed operation.
func (a *Accumulator) AddEvents(events []amm.Event) {
	for _, ev := range events {
		a.AddEvent(ev)
	}
}

func (a *Accumulator) AddEvent(ev amm.Event) {
	if !a.seen || ev.Timestamp < a.FirstTS {
		a.FirstTS = ev.Timestamp
		a.seen = true
	}
	if ev.Timestamp > a.LastTS {
		a.LastTS = ev.Timestamp
	}

	switch ev.Kind {
	case amm.EventSwap:
		a.applySwap(ev)
	case amm.EventMint:
		a.MintCount++
		addInto(a.AddedA, ev.AmountA)
		addInto(a.AddedB, ev.AmountB)
	case amm.EventBurn:
		a.BurnCount++
		addInto(a.RemovedA, ev.AmountA)
		addInto(a.RemovedB, ev.AmountB)
	case amm.EventSync:
		a.ReserveA = toBig(ev.ReserveA)
		a.ReserveB = toBig(ev.ReserveB)
	}
}

func (a *Accumulator) applySwap(ev amm.Event) {
	inA, inB := toBig(ev.AmountInA), toBig(ev.AmountInB)
	a.VolumeA.Add(a.VolumeA, inA)
	a.VolumeB.Add(a.VolumeB, inB)
	a.FeeA.Add(a.FeeA, feeFromAmount(inA, swapFeePPM))
	a.FeeB.Add(a.FeeB, feeFromAmount(inB, swapFeePPM))
	a.SwapCount++
}

// Summary is the rendered form of an Accumulator.
type Summary struct {
	Pool          string  `json:"pool"`
	Swaps         uint64  `json:"swaps"`
	Mints         uint64  `json:"mints"`
	Burns         uint64  `json:"burns"`
	VolumeA       string  `json:"volume_a"`
	VolumeB       string  `json:"volume_b"`
	FeeA          string  `json:"fee_a"`
	FeeB          string  `json:"fee_b"`
	AddedA        string  `json:"added_a"`
	AddedB        string  `json:"added_b"`
	RemovedA      string  `json:"removed_a"`
	RemovedB      string  `json:"removed_b"`
	ReserveA      string  `json:"reserve_a"`
	ReserveB      string  `json:"reserve_b"`
	FeeRateA      *string `json:"fee_rate_a,omitempty"`
	FeeRateB      *string `json:"fee_rate_b,omitempty"`
	APRA          *string `json:"apr_a,omitempty"`
	APRB          *string `json:"apr_b,omitempty"`
	WindowSeconds uint64  `json:"window_seconds"`
}

// Summary renders the totals with the given token decimals. Fee rates are
// fees over the final reserves; APRs annualize them over the event window.
func (a *Accumulator) Summary(decimalsA, decimalsB uint8) Summary {
	window := a.LastTS - a.FirstTS
	feeRateA, feeRateB := computeFeeRates(a.FeeA, a.FeeB, a.ReserveA, a.ReserveB)
	return Summary{
		Pool:          a.PoolAddress,
		Swaps:         a.SwapCount,
		Mints:         a.MintCount,
		Burns:         a.BurnCount,
		VolumeA:       formatTokenAmount(a.VolumeA, decimalsA),
		VolumeB:       formatTokenAmount(a.VolumeB, decimalsB),
		FeeA:          formatTokenAmount(a.FeeA, decimalsA),
		FeeB:          formatTokenAmount(a.FeeB, decimalsB),
		AddedA:        formatTokenAmount(a.AddedA, decimalsA),
		AddedB:        formatTokenAmount(a.AddedB, decimalsB),
		RemovedA:      formatTokenAmount(a.RemovedA, decimalsA),
		RemovedB:      formatTokenAmount(a.RemovedB, decimalsB),
		ReserveA:      formatTokenAmount(a.ReserveA, decimalsA),
		ReserveB:      formatTokenAmount(a.ReserveB, decimalsB),
		FeeRateA:      feeRateA,
		FeeRateB:      feeRateB,
		APRA:          computeAPR(feeRateA, window),
		APRB:          computeAPR(feeRateB, window),
		WindowSeconds: window,
	}
}

func addInto(target *big.Int, value *uint256.Int) {
	if value == nil {
		return
	}
	target.Add(target, value.ToBig())
}

func toBig(value *uint256.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return value.ToBig()
}

func feeFromAmount(amountIn *big.Int, feePPM uint32) *big.Int {
	if amountIn == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Abs(amountIn)
	fee.Mul(fee, big.NewInt(int64(feePPM)))
	fee.Div(fee, big.NewInt(1_000_000))
	return fee
}
