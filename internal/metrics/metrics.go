package metrics

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"pairEngine/internal/amm"
)

const namespace = "pair"

// Operation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeFatal    = "fatal"
)

// Metrics records pool activity. It is an amm.Observer and, through Sink, an
// amm.EventSink.
type Metrics struct {
	operations *prometheus.CounterVec
	faults     prometheus.Counter
	events     *prometheus.CounterVec
	reserves   *prometheus.GaugeVec
	supply     prometheus.Gauge

	totalSupply func() *uint256.Int
}

// New registers the pool metrics on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "number of pool operations by outcome",
		}, []string{"op", "outcome"}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arithmetic_faults_total",
			Help:      "number of operations aborted by an arithmetic fault",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "number of committed pool events",
		}, []string{"kind"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve",
			Help:      "recorded pool reserve",
		}, []string{"token"}),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_supply",
			Help:      "outstanding liquidity shares",
		}),
	}
	if err := errors.Join(
		reg.Register(m.operations),
		reg.Register(m.faults),
		reg.Register(m.events),
		reg.Register(m.reserves),
		reg.Register(m.supply),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// TrackSupply makes every committed operation refresh the total supply gauge
// from fn.
func (m *Metrics) TrackSupply(fn func() *uint256.Int) {
	m.totalSupply = fn
}

// ObserveOperation counts op by outcome.
func (m *Metrics) ObserveOperation(op string, err error) {
	outcome := Outcome(err)
	m.operations.WithLabelValues(op, outcome).Inc()
	switch {
	case outcome == OutcomeFatal:
		m.faults.Inc()
	case outcome == OutcomeOK && m.totalSupply != nil:
		m.supply.Set(toFloat(m.totalSupply()))
	}
}

// Sink returns an event sink that updates the event counters and reserve
// gauges.
func (m *Metrics) Sink() amm.EventSink {
	return amm.SinkFunc(func(events []amm.Event) error {
		for _, ev := range events {
			m.events.WithLabelValues(string(ev.Kind)).Inc()
			if ev.Kind == amm.EventSync {
				m.reserves.WithLabelValues("a").Set(toFloat(ev.ReserveA))
				m.reserves.WithLabelValues("b").Set(toFloat(ev.ReserveB))
			}
		}
		return nil
	})
}

// Outcome classifies an operation error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case amm.IsFatal(err):
		return OutcomeFatal
	case errors.Is(err, amm.ErrReentrancy):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
