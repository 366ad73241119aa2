package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type busMetrics struct {
	messages    *prometheus.CounterVec
	bounces     *prometheus.CounterVec
	forwardFees *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	queueDepth  prometheus.Gauge
}

// PoolMetrics tracks the pool ledger as last committed.
type PoolMetrics struct {
	totalBalance         prometheus.Gauge
	supply               prometheus.Gauge
	roundID              prometheus.Gauge
	requestedDeposit     prometheus.Gauge
	requestedWithdrawal  prometheus.Gauge
	activeBorrowers      *prometheus.GaugeVec
	roundBorrowed        *prometheus.GaugeVec
	halted               prometheus.Gauge
	governanceFeeSkimmed prometheus.Counter
	realizedLoss         prometheus.Counter
}

// PoolSnapshot is the subset of pool state exported as gauges.
type PoolSnapshot struct {
	TotalBalance        *big.Int
	Supply              *big.Int
	RoundID             uint32
	RequestedDeposit    *big.Int
	RequestedWithdrawal *big.Int
	CurrentBorrowers    uint32
	PreviousBorrowers   uint32
	CurrentBorrowed     *big.Int
	PreviousBorrowed    *big.Int
	Halted              bool
}

var (
	busMetricsOnce sync.Once
	busRegistry    *busMetrics

	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// Bus returns the lazily-initialised registry for message delivery metrics.
func Bus() *busMetrics {
	busMetricsOnce.Do(func() {
		busRegistry = &busMetrics{
			messages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "bus",
				Name:      "messages_total",
				Help:      "Delivered messages segmented by op and outcome.",
			}, []string{"op", "outcome"}),
			bounces: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "bus",
				Name:      "bounces_total",
				Help:      "Messages returned to their sender after a failed delivery.",
			}, []string{"op"}),
			forwardFees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "bus",
				Name:      "forward_fees_total",
				Help:      "Forward fees charged, in the smallest currency unit, by segment.",
			}, []string{"segment"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakepool",
				Subsystem: "bus",
				Name:      "delivery_duration_seconds",
				Help:      "Wall time spent handling one message.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "bus",
				Name:      "queue_depth",
				Help:      "Messages waiting for delivery.",
			}),
		}
		prometheus.MustRegister(
			busRegistry.messages,
			busRegistry.bounces,
			busRegistry.forwardFees,
			busRegistry.latency,
			busRegistry.queueDepth,
		)
	})
	return busRegistry
}

// ObserveDelivery records the outcome of one delivery.
func (m *busMetrics) ObserveDelivery(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op = labelOp(op)
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	m.messages.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *busMetrics) RecordBounce(op string) {
	if m == nil {
		return
	}
	m.bounces.WithLabelValues(labelOp(op)).Inc()
}

func (m *busMetrics) RecordForwardFee(segment string, fee *big.Int) {
	if m == nil {
		return
	}
	m.forwardFees.WithLabelValues(segment).Add(bigToFloat(fee))
}

func (m *busMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// Pool returns the registry for pool ledger gauges.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      name,
				Help:      help,
			})
		}
		poolRegistry = &PoolMetrics{
			totalBalance:        gauge("total_balance", "Accounted pool balance in the smallest currency unit."),
			supply:              gauge("share_supply", "Pool share supply as tracked by the pool."),
			roundID:             gauge("round_id", "Identifier of the current round."),
			requestedDeposit:    gauge("requested_for_deposit", "Deposits queued for the next rotation."),
			requestedWithdrawal: gauge("requested_for_withdrawal", "Shares queued for withdrawal at the next rotation."),
			halted:              gauge("halted", "Whether the pool is halted (1) or not (0)."),
			activeBorrowers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "active_borrowers",
				Help:      "Controllers with an outstanding loan, per round slot.",
			}, []string{"round"}),
			roundBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "round_borrowed",
				Help:      "Principal lent during the round, per round slot.",
			}, []string{"round"}),
			governanceFeeSkimmed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "governance_fee_total",
				Help:      "Governance fees skimmed from round profit.",
			}),
			realizedLoss: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "realized_loss_total",
				Help:      "Losses subtracted from the pool balance on repayment.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.totalBalance,
			poolRegistry.supply,
			poolRegistry.roundID,
			poolRegistry.requestedDeposit,
			poolRegistry.requestedWithdrawal,
			poolRegistry.halted,
			poolRegistry.activeBorrowers,
			poolRegistry.roundBorrowed,
			poolRegistry.governanceFeeSkimmed,
			poolRegistry.realizedLoss,
		)
	})
	return poolRegistry
}

// Record publishes a pool snapshot.
func (m *PoolMetrics) Record(s PoolSnapshot) {
	if m == nil {
		return
	}
	m.totalBalance.Set(bigToFloat(s.TotalBalance))
	m.supply.Set(bigToFloat(s.Supply))
	m.roundID.Set(float64(s.RoundID))
	m.requestedDeposit.Set(bigToFloat(s.RequestedDeposit))
	m.requestedWithdrawal.Set(bigToFloat(s.RequestedWithdrawal))
	m.activeBorrowers.WithLabelValues("current").Set(float64(s.CurrentBorrowers))
	m.activeBorrowers.WithLabelValues("previous").Set(float64(s.PreviousBorrowers))
	m.roundBorrowed.WithLabelValues("current").Set(bigToFloat(s.CurrentBorrowed))
	m.roundBorrowed.WithLabelValues("previous").Set(bigToFloat(s.PreviousBorrowed))
	if s.Halted {
		m.halted.Set(1)
	} else {
		m.halted.Set(0)
	}
}

func (m *PoolMetrics) AddGovernanceFee(fee *big.Int) {
	if m == nil {
		return
	}
	m.governanceFeeSkimmed.Add(bigToFloat(fee))
}

func (m *PoolMetrics) AddLoss(loss *big.Int) {
	if m == nil {
		return
	}
	m.realizedLoss.Add(bigToFloat(loss))
}

func labelOp(op string) string {
	trimmed := strings.TrimSpace(op)
	if trimmed == "" {
		return "transfer"
	}
	return trimmed
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() < 0 {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
