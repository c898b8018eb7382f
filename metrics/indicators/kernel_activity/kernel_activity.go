package kernelactivity

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andromedaprotocol/andromeda-kernel/kernel"
	"github.com/andromedaprotocol/andromeda-kernel/metrics/consts"
)

// PromIndicators records kernel routing and settlement activity, labelled by chain.
type PromIndicators struct {
	routedMessagesTotal  *prometheus.CounterVec
	settlementsTotal     *prometheus.CounterVec
	refundsTotal         *prometheus.CounterVec
	recoveriesTotal      prometheus.Counter
	receivedPacketsTotal *prometheus.CounterVec
}

var _ kernel.Indicators = (*PromIndicators)(nil)

func NewPromIndicators(chain string, reg prometheus.Registerer) *PromIndicators {
	labels := prometheus.Labels{"chain": chain}
	return &PromIndicators{
		routedMessagesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   consts.KernelPromNamespace,
				Subsystem:   consts.KernelSubsystem,
				Name:        "routed_messages_total",
				Help:        "number of AMP messages routed by <path>",
				ConstLabels: labels,
			},
			[]string{"path"},
		),
		settlementsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   consts.KernelPromNamespace,
				Subsystem:   consts.KernelSubsystem,
				Name:        "settlements_total",
				Help:        "number of funds relays settled by <outcome> (relayed, refunded, recovery)",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		refundsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   consts.KernelPromNamespace,
				Subsystem:   consts.KernelSubsystem,
				Name:        "refunds_total",
				Help:        "number of refunds issued by <reason>",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		recoveriesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace:   consts.KernelPromNamespace,
				Subsystem:   consts.KernelSubsystem,
				Name:        "recoveries_total",
				Help:        "number of recovery ledger payouts",
				ConstLabels: labels,
			},
		),
		receivedPacketsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   consts.KernelPromNamespace,
				Subsystem:   consts.KernelSubsystem,
				Name:        "received_packets_total",
				Help:        "number of inbound kernel packets by <kind> and <success>",
				ConstLabels: labels,
			},
			[]string{"kind", "success"},
		),
	}
}

func (p *PromIndicators) IncrementRoutedMessages(path string) {
	p.routedMessagesTotal.WithLabelValues(path).Inc()
}

func (p *PromIndicators) IncrementSettlements(outcome string) {
	p.settlementsTotal.WithLabelValues(outcome).Inc()
}

func (p *PromIndicators) IncrementRefunds(reason string) {
	p.refundsTotal.WithLabelValues(reason).Inc()
}

func (p *PromIndicators) IncrementRecoveries() {
	p.recoveriesTotal.Inc()
}

func (p *PromIndicators) IncrementReceivedPackets(kind string, success bool) {
	p.receivedPacketsTotal.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}
