package kernel

// Routing paths reported to Indicators.
const (
	PathLocalBank    = "local_bank"
	PathLocalDirect  = "local_direct"
	PathLocalAMP     = "local_amp"
	PathCw20Transfer = "cw20_transfer"
	PathCw20Direct   = "cw20_direct"
	PathCw20AMP      = "cw20_amp"
	PathIBCDirect    = "ibc_direct"
	PathIBCTransfer  = "ibc_transfer"
)

// Settlement outcomes reported to Indicators.
const (
	SettlementRelayed  = "relayed"
	SettlementRefunded = "refunded"
	SettlementRecovery = "recovery"
)

type Indicators interface {
	IncrementRoutedMessages(path string)
	IncrementSettlements(outcome string)
	IncrementRefunds(reason string)
	IncrementRecoveries()
	IncrementReceivedPackets(kind string, success bool)
}

type NoopIndicators struct{}

var _ Indicators = NoopIndicators{}

func (NoopIndicators) IncrementRoutedMessages(string)        {}
func (NoopIndicators) IncrementSettlements(string)           {}
func (NoopIndicators) IncrementRefunds(string)               {}
func (NoopIndicators) IncrementRecoveries()                  {}
func (NoopIndicators) IncrementReceivedPackets(string, bool) {}
