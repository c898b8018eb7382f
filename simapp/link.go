package simapp

import (
	"github.com/andromedaprotocol/andromeda-kernel/kernel"
)

// LinkConfig names the channel pairs joining two chains.
type LinkConfig struct {
	DirectA, DirectB string
	Ics20A, Ics20B   string
}

func DefaultLink() LinkConfig {
	return LinkConfig{DirectA: "channel-0", DirectB: "channel-0", Ics20A: "channel-1", Ics20B: "channel-1"}
}

// Link connects a and b with a kernel channel and a transfer channel and
// registers each chain with the other's kernel.
func Link(a, b *App, cfg LinkConfig) error {
	if err := Connect(a, b, KernelPort, cfg.DirectA, cfg.DirectB, kernel.IBCVersion); err != nil {
		return err
	}
	if err := Connect(a, b, TransferPort, cfg.Ics20A, cfg.Ics20B, kernel.ICS20Version); err != nil {
		return err
	}
	if _, err := a.ExecuteKernel(a.Owner, kernel.ExecuteMsg{AssignChannels: &kernel.AssignChannels{
		Ics20ChannelID:  &cfg.Ics20A,
		DirectChannelID: &cfg.DirectA,
		Chain:           b.ChainID,
		KernelAddress:   KernelAddress,
	}}, nil); err != nil {
		return err
	}
	_, err := b.ExecuteKernel(b.Owner, kernel.ExecuteMsg{AssignChannels: &kernel.AssignChannels{
		Ics20ChannelID:  &cfg.Ics20B,
		DirectChannelID: &cfg.DirectB,
		Chain:           a.ChainID,
		KernelAddress:   KernelAddress,
	}}, nil)
	return err
}
