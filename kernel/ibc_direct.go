package kernel

import (
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

func (c *Contract) handleIBC(ec executeContext, msg amp.AMPMsg, id string, sequence int, currChain string) (*wasmvmtypes.Response, error) {
	chain := msg.Recipient.Chain()
	if chain == "" {
		return nil, invalidPacket("Chain not provided")
	}
	info, err := c.channelInfo(ec, chain)
	if err != nil {
		return nil, err
	}
	if ec.cw20 != "" {
		return nil, errorsmod.Wrap(ErrNotImplemented, "CW20 tokens cannot be sent over IBC")
	}

	if len(msg.Funds) == 0 {
		return c.sendDirect(ec, msg, id, sequence, currChain, chain, info)
	}
	return c.sendWithFunds(ec, msg, sequence, chain, info)
}

func (c *Contract) channelInfo(ec executeContext, chain string) (ChannelInfo, error) {
	info, err := c.state.ChainToChannel.Get(ec.ctx, chain)
	if errors.Is(err, collections.ErrNotFound) {
		return ChannelInfo{}, invalidPacket("Channel not found for chain %s", chain)
	}
	return info, err
}

// sendDirect relays a message without funds to the kernel on chain.
func (c *Contract) sendDirect(ec executeContext, msg amp.AMPMsg, id string, sequence int, currChain, chain string, info ChannelInfo) (*wasmvmtypes.Response, error) {
	if len(msg.Message) == 0 {
		return nil, invalidPacket("Cannot send an empty message without funds via IBC")
	}
	if info.DirectChannelID == nil {
		return nil, invalidPacket("Channel not found for chain %s", chain)
	}
	recipient := amp.AndrAddr(msg.Recipient.RawPath())
	if recipient == "" {
		return nil, invalidPacket("No recipient supplied for chain %s", chain)
	}
	channel := *info.DirectChannelID

	origin := ec.info.Sender
	if ec.pkt != nil {
		origin = ec.pkt.Ctx.Origin
	}
	// a missing username only means the hop goes unlabelled
	username, err := c.usernameOf(ec.ctx, origin)
	if err != nil {
		username = nil
	}

	pkt := amp.FromCtx(ec.pkt, ec.self())
	pkt.Ctx.Origin = origin
	if username != nil {
		pkt.Ctx.OriginUsername = username
	}
	pkt = pkt.
		WithMessages(amp.NewAMPMsg(recipient, msg.Message, nil).WithConfig(msg.Config)).
		WithID(id).
		AddHop(amp.CrossChainHop{
			ChannelID:      channel,
			FromChain:      currChain,
			ToChain:        chain,
			OriginAddress:  origin,
			OriginUsername: username,
		})

	data := mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: pkt}})
	send := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{SendPacket: &wasmvmtypes.SendPacketMsg{
		ChannelID: channel,
		Data:      data,
		Timeout:   c.timeout(ec.env),
	}}}

	c.logger.Debug("relaying message",
		logger.WithField("chain", chain),
		logger.WithField("channel", channel),
		logger.WithField("packet_id", id),
	)
	c.indicators.IncrementRoutedMessages(PathIBCDirect)

	res := newResponse(
		attr(fmt.Sprintf("method:%d", sequence), "execute_send_message"),
		attr(fmt.Sprintf("channel:%d", sequence), channel),
		attr(fmt.Sprintf("receiving_kernel_address:%d", sequence), info.KernelAddress),
		attr(fmt.Sprintf("chain:%d", sequence), chain),
	)
	res.Messages = append(res.Messages, subMsg(0, send, amp.ReplyNever))
	return res, nil
}
