package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// sendWithFunds starts the two step funds relay: an ICS20 transfer to the remote
// kernel now, and the message itself once the transfer reply names its sequence.
func (c *Contract) sendWithFunds(ec executeContext, msg amp.AMPMsg, sequence int, chain string, info ChannelInfo) (*wasmvmtypes.Response, error) {
	if len(msg.Funds) != 1 {
		return nil, errorsmod.Wrap(ErrInvalidFunds, "Cannot send more than one denom over IBC")
	}
	if info.Ics20ChannelID == nil {
		return nil, invalidPacket("Channel not found for chain %s", chain)
	}
	channel := *info.Ics20ChannelID

	sender, err := c.refundAddress(ec, msg)
	if err != nil {
		return nil, err
	}

	record := Ics20PacketInfo{
		Sender:    sender,
		Recipient: amp.AndrAddr(msg.Recipient.RawPath()),
		Message:   msg.Message,
		Funds:     msg.Funds[0],
		Channel:   channel,
	}
	if err := c.state.PendingMsgAndFunds.Set(ec.ctx, record); err != nil {
		return nil, err
	}

	transfer := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{Transfer: &wasmvmtypes.TransferMsg{
		ChannelID: channel,
		ToAddress: info.KernelAddress,
		Amount:    msg.Funds[0],
		Timeout:   c.timeout(ec.env),
	}}}

	c.logger.Debug("transferring funds",
		logger.WithField("chain", chain),
		logger.WithField("channel", channel),
		logger.WithField("funds", msg.Funds[0]),
	)
	c.indicators.IncrementRoutedMessages(PathIBCTransfer)

	res := newResponse(
		attr(fmt.Sprintf("method:%d", sequence), "execute_transfer_funds"),
		attr(fmt.Sprintf("channel:%d", sequence), channel),
		attr(fmt.Sprintf("receiving_kernel_address:%d", sequence), info.KernelAddress),
		attr(fmt.Sprintf("chain:%d", sequence), chain),
	)
	res.Messages = append(res.Messages, subMsg(ReplyIBCTransfer, transfer, amp.ReplyAlways))
	return res, nil
}

// refundAddress picks who gets the funds back if the relay fails: the message's
// recovery address, else the packet origin, else the caller.
func (c *Contract) refundAddress(ec executeContext, msg amp.AMPMsg) (string, error) {
	if addr, ok := msg.RecoveryAddr(); ok {
		return c.resolveAddress(ec.ctx, addr)
	}
	if ec.pkt != nil && ec.pkt.Ctx.Origin != "" {
		if err := c.api.AddrValidate(ec.pkt.Ctx.Origin); err != nil {
			return "", err
		}
		return ec.pkt.Ctx.Origin, nil
	}
	return ec.info.Sender, nil
}

// relayTransferMessage sends the message paired with a completed transfer to the
// remote kernel. A record can only be relayed once.
func (c *Contract) relayTransferMessage(ctx context.Context, env wasmvmtypes.Env, key collections.Pair[string, uint64]) (*wasmvmtypes.Response, error) {
	record, err := c.state.ChannelToExecuteMsg.Get(ctx, key)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, invalidPacket("No packet info for channel %s sequence %d", key.K1(), key.K2())
	}
	if err != nil {
		return nil, err
	}
	if record.Pending {
		return nil, invalidPacket("Packet %s/%d is already being processed", key.K1(), key.K2())
	}
	record.Pending = true
	if err := c.state.ChannelToExecuteMsg.Set(ctx, key, record); err != nil {
		return nil, err
	}

	chain, err := c.state.ChannelToChain.Get(ctx, record.Channel)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, invalidPacket("Chain not found for channel %s", record.Channel)
	}
	if err != nil {
		return nil, err
	}
	info, err := c.state.ChainToChannel.Get(ctx, chain)
	if errors.Is(err, collections.ErrNotFound) || (err == nil && info.DirectChannelID == nil) {
		return nil, invalidPacket("Channel not found for chain %s", chain)
	}
	if err != nil {
		return nil, err
	}
	currChain, err := c.state.CurrChain.Get(ctx)
	if err != nil {
		return nil, err
	}

	denom, err := c.counterpartyDenom(ctx, record.Funds.Denom, record.Channel)
	if err != nil {
		return nil, err
	}
	username, err := c.usernameOf(ctx, record.Sender)
	if err != nil {
		username = nil
	}

	channel := *info.DirectChannelID
	hop := amp.CrossChainHop{
		ChannelID:      channel,
		FromChain:      currChain,
		ToChain:        chain,
		OriginAddress:  record.Sender,
		OriginUsername: username,
	}
	data := mustJSON(IbcExecuteMsg{SendMessageWithFunds: &SendMessageWithFunds{
		Recipient:              record.Recipient,
		Message:                record.Message,
		Funds:                  wasmvmtypes.Coin{Denom: denom, Amount: record.Funds.Amount},
		OriginalSender:         record.Sender,
		OriginalSenderUsername: username,
		PreviousHops:           []amp.CrossChainHop{hop},
	}})
	send := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{SendPacket: &wasmvmtypes.SendPacketMsg{
		ChannelID: channel,
		Data:      data,
		Timeout:   c.timeout(env),
	}}}

	c.logger.Info("relaying message after transfer",
		logger.WithField("channel", key.K1()),
		logger.WithField("sequence", key.K2()),
		logger.WithField("counterparty_denom", denom),
	)
	c.indicators.IncrementSettlements(SettlementRelayed)

	res := newResponse(
		attr("action", "transfer_funds_relayed"),
		attr("channel", key.K1()),
		attr("sequence", fmt.Sprint(key.K2())),
		attr("direct_channel", channel),
	)
	res.Messages = append(res.Messages, subMsg(0, send, amp.ReplyNever))
	return res, nil
}

// refundTransfer sends a failed transfer's funds back to its sender and drops the record.
func (c *Contract) refundTransfer(ctx context.Context, key collections.Pair[string, uint64]) (*wasmvmtypes.Response, error) {
	record, err := c.state.ChannelToExecuteMsg.Get(ctx, key)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, invalidPacket("No packet info for channel %s sequence %d", key.K1(), key.K2())
	}
	if err != nil {
		return nil, err
	}
	if err := c.state.ChannelToExecuteMsg.Remove(ctx, key); err != nil {
		return nil, err
	}
	res := c.refund(record.Sender, record.Funds, "transfer_ack_failed")
	res.Attributes = append(res.Attributes, attr("channel", key.K1()), attr("sequence", fmt.Sprint(key.K2())))
	return res, nil
}

func (c *Contract) refund(to string, funds wasmvmtypes.Coin, reason string) *wasmvmtypes.Response {
	send := wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{
		ToAddress: to,
		Amount:    wasmvmtypes.Coins{funds},
	}}}
	c.logger.Warn("refunding transfer", logger.WithField("to", to), logger.WithField("funds", funds), logger.WithField("reason", reason))
	c.indicators.IncrementRefunds(reason)
	c.indicators.IncrementSettlements(SettlementRefunded)

	res := newResponse(
		attr("action", "refund"),
		attr("recipient", to),
		attr("amount", funds.Amount+funds.Denom),
	)
	res.Messages = append(res.Messages, subMsg(0, send, amp.ReplyNever))
	return res
}

// counterpartyDenom is the denom funds sent from channel arrive as on the other side.
// Funds going back the way they came are unwound by one hop.
func (c *Contract) counterpartyDenom(ctx context.Context, denom, channel string) (string, error) {
	trace := transfertypes.DenomTrace{BaseDenom: denom}
	if strings.HasPrefix(denom, "ibc/") {
		info, err := c.denomTrace(ctx, denom)
		if err != nil {
			return "", err
		}
		trace = transfertypes.DenomTrace{Path: info.Path, BaseDenom: info.BaseDenom}
	}

	hop := transfertypes.PortID + "/" + channel
	if trace.Path == hop || strings.HasPrefix(trace.Path, hop+"/") {
		trace.Path = strings.TrimPrefix(strings.TrimPrefix(trace.Path, hop), "/")
		return trace.IBCDenom(), nil
	}

	ch, err := c.querier.Channel(ctx, transfertypes.PortID, channel)
	if err != nil {
		return "", errorsmod.Wrapf(ErrGeneric, "query channel %s: %v", channel, err)
	}
	path := transfertypes.PortID + "/" + ch.CounterpartyEndpoint.ChannelID
	if trace.Path != "" {
		path += "/" + trace.Path
	}
	trace.Path = path
	return trace.IBCDenom(), nil
}

func decodeTransferSequence(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, invalidPacket("transfer reply carries no data")
	}
	var resp transfertypes.MsgTransferResponse
	if err := resp.Unmarshal(data); err != nil {
		return 0, errorsmod.Wrapf(ErrGeneric, "decode transfer response: %v", err)
	}
	return resp.Sequence, nil
}
