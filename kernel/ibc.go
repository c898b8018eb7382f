package kernel

import (
	"context"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

const (
	IBCVersion   = "andr-kernel-1"
	ICS20Version = "ics20-1"
)

// Inbound packet kinds reported to Indicators.
const (
	PacketSendMessage          = "send_message"
	PacketSendMessageWithFunds = "send_message_with_funds"
	PacketCreateADO            = "create_ado"
	PacketRegisterUsername     = "register_username"
	PacketUnknown              = "unknown"
)

func (c *Contract) IBCChannelOpen(_ context.Context, _ wasmvmtypes.Env, msg wasmvmtypes.IBCChannelOpenMsg) (*wasmvmtypes.IBC3ChannelOpenResponse, error) {
	counterparty, ok := msg.GetCounterVersion()
	return validateOrderAndVersion(msg.GetChannel(), counterparty, ok)
}

func (c *Contract) IBCChannelConnect(_ context.Context, _ wasmvmtypes.Env, msg wasmvmtypes.IBCChannelConnectMsg) (*wasmvmtypes.IBCBasicResponse, error) {
	counterparty, ok := msg.GetCounterVersion()
	if _, err := validateOrderAndVersion(msg.GetChannel(), counterparty, ok); err != nil {
		return nil, err
	}
	channel := msg.GetChannel().Endpoint.ChannelID
	c.logger.Info("channel connected", logger.WithField("channel", channel))
	return &wasmvmtypes.IBCBasicResponse{
		Messages: []wasmvmtypes.SubMsg{},
		Attributes: []wasmvmtypes.EventAttribute{
			attr("method", "ibc_channel_connect"),
			attr("channel_id", channel),
		},
		Events: []wasmvmtypes.Event{},
	}, nil
}

func (c *Contract) IBCChannelClose(_ context.Context, _ wasmvmtypes.Env, msg wasmvmtypes.IBCChannelCloseMsg) (*wasmvmtypes.IBCBasicResponse, error) {
	channel := msg.GetChannel().Endpoint.ChannelID
	c.logger.Warn("channel closed", logger.WithField("channel", channel))
	return &wasmvmtypes.IBCBasicResponse{
		Messages: []wasmvmtypes.SubMsg{},
		Attributes: []wasmvmtypes.EventAttribute{
			attr("method", "ibc_channel_close"),
			attr("channel", channel),
		},
		Events: []wasmvmtypes.Event{},
	}, nil
}

func validateOrderAndVersion(channel wasmvmtypes.IBCChannel, counterparty string, hasCounterparty bool) (*wasmvmtypes.IBC3ChannelOpenResponse, error) {
	if channel.Order != wasmvmtypes.Unordered {
		return nil, ErrOrderedChannel
	}
	if channel.Version != IBCVersion && channel.Version != ICS20Version {
		return nil, errorsmod.Wrapf(ErrInvalidVersion, "expected %s, got %s", IBCVersion, channel.Version)
	}
	if hasCounterparty && counterparty != channel.Version {
		return nil, errorsmod.Wrapf(ErrInvalidVersion, "expected counterparty %s, got %s", channel.Version, counterparty)
	}
	return &wasmvmtypes.IBC3ChannelOpenResponse{Version: channel.Version}, nil
}

// IBCPacketReceive never fails: errors are written into the acknowledgement.
func (c *Contract) IBCPacketReceive(ctx context.Context, env wasmvmtypes.Env, msg wasmvmtypes.IBCPacketReceiveMsg) (*wasmvmtypes.IBCReceiveResponse, error) {
	kind, res, err := c.receivePacket(ctx, env, msg.Packet)
	c.indicators.IncrementReceivedPackets(kind, err == nil)
	if err != nil {
		c.logger.Error("packet receive failed",
			logger.WithField("channel", msg.Packet.Dest.ChannelID),
			logger.WithField("sequence", msg.Packet.Sequence),
			logger.WithField("error", err.Error()),
		)
		return &wasmvmtypes.IBCReceiveResponse{
			Acknowledgement: AckFail(err),
			Messages:        []wasmvmtypes.SubMsg{},
			Attributes: []wasmvmtypes.EventAttribute{
				attr("method", "ibc_packet_receive"),
				attr("error", err.Error()),
			},
			Events: []wasmvmtypes.Event{},
		}, nil
	}
	return &wasmvmtypes.IBCReceiveResponse{
		Acknowledgement: AckSuccess(),
		Messages:        res.Messages,
		Attributes:      append(res.Attributes, attr("method", "ibc_packet_receive"), attr("kind", kind)),
		Events:          res.Events,
	}, nil
}

func (c *Contract) receivePacket(ctx context.Context, env wasmvmtypes.Env, packet wasmvmtypes.IBCPacket) (string, *wasmvmtypes.Response, error) {
	chain, err := c.state.ChannelToChain.Get(ctx, packet.Dest.ChannelID)
	if errors.Is(err, collections.ErrNotFound) {
		return PacketUnknown, nil, errorsmod.Wrapf(ErrUnauthorized, "unknown channel %s", packet.Dest.ChannelID)
	}
	if err != nil {
		return PacketUnknown, nil, err
	}
	info, err := c.state.ChainToChannel.Get(ctx, chain)
	if errors.Is(err, collections.ErrNotFound) {
		return PacketUnknown, nil, errorsmod.Wrapf(ErrUnauthorized, "unknown chain %s", chain)
	}
	if err != nil {
		return PacketUnknown, nil, err
	}

	msg, err := UnmarshalIbcExecuteMsg(packet.Data)
	if err != nil {
		return PacketUnknown, nil, errorsmod.Wrap(ErrInvalidPacket, err.Error())
	}
	ec := executeContext{
		ctx:  ctx,
		env:  env,
		info: wasmvmtypes.MessageInfo{Sender: env.Contract.Address, Funds: wasmvmtypes.Coins{}},
	}

	switch {
	case msg.SendMessage != nil:
		res, err := c.receiveSendMessage(ec, *msg.SendMessage)
		return PacketSendMessage, res, err
	case msg.SendMessageWithFunds != nil:
		res, err := c.receiveSendMessageWithFunds(ec, *msg.SendMessageWithFunds, info)
		return PacketSendMessageWithFunds, res, err
	case msg.CreateADO != nil:
		res, err := c.receiveCreateADO(ec, *msg.CreateADO)
		return PacketCreateADO, res, err
	case msg.RegisterUsername != nil:
		res, err := c.receiveRegisterUsername(ec, *msg.RegisterUsername)
		return PacketRegisterUsername, res, err
	default:
		return PacketUnknown, nil, errorsmod.Wrap(ErrInvalidPacket, "unknown packet message")
	}
}

func (c *Contract) receiveSendMessage(ec executeContext, msg SendMessage) (*wasmvmtypes.Response, error) {
	pkt := msg.AMPPacket
	if len(pkt.Messages) == 0 {
		return nil, invalidPacket("No messages supplied")
	}
	pkt.Ctx.Origin = c.localOrigin(ec.ctx, pkt.Ctx.Origin, pkt.Ctx.OriginUsername)
	pkt.Ctx.PreviousSender = ec.self()

	id, err := c.packetID(ec.ctx, ec.env, pkt.Ctx.ID)
	if err != nil {
		return nil, err
	}
	pkt = pkt.WithID(id)
	ec.pkt = &pkt

	res, err := c.route(ec, pkt.Messages[0], id, 0)
	if err != nil {
		return nil, err
	}
	res.Attributes = append(res.Attributes, attr("packet_id", id))
	return res, nil
}

func (c *Contract) receiveSendMessageWithFunds(ec executeContext, msg SendMessageWithFunds, info ChannelInfo) (*wasmvmtypes.Response, error) {
	if info.Ics20ChannelID == nil {
		return nil, invalidPacket("Cannot refund, ICS20 channel not set")
	}

	origin := c.localOrigin(ec.ctx, msg.OriginalSender, msg.OriginalSenderUsername)
	pkt := amp.NewAMPPkt(origin, ec.self())
	pkt.Ctx.OriginUsername = msg.OriginalSenderUsername
	for _, hop := range msg.PreviousHops {
		pkt = pkt.AddHop(hop)
	}
	id, err := c.packetID(ec.ctx, ec.env, "")
	if err != nil {
		return nil, err
	}
	pkt = pkt.WithID(id)
	ec.pkt = &pkt
	ec.info.Funds = wasmvmtypes.Coins{msg.Funds}

	res, err := c.route(ec, amp.NewAMPMsg(msg.Recipient, msg.Message, wasmvmtypes.Coins{msg.Funds}), id, 0)
	if err != nil {
		return nil, err
	}
	if len(res.Messages) == 0 {
		return nil, invalidPacket("Message produced nothing to execute")
	}

	if err := c.state.RefundData.Set(ec.ctx, RefundData{
		OriginalSender: msg.OriginalSender,
		Funds:          msg.Funds,
		Channel:        *info.Ics20ChannelID,
	}); err != nil {
		return nil, err
	}

	first := res.Messages[0]
	first.ID = ReplyIBCTransferWithMsg
	amp.ReplyAlways.Apply(&first)
	res.Messages = []wasmvmtypes.SubMsg{first}
	res.Attributes = append(res.Attributes, attr("recipient", msg.Recipient.String()), attr("packet_id", id))
	return res, nil
}

func (c *Contract) receiveCreateADO(ec executeContext, msg CreateADO) (*wasmvmtypes.Response, error) {
	if !c.opts.CrossChainCreate {
		return nil, ErrCrossChainComponentsCurrentlyDisabled
	}
	owner := msg.Owner
	return c.createLocal(ec, msg.AdoType, msg.InstantiationMsg, &owner)
}

func (c *Contract) receiveRegisterUsername(ec executeContext, msg RegisterUsername) (*wasmvmtypes.Response, error) {
	vfs, err := c.keyAddress(ec.ctx, VFSKey)
	if err != nil {
		return nil, err
	}
	if err := c.api.AddrValidate(msg.Address); err != nil {
		return nil, err
	}
	addr := msg.Address
	exec := VFSExecuteMsg{RegisterUser: &RegisterUser{Username: msg.Username, Address: &addr}}

	res := newResponse(attr("action", "register_username"), attr("username", msg.Username))
	res.Messages = append(res.Messages, subMsg(ReplyRegisterUsername, wasmExecute(vfs, mustJSON(exec), nil), amp.ReplyError))
	return res, nil
}

// localOrigin maps a remote origin to the local address registered under the
// same username, when there is one.
func (c *Contract) localOrigin(ctx context.Context, origin string, username *amp.AndrAddr) string {
	if username == nil {
		return origin
	}
	addr, err := c.addressOfUsername(ctx, username.String())
	if err != nil || addr == "" {
		return origin
	}
	return addr
}

func (c *Contract) IBCPacketAck(_ context.Context, _ wasmvmtypes.Env, msg wasmvmtypes.IBCPacketAckMsg) (*wasmvmtypes.IBCBasicResponse, error) {
	success := "false"
	if ack, err := ParseAck(msg.Acknowledgement.Data); err == nil && ack.Success() {
		success = "true"
	}
	c.logger.Debug("packet acknowledged",
		logger.WithField("channel", msg.OriginalPacket.Src.ChannelID),
		logger.WithField("sequence", msg.OriginalPacket.Sequence),
		logger.WithField("success", success),
	)
	return &wasmvmtypes.IBCBasicResponse{
		Messages: []wasmvmtypes.SubMsg{},
		Attributes: []wasmvmtypes.EventAttribute{
			attr("method", "ibc_packet_ack"),
			attr("success", success),
		},
		Events: []wasmvmtypes.Event{},
	}, nil
}

func (c *Contract) IBCPacketTimeout(_ context.Context, _ wasmvmtypes.Env, msg wasmvmtypes.IBCPacketTimeoutMsg) (*wasmvmtypes.IBCBasicResponse, error) {
	c.logger.Warn("packet timed out",
		logger.WithField("channel", msg.Packet.Src.ChannelID),
		logger.WithField("sequence", msg.Packet.Sequence),
	)
	return &wasmvmtypes.IBCBasicResponse{
		Messages:   []wasmvmtypes.SubMsg{},
		Attributes: []wasmvmtypes.EventAttribute{attr("method", "ibc_packet_timeout")},
		Events:     []wasmvmtypes.Event{},
	}, nil
}
