package kernel

import (
	"encoding/json"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	"github.com/stretchr/testify/assert"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

func kernelChannel(order wasmvmtypes.IBCOrder, version string) wasmvmtypes.IBCChannel {
	return wasmvmtypes.IBCChannel{
		Endpoint:             wasmvmtypes.IBCEndpoint{PortID: "wasm.kernel", ChannelID: "channel-0"},
		CounterpartyEndpoint: wasmvmtypes.IBCEndpoint{PortID: "wasm.osmo-kernel", ChannelID: "channel-7"},
		Order:                order,
		Version:              version,
		ConnectionID:         "connection-0",
	}
}

func (suite *kernelTestSuite) Test_ChannelOpen() {
	t := suite.T()
	open := func(msg wasmvmtypes.IBCChannelOpenMsg) (*wasmvmtypes.IBC3ChannelOpenResponse, error) {
		return suite.k.IBCChannelOpen(suite.ctx, suite.env, msg)
	}

	res, err := open(wasmvmtypes.IBCChannelOpenMsg{OpenInit: &wasmvmtypes.IBCOpenInit{Channel: kernelChannel(wasmvmtypes.Unordered, IBCVersion)}})
	suite.Require().NoError(err)
	assert.Equal(t, IBCVersion, res.Version)

	res, err = open(wasmvmtypes.IBCChannelOpenMsg{OpenTry: &wasmvmtypes.IBCOpenTry{
		Channel:             kernelChannel(wasmvmtypes.Unordered, ICS20Version),
		CounterpartyVersion: ICS20Version,
	}})
	suite.Require().NoError(err)
	assert.Equal(t, ICS20Version, res.Version)

	_, err = open(wasmvmtypes.IBCChannelOpenMsg{OpenInit: &wasmvmtypes.IBCOpenInit{Channel: kernelChannel(wasmvmtypes.Ordered, IBCVersion)}})
	assert.ErrorIs(t, err, ErrOrderedChannel)

	_, err = open(wasmvmtypes.IBCChannelOpenMsg{OpenInit: &wasmvmtypes.IBCOpenInit{Channel: kernelChannel(wasmvmtypes.Unordered, "andr-kernel-2")}})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = open(wasmvmtypes.IBCChannelOpenMsg{OpenTry: &wasmvmtypes.IBCOpenTry{
		Channel:             kernelChannel(wasmvmtypes.Unordered, IBCVersion),
		CounterpartyVersion: ICS20Version,
	}})
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func (suite *kernelTestSuite) Test_ChannelConnectAndClose() {
	t := suite.T()
	res, err := suite.k.IBCChannelConnect(suite.ctx, suite.env, wasmvmtypes.IBCChannelConnectMsg{
		OpenAck: &wasmvmtypes.IBCOpenAck{Channel: kernelChannel(wasmvmtypes.Unordered, IBCVersion), CounterpartyVersion: IBCVersion},
	})
	suite.Require().NoError(err)
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "channel_id", Value: "channel-0"})

	_, err = suite.k.IBCChannelConnect(suite.ctx, suite.env, wasmvmtypes.IBCChannelConnectMsg{
		OpenAck: &wasmvmtypes.IBCOpenAck{Channel: kernelChannel(wasmvmtypes.Unordered, IBCVersion), CounterpartyVersion: "v2"},
	})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	res, err = suite.k.IBCChannelClose(suite.ctx, suite.env, wasmvmtypes.IBCChannelCloseMsg{
		CloseInit: &wasmvmtypes.IBCCloseInit{Channel: kernelChannel(wasmvmtypes.Unordered, IBCVersion)},
	})
	suite.Require().NoError(err)
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "method", Value: "ibc_channel_close"})
}

// receive delivers data to the kernel as if it arrived on channel.
func (suite *kernelTestSuite) receive(channel string, data []byte) *wasmvmtypes.IBCReceiveResponse {
	res, err := suite.k.IBCPacketReceive(suite.ctx, suite.env, wasmvmtypes.IBCPacketReceiveMsg{Packet: wasmvmtypes.IBCPacket{
		Data:     data,
		Src:      wasmvmtypes.IBCEndpoint{PortID: "wasm.osmo-kernel", ChannelID: "channel-7"},
		Dest:     wasmvmtypes.IBCEndpoint{PortID: "wasm.kernel", ChannelID: channel},
		Sequence: 1,
	}})
	suite.Require().NoError(err)
	return res
}

func (suite *kernelTestSuite) ackOf(res *wasmvmtypes.IBCReceiveResponse) StdAck {
	ack, err := ParseAck(res.Acknowledgement)
	suite.Require().NoError(err)
	return ack
}

func (suite *kernelTestSuite) Test_ReceiveSendMessage() {
	t := suite.T()
	suite.assignOsmosis()
	pkt := amp.NewAMPPkt("osmo1alice", "osmo-kernel", amp.NewAMPMsg("contractB", ping, nil)).
		WithID("osmosis-1.5.0").
		AddHop(amp.CrossChainHop{ChannelID: "channel-7", FromChain: "osmosis", ToChain: "andromeda", OriginAddress: "osmo1alice"})

	res := suite.receive("channel-0", mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: pkt}}))
	assert.True(t, suite.ackOf(res).Success())
	suite.Require().Len(res.Messages, 1)
	exec := res.Messages[0].Msg.Wasm.Execute
	assert.Equal(t, "contractB", exec.ContractAddr)
	assert.JSONEq(t, `{"ping":{}}`, string(exec.Msg))
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "packet_id", Value: "osmosis-1.5.0"})
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "kind", Value: PacketSendMessage})
}

func (suite *kernelTestSuite) Test_ReceiveSendMessageToADOKeepsProvenance() {
	t := suite.T()
	suite.assignOsmosis()
	username := amp.AndrAddr("al")
	suite.querier.usernames["al"] = "alice"
	pkt := amp.NewAMPPkt("osmo1alice", "osmo-kernel", amp.NewAMPMsg("adoC", ping, nil))
	pkt.Ctx.OriginUsername = &username

	res := suite.receive("channel-0", mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: pkt}}))
	suite.Require().True(suite.ackOf(res).Success())
	suite.Require().Len(res.Messages, 1)

	var wrapped amp.ExecuteMsg
	suite.Require().NoError(json.Unmarshal(res.Messages[0].Msg.Wasm.Execute.Msg, &wrapped))
	suite.Require().NotNil(wrapped.AMPReceive)
	assert.Equal(t, "alice", wrapped.AMPReceive.Ctx.Origin)
	assert.Equal(t, "andromeda-1.10.0", wrapped.AMPReceive.Ctx.ID)
}

func (suite *kernelTestSuite) Test_ReceiveFailuresAreAcknowledged() {
	t := suite.T()
	pkt := amp.NewAMPPkt("osmo1alice", "osmo-kernel", amp.NewAMPMsg("contractB", ping, nil))
	data := mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: pkt}})

	res := suite.receive("channel-0", data)
	assert.False(t, suite.ackOf(res).Success(), "channel not assigned")
	assert.Empty(t, res.Messages)

	suite.assignOsmosis()
	for name, data := range map[string][]byte{
		"garbage":      []byte("not json"),
		"empty":        []byte(`{}`),
		"no messages":  mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: amp.NewAMPPkt("a", "b")}}),
		"not contract": mustJSON(IbcExecuteMsg{SendMessage: &SendMessage{AMPPacket: amp.NewAMPPkt("a", "b", amp.NewAMPMsg("carol", ping, nil))}}),
		"create":       mustJSON(IbcExecuteMsg{CreateADO: &CreateADO{AdoType: "splitter", Owner: "osmo1bob", InstantiationMsg: []byte(`{}`)}}),
	} {
		res := suite.receive("channel-0", data)
		assert.False(t, suite.ackOf(res).Success(), name)
		assert.Empty(t, res.Messages, name)
	}
}

func (suite *kernelTestSuite) Test_ReceiveSendMessageWithFunds() {
	t := suite.T()
	suite.assignOsmosis()
	funds := wasmvmtypes.Coin{Denom: "ibc/ABC", Amount: "100"}

	res := suite.receive("channel-0", mustJSON(IbcExecuteMsg{SendMessageWithFunds: &SendMessageWithFunds{
		Recipient:      "contractB",
		Message:        ping,
		Funds:          funds,
		OriginalSender: "osmo1alice",
		PreviousHops:   []amp.CrossChainHop{{ChannelID: "channel-7", FromChain: "osmosis", ToChain: "andromeda", OriginAddress: "osmo1alice"}},
	}}))
	suite.Require().True(suite.ackOf(res).Success())
	suite.Require().Len(res.Messages, 1)
	first := res.Messages[0]
	assert.Equal(t, ReplyIBCTransferWithMsg, first.ID)
	assert.Equal(t, wasmvmtypes.ReplyAlways, first.ReplyOn)
	assert.Equal(t, wasmvmtypes.Coins{funds}, first.Msg.Wasm.Execute.Funds)

	refund, err := suite.k.state.RefundData.Get(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(t, RefundData{OriginalSender: "osmo1alice", Funds: funds, Channel: "channel-1"}, refund)

	reply, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID:     ReplyIBCTransferWithMsg,
		Result: wasmvmtypes.SubMsgResult{Err: "execute wasm contract failed"},
	})
	suite.Require().NoError(err)
	suite.Require().Len(reply.Messages, 1)
	transfer := reply.Messages[0].Msg.IBC.Transfer
	suite.Require().NotNil(transfer)
	assert.Equal(t, "channel-1", transfer.ChannelID)
	assert.Equal(t, "osmo1alice", transfer.ToAddress)
	assert.Equal(t, funds, transfer.Amount)

	_, err = suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{ID: ReplyIBCTransferWithMsg})
	assert.ErrorIs(t, err, ErrInvalidPacket, "refund data consumed")
}

func (suite *kernelTestSuite) Test_ReceiveSendMessageWithFundsSucceeds() {
	t := suite.T()
	suite.assignOsmosis()
	res := suite.receive("channel-0", mustJSON(IbcExecuteMsg{SendMessageWithFunds: &SendMessageWithFunds{
		Recipient:      "bob",
		Funds:          wasmvmtypes.Coin{Denom: "ibc/ABC", Amount: "5"},
		OriginalSender: "osmo1alice",
	}}))
	suite.Require().True(suite.ackOf(res).Success())
	suite.Require().Len(res.Messages, 1)
	assert.NotNil(t, res.Messages[0].Msg.Bank)

	reply, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID:     ReplyIBCTransferWithMsg,
		Result: wasmvmtypes.SubMsgResult{Ok: &wasmvmtypes.SubMsgResponse{}},
	})
	suite.Require().NoError(err)
	assert.Empty(t, reply.Messages)
}

func (suite *kernelTestSuite) Test_ReceiveRegisterUsername() {
	t := suite.T()
	suite.assignOsmosis()
	res := suite.receive("channel-0", mustJSON(IbcExecuteMsg{RegisterUsername: &RegisterUsername{Username: "al", Address: "alice"}}))
	suite.Require().True(suite.ackOf(res).Success())
	suite.Require().Len(res.Messages, 1)

	sub := res.Messages[0]
	assert.Equal(t, ReplyRegisterUsername, sub.ID)
	assert.Equal(t, wasmvmtypes.ReplyError, sub.ReplyOn)
	assert.Equal(t, "vfs", sub.Msg.Wasm.Execute.ContractAddr)
	assert.JSONEq(t, `{"register_user":{"username":"al","address":"alice"}}`, string(sub.Msg.Wasm.Execute.Msg))
}

func (suite *kernelTestSuite) Test_PacketAckAndTimeout() {
	t := suite.T()
	packet := wasmvmtypes.IBCPacket{Src: wasmvmtypes.IBCEndpoint{PortID: "wasm.kernel", ChannelID: "channel-0"}, Sequence: 3}

	res, err := suite.k.IBCPacketAck(suite.ctx, suite.env, wasmvmtypes.IBCPacketAckMsg{
		Acknowledgement: wasmvmtypes.IBCAcknowledgement{Data: AckSuccess()},
		OriginalPacket:  packet,
	})
	suite.Require().NoError(err)
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "success", Value: "true"})

	res, err = suite.k.IBCPacketAck(suite.ctx, suite.env, wasmvmtypes.IBCPacketAckMsg{
		Acknowledgement: wasmvmtypes.IBCAcknowledgement{Data: []byte("garbage")},
		OriginalPacket:  packet,
	})
	suite.Require().NoError(err)
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "success", Value: "false"})

	res, err = suite.k.IBCPacketTimeout(suite.ctx, suite.env, wasmvmtypes.IBCPacketTimeoutMsg{Packet: packet})
	suite.Require().NoError(err)
	assert.Contains(t, res.Attributes, wasmvmtypes.EventAttribute{Key: "method", Value: "ibc_packet_timeout"})
}
