package kernel

import (
	"encoding/json"
	"errors"

	"cosmossdk.io/collections"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	"github.com/stretchr/testify/assert"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

func (suite *kernelTestSuite) Test_SendOverIBCDirect() {
	t := suite.T()
	suite.assignOsmosis()

	res, err := suite.send("alice", nil, amp.NewAMPMsg("ibc://osmosis/contractX", ping, nil))
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	sub := res.Messages[0]
	assert.Equal(t, wasmvmtypes.ReplyNever, sub.ReplyOn)
	suite.Require().NotNil(sub.Msg.IBC)
	send := sub.Msg.IBC.SendPacket
	suite.Require().NotNil(send)
	assert.Equal(t, "channel-0", send.ChannelID)
	assert.Equal(t, uint64(suite.env.Block.Time)+uint64(PacketLifetime.Nanoseconds()), send.Timeout.Timestamp)

	msg, err := UnmarshalIbcExecuteMsg(send.Data)
	suite.Require().NoError(err)
	suite.Require().NotNil(msg.SendMessage)
	pkt := msg.SendMessage.AMPPacket
	suite.Require().Len(pkt.Messages, 1)
	assert.Equal(t, amp.AndrAddr("contractX"), pkt.Messages[0].Recipient)
	assert.Equal(t, "alice", pkt.Ctx.Origin)
	assert.Equal(t, testKernel, pkt.Ctx.PreviousSender)
	assert.Equal(t, "andromeda-1.10.0", pkt.Ctx.ID)
	suite.Require().Len(pkt.Ctx.Hops, 1)
	assert.Equal(t, amp.CrossChainHop{
		ChannelID:     "channel-0",
		FromChain:     "andromeda",
		ToChain:       "osmosis",
		OriginAddress: "alice",
	}, pkt.Ctx.Hops[0])
	assert.Equal(t, "execute_send_message", attrValue(res, "method:0"))
	assert.Equal(t, "osmo-kernel", attrValue(res, "receiving_kernel_address:0"))
}

func (suite *kernelTestSuite) Test_SendOverIBCLabelsOriginUsername() {
	t := suite.T()
	suite.assignOsmosis()
	suite.querier.usernames["al"] = "alice"

	res, err := suite.send("alice", nil, amp.NewAMPMsg("ibc://osmosis/contractX", ping, nil))
	suite.Require().NoError(err)
	msg, err := UnmarshalIbcExecuteMsg(res.Messages[0].Msg.IBC.SendPacket.Data)
	suite.Require().NoError(err)
	suite.Require().NotNil(msg.SendMessage.AMPPacket.Ctx.OriginUsername)
	assert.Equal(t, amp.AndrAddr("al"), *msg.SendMessage.AMPPacket.Ctx.OriginUsername)
}

func (suite *kernelTestSuite) Test_SendOverIBCErrors() {
	t := suite.T()
	_, err := suite.send("alice", nil, amp.NewAMPMsg("ibc://osmosis/contractX", ping, nil))
	assert.ErrorIs(t, err, ErrInvalidPacket, "unassigned chain")

	suite.assignOsmosis()
	_, err = suite.send("alice", nil, amp.NewAMPMsg("ibc:///contractX", ping, nil))
	assert.ErrorIs(t, err, ErrInvalidPacket, "missing chain")

	_, err = suite.send("alice", nil, amp.NewAMPMsg("ibc://osmosis", ping, nil))
	assert.ErrorIs(t, err, ErrInvalidPacket, "missing recipient")

	funds := wasmvmtypes.Coins{{Denom: "uandr", Amount: "1"}, {Denom: "uusd", Amount: "1"}}
	_, err = suite.send("alice", funds, amp.NewAMPMsg("ibc://osmosis/bob", nil, funds))
	assert.ErrorIs(t, err, ErrInvalidFunds, "two denoms")

	_, err = suite.cw20Receive("alice", "5", Cw20HookMsg{Send: &Send{Message: amp.NewAMPMsg("ibc://osmosis/bob", nil, nil)}})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

// sendFunds starts a funds relay of 100uandr from alice to bob on osmosis.
func (suite *kernelTestSuite) sendFunds() *wasmvmtypes.Response {
	suite.assignOsmosis()
	res, err := suite.send("alice", coins("100", "uandr"), amp.NewAMPMsg("ibc://osmosis/bob", ping, coins("100", "uandr")))
	suite.Require().NoError(err)
	return res
}

func (suite *kernelTestSuite) Test_FundsRelayHappyPath() {
	t := suite.T()
	res := suite.sendFunds()

	suite.Require().Len(res.Messages, 1)
	sub := res.Messages[0]
	assert.Equal(t, ReplyIBCTransfer, sub.ID)
	assert.Equal(t, wasmvmtypes.ReplyAlways, sub.ReplyOn)
	transfer := sub.Msg.IBC.Transfer
	suite.Require().NotNil(transfer)
	assert.Equal(t, "channel-1", transfer.ChannelID)
	assert.Equal(t, "osmo-kernel", transfer.ToAddress)
	assert.Equal(t, wasmvmtypes.Coin{Denom: "uandr", Amount: "100"}, transfer.Amount)

	staged, err := suite.k.state.PendingMsgAndFunds.Get(suite.ctx)
	suite.Require().NoError(err)
	assert.False(t, staged.Pending)
	assert.Equal(t, "alice", staged.Sender)

	reply, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID:     ReplyIBCTransfer,
		Result: wasmvmtypes.SubMsgResult{Ok: &wasmvmtypes.SubMsgResponse{Data: transferReplyData(5)}},
	})
	suite.Require().NoError(err)
	suite.Require().Len(reply.Messages, 1)
	send := reply.Messages[0].Msg.IBC.SendPacket
	suite.Require().NotNil(send)
	assert.Equal(t, "channel-0", send.ChannelID)

	record, err := suite.pendingRecord("channel-1", 5)
	suite.Require().NoError(err)
	assert.True(t, record.Pending)
	_, err = suite.k.state.PendingMsgAndFunds.Get(suite.ctx)
	assert.ErrorIs(t, err, collections.ErrNotFound)

	msg, err := UnmarshalIbcExecuteMsg(send.Data)
	suite.Require().NoError(err)
	suite.Require().NotNil(msg.SendMessageWithFunds)
	relayed := msg.SendMessageWithFunds
	assert.Equal(t, amp.AndrAddr("bob"), relayed.Recipient)
	assert.JSONEq(t, `{"ping":{}}`, string(relayed.Message))
	assert.Equal(t, "alice", relayed.OriginalSender)
	voucher := transfertypes.ParseDenomTrace("transfer/channel-9/uandr").IBCDenom()
	assert.Equal(t, wasmvmtypes.Coin{Denom: voucher, Amount: "100"}, relayed.Funds)
	suite.Require().Len(relayed.PreviousHops, 1)
	assert.Equal(t, "osmosis", relayed.PreviousHops[0].ToChain)

	var pending PendingPacketResponse
	bz, err := suite.k.Query(suite.ctx, suite.env, QueryMsg{PendingPackets: &PendingPacketsQuery{}})
	suite.Require().NoError(err)
	suite.Require().NoError(json.Unmarshal(bz, &pending))
	suite.Require().Len(pending.Packets, 1)
	assert.Equal(t, uint64(5), pending.Packets[0].Sequence)
}

func (suite *kernelTestSuite) Test_FundsRelayTransferFails() {
	t := suite.T()
	suite.sendFunds()

	reply, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID:     ReplyIBCTransfer,
		Result: wasmvmtypes.SubMsgResult{Err: "channel closed"},
	})
	suite.Require().NoError(err)
	suite.Require().Len(reply.Messages, 1)
	bank := reply.Messages[0].Msg.Bank
	suite.Require().NotNil(bank)
	assert.Equal(t, "alice", bank.Send.ToAddress)
	assert.Equal(t, coins("100", "uandr"), bank.Send.Amount)
	assert.Nil(t, reply.Messages[0].Msg.IBC)

	_, err = suite.k.state.PendingMsgAndFunds.Get(suite.ctx)
	assert.ErrorIs(t, err, collections.ErrNotFound)
	empty, err := suite.k.state.ChannelToExecuteMsg.Iterate(suite.ctx, nil)
	suite.Require().NoError(err)
	defer empty.Close()
	assert.False(t, empty.Valid())
}

func (suite *kernelTestSuite) Test_FundsRelayUsesRecoveryAddress() {
	t := suite.T()
	suite.assignOsmosis()
	recovery := amp.AndrAddr("vault")
	msg := amp.NewAMPMsg("ibc://osmosis/bob", nil, coins("7", "uandr"))
	msg.Config.IBCConfig = &amp.IBCConfig{RecoveryAddr: &recovery}

	_, err := suite.send("alice", coins("7", "uandr"), msg)
	suite.Require().NoError(err)
	staged, err := suite.k.state.PendingMsgAndFunds.Get(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(t, "vault", staged.Sender)
}

func (suite *kernelTestSuite) Test_RelayIsIdempotent() {
	t := suite.T()
	suite.sendFunds()
	_, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID:     ReplyIBCTransfer,
		Result: wasmvmtypes.SubMsgResult{Ok: &wasmvmtypes.SubMsgResponse{Data: transferReplyData(5)}},
	})
	suite.Require().NoError(err)

	_, err = suite.exec("trigger", nil, ExecuteMsg{TriggerRelay: &TriggerRelay{
		PacketSequence: 5,
		ChannelID:      "channel-1",
		PacketAck:      AckSuccess(),
	}})
	assert.ErrorIs(t, err, ErrInvalidPacket)

	_, err = suite.k.relayTransferMessage(suite.ctx, suite.env, collections.Join("channel-1", uint64(5)))
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) storeRecord(seq uint64, sender string, funds wasmvmtypes.Coin) {
	suite.Require().NoError(suite.k.state.ChannelToExecuteMsg.Set(suite.ctx, collections.Join("channel-1", seq), Ics20PacketInfo{
		Sender:    sender,
		Recipient: "bob",
		Message:   ping,
		Funds:     funds,
		Channel:   "channel-1",
	}))
}

func (suite *kernelTestSuite) Test_TriggerRelay() {
	t := suite.T()
	suite.assignOsmosis()
	suite.storeRecord(3, "alice", wasmvmtypes.Coin{Denom: "uandr", Amount: "50"})

	_, err := suite.exec("alice", nil, ExecuteMsg{TriggerRelay: &TriggerRelay{PacketSequence: 3, ChannelID: "channel-1", PacketAck: AckSuccess()}})
	assert.ErrorIs(t, err, ErrUnauthorized)

	res, err := suite.exec("trigger", nil, ExecuteMsg{TriggerRelay: &TriggerRelay{PacketSequence: 3, ChannelID: "channel-1", PacketAck: AckSuccess()}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	assert.NotNil(t, res.Messages[0].Msg.IBC.SendPacket)

	record, err := suite.pendingRecord("channel-1", 3)
	suite.Require().NoError(err)
	assert.True(t, record.Pending)
}

func (suite *kernelTestSuite) Test_TriggerRelayRefundsFailedAck() {
	t := suite.T()
	suite.assignOsmosis()
	suite.storeRecord(4, "alice", wasmvmtypes.Coin{Denom: "uandr", Amount: "50"})

	res, err := suite.exec("trigger", nil, ExecuteMsg{TriggerRelay: &TriggerRelay{
		PacketSequence: 4,
		ChannelID:      "channel-1",
		PacketAck:      AckFail(errors.New("receiver rejected")),
	}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	send := res.Messages[0].Msg.Bank.Send
	assert.Equal(t, "alice", send.ToAddress)
	assert.Equal(t, coins("50", "uandr"), send.Amount)

	_, err = suite.pendingRecord("channel-1", 4)
	assert.ErrorIs(t, err, collections.ErrNotFound)

	_, err = suite.exec("trigger", nil, ExecuteMsg{TriggerRelay: &TriggerRelay{PacketSequence: 4, ChannelID: "channel-1", PacketAck: []byte("not json")}})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) Test_LifecycleCreditsRecovery() {
	t := suite.T()
	suite.storeRecord(1, "alice", wasmvmtypes.Coin{Denom: "uandr", Amount: "50"})
	suite.storeRecord(2, "alice", wasmvmtypes.Coin{Denom: "uandr", Amount: "30"})

	_, err := suite.exec("alice", nil, ExecuteMsg{Recover: &Recover{}})
	assert.ErrorIs(t, err, ErrGeneric, "nothing to recover yet")

	_, err = suite.k.Sudo(suite.ctx, suite.env, SudoMsg{IBCLifecycleComplete: &IBCLifecycleComplete{
		IBCAck: &IBCAck{Channel: "channel-1", Sequence: 1, Ack: string(AckFail(errors.New("x"))), Success: false},
	}})
	suite.Require().NoError(err)
	_, err = suite.k.Sudo(suite.ctx, suite.env, SudoMsg{IBCLifecycleComplete: &IBCLifecycleComplete{
		IBCTimeout: &IBCTimeout{Channel: "channel-1", Sequence: 2},
	}})
	suite.Require().NoError(err)

	bz, err := suite.k.Query(suite.ctx, suite.env, QueryMsg{Recoveries: &RecoveriesQuery{Addr: "alice"}})
	suite.Require().NoError(err)
	var recoveries wasmvmtypes.Coins
	suite.Require().NoError(json.Unmarshal(bz, &recoveries))
	assert.Equal(t, coins("80", "uandr"), recoveries)

	res, err := suite.exec("alice", nil, ExecuteMsg{Recover: &Recover{}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	assert.Equal(t, ReplyRecovery, res.Messages[0].ID)
	assert.Equal(t, wasmvmtypes.ReplyAlways, res.Messages[0].ReplyOn)
	assert.Equal(t, "alice", res.Messages[0].Msg.Bank.Send.ToAddress)
	assert.Equal(t, coins("80", "uandr"), res.Messages[0].Msg.Bank.Send.Amount)

	var drained wasmvmtypes.Coins
	suite.query(QueryMsg{Recoveries: &RecoveriesQuery{Addr: "alice"}}, &drained)
	assert.Empty(t, drained)

	_, err = suite.exec("alice", nil, ExecuteMsg{Recover: &Recover{}})
	assert.ErrorIs(t, err, ErrGeneric, "ledger drained")
}

func (suite *kernelTestSuite) Test_LifecycleSuccessKeepsRecord() {
	t := suite.T()
	suite.storeRecord(1, "alice", wasmvmtypes.Coin{Denom: "uandr", Amount: "50"})

	res, err := suite.k.Sudo(suite.ctx, suite.env, SudoMsg{IBCLifecycleComplete: &IBCLifecycleComplete{
		IBCAck: &IBCAck{Channel: "channel-1", Sequence: 1, Ack: string(AckSuccess()), Success: true},
	}})
	suite.Require().NoError(err)
	assert.Equal(t, "ibc_ack", attrValue(res, "action"))
	_, err = suite.pendingRecord("channel-1", 1)
	assert.NoError(t, err)

	res, err = suite.k.Sudo(suite.ctx, suite.env, SudoMsg{IBCLifecycleComplete: &IBCLifecycleComplete{
		IBCTimeout: &IBCTimeout{Channel: "channel-1", Sequence: 99},
	}})
	suite.Require().NoError(err)
	assert.Equal(t, "false", attrValue(res, "tracked"))
}

func (suite *kernelTestSuite) Test_CounterpartyDenom() {
	t := suite.T()
	suite.querier.denoms["ibc/RETURNING"] = DenomInfo{Path: "transfer/channel-1", BaseDenom: "uosmo"}
	suite.querier.denoms["ibc/FORWARDED"] = DenomInfo{Path: "transfer/channel-3", BaseDenom: "uatom"}

	cases := []struct {
		denom string
		want  string
	}{
		{"uandr", transfertypes.ParseDenomTrace("transfer/channel-9/uandr").IBCDenom()},
		{"ibc/RETURNING", "uosmo"},
		{"ibc/FORWARDED", transfertypes.ParseDenomTrace("transfer/channel-9/transfer/channel-3/uatom").IBCDenom()},
	}
	for _, tc := range cases {
		got, err := suite.k.counterpartyDenom(suite.ctx, tc.denom, "channel-1")
		suite.Require().NoError(err, tc.denom)
		assert.Equal(t, tc.want, got, tc.denom)
	}

	_, err := suite.k.counterpartyDenom(suite.ctx, "ibc/UNKNOWN", "channel-1")
	assert.ErrorIs(t, err, ErrGeneric)
	_, err = suite.k.counterpartyDenom(suite.ctx, "uandr", "channel-404")
	assert.ErrorIs(t, err, ErrGeneric)
}

func (suite *kernelTestSuite) Test_ReplyUnknownID() {
	_, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{ID: 42})
	assert.ErrorIs(suite.T(), err, ErrInvalidReplyID)

	_, err = suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{ID: ReplyIBCTransfer})
	assert.ErrorIs(suite.T(), err, ErrInvalidPacket, "nothing staged")
}
