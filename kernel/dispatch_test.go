package kernel

import (
	"encoding/json"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	"github.com/stretchr/testify/assert"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

func attrValue(res *wasmvmtypes.Response, key string) string {
	for _, a := range res.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

var ping = []byte(`{"ping":{}}`)

func (suite *kernelTestSuite) Test_SendDirectToContract() {
	t := suite.T()
	msg := amp.NewAMPMsg("contractB", ping, nil).WithConfig(amp.DefaultConfig().AsDirect())

	res, err := suite.send("alice", nil, msg)
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	sub := res.Messages[0]
	assert.Equal(t, ReplyAMPMsg, sub.ID)
	assert.Equal(t, wasmvmtypes.ReplyAlways, sub.ReplyOn)
	suite.Require().NotNil(sub.Msg.Wasm)
	suite.Require().NotNil(sub.Msg.Wasm.Execute)
	assert.Equal(t, "contractB", sub.Msg.Wasm.Execute.ContractAddr)
	assert.JSONEq(t, `{"ping":{}}`, string(sub.Msg.Wasm.Execute.Msg))
	assert.Empty(t, sub.Msg.Wasm.Execute.Funds)
	assert.Equal(t, "send", attrValue(res, "action"))
	assert.Equal(t, "andromeda-1.10.0", attrValue(res, "packet_id"))
	assert.Equal(t, "contractB", attrValue(res, "recipient:0"))
}

func (suite *kernelTestSuite) Test_SendToNonADOSkipsWrapping() {
	t := suite.T()
	res, err := suite.send("alice", nil, amp.NewAMPMsg("contractB", ping, nil))
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	assert.JSONEq(t, `{"ping":{}}`, string(res.Messages[0].Msg.Wasm.Execute.Msg))
}

func (suite *kernelTestSuite) Test_SendToADOWrapsPacket() {
	t := suite.T()
	res, err := suite.send("alice", coins("5", "uusd"), amp.NewAMPMsg("adoC", ping, coins("5", "uusd")))
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	exec := res.Messages[0].Msg.Wasm.Execute
	assert.Equal(t, "adoC", exec.ContractAddr)
	assert.Equal(t, coins("5", "uusd"), exec.Funds)

	var wrapped amp.ExecuteMsg
	suite.Require().NoError(json.Unmarshal(exec.Msg, &wrapped))
	suite.Require().NotNil(wrapped.AMPReceive)
	pkt := wrapped.AMPReceive
	assert.Equal(t, "alice", pkt.Ctx.Origin)
	assert.Equal(t, "alice", pkt.Ctx.PreviousSender)
	assert.Equal(t, "andromeda-1.10.0", pkt.Ctx.ID)
	suite.Require().Len(pkt.Messages, 1)
	assert.Equal(t, amp.AndrAddr("adoC"), pkt.Messages[0].Recipient)
	assert.JSONEq(t, `{"ping":{}}`, string(pkt.Messages[0].Message))
}

func (suite *kernelTestSuite) Test_SendBankOnly() {
	t := suite.T()
	res, err := suite.send("alice", coins("100", "uusd"), amp.NewAMPMsg("alice", nil, coins("100", "uusd")))
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	sub := res.Messages[0]
	assert.Equal(t, wasmvmtypes.ReplyError, sub.ReplyOn)
	suite.Require().NotNil(sub.Msg.Bank)
	suite.Require().NotNil(sub.Msg.Bank.Send)
	assert.Equal(t, "alice", sub.Msg.Bank.Send.ToAddress)
	assert.Equal(t, coins("100", "uusd"), sub.Msg.Bank.Send.Amount)
	assert.Equal(t, "100uusd", attrValue(res, "funds:0:0"))

	_, err = suite.send("alice", nil, amp.NewAMPMsg("alice", nil, coins("100", "uusd")))
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) Test_SendRejectsUncoveredFunds() {
	t := suite.T()
	_, err := suite.send("alice", coins("50", "uusd"), amp.NewAMPMsg("bob", nil, coins("100", "uusd")))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = suite.send("alice", coins("100", "uatom"), amp.NewAMPMsg("bob", nil, coins("100", "uusd")))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = suite.send("alice", coins("100", "uusd"), amp.NewAMPMsg("bob", nil, coins("-1", "uusd")))
	assert.ErrorIs(t, err, ErrInvalidFunds)

	assert.Equal(t, uint64(0), suite.txIndex())
}

func (suite *kernelTestSuite) Test_SendResolvesVFSPath() {
	t := suite.T()
	suite.querier.paths["/home/bob"] = "bob"

	res, err := suite.send("alice", coins("1", "uusd"), amp.NewAMPMsg("/home/bob", nil, coins("1", "uusd")))
	suite.Require().NoError(err)
	assert.Equal(t, "bob", res.Messages[0].Msg.Bank.Send.ToAddress)

	_, err = suite.send("alice", coins("1", "uusd"), amp.NewAMPMsg("/home/nobody", nil, coins("1", "uusd")))
	assert.ErrorIs(t, err, ErrGeneric)
}

func (suite *kernelTestSuite) Test_SendRecipientChecks() {
	t := suite.T()
	_, err := suite.send("alice", nil, amp.NewAMPMsg("carol", ping, nil))
	assert.ErrorIs(t, err, ErrInvalidPacket)
	assert.ErrorContains(t, err, "Recipient is not a contract")

	_, err = suite.send("alice", nil, amp.NewAMPMsg("smtp://somewhere/bob", ping, nil))
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) Test_SendToOwnChainProtocolIsLocal() {
	t := suite.T()
	res, err := suite.send("alice", coins("3", "uusd"), amp.NewAMPMsg("ibc://andromeda/bob", nil, coins("3", "uusd")))
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	assert.Equal(t, "bob", res.Messages[0].Msg.Bank.Send.ToAddress)
}

func (suite *kernelTestSuite) Test_AMPReceiveRequiresVerifiedSender() {
	t := suite.T()
	pkt := amp.NewAMPPkt("alice", "alice", amp.NewAMPMsg("contractB", ping, nil))

	_, err := suite.exec("alice", nil, ExecuteMsg{AMPReceive: &pkt})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = suite.exec("contractB", nil, ExecuteMsg{AMPReceive: &pkt})
	assert.ErrorIs(t, err, ErrUnauthorized)

	empty := amp.NewAMPPkt("alice", "adoC")
	_, err = suite.exec("adoC", nil, ExecuteMsg{AMPReceive: &empty})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) Test_AMPReceiveRequiresAttachedFunds() {
	t := suite.T()
	pkt := amp.NewAMPPkt("alice", "adoC", amp.NewAMPMsg("bob", nil, coins("10", "uusd")))
	_, err := suite.exec("adoC", nil, ExecuteMsg{AMPReceive: &pkt})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func (suite *kernelTestSuite) Test_AMPReceiveHandlesFirstAndContinues() {
	t := suite.T()
	direct := amp.NewAMPMsg("contractB", ping, nil).WithConfig(amp.DefaultConfig().AsDirect())
	pkt := amp.NewAMPPkt("alice", "adoC", direct, amp.NewAMPMsg("bob", nil, coins("10", "uusd")))

	res, err := suite.exec("adoC", coins("10", "uusd"), ExecuteMsg{AMPReceive: &pkt})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 2)
	assert.Equal(t, "contractB", res.Messages[0].Msg.Wasm.Execute.ContractAddr)

	cont := res.Messages[1]
	assert.Equal(t, ReplyAMPMsg, cont.ID)
	assert.Equal(t, testKernel, cont.Msg.Wasm.Execute.ContractAddr)
	assert.Equal(t, coins("10", "uusd"), cont.Msg.Wasm.Execute.Funds)

	var next amp.ExecuteMsg
	suite.Require().NoError(json.Unmarshal(cont.Msg.Wasm.Execute.Msg, &next))
	suite.Require().NotNil(next.AMPReceive)
	suite.Require().Len(next.AMPReceive.Messages, 1)
	assert.Equal(t, amp.AndrAddr("bob"), next.AMPReceive.Messages[0].Recipient)
	assert.Equal(t, "andromeda-1.10.0", next.AMPReceive.Ctx.ID)

	// the kernel runs the continuation itself, reusing the packet id
	res, err = suite.exec(testKernel, coins("10", "uusd"), ExecuteMsg{AMPReceive: next.AMPReceive})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	assert.Equal(t, "bob", res.Messages[0].Msg.Bank.Send.ToAddress)
	assert.Equal(t, "andromeda-1.10.0", attrValue(res, "packet_id"))
	assert.Equal(t, uint64(1), suite.txIndex())
}

func (suite *kernelTestSuite) cw20Receive(sender, amount string, hook Cw20HookMsg) (*wasmvmtypes.Response, error) {
	return suite.exec("token", nil, ExecuteMsg{Receive: &Cw20ReceiveMsg{
		Sender: sender,
		Amount: amount,
		Msg:    mustJSON(hook),
	}})
}

func (suite *kernelTestSuite) Test_Cw20SendTransfersTokens() {
	t := suite.T()
	res, err := suite.cw20Receive("alice", "100", Cw20HookMsg{Send: &Send{Message: amp.NewAMPMsg("bob", nil, nil)}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	exec := res.Messages[0].Msg.Wasm.Execute
	assert.Equal(t, "token", exec.ContractAddr)
	assert.Empty(t, exec.Funds)
	assert.JSONEq(t, `{"transfer":{"recipient":"bob","amount":"100"}}`, string(exec.Msg))

	_, err = suite.cw20Receive("alice", "0", Cw20HookMsg{Send: &Send{Message: amp.NewAMPMsg("bob", nil, nil)}})
	assert.ErrorIs(t, err, ErrInvalidFunds)
}

func (suite *kernelTestSuite) Test_Cw20SendToContract() {
	t := suite.T()
	msg := amp.NewAMPMsg("contractB", ping, coins("100", "token"))
	res, err := suite.cw20Receive("alice", "100", Cw20HookMsg{Send: &Send{Message: msg}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)

	var send Cw20ExecuteMsg
	suite.Require().NoError(json.Unmarshal(res.Messages[0].Msg.Wasm.Execute.Msg, &send))
	suite.Require().NotNil(send.Send)
	assert.Equal(t, "contractB", send.Send.Contract)
	assert.Equal(t, "100", send.Send.Amount)
	assert.JSONEq(t, `{"ping":{}}`, string(send.Send.Msg))
}

// A CW20 packet is handled in one call; no continuation goes back to the kernel.
func (suite *kernelTestSuite) Test_Cw20AMPReceiveHandlesEveryMessage() {
	t := suite.T()
	pkt := amp.NewAMPPkt("alice", "adoC",
		amp.NewAMPMsg("bob", nil, coins("40", "token")),
		amp.NewAMPMsg("carol", nil, coins("60", "token")),
	)
	res, err := suite.cw20Receive("adoC", "100", Cw20HookMsg{AMPReceive: &pkt})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 2)
	for i, want := range []string{`{"transfer":{"recipient":"bob","amount":"40"}}`, `{"transfer":{"recipient":"carol","amount":"60"}}`} {
		assert.Equal(t, "token", res.Messages[i].Msg.Wasm.Execute.ContractAddr)
		assert.JSONEq(t, want, string(res.Messages[i].Msg.Wasm.Execute.Msg))
	}
	assert.Equal(t, "bob", attrValue(res, "recipient:0"))
	assert.Equal(t, "carol", attrValue(res, "recipient:1"))

	_, err = suite.cw20Receive("alice", "100", Cw20HookMsg{AMPReceive: &pkt})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = suite.cw20Receive("adoC", "50", Cw20HookMsg{AMPReceive: &pkt})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}
