package kernel

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

func (c *Contract) executeSend(ec executeContext, msg amp.AMPMsg) (*wasmvmtypes.Response, error) {
	if len(msg.Message) == 0 && len(ec.info.Funds) == 0 {
		return nil, invalidPacket("No message or funds supplied")
	}
	if err := checkFunds(ec.info.Funds, msg.Funds); err != nil {
		return nil, err
	}

	existing := ""
	if ec.pkt != nil {
		existing = ec.pkt.Ctx.ID
	}
	id, err := c.packetID(ec.ctx, ec.env, existing)
	if err != nil {
		return nil, err
	}

	res, err := c.route(ec, msg, id, 0)
	if err != nil {
		return nil, err
	}
	res.Attributes = append(res.Attributes, attr("action", "send"), attr("packet_id", id))
	return res, nil
}

// checkFunds fails unless attached covers declared.
func checkFunds(attached, declared wasmvmtypes.Coins) error {
	want, err := amp.ToSdkCoins(declared)
	if err != nil {
		return errorsmod.Wrap(ErrInvalidFunds, err.Error())
	}
	have, err := amp.ToSdkCoins(attached)
	if err != nil {
		return errorsmod.Wrap(ErrInvalidFunds, err.Error())
	}
	if !amp.CoversFunds(have, want) {
		return errorsmod.Wrapf(ErrInsufficientFunds, "declared %s, attached %s", want, have)
	}
	return nil
}

// route sends one message to wherever its recipient lives. sequence is the
// message's position in its packet and only labels attributes.
func (c *Contract) route(ec executeContext, msg amp.AMPMsg, id string, sequence int) (*wasmvmtypes.Response, error) {
	currChain, err := c.state.CurrChain.Get(ec.ctx)
	if err != nil {
		return nil, err
	}
	msg.Recipient = msg.Recipient.Local(currChain)

	switch p := msg.Recipient.Protocol(); p {
	case "":
		return c.handleLocal(ec, msg, id, sequence)
	case amp.ProtocolIBC:
		return c.handleIBC(ec, msg, id, sequence, currChain)
	default:
		return nil, invalidPacket("unsupported protocol %s", p)
	}
}

func (c *Contract) handleLocal(ec executeContext, msg amp.AMPMsg, id string, sequence int) (*wasmvmtypes.Response, error) {
	addr, err := c.resolveAddress(ec.ctx, msg.Recipient)
	if err != nil {
		return nil, err
	}

	if len(msg.Message) == 0 {
		return c.handleLocalFunds(ec, msg, addr, sequence)
	}

	info, err := c.querier.ContractInfo(ec.ctx, addr)
	if err != nil {
		return nil, invalidPacket("Recipient is not a contract")
	}
	adoType, err := c.adoType(ec.ctx, info.CodeID)
	if err != nil {
		return nil, err
	}

	res := newResponse(attr(fmt.Sprintf("recipient:%d", sequence), addr))
	if msg.Config.Direct || adoType == nil {
		sub, path, err := c.directSubMsg(ec, msg, addr)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("routing direct message", logger.WithField("recipient", addr), logger.WithField("packet_id", id))
		c.indicators.IncrementRoutedMessages(path)
		res.Messages = append(res.Messages, sub)
		return res, nil
	}

	origin, previousSender := ec.info.Sender, ec.info.Sender
	pkt := amp.NewAMPPkt(origin, previousSender)
	if ec.pkt != nil {
		pkt = amp.FromCtx(ec.pkt, previousSender)
		if previousSender == ec.self() {
			pkt.Ctx.PreviousSender = ec.pkt.Ctx.PreviousSender
		}
	}
	pkt = pkt.
		WithMessages(amp.NewAMPMsg(amp.AndrAddr(addr), msg.Message, msg.Funds).WithConfig(msg.Config)).
		WithID(id)

	sub, path, err := c.packetSubMsg(ec, pkt, addr, msg.Funds)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("routing packet", logger.WithField("recipient", addr), logger.WithField("ado_type", *adoType), logger.WithField("packet_id", id))
	c.indicators.IncrementRoutedMessages(path)
	res.Messages = append(res.Messages, sub)
	return res, nil
}

func (c *Contract) handleLocalFunds(ec executeContext, msg amp.AMPMsg, addr string, sequence int) (*wasmvmtypes.Response, error) {
	if len(msg.Funds) == 0 {
		return nil, invalidPacket("No message or funds supplied")
	}

	res := newResponse()
	for idx, fund := range msg.Funds {
		res.Attributes = append(res.Attributes, attr(fmt.Sprintf("funds:%d:%d", sequence, idx), fund.Amount+fund.Denom))
	}
	res.Attributes = append(res.Attributes, attr(fmt.Sprintf("recipient:%d", sequence), addr))

	if ec.cw20 != "" {
		amount, err := cw20Amount(ec.cw20, msg.Funds)
		if err != nil {
			return nil, err
		}
		exec := Cw20ExecuteMsg{Transfer: &Cw20Transfer{Recipient: addr, Amount: amount}}
		res.Messages = append(res.Messages, subMsg(ReplyAMPMsg, wasmExecute(ec.cw20, mustJSON(exec), nil), amp.ReplyError))
		c.indicators.IncrementRoutedMessages(PathCw20Transfer)
		return res, nil
	}

	send := wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{ToAddress: addr, Amount: msg.Funds}}}
	res.Messages = append(res.Messages, subMsg(ReplyAMPMsg, send, amp.ReplyError))
	c.logger.Debug("routing bank send", logger.WithField("recipient", addr))
	c.indicators.IncrementRoutedMessages(PathLocalBank)
	return res, nil
}

func (c *Contract) directSubMsg(ec executeContext, msg amp.AMPMsg, addr string) (wasmvmtypes.SubMsg, string, error) {
	if ec.cw20 == "" {
		return msg.ToDirectSubMsg(addr, ReplyAMPMsg), PathLocalDirect, nil
	}
	amount, err := cw20Amount(ec.cw20, msg.Funds)
	if err != nil {
		return wasmvmtypes.SubMsg{}, "", err
	}
	exec := Cw20ExecuteMsg{Send: &Cw20Send{Contract: addr, Amount: amount, Msg: msg.Message}}
	sub := subMsg(ReplyAMPMsg, wasmExecute(ec.cw20, mustJSON(exec), nil), msg.Config.ReplyOn)
	sub.GasLimit = msg.Config.GasLimit
	return sub, PathCw20Direct, nil
}

func (c *Contract) packetSubMsg(ec executeContext, pkt amp.AMPPkt, addr string, funds wasmvmtypes.Coins) (wasmvmtypes.SubMsg, string, error) {
	if ec.cw20 == "" {
		sub, err := pkt.ToSubMsg(addr, funds, ReplyAMPMsg)
		return sub, PathLocalAMP, err
	}
	amount, err := cw20Amount(ec.cw20, funds)
	if err != nil {
		return wasmvmtypes.SubMsg{}, "", err
	}
	exec := Cw20ExecuteMsg{Send: &Cw20Send{
		Contract: addr,
		Amount:   amount,
		Msg:      mustJSON(amp.ExecuteMsg{AMPReceive: &pkt}),
	}}
	return subMsg(ReplyAMPMsg, wasmExecute(ec.cw20, mustJSON(exec), nil), amp.ReplyAlways), PathCw20AMP, nil
}

// cw20Amount sums funds, which may only hold the token's own denom.
func cw20Amount(token string, funds wasmvmtypes.Coins) (string, error) {
	coins, err := amp.ToSdkCoins(funds)
	if err != nil {
		return "", errorsmod.Wrap(ErrInvalidFunds, err.Error())
	}
	if len(coins) != 1 || coins[0].Denom != token {
		return "", errorsmod.Wrapf(ErrInvalidFunds, "expected funds in %s, got %s", token, coins)
	}
	return coins[0].Amount.String(), nil
}

func wasmExecute(contract string, msg []byte, funds wasmvmtypes.Coins) wasmvmtypes.CosmosMsg {
	if funds == nil {
		funds = wasmvmtypes.Coins{}
	}
	return wasmvmtypes.CosmosMsg{
		Wasm: &wasmvmtypes.WasmMsg{
			Execute: &wasmvmtypes.ExecuteMsg{
				ContractAddr: contract,
				Msg:          msg,
				Funds:        funds,
			},
		},
	}
}
