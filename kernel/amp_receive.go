package kernel

import (
	"encoding/json"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// ampReceive handles the first message of pkt and sends the rest back to the
// kernel as a new packet, so every message finishes before the next starts.
func (c *Contract) ampReceive(ec executeContext, pkt amp.AMPPkt) (*wasmvmtypes.Response, error) {
	if err := c.ensurePacketSender(ec, ec.info.Sender); err != nil {
		return nil, err
	}
	if len(pkt.Messages) == 0 {
		return nil, invalidPacket("No messages supplied")
	}
	total, err := pkt.TotalFunds()
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidFunds, err.Error())
	}
	if err := checkFunds(ec.info.Funds, amp.FromSdkCoins(total)); err != nil {
		return nil, err
	}

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

	if rest, ok := pkt.Remaining(); ok {
		restFunds, err := rest.TotalFunds()
		if err != nil {
			return nil, errorsmod.Wrap(ErrInvalidFunds, err.Error())
		}
		sub, err := rest.ToSubMsg(ec.self(), amp.FromSdkCoins(restFunds), ReplyAMPMsg)
		if err != nil {
			return nil, err
		}
		res.Messages = append(res.Messages, sub)
		c.logger.Debug("continuing packet", logger.WithField("packet_id", id), logger.WithField("remaining", len(rest.Messages)))
	}

	res.Attributes = append(res.Attributes, attr("action", "handle_amp_packet"), attr("packet_id", id))
	return res, nil
}

// receiveCw20 is the hook a CW20 token calls after sending tokens to the kernel.
func (c *Contract) receiveCw20(ec executeContext, msg Cw20ReceiveMsg) (*wasmvmtypes.Response, error) {
	amount, ok := sdkmath.NewIntFromString(msg.Amount)
	if !ok || !amount.IsPositive() {
		return nil, errorsmod.Wrapf(ErrInvalidFunds, "invalid cw20 amount %q", msg.Amount)
	}
	var hook Cw20HookMsg
	if err := json.Unmarshal(msg.Msg, &hook); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidMsg, err.Error())
	}

	token := ec.info.Sender
	received := wasmvmtypes.Coin{Denom: token, Amount: amount.String()}
	ec.cw20 = token
	ec.info = wasmvmtypes.MessageInfo{Sender: msg.Sender, Funds: wasmvmtypes.Coins{received}}

	switch {
	case hook.Send != nil:
		m := hook.Send.Message
		if len(m.Funds) == 0 {
			m.Funds = wasmvmtypes.Coins{received}
		}
		return c.executeSend(ec, m)
	case hook.AMPReceive != nil:
		return c.ampReceiveCw20(ec, *hook.AMPReceive)
	default:
		return nil, errorsmod.Wrap(ErrInvalidMsg, "unknown cw20 hook message")
	}
}

// ampReceiveCw20 handles every message of pkt in one call: the deposited
// tokens back all of them at once.
func (c *Contract) ampReceiveCw20(ec executeContext, pkt amp.AMPPkt) (*wasmvmtypes.Response, error) {
	if err := c.ensurePacketSender(ec, ec.info.Sender); err != nil {
		return nil, err
	}
	if len(pkt.Messages) == 0 {
		return nil, invalidPacket("No messages supplied")
	}
	total, err := pkt.TotalFunds()
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidFunds, err.Error())
	}
	if err := checkFunds(ec.info.Funds, amp.FromSdkCoins(total)); err != nil {
		return nil, err
	}

	id, err := c.packetID(ec.ctx, ec.env, pkt.Ctx.ID)
	if err != nil {
		return nil, err
	}
	pkt = pkt.WithID(id)
	ec.pkt = &pkt

	res := newResponse()
	for idx, msg := range pkt.Messages {
		r, err := c.route(ec, msg, id, idx)
		if err != nil {
			return nil, err
		}
		merge(res, r)
	}
	res.Attributes = append(res.Attributes, attr("action", "handle_amp_packet"), attr("packet_id", id))
	return res, nil
}

// ensurePacketSender allows the kernel itself and registered ADOs.
func (c *Contract) ensurePacketSender(ec executeContext, sender string) error {
	if sender == ec.self() {
		return nil
	}
	ok, err := c.verifyADO(ec.ctx, sender)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
