package kernel

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// create instantiates an ADO of the given type, here or through the kernel on msg.Chain.
func (c *Contract) create(ec executeContext, msg Create) (*wasmvmtypes.Response, error) {
	if msg.Chain == nil {
		return c.createLocal(ec, msg.AdoType, msg.Msg, msg.Owner)
	}
	currChain, err := c.state.CurrChain.Get(ec.ctx)
	if err != nil {
		return nil, err
	}
	if *msg.Chain == currChain {
		return c.createLocal(ec, msg.AdoType, msg.Msg, msg.Owner)
	}
	return c.createRemote(ec, msg, *msg.Chain)
}

func (c *Contract) createRemote(ec executeContext, msg Create, chain string) (*wasmvmtypes.Response, error) {
	if !c.opts.CrossChainCreate {
		return nil, ErrCrossChainComponentsCurrentlyDisabled
	}
	if msg.Owner == nil {
		return nil, errorsmod.Wrap(ErrUnauthorized, "an owner is required to create on another chain")
	}
	info, err := c.channelInfo(ec, chain)
	if err != nil {
		return nil, err
	}
	if info.DirectChannelID == nil {
		return nil, invalidPacket("Channel not found for chain %s", chain)
	}

	data := mustJSON(IbcExecuteMsg{CreateADO: &CreateADO{
		InstantiationMsg: msg.Msg,
		Owner:            *msg.Owner,
		AdoType:          msg.AdoType,
	}})
	send := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{SendPacket: &wasmvmtypes.SendPacketMsg{
		ChannelID: *info.DirectChannelID,
		Data:      data,
		Timeout:   c.timeout(ec.env),
	}}}

	res := newResponse(
		attr("action", "execute_create"),
		attr("ado_type", msg.AdoType),
		attr("owner", msg.Owner.String()),
		attr("chain", chain),
		attr("receiving_kernel_address", info.KernelAddress),
	)
	res.Messages = append(res.Messages, subMsg(0, send, amp.ReplyNever))
	return res, nil
}

func (c *Contract) createLocal(ec executeContext, adoType string, initMsg []byte, owner *amp.AndrAddr) (*wasmvmtypes.Response, error) {
	adoOwner := amp.AndrAddr(ec.info.Sender)
	if owner != nil {
		adoOwner = *owner
	}
	ownerAddr, err := c.resolveAddress(ec.ctx, adoOwner)
	if err != nil {
		return nil, err
	}
	codeID, err := c.codeID(ec.ctx, adoType)
	if err != nil {
		return nil, err
	}

	instantiate := wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Instantiate: &wasmvmtypes.InstantiateMsg{
		Admin:  ownerAddr,
		CodeID: codeID,
		Msg:    initMsg,
		Funds:  wasmvmtypes.Coins{},
		Label:  fmt.Sprintf("ADO:%s", adoType),
	}}}
	if err := c.state.ADOOwner.Set(ec.ctx, ownerAddr); err != nil {
		return nil, err
	}

	c.logger.Info("creating ado", logger.WithField("ado_type", adoType), logger.WithField("code_id", codeID), logger.WithField("owner", ownerAddr))
	res := newResponse(
		attr("action", "execute_create"),
		attr("ado_type", adoType),
		attr("owner", adoOwner.String()),
	)
	res.Messages = append(res.Messages, subMsg(ReplyCreateADO, instantiate, amp.ReplyAlways))
	return res, nil
}
