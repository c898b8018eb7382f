package kernel

import (
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// recover pays out everything held in the caller's recovery ledger.
func (c *Contract) recover(ec executeContext) (*wasmvmtypes.Response, error) {
	recoveries, err := c.state.IBCFundRecovery.Get(ec.ctx, ec.info.Sender)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	if len(recoveries) == 0 {
		return nil, errorsmod.Wrap(ErrGeneric, "No recoveries found")
	}
	if err := c.state.IBCFundRecovery.Remove(ec.ctx, ec.info.Sender); err != nil {
		return nil, err
	}

	send := wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{
		ToAddress: ec.info.Sender,
		Amount:    recoveries,
	}}}
	c.logger.Warn("recovering funds", logger.WithField("sender", ec.info.Sender), logger.WithField("funds", recoveries))

	res := newResponse(attr("action", "recover"))
	res.Messages = append(res.Messages, subMsg(ReplyRecovery, send, amp.ReplyAlways))
	return res, nil
}
