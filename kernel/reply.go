package kernel

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// Sub-message reply identifiers.
const (
	ReplyAMPMsg             uint64 = 1
	ReplyCreateADO          uint64 = 2
	ReplyIBCTransfer        uint64 = 3
	ReplyRecovery           uint64 = 4
	ReplyIBCTransferWithMsg uint64 = 5
	ReplyRegisterUsername   uint64 = 6
)

func (c *Contract) Reply(ctx context.Context, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	switch reply.ID {
	case ReplyAMPMsg:
		if reply.Result.Err != "" {
			return nil, errorsmod.Wrapf(ErrGeneric, "%d:%s", reply.ID, reply.Result.Err)
		}
		return newResponse(attr("action", "message_sent")), nil
	case ReplyCreateADO:
		return c.replyCreateADO(ctx, reply)
	case ReplyIBCTransfer:
		return c.replyIBCTransfer(ctx, env, reply)
	case ReplyRecovery:
		if reply.Result.Err != "" {
			return nil, errorsmod.Wrapf(ErrGeneric, "recovery failed: %s", reply.Result.Err)
		}
		c.indicators.IncrementRecoveries()
		return newResponse(attr("action", "recovery")), nil
	case ReplyIBCTransferWithMsg:
		return c.replyIBCTransferWithMsg(ctx, env, reply)
	case ReplyRegisterUsername:
		if reply.Result.Err != "" {
			return nil, errorsmod.Wrapf(ErrGeneric, "register username: %s", reply.Result.Err)
		}
		return newResponse(), nil
	default:
		return nil, errorsmod.Wrapf(ErrInvalidReplyID, "%d", reply.ID)
	}
}

// replyIBCTransfer completes the first step of a funds relay. On success the
// staged record is filed under the transfer's sequence and the paired message is
// relayed at once; on failure the sender gets the funds back.
func (c *Contract) replyIBCTransfer(ctx context.Context, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	record, err := c.state.PendingMsgAndFunds.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, invalidPacket("No pending transfer")
	}
	if err != nil {
		return nil, err
	}
	if err := c.state.PendingMsgAndFunds.Remove(ctx); err != nil {
		return nil, err
	}

	if reply.Result.Err != "" {
		res := c.refund(record.Sender, record.Funds, "transfer_failed")
		res.Attributes = append(res.Attributes, attr("error", reply.Result.Err))
		return res, nil
	}
	if reply.Result.Ok == nil {
		return nil, invalidPacket("transfer reply carries no result")
	}

	seq, err := decodeTransferSequence(reply.Result.Ok.Data)
	if err != nil {
		return nil, err
	}
	key := collections.Join(record.Channel, seq)
	if err := c.state.ChannelToExecuteMsg.Set(ctx, key, record); err != nil {
		return nil, err
	}
	c.logger.Debug("transfer sent", logger.WithField("channel", record.Channel), logger.WithField("sequence", seq))

	res, err := c.relayTransferMessage(ctx, env, key)
	if err != nil {
		return nil, err
	}
	res.Attributes = append(res.Attributes, attr("transfer_sequence", fmt.Sprint(seq)))
	return res, nil
}

// replyIBCTransferWithMsg settles a message that arrived with funds. If it
// failed, the funds go back to the original sender over ICS20.
func (c *Contract) replyIBCTransferWithMsg(ctx context.Context, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	refund, err := c.state.RefundData.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, invalidPacket("No refund data")
	}
	if err != nil {
		return nil, err
	}
	if err := c.state.RefundData.Remove(ctx); err != nil {
		return nil, err
	}

	if reply.Result.Err == "" {
		return newResponse(attr("action", "transfer_with_msg_executed")), nil
	}

	transfer := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{Transfer: &wasmvmtypes.TransferMsg{
		ChannelID: refund.Channel,
		ToAddress: refund.OriginalSender,
		Amount:    refund.Funds,
		Timeout:   c.timeout(env),
	}}}
	c.logger.Warn("refunding over ics20",
		logger.WithField("to", refund.OriginalSender),
		logger.WithField("channel", refund.Channel),
		logger.WithField("error", reply.Result.Err),
	)
	c.indicators.IncrementRefunds("execute_failed")
	c.indicators.IncrementSettlements(SettlementRefunded)

	res := newResponse(
		attr("action", "refund_transfer"),
		attr("recipient", refund.OriginalSender),
		attr("channel", refund.Channel),
		attr("error", reply.Result.Err),
	)
	res.Messages = append(res.Messages, subMsg(0, transfer, amp.ReplyNever))
	return res, nil
}

func (c *Contract) replyCreateADO(ctx context.Context, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	if reply.Result.Err != "" {
		return nil, errorsmod.Wrapf(ErrGeneric, "create ado: %s", reply.Result.Err)
	}
	owner, err := c.state.ADOOwner.Get(ctx)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	if err := c.state.ADOOwner.Remove(ctx); err != nil {
		return nil, err
	}

	res := newResponse(attr("action", "ado_created"), attr("owner", owner))
	if reply.Result.Ok != nil {
		if addr := eventAttribute(reply.Result.Ok.Events, "instantiate", "_contract_address"); addr != "" {
			res.Attributes = append(res.Attributes, attr("ado_address", addr))
		}
	}
	return res, nil
}

func eventAttribute(events []wasmvmtypes.Event, typ, key string) string {
	for _, e := range events {
		if e.Type != typ {
			continue
		}
		for _, a := range e.Attributes {
			if a.Key == key {
				return a.Value
			}
		}
	}
	return ""
}
