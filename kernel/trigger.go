package kernel

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/collections"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// triggerRelay replays a transfer acknowledgement observed off chain.
func (c *Contract) triggerRelay(ec executeContext, msg TriggerRelay) (*wasmvmtypes.Response, error) {
	trigger, err := c.keyAddress(ec.ctx, TriggerKey)
	if err != nil || trigger != ec.info.Sender {
		return nil, ErrUnauthorized
	}
	ack, err := ParseAck(msg.PacketAck)
	if err != nil {
		return nil, err
	}

	key := collections.Join(msg.ChannelID, msg.PacketSequence)
	c.logger.Info("relay triggered",
		logger.WithField("channel", msg.ChannelID),
		logger.WithField("sequence", msg.PacketSequence),
		logger.WithField("success", ack.Success()),
	)
	if ack.Success() {
		return c.relayTransferMessage(ec.ctx, ec.env, key)
	}
	return c.refundTransfer(ec.ctx, key)
}

// ibcLifecycleComplete is called by the transfer middleware once a tracked
// transfer is acknowledged or times out. Funds returned by a failed transfer are
// credited to the sender's recovery ledger.
func (c *Contract) ibcLifecycleComplete(ctx context.Context, env wasmvmtypes.Env, msg IBCLifecycleComplete) (*wasmvmtypes.Response, error) {
	switch {
	case msg.IBCAck != nil:
		if msg.IBCAck.Success {
			return newResponse(
				attr("action", "ibc_ack"),
				attr("channel", msg.IBCAck.Channel),
				attr("sequence", fmt.Sprint(msg.IBCAck.Sequence)),
			), nil
		}
		return c.creditRecovery(ctx, collections.Join(msg.IBCAck.Channel, msg.IBCAck.Sequence), "ack_failed")
	case msg.IBCTimeout != nil:
		return c.creditRecovery(ctx, collections.Join(msg.IBCTimeout.Channel, msg.IBCTimeout.Sequence), "timeout")
	default:
		return nil, invalidPacket("empty lifecycle message")
	}
}

func (c *Contract) creditRecovery(ctx context.Context, key collections.Pair[string, uint64], reason string) (*wasmvmtypes.Response, error) {
	record, err := c.state.ChannelToExecuteMsg.Get(ctx, key)
	if errors.Is(err, collections.ErrNotFound) {
		return newResponse(attr("action", reason), attr("tracked", "false")), nil
	}
	if err != nil {
		return nil, err
	}

	existing, err := c.state.IBCFundRecovery.Get(ctx, record.Sender)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	total, err := amp.MergeCoins(existing, wasmvmtypes.Coins{record.Funds})
	if err != nil {
		return nil, err
	}
	if err := c.state.IBCFundRecovery.Set(ctx, record.Sender, amp.FromSdkCoins(total)); err != nil {
		return nil, err
	}
	if err := c.state.ChannelToExecuteMsg.Remove(ctx, key); err != nil {
		return nil, err
	}

	c.logger.Warn("funds added to recovery",
		logger.WithField("sender", record.Sender),
		logger.WithField("funds", record.Funds),
		logger.WithField("reason", reason),
	)
	c.indicators.IncrementSettlements(SettlementRecovery)

	return newResponse(
		attr("action", reason),
		attr("recovery_addr", record.Sender),
		attr("recovered", total.String()),
	), nil
}
