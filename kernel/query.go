package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
)

// Query answers msg with its JSON encoded result.
func (c *Contract) Query(ctx context.Context, _ wasmvmtypes.Env, msg QueryMsg) ([]byte, error) {
	var (
		result any
		err    error
	)
	switch {
	case msg.KeyAddress != nil:
		result, err = c.keyAddress(ctx, msg.KeyAddress.Key)
	case msg.VerifyAddress != nil:
		result, err = c.verifyADO(ctx, msg.VerifyAddress.Address)
	case msg.ChannelInfo != nil:
		result, err = c.queryChannelInfo(ctx, msg.ChannelInfo.Chain)
	case msg.ChainName != nil:
		result, err = c.state.CurrChain.Get(ctx)
	case msg.Recoveries != nil:
		result, err = c.queryRecoveries(ctx, msg.Recoveries.Addr)
	case msg.PendingPackets != nil:
		result, err = c.queryPendingPackets(ctx, msg.PendingPackets.ChannelID)
	case msg.GetEnv != nil:
		result, err = c.queryEnv(ctx, msg.GetEnv.Variable)
	case msg.Owner != nil:
		var owner string
		owner, err = c.state.Owner.Get(ctx)
		result = OwnerResponse{Owner: owner}
	case msg.TxIndex != nil:
		result, err = c.txIndex(ctx)
	default:
		return nil, errorsmod.Wrap(ErrInvalidMsg, "unknown query message")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// QueryRaw decodes msg and runs Query.
func (c *Contract) QueryRaw(ctx context.Context, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	m, err := UnmarshalQueryMsg(msg)
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidMsg, err.Error())
	}
	return c.Query(ctx, env, m)
}

func (c *Contract) queryChannelInfo(ctx context.Context, chain string) (*ChannelInfoResponse, error) {
	info, err := c.state.ChainToChannel.Get(ctx, chain)
	if errors.Is(err, collections.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ChannelInfoResponse{
		Ics20:            info.Ics20ChannelID,
		Direct:           info.DirectChannelID,
		KernelAddress:    info.KernelAddress,
		SupportedModules: info.SupportedModules,
	}, nil
}

func (c *Contract) queryRecoveries(ctx context.Context, addr string) (wasmvmtypes.Coins, error) {
	coins, err := c.state.IBCFundRecovery.Get(ctx, addr)
	if errors.Is(err, collections.ErrNotFound) {
		return wasmvmtypes.Coins{}, nil
	}
	return coins, err
}

func (c *Contract) queryPendingPackets(ctx context.Context, channel *string) (PendingPacketResponse, error) {
	var ranger collections.Ranger[collections.Pair[string, uint64]]
	if channel != nil {
		ranger = collections.NewPrefixedPairRange[string, uint64](*channel)
	}

	res := PendingPacketResponse{Packets: []PacketInfoAndSequence{}}
	err := c.state.ChannelToExecuteMsg.Walk(ctx, ranger, func(key collections.Pair[string, uint64], info Ics20PacketInfo) (bool, error) {
		res.Packets = append(res.Packets, PacketInfoAndSequence{PacketInfo: info, Sequence: key.K2()})
		return false, nil
	})
	return res, err
}

func (c *Contract) queryEnv(ctx context.Context, variable string) (EnvResponse, error) {
	value, err := c.state.EnvVariables.Get(ctx, strings.ToUpper(variable))
	if errors.Is(err, collections.ErrNotFound) {
		return EnvResponse{}, nil
	}
	if err != nil {
		return EnvResponse{}, err
	}
	return EnvResponse{Value: &value}, nil
}
