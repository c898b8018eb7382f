package kernel

import (
	"errors"
	"regexp"
	"strings"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

const maxEnvLength = 100

var envKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func (c *Contract) upsertKeyAddress(ec executeContext, msg UpsertKeyAddress) (*wasmvmtypes.Response, error) {
	if err := c.ensureOwner(ec); err != nil {
		return nil, err
	}
	if err := c.api.AddrValidate(msg.Value); err != nil {
		return nil, err
	}
	if err := c.state.KernelAddresses.Remove(ec.ctx, msg.Key); err != nil {
		return nil, err
	}
	if err := c.state.KernelAddresses.Set(ec.ctx, msg.Key, msg.Value); err != nil {
		return nil, err
	}

	c.logger.Info("key address updated", logger.WithField("key", msg.Key), logger.WithField("value", msg.Value))
	return newResponse(
		attr("action", "upsert_key_address"),
		attr("key", msg.Key),
		attr("value", msg.Value),
	), nil
}

// assignChannels points chain at new channels. Channels it replaces stop
// resolving to chain.
func (c *Contract) assignChannels(ec executeContext, msg AssignChannels) (*wasmvmtypes.Response, error) {
	if err := c.ensureOwner(ec); err != nil {
		return nil, err
	}

	info, err := c.state.ChainToChannel.Get(ec.ctx, msg.Chain)
	if err != nil && !errors.Is(err, collections.ErrNotFound) {
		return nil, err
	}
	info.KernelAddress = msg.KernelAddress
	if msg.SupportedModules != nil {
		info.SupportedModules = msg.SupportedModules
	}
	if info.SupportedModules == nil {
		info.SupportedModules = []string{}
	}

	if msg.DirectChannelID != nil {
		if err := c.replaceChannel(ec, info.DirectChannelID, *msg.DirectChannelID, msg.Chain); err != nil {
			return nil, err
		}
		info.DirectChannelID = msg.DirectChannelID
	}
	if msg.Ics20ChannelID != nil {
		if err := c.replaceChannel(ec, info.Ics20ChannelID, *msg.Ics20ChannelID, msg.Chain); err != nil {
			return nil, err
		}
		info.Ics20ChannelID = msg.Ics20ChannelID
	}
	if err := c.state.ChainToChannel.Set(ec.ctx, msg.Chain, info); err != nil {
		return nil, err
	}

	c.logger.Info("channels assigned",
		logger.WithField("chain", msg.Chain),
		logger.WithField("direct", optional(info.DirectChannelID)),
		logger.WithField("ics20", optional(info.Ics20ChannelID)),
	)
	return newResponse(
		attr("action", "assign_channel"),
		attr("ics20_channel_id", optional(info.Ics20ChannelID)),
		attr("direct_channel_id", optional(info.DirectChannelID)),
		attr("chain", msg.Chain),
		attr("kernel_address", info.KernelAddress),
		attr("supported_modules", strings.Join(info.SupportedModules, ",")),
	), nil
}

func (c *Contract) replaceChannel(ec executeContext, old *string, channel, chain string) error {
	if old != nil && *old != channel {
		if err := c.state.ChannelToChain.Remove(ec.ctx, *old); err != nil {
			return err
		}
	}
	return c.state.ChannelToChain.Set(ec.ctx, channel, chain)
}

func optional(s *string) string {
	if s == nil {
		return "None"
	}
	return *s
}

func (c *Contract) updateChainName(ec executeContext, msg UpdateChainName) (*wasmvmtypes.Response, error) {
	if err := c.ensureOwner(ec); err != nil {
		return nil, err
	}
	if msg.ChainName == "" {
		return nil, errorsmod.Wrap(ErrInvalidMsg, "chain name cannot be empty")
	}
	if err := c.state.CurrChain.Set(ec.ctx, msg.ChainName); err != nil {
		return nil, err
	}
	return newResponse(
		attr("action", "update_chain_name"),
		attr("chain_name", msg.ChainName),
	), nil
}

func (c *Contract) setEnv(ec executeContext, msg SetEnv) (*wasmvmtypes.Response, error) {
	if err := c.ensureOwner(ec); err != nil {
		return nil, err
	}
	if len(msg.Variable) > maxEnvLength {
		return nil, errorsmod.Wrap(ErrInvalidEnvironmentVariable, "Environment variable name length exceeds the maximum allowed length of 100 characters")
	}
	if !envKeyPattern.MatchString(msg.Variable) {
		return nil, errorsmod.Wrap(ErrInvalidEnvironmentVariable, "Environment variable name can only contain alphanumeric characters and underscores")
	}
	if msg.Value == "" {
		return nil, errorsmod.Wrap(ErrInvalidEnvironmentVariable, "Environment variable value cannot be empty")
	}
	if len(msg.Value) > maxEnvLength {
		return nil, errorsmod.Wrap(ErrInvalidEnvironmentVariable, "Environment variable value length exceeds the maximum allowed length of 100 characters")
	}

	key := strings.ToUpper(msg.Variable)
	if err := c.state.EnvVariables.Set(ec.ctx, key, msg.Value); err != nil {
		return nil, err
	}
	return newResponse(
		attr("action", "set_env"),
		attr("variable", key),
		attr("value", msg.Value),
	), nil
}

func (c *Contract) unsetEnv(ec executeContext, msg UnsetEnv) (*wasmvmtypes.Response, error) {
	if err := c.ensureOwner(ec); err != nil {
		return nil, err
	}
	key := strings.ToUpper(msg.Variable)
	has, err := c.state.EnvVariables.Has(ec.ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrEnvironmentVariableNotFound
	}
	if err := c.state.EnvVariables.Remove(ec.ctx, key); err != nil {
		return nil, err
	}
	return newResponse(
		attr("action", "unset_env"),
		attr("variable", key),
	), nil
}

func (c *Contract) internal(ec executeContext, msg InternalMsg) (*wasmvmtypes.Response, error) {
	if msg.RegisterUserCrossChain == nil {
		return nil, errorsmod.Wrap(ErrInvalidMsg, "unknown internal message")
	}
	return c.registerUserCrossChain(ec, *msg.RegisterUserCrossChain)
}

// registerUserCrossChain lets the VFS mirror a username registration to another chain.
func (c *Contract) registerUserCrossChain(ec executeContext, msg RegisterUserCrossChain) (*wasmvmtypes.Response, error) {
	vfs, err := c.keyAddress(ec.ctx, VFSKey)
	if err != nil {
		return nil, err
	}
	if ec.info.Sender != vfs {
		return nil, ErrUnauthorized
	}
	info, err := c.channelInfo(ec, msg.Chain)
	if err != nil {
		return nil, err
	}
	if info.DirectChannelID == nil {
		return nil, invalidPacket("Channel not found for chain %s", msg.Chain)
	}

	data := mustJSON(IbcExecuteMsg{RegisterUsername: &RegisterUsername{Username: msg.Username, Address: msg.Address}})
	send := wasmvmtypes.CosmosMsg{IBC: &wasmvmtypes.IBCMsg{SendPacket: &wasmvmtypes.SendPacketMsg{
		ChannelID: *info.DirectChannelID,
		Data:      data,
		Timeout:   c.timeout(ec.env),
	}}}

	res := newResponse(
		attr("action", "register_user_cross_chain"),
		attr("username", msg.Username),
		attr("address", msg.Address),
		attr("chain", msg.Chain),
		attr("receiving_kernel_address", info.KernelAddress),
	)
	res.Messages = append(res.Messages, subMsg(0, send, amp.ReplyNever))
	return res, nil
}
