package kernel

import (
	"context"
	"encoding/json"
	"time"

	corestore "cosmossdk.io/core/store"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
)

// PacketLifetime is how long an outbound packet stays valid.
const PacketLifetime = 604800 * time.Second

type Options struct {
	// CrossChainCreate allows ADO creation on, and from, remote chains.
	CrossChainCreate bool
	PacketLifetime   time.Duration
	Logger           logger.Logger
	Indicators       Indicators
}

func DefaultOptions() Options {
	return Options{
		PacketLifetime: PacketLifetime,
		Logger:         logger.NewLogrusLogger("kernel", nil),
		Indicators:     NoopIndicators{},
	}
}

// Contract is the kernel: the router every ADO sends its messages through.
type Contract struct {
	state      *State
	querier    Querier
	api        AddressAPI
	opts       Options
	logger     logger.Logger
	indicators Indicators
}

func NewContract(storeService corestore.KVStoreService, querier Querier, api AddressAPI, opts Options) (*Contract, error) {
	state, err := NewState(storeService)
	if err != nil {
		return nil, err
	}
	if opts.PacketLifetime == 0 {
		opts.PacketLifetime = PacketLifetime
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogrusLogger("kernel", nil)
	}
	if opts.Indicators == nil {
		opts.Indicators = NoopIndicators{}
	}
	return &Contract{
		state:      state,
		querier:    querier,
		api:        api,
		opts:       opts,
		logger:     opts.Logger,
		indicators: opts.Indicators,
	}, nil
}

func (c *Contract) State() *State {
	return c.state
}

// executeContext is everything a handler needs about the call it serves.
type executeContext struct {
	ctx  context.Context
	env  wasmvmtypes.Env
	info wasmvmtypes.MessageInfo
	// packet being continued, nil for a top level call
	pkt *amp.AMPPkt
	// token contract when info.Funds holds a CW20 amount
	cw20 string
}

func (ec executeContext) self() string {
	return ec.env.Contract.Address
}

func (c *Contract) Instantiate(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg InstantiateMsg) (*wasmvmtypes.Response, error) {
	owner := msg.Owner
	if owner == "" {
		owner = info.Sender
	}
	if err := c.api.AddrValidate(owner); err != nil {
		return nil, err
	}
	if err := c.state.Owner.Set(ctx, owner); err != nil {
		return nil, err
	}
	if err := c.state.CurrChain.Set(ctx, msg.ChainName); err != nil {
		return nil, err
	}
	if err := c.state.TxIndex.Set(ctx, 0); err != nil {
		return nil, err
	}

	c.logger.Info("kernel instantiated", logger.WithField("owner", owner), logger.WithField("chain", msg.ChainName))
	return newResponse(
		attr("method", "instantiate"),
		attr("type", "kernel"),
		attr("owner", owner),
	), nil
}

func (c *Contract) Execute(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg ExecuteMsg) (*wasmvmtypes.Response, error) {
	ec := executeContext{ctx: ctx, env: env, info: info}

	switch {
	case msg.Send != nil:
		return c.executeSend(ec, msg.Send.Message)
	case msg.AMPReceive != nil:
		return c.ampReceive(ec, *msg.AMPReceive)
	case msg.Receive != nil:
		return c.receiveCw20(ec, *msg.Receive)
	case msg.TriggerRelay != nil:
		return c.triggerRelay(ec, *msg.TriggerRelay)
	case msg.UpsertKeyAddress != nil:
		return c.upsertKeyAddress(ec, *msg.UpsertKeyAddress)
	case msg.AssignChannels != nil:
		return c.assignChannels(ec, *msg.AssignChannels)
	case msg.UpdateChainName != nil:
		return c.updateChainName(ec, *msg.UpdateChainName)
	case msg.SetEnv != nil:
		return c.setEnv(ec, *msg.SetEnv)
	case msg.UnsetEnv != nil:
		return c.unsetEnv(ec, *msg.UnsetEnv)
	case msg.Recover != nil:
		return c.recover(ec)
	case msg.Create != nil:
		return c.create(ec, *msg.Create)
	case msg.Internal != nil:
		return c.internal(ec, *msg.Internal)
	default:
		return nil, errorsmod.Wrap(ErrInvalidMsg, "unknown execute message")
	}
}

// ExecuteRaw decodes msg and runs Execute.
func (c *Contract) ExecuteRaw(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	m, err := UnmarshalExecuteMsg(msg)
	if err != nil {
		return nil, errorsmod.Wrap(ErrInvalidMsg, err.Error())
	}
	return c.Execute(ctx, env, info, m)
}

func (c *Contract) Sudo(ctx context.Context, env wasmvmtypes.Env, msg SudoMsg) (*wasmvmtypes.Response, error) {
	if msg.IBCLifecycleComplete == nil {
		return nil, errorsmod.Wrap(ErrInvalidMsg, "unknown sudo message")
	}
	return c.ibcLifecycleComplete(ctx, env, *msg.IBCLifecycleComplete)
}

func (c *Contract) isOwner(ctx context.Context, addr string) (bool, error) {
	owner, err := c.state.Owner.Get(ctx)
	if err != nil {
		return false, err
	}
	return owner == addr, nil
}

func (c *Contract) ensureOwner(ec executeContext) error {
	ok, err := c.isOwner(ec.ctx, ec.info.Sender)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (c *Contract) timeout(env wasmvmtypes.Env) wasmvmtypes.IBCTimeout {
	return wasmvmtypes.IBCTimeout{
		Timestamp: uint64(env.Block.Time) + uint64(c.opts.PacketLifetime.Nanoseconds()),
	}
}

func newResponse(attrs ...wasmvmtypes.EventAttribute) *wasmvmtypes.Response {
	return &wasmvmtypes.Response{
		Messages:   []wasmvmtypes.SubMsg{},
		Attributes: attrs,
		Events:     []wasmvmtypes.Event{},
	}
}

func attr(key, value string) wasmvmtypes.EventAttribute {
	return wasmvmtypes.EventAttribute{Key: key, Value: value}
}

// merge appends other's messages, attributes and events to res.
func merge(res, other *wasmvmtypes.Response) *wasmvmtypes.Response {
	if other == nil {
		return res
	}
	res.Messages = append(res.Messages, other.Messages...)
	res.Attributes = append(res.Attributes, other.Attributes...)
	res.Events = append(res.Events, other.Events...)
	return res
}

func subMsg(id uint64, msg wasmvmtypes.CosmosMsg, replyOn amp.ReplyOn) wasmvmtypes.SubMsg {
	sub := wasmvmtypes.SubMsg{ID: id, Msg: msg}
	replyOn.Apply(&sub)
	return sub
}

func mustJSON(v any) []byte {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bz
}
