package amp

import (
	"encoding/json"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

type ReplyOn string

const (
	ReplyAlways  ReplyOn = "always"
	ReplySuccess ReplyOn = "success"
	ReplyError   ReplyOn = "error"
	ReplyNever   ReplyOn = "never"
)

// Apply sets the matching wasmvm reply mode on sub. An unset value replies always.
func (r ReplyOn) Apply(sub *wasmvmtypes.SubMsg) {
	switch r {
	case ReplySuccess:
		sub.ReplyOn = wasmvmtypes.ReplySuccess
	case ReplyError:
		sub.ReplyOn = wasmvmtypes.ReplyError
	case ReplyNever:
		sub.ReplyOn = wasmvmtypes.ReplyNever
	default:
		sub.ReplyOn = wasmvmtypes.ReplyAlways
	}
}

type IBCConfig struct {
	RecoveryAddr *AndrAddr `json:"recovery_addr,omitempty"`
}

type AMPMsgConfig struct {
	ReplyOn     ReplyOn    `json:"reply_on"`
	ExitAtError bool       `json:"exit_at_error"`
	GasLimit    *uint64    `json:"gas_limit,omitempty"`
	Direct      bool       `json:"direct"`
	IBCConfig   *IBCConfig `json:"ibc_config,omitempty"`
}

func DefaultConfig() AMPMsgConfig {
	return AMPMsgConfig{
		ReplyOn:     ReplyAlways,
		ExitAtError: true,
	}
}

// AsDirect returns a copy of the config that skips packet wrapping.
func (c AMPMsgConfig) AsDirect() AMPMsgConfig {
	c.Direct = true
	return c
}

// AMPMsg is one addressed message. An empty Message means a plain funds transfer.
type AMPMsg struct {
	Recipient AndrAddr          `json:"recipient"`
	Message   []byte            `json:"message"`
	Funds     wasmvmtypes.Coins `json:"funds"`
	Config    AMPMsgConfig      `json:"config"`
}

func NewAMPMsg(recipient AndrAddr, message []byte, funds wasmvmtypes.Coins) AMPMsg {
	return AMPMsg{
		Recipient: recipient,
		Message:   message,
		Funds:     funds,
		Config:    DefaultConfig(),
	}
}

func (m AMPMsg) WithConfig(config AMPMsgConfig) AMPMsg {
	m.Config = config
	return m
}

// RecoveryAddr is the address refunds go to when a cross-chain transfer fails, if set.
func (m AMPMsg) RecoveryAddr() (AndrAddr, bool) {
	if m.Config.IBCConfig == nil || m.Config.IBCConfig.RecoveryAddr == nil {
		return "", false
	}
	return *m.Config.IBCConfig.RecoveryAddr, true
}

// ToDirectSubMsg executes the raw message on addr, honouring reply_on and gas_limit.
func (m AMPMsg) ToDirectSubMsg(addr string, replyID uint64) wasmvmtypes.SubMsg {
	sub := wasmvmtypes.SubMsg{
		ID: replyID,
		Msg: wasmvmtypes.CosmosMsg{
			Wasm: &wasmvmtypes.WasmMsg{
				Execute: &wasmvmtypes.ExecuteMsg{
					ContractAddr: addr,
					Msg:          m.Message,
					Funds:        m.Funds,
				},
			},
		},
		GasLimit: m.Config.GasLimit,
	}
	m.Config.ReplyOn.Apply(&sub)
	return sub
}

type CrossChainHop struct {
	ChannelID      string    `json:"channel_id"`
	FromChain      string    `json:"from_chain"`
	ToChain        string    `json:"to_chain"`
	OriginAddress  string    `json:"origin_address"`
	OriginUsername *AndrAddr `json:"origin_username,omitempty"`
}

type AMPCtx struct {
	Origin         string          `json:"origin"`
	OriginUsername *AndrAddr       `json:"origin_username,omitempty"`
	PreviousSender string          `json:"previous_sender"`
	ID             string          `json:"id,omitempty"`
	Hops           []CrossChainHop `json:"hops"`
}

// AMPPkt carries messages together with their provenance.
type AMPPkt struct {
	Messages []AMPMsg `json:"messages"`
	Ctx      AMPCtx   `json:"ctx"`
}

// ExecuteMsg is the message every packet-aware contract accepts.
type ExecuteMsg struct {
	AMPReceive *AMPPkt `json:"amp_receive,omitempty"`
}

func NewAMPPkt(origin, previousSender string, messages ...AMPMsg) AMPPkt {
	return AMPPkt{
		Messages: messages,
		Ctx: AMPCtx{
			Origin:         origin,
			PreviousSender: previousSender,
			Hops:           []CrossChainHop{},
		},
	}
}

// FromCtx continues ctx when present, otherwise starts a packet originating at
// currentAddress. previous_sender is always currentAddress.
func FromCtx(ctx *AMPPkt, currentAddress string) AMPPkt {
	if ctx == nil {
		return NewAMPPkt(currentAddress, currentAddress)
	}
	pkt := AMPPkt{Ctx: ctx.Ctx}
	pkt.Ctx.Hops = append([]CrossChainHop{}, ctx.Ctx.Hops...)
	pkt.Ctx.PreviousSender = currentAddress
	return pkt
}

func (p AMPPkt) WithID(id string) AMPPkt {
	p.Ctx.ID = id
	return p
}

func (p AMPPkt) WithMessages(messages ...AMPMsg) AMPPkt {
	p.Messages = messages
	return p
}

// AddHop returns a copy of the packet with hop appended; the receiver is untouched.
func (p AMPPkt) AddHop(hop CrossChainHop) AMPPkt {
	hops := make([]CrossChainHop, 0, len(p.Ctx.Hops)+1)
	hops = append(hops, p.Ctx.Hops...)
	p.Ctx.Hops = append(hops, hop)
	return p
}

// Remaining returns the packet without its first message, and whether any are left.
func (p AMPPkt) Remaining() (AMPPkt, bool) {
	if len(p.Messages) <= 1 {
		return p.WithMessages(), false
	}
	rest := make([]AMPMsg, len(p.Messages)-1)
	copy(rest, p.Messages[1:])
	return p.WithMessages(rest...), true
}

func (p AMPPkt) TotalFunds() (sdk.Coins, error) {
	lists := make([]wasmvmtypes.Coins, 0, len(p.Messages))
	for _, m := range p.Messages {
		lists = append(lists, m.Funds)
	}
	return MergeCoins(lists...)
}

// ToSubMsg sends the packet to addr as {"amp_receive": ...}, replying always.
func (p AMPPkt) ToSubMsg(addr string, funds wasmvmtypes.Coins, replyID uint64) (wasmvmtypes.SubMsg, error) {
	msg, err := json.Marshal(ExecuteMsg{AMPReceive: &p})
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	if funds == nil {
		funds = wasmvmtypes.Coins{}
	}
	return wasmvmtypes.SubMsg{
		ID: replyID,
		Msg: wasmvmtypes.CosmosMsg{
			Wasm: &wasmvmtypes.WasmMsg{
				Execute: &wasmvmtypes.ExecuteMsg{
					ContractAddr: addr,
					Msg:          msg,
					Funds:        funds,
				},
			},
		},
		ReplyOn: wasmvmtypes.ReplyAlways,
	}, nil
}
