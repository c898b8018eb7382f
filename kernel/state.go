package kernel

import (
	"encoding/json"
	"fmt"

	"cosmossdk.io/collections"
	collcodec "cosmossdk.io/collections/codec"
	corestore "cosmossdk.io/core/store"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

// ChannelInfo holds the channels and remote kernel used to reach one chain.
type ChannelInfo struct {
	Ics20ChannelID   *string  `json:"ics20_channel_id,omitempty"`
	DirectChannelID  *string  `json:"direct_channel_id,omitempty"`
	KernelAddress    string   `json:"kernel_address"`
	SupportedModules []string `json:"supported_modules"`
}

// Ics20PacketInfo is the follow-up message waiting on an ICS20 transfer.
// Pending flips to true once the follow-up has been relayed.
type Ics20PacketInfo struct {
	Sender    string           `json:"sender"`
	Recipient amp.AndrAddr     `json:"recipient"`
	Message   []byte           `json:"message"`
	Funds     wasmvmtypes.Coin `json:"funds"`
	Channel   string           `json:"channel"`
	Pending   bool             `json:"pending"`
}

// RefundData is staged while an inbound funded message executes, so a failure can
// send the funds back over ICS20.
type RefundData struct {
	OriginalSender string           `json:"original_sender"`
	Funds          wasmvmtypes.Coin `json:"funds"`
	Channel        string           `json:"channel"`
}

var (
	OwnerPrefix               = collections.NewPrefix(0)
	CurrChainPrefix           = collections.NewPrefix(1)
	TxIndexPrefix             = collections.NewPrefix(2)
	KernelAddressesPrefix     = collections.NewPrefix(3)
	ChainToChannelPrefix      = collections.NewPrefix(4)
	ChannelToChainPrefix      = collections.NewPrefix(5)
	ChannelToExecuteMsgPrefix = collections.NewPrefix(6)
	PendingMsgAndFundsPrefix  = collections.NewPrefix(7)
	IBCFundRecoveryPrefix     = collections.NewPrefix(8)
	EnvVariablesPrefix        = collections.NewPrefix(9)
	ADOOwnerPrefix            = collections.NewPrefix(10)
	RefundDataPrefix          = collections.NewPrefix(11)
)

type State struct {
	Schema collections.Schema

	Owner     collections.Item[string]
	CurrChain collections.Item[string]
	TxIndex   collections.Item[uint64]

	KernelAddresses collections.Map[string, string]
	ChainToChannel  collections.Map[string, ChannelInfo]
	ChannelToChain  collections.Map[string, string]

	// keyed by (ics20 channel, packet sequence)
	ChannelToExecuteMsg collections.Map[collections.Pair[string, uint64], Ics20PacketInfo]
	// staged between the transfer sub-message and its reply
	PendingMsgAndFunds collections.Item[Ics20PacketInfo]
	IBCFundRecovery    collections.Map[string, wasmvmtypes.Coins]

	EnvVariables collections.Map[string, string]
	ADOOwner     collections.Item[string]
	RefundData   collections.Item[RefundData]
}

func NewState(storeService corestore.KVStoreService) (*State, error) {
	sb := collections.NewSchemaBuilder(storeService)
	s := &State{
		Owner:     collections.NewItem(sb, OwnerPrefix, "owner", collections.StringValue),
		CurrChain: collections.NewItem(sb, CurrChainPrefix, "curr_chain", collections.StringValue),
		TxIndex:   collections.NewItem(sb, TxIndexPrefix, "tx_index", collections.Uint64Value),

		KernelAddresses: collections.NewMap(sb, KernelAddressesPrefix, "kernel_addresses", collections.StringKey, collections.StringValue),
		ChainToChannel:  collections.NewMap(sb, ChainToChannelPrefix, "chain_to_channel", collections.StringKey, JSONValue[ChannelInfo]()),
		ChannelToChain:  collections.NewMap(sb, ChannelToChainPrefix, "channel_to_chain", collections.StringKey, collections.StringValue),

		ChannelToExecuteMsg: collections.NewMap(
			sb,
			ChannelToExecuteMsgPrefix,
			"channel_to_execute_msg",
			collections.PairKeyCodec(collections.StringKey, collections.Uint64Key),
			JSONValue[Ics20PacketInfo](),
		),
		PendingMsgAndFunds: collections.NewItem(sb, PendingMsgAndFundsPrefix, "pending_msg_and_funds", JSONValue[Ics20PacketInfo]()),
		IBCFundRecovery:    collections.NewMap(sb, IBCFundRecoveryPrefix, "ibc_fund_recovery", collections.StringKey, JSONValue[wasmvmtypes.Coins]()),

		EnvVariables: collections.NewMap(sb, EnvVariablesPrefix, "env_variables", collections.StringKey, collections.StringValue),
		ADOOwner:     collections.NewItem(sb, ADOOwnerPrefix, "ado_owner", collections.StringValue),
		RefundData:   collections.NewItem(sb, RefundDataPrefix, "refund_data", JSONValue[RefundData]()),
	}

	schema, err := sb.Build()
	if err != nil {
		return nil, err
	}
	s.Schema = schema
	return s, nil
}

type jsonValue[T any] struct{}

// JSONValue encodes values the way the contract serializes them on chain.
func JSONValue[T any]() collcodec.ValueCodec[T] {
	return jsonValue[T]{}
}

func (jsonValue[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonValue[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (j jsonValue[T]) EncodeJSON(value T) ([]byte, error) {
	return j.Encode(value)
}

func (j jsonValue[T]) DecodeJSON(b []byte) (T, error) {
	return j.Decode(b)
}

func (j jsonValue[T]) Stringify(value T) string {
	b, err := j.Encode(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}

func (jsonValue[T]) ValueType() string {
	var v T
	return fmt.Sprintf("json(%T)", v)
}
