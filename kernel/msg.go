package kernel

import (
	"encoding/json"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

func UnmarshalInstantiateMsg(data []byte) (InstantiateMsg, error) {
	var r InstantiateMsg
	err := json.Unmarshal(data, &r)
	return r, err
}

func (r *InstantiateMsg) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalExecuteMsg(data []byte) (ExecuteMsg, error) {
	var r ExecuteMsg
	err := json.Unmarshal(data, &r)
	return r, err
}

func (r *ExecuteMsg) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalQueryMsg(data []byte) (QueryMsg, error) {
	var r QueryMsg
	err := json.Unmarshal(data, &r)
	return r, err
}

func (r *QueryMsg) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalIbcExecuteMsg(data []byte) (IbcExecuteMsg, error) {
	var r IbcExecuteMsg
	err := json.Unmarshal(data, &r)
	return r, err
}

func (r *IbcExecuteMsg) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func UnmarshalSudoMsg(data []byte) (SudoMsg, error) {
	var r SudoMsg
	err := json.Unmarshal(data, &r)
	return r, err
}

func (r *SudoMsg) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

type InstantiateMsg struct {
	ChainName string `json:"chain_name"`
	Owner     string `json:"owner,omitempty"`
}

type ExecuteMsg struct {
	Send             *Send             `json:"send,omitempty"`
	AMPReceive       *amp.AMPPkt       `json:"amp_receive,omitempty"`
	Receive          *Cw20ReceiveMsg   `json:"receive,omitempty"`
	TriggerRelay     *TriggerRelay     `json:"trigger_relay,omitempty"`
	UpsertKeyAddress *UpsertKeyAddress `json:"upsert_key_address,omitempty"`
	AssignChannels   *AssignChannels   `json:"assign_channels,omitempty"`
	UpdateChainName  *UpdateChainName  `json:"update_chain_name,omitempty"`
	SetEnv           *SetEnv           `json:"set_env,omitempty"`
	UnsetEnv         *UnsetEnv         `json:"unset_env,omitempty"`
	Recover          *Recover          `json:"recover,omitempty"`
	Create           *Create           `json:"create,omitempty"`
	Internal         *InternalMsg      `json:"internal,omitempty"`
}

type Send struct {
	Message amp.AMPMsg `json:"message"`
}

type TriggerRelay struct {
	PacketSequence uint64 `json:"packet_sequence"`
	ChannelID      string `json:"channel_id"`
	PacketAck      []byte `json:"packet_ack"`
}

type UpsertKeyAddress struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AssignChannels registers how to reach a chain. A nil SupportedModules
// keeps the stored list.
type AssignChannels struct {
	Ics20ChannelID   *string  `json:"ics20_channel_id,omitempty"`
	DirectChannelID  *string  `json:"direct_channel_id,omitempty"`
	Chain            string   `json:"chain"`
	KernelAddress    string   `json:"kernel_address"`
	SupportedModules []string `json:"supported_modules,omitempty"`
}

type UpdateChainName struct {
	ChainName string `json:"chain_name"`
}

type SetEnv struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

type UnsetEnv struct {
	Variable string `json:"variable"`
}

type Recover struct{}

type Create struct {
	AdoType string        `json:"ado_type"`
	Msg     []byte        `json:"msg"`
	Owner   *amp.AndrAddr `json:"owner,omitempty"`
	Chain   *string       `json:"chain,omitempty"`
}

type InternalMsg struct {
	RegisterUserCrossChain *RegisterUserCrossChain `json:"register_user_cross_chain,omitempty"`
}

type RegisterUserCrossChain struct {
	Username string `json:"username"`
	Address  string `json:"address"`
	Chain    string `json:"chain"`
}

// Cw20ReceiveMsg is the hook a CW20 token contract calls after a send to the kernel.
type Cw20ReceiveMsg struct {
	Sender string `json:"sender"`
	Amount string `json:"amount"`
	Msg    []byte `json:"msg"`
}

type Cw20HookMsg struct {
	Send       *Send       `json:"send,omitempty"`
	AMPReceive *amp.AMPPkt `json:"amp_receive,omitempty"`
}

type Cw20ExecuteMsg struct {
	Transfer *Cw20Transfer `json:"transfer,omitempty"`
	Send     *Cw20Send     `json:"send,omitempty"`
}

type Cw20Transfer struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type Cw20Send struct {
	Contract string `json:"contract"`
	Amount   string `json:"amount"`
	Msg      []byte `json:"msg"`
}

// IbcExecuteMsg is the payload of a packet sent between kernels over the direct channel.
type IbcExecuteMsg struct {
	SendMessage          *SendMessage          `json:"send_message,omitempty"`
	SendMessageWithFunds *SendMessageWithFunds `json:"send_message_with_funds,omitempty"`
	CreateADO            *CreateADO            `json:"create_ado,omitempty"`
	RegisterUsername     *RegisterUsername     `json:"register_username,omitempty"`
}

type SendMessage struct {
	AMPPacket amp.AMPPkt `json:"amp_packet"`
}

type SendMessageWithFunds struct {
	Recipient              amp.AndrAddr        `json:"recipient"`
	Message                []byte              `json:"message"`
	Funds                  wasmvmtypes.Coin    `json:"funds"`
	OriginalSender         string              `json:"original_sender"`
	OriginalSenderUsername *amp.AndrAddr       `json:"original_sender_username,omitempty"`
	PreviousHops           []amp.CrossChainHop `json:"previous_hops"`
}

type CreateADO struct {
	InstantiationMsg []byte       `json:"instantiation_msg"`
	Owner            amp.AndrAddr `json:"owner"`
	AdoType          string       `json:"ado_type"`
}

type RegisterUsername struct {
	Username string `json:"username"`
	Address  string `json:"address"`
}

type SudoMsg struct {
	IBCLifecycleComplete *IBCLifecycleComplete `json:"ibc_lifecycle_complete,omitempty"`
}

type IBCLifecycleComplete struct {
	IBCAck     *IBCAck     `json:"ibc_ack,omitempty"`
	IBCTimeout *IBCTimeout `json:"ibc_timeout,omitempty"`
}

type IBCAck struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
	Ack      string `json:"ack"`
	Success  bool   `json:"success"`
}

type IBCTimeout struct {
	Channel  string `json:"channel"`
	Sequence uint64 `json:"sequence"`
}

type QueryMsg struct {
	KeyAddress     *KeyAddressQuery     `json:"key_address,omitempty"`
	VerifyAddress  *VerifyAddressQuery  `json:"verify_address,omitempty"`
	ChannelInfo    *ChannelInfoQuery    `json:"channel_info,omitempty"`
	ChainName      *ChainNameQuery      `json:"chain_name,omitempty"`
	Recoveries     *RecoveriesQuery     `json:"recoveries,omitempty"`
	PendingPackets *PendingPacketsQuery `json:"pending_packets,omitempty"`
	GetEnv         *GetEnvQuery         `json:"get_env,omitempty"`
	Owner          *OwnerQuery          `json:"owner,omitempty"`
	TxIndex        *TxIndexQuery        `json:"tx_index,omitempty"`
}

type KeyAddressQuery struct {
	Key string `json:"key"`
}

type VerifyAddressQuery struct {
	Address string `json:"address"`
}

type ChannelInfoQuery struct {
	Chain string `json:"chain"`
}

type ChainNameQuery struct{}

type RecoveriesQuery struct {
	Addr string `json:"addr"`
}

type PendingPacketsQuery struct {
	ChannelID *string `json:"channel_id,omitempty"`
}

type GetEnvQuery struct {
	Variable string `json:"variable"`
}

type OwnerQuery struct{}

type TxIndexQuery struct{}

type ChannelInfoResponse struct {
	Ics20            *string  `json:"ics20"`
	Direct           *string  `json:"direct"`
	KernelAddress    string   `json:"kernel_address"`
	SupportedModules []string `json:"supported_modules"`
}

type PendingPacketResponse struct {
	Packets []PacketInfoAndSequence `json:"packets"`
}

type PacketInfoAndSequence struct {
	PacketInfo Ics20PacketInfo `json:"packet_info"`
	Sequence   uint64          `json:"sequence"`
}

type EnvResponse struct {
	Value *string `json:"value"`
}

type OwnerResponse struct {
	Owner string `json:"owner"`
}
