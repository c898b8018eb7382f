package simapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"cosmossdk.io/store/prefix"
	storetypes "cosmossdk.io/store/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
	transfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/kernel"
)

const (
	KernelPort   = "wasm.kernel"
	TransferPort = transfertypes.PortID
)

type PacketKind string

const (
	PacketKindTransfer PacketKind = "transfer"
	PacketKindKernel   PacketKind = "kernel"
)

// Packet is an outbound IBC packet waiting for a relayer.
type Packet struct {
	Kind       PacketKind
	Sender     string
	SrcPort    string
	SrcChannel string
	DstPort    string
	DstChannel string
	Sequence   uint64
	Data       []byte
	Timeout    wasmvmtypes.IBCTimeout
}

func (p Packet) wasm() wasmvmtypes.IBCPacket {
	return wasmvmtypes.IBCPacket{
		Data:     p.Data,
		Src:      wasmvmtypes.IBCEndpoint{PortID: p.SrcPort, ChannelID: p.SrcChannel},
		Dest:     wasmvmtypes.IBCEndpoint{PortID: p.DstPort, ChannelID: p.DstChannel},
		Sequence: p.Sequence,
		Timeout:  p.Timeout,
	}
}

// TransferData decodes the ICS20 payload of a transfer packet.
func (p Packet) TransferData() (transfertypes.FungibleTokenPacketData, error) {
	var data transfertypes.FungibleTokenPacketData
	if p.Kind != PacketKindTransfer {
		return data, fmt.Errorf("packet %d is not a transfer", p.Sequence)
	}
	err := json.Unmarshal(p.Data, &data)
	return data, err
}

// KernelMsg decodes the payload of a kernel packet.
func (p Packet) KernelMsg() (kernel.IbcExecuteMsg, error) {
	if p.Kind != PacketKindKernel {
		return kernel.IbcExecuteMsg{}, fmt.Errorf("packet %d is not a kernel packet", p.Sequence)
	}
	return kernel.UnmarshalIbcExecuteMsg(p.Data)
}

// Connect opens a channel between a and b on port, running the kernel
// handshake on both ends when the port is the kernel's.
func Connect(a, b *App, port, aChannel, bChannel, version string) error {
	chA := wasmvmtypes.IBCChannel{
		Endpoint:             wasmvmtypes.IBCEndpoint{PortID: port, ChannelID: aChannel},
		CounterpartyEndpoint: wasmvmtypes.IBCEndpoint{PortID: port, ChannelID: bChannel},
		Order:                wasmvmtypes.Unordered,
		Version:              version,
		ConnectionID:         "connection-0",
	}
	chB := wasmvmtypes.IBCChannel{
		Endpoint:             chA.CounterpartyEndpoint,
		CounterpartyEndpoint: chA.Endpoint,
		Order:                wasmvmtypes.Unordered,
		Version:              version,
		ConnectionID:         "connection-0",
	}

	if port == KernelPort {
		ctxA, ctxB := a.KernelContext(), b.KernelContext()
		if _, err := a.Kernel.IBCChannelOpen(ctxA, a.env(KernelAddress), wasmvmtypes.IBCChannelOpenMsg{
			OpenInit: &wasmvmtypes.IBCOpenInit{Channel: chA},
		}); err != nil {
			return err
		}
		if _, err := b.Kernel.IBCChannelOpen(ctxB, b.env(KernelAddress), wasmvmtypes.IBCChannelOpenMsg{
			OpenTry: &wasmvmtypes.IBCOpenTry{Channel: chB, CounterpartyVersion: version},
		}); err != nil {
			return err
		}
		if _, err := a.Kernel.IBCChannelConnect(ctxA, a.env(KernelAddress), wasmvmtypes.IBCChannelConnectMsg{
			OpenAck: &wasmvmtypes.IBCOpenAck{Channel: chA, CounterpartyVersion: version},
		}); err != nil {
			return err
		}
		if _, err := b.Kernel.IBCChannelConnect(ctxB, b.env(KernelAddress), wasmvmtypes.IBCChannelConnectMsg{
			OpenConfirm: &wasmvmtypes.IBCOpenConfirm{Channel: chB},
		}); err != nil {
			return err
		}
	}

	a.channels[aChannel] = chA
	b.channels[bChannel] = chB
	return nil
}

// Packets returns every committed packet not yet taken.
func (a *App) Packets() []Packet {
	return append([]Packet(nil), a.outbox...)
}

// TakePackets drains the outbox.
func (a *App) TakePackets() []Packet {
	out := a.outbox
	a.outbox = nil
	return out
}

func escrowAddress(channel string) string {
	return "escrow-" + channel
}

var (
	sequencePrefix = []byte("ibc/seq/")
	tracePrefix    = []byte("ibc/trace/")
)

func nextSequence(store storetypes.KVStore, channel string) uint64 {
	seqs := prefix.NewStore(store, sequencePrefix)
	seq := uint64(1)
	if bz := seqs.Get([]byte(channel)); bz != nil {
		seq = sdk.BigEndianToUint64(bz) + 1
	}
	seqs.Set([]byte(channel), sdk.Uint64ToBigEndian(seq))
	return seq
}

func saveTrace(store storetypes.KVStore, trace transfertypes.DenomTrace) {
	prefix.NewStore(store, tracePrefix).Set([]byte(trace.IBCDenom()), []byte(trace.GetFullDenomPath()))
}

func fullDenomPath(store storetypes.KVStore, denom string) (string, error) {
	if !strings.HasPrefix(denom, "ibc/") {
		return denom, nil
	}
	bz := prefix.NewStore(store, tracePrefix).Get([]byte(denom))
	if bz == nil {
		return "", errorsmod.Wrapf(sdkerrors.ErrInvalidCoins, "unknown voucher %s", denom)
	}
	return string(bz), nil
}

// transfer is the ICS20 send path: escrow native tokens, burn returning vouchers.
func (a *App) transfer(f *frame, sender string, msg *wasmvmtypes.TransferMsg) ([]byte, error) {
	ch, ok := a.channels[msg.ChannelID]
	if !ok || ch.Endpoint.PortID != TransferPort {
		return nil, errorsmod.Wrapf(sdkerrors.ErrNotFound, "transfer channel %s", msg.ChannelID)
	}
	coin, err := amp.ToSdkCoin(msg.Amount)
	if err != nil {
		return nil, errorsmod.Wrap(sdkerrors.ErrInvalidCoins, err.Error())
	}
	if !coin.IsPositive() {
		return nil, errorsmod.Wrap(sdkerrors.ErrInvalidCoins, "transfer amount must be positive")
	}
	path, err := fullDenomPath(f.store, coin.Denom)
	if err != nil {
		return nil, err
	}

	if transfertypes.SenderChainIsSource(ch.Endpoint.PortID, ch.Endpoint.ChannelID, path) {
		if err := a.bankSend(f.store, sender, escrowAddress(msg.ChannelID), wasmvmtypes.Coins{msg.Amount}); err != nil {
			return nil, err
		}
	} else if err := burn(f.store, sender, sdk.NewCoins(coin)); err != nil {
		return nil, err
	}

	seq := nextSequence(f.store, msg.ChannelID)
	data := transfertypes.NewFungibleTokenPacketData(path, coin.Amount.String(), sender, msg.ToAddress, "")
	f.packets = append(f.packets, Packet{
		Kind:       PacketKindTransfer,
		Sender:     sender,
		SrcPort:    ch.Endpoint.PortID,
		SrcChannel: ch.Endpoint.ChannelID,
		DstPort:    ch.CounterpartyEndpoint.PortID,
		DstChannel: ch.CounterpartyEndpoint.ChannelID,
		Sequence:   seq,
		Data:       data.GetBytes(),
		Timeout:    msg.Timeout,
	})
	return (&transfertypes.MsgTransferResponse{Sequence: seq}).Marshal()
}

func (a *App) sendPacket(f *frame, sender string, msg *wasmvmtypes.SendPacketMsg) error {
	ch, ok := a.channels[msg.ChannelID]
	if !ok || ch.Endpoint.PortID != KernelPort {
		return errorsmod.Wrapf(sdkerrors.ErrNotFound, "kernel channel %s", msg.ChannelID)
	}
	f.packets = append(f.packets, Packet{
		Kind:       PacketKindKernel,
		Sender:     sender,
		SrcPort:    ch.Endpoint.PortID,
		SrcChannel: ch.Endpoint.ChannelID,
		DstPort:    ch.CounterpartyEndpoint.PortID,
		DstChannel: ch.CounterpartyEndpoint.ChannelID,
		Sequence:   nextSequence(f.store, msg.ChannelID),
		Data:       msg.Data,
		Timeout:    msg.Timeout,
	})
	return nil
}

// errAckFailed unwinds a receive whose acknowledgement is an error.
var errAckFailed = errorsmod.Register("simapp", 2, "acknowledgement failed")

// ReceivePacket delivers pkt on this chain. State changes are kept only when
// the acknowledgement is a success.
func (a *App) ReceivePacket(pkt Packet) ([]byte, *Result) {
	var ack []byte
	res, err := a.runTx(func(f *frame) error {
		var err error
		switch pkt.Kind {
		case PacketKindTransfer:
			ack, err = a.receiveTransfer(f, pkt)
		case PacketKindKernel:
			ack, err = a.receiveKernel(f, pkt)
		default:
			err = fmt.Errorf("unknown packet kind %q", pkt.Kind)
		}
		if err != nil {
			return err
		}
		if parsed, err := kernel.ParseAck(ack); err != nil || !parsed.Success() {
			return errAckFailed
		}
		return nil
	})
	switch {
	case errors.Is(err, errAckFailed):
		return ack, nil
	case err != nil:
		return kernel.AckFail(err), nil
	}
	return ack, res
}

func (a *App) receiveTransfer(f *frame, pkt Packet) ([]byte, error) {
	data, err := pkt.TransferData()
	if err != nil {
		return kernel.AckFail(err), nil
	}
	if err := data.ValidateBasic(); err != nil {
		return kernel.AckFail(err), nil
	}
	amount, ok := sdkmath.NewIntFromString(data.Amount)
	if !ok {
		return kernel.AckFail(sdkerrors.ErrInvalidCoins), nil
	}

	if transfertypes.ReceiverChainIsSource(pkt.SrcPort, pkt.SrcChannel, data.Denom) {
		unprefixed := strings.TrimPrefix(data.Denom, transfertypes.GetDenomPrefix(pkt.SrcPort, pkt.SrcChannel))
		denom := transfertypes.ParseDenomTrace(unprefixed).IBCDenom()
		coin := wasmvmtypes.Coin{Denom: denom, Amount: amount.String()}
		if err := a.bankSend(f.store, escrowAddress(pkt.DstChannel), data.Receiver, wasmvmtypes.Coins{coin}); err != nil {
			return kernel.AckFail(err), nil
		}
		return kernel.AckSuccess(), nil
	}

	trace := transfertypes.ParseDenomTrace(transfertypes.GetPrefixedDenom(pkt.DstPort, pkt.DstChannel, data.Denom))
	saveTrace(f.store, trace)
	mint(f.store, data.Receiver, sdk.NewCoins(sdk.NewCoin(trace.IBCDenom(), amount)))
	return kernel.AckSuccess(), nil
}

func (a *App) receiveKernel(f *frame, pkt Packet) ([]byte, error) {
	resp, err := a.Kernel.IBCPacketReceive(f.ctx, a.env(KernelAddress), wasmvmtypes.IBCPacketReceiveMsg{
		Packet:  pkt.wasm(),
		Relayer: "relayer",
	})
	if err != nil {
		return nil, err
	}
	if parsed, err := kernel.ParseAck(resp.Acknowledgement); err != nil || !parsed.Success() {
		return resp.Acknowledgement, nil
	}
	if _, err := a.handleResponse(f, KernelAddress, &wasmvmtypes.Response{
		Messages:   resp.Messages,
		Attributes: resp.Attributes,
		Events:     resp.Events,
	}); err != nil {
		return nil, err
	}
	return resp.Acknowledgement, nil
}

// AcknowledgePacket settles pkt on its source chain. Failed transfers are
// refunded, and transfers sent by the kernel report back through its sudo hook.
func (a *App) AcknowledgePacket(pkt Packet, ack []byte) (*Result, error) {
	return a.runTx(func(f *frame) error {
		switch pkt.Kind {
		case PacketKindTransfer:
			parsed, _ := kernel.ParseAck(ack)
			if !parsed.Success() {
				if err := a.refundTransfer(f, pkt); err != nil {
					return err
				}
			}
			if pkt.Sender != KernelAddress {
				return nil
			}
			return a.sudoKernel(f, kernel.SudoMsg{IBCLifecycleComplete: &kernel.IBCLifecycleComplete{
				IBCAck: &kernel.IBCAck{
					Channel:  pkt.SrcChannel,
					Sequence: pkt.Sequence,
					Ack:      string(ack),
					Success:  parsed.Success(),
				},
			}})
		default:
			resp, err := a.Kernel.IBCPacketAck(f.ctx, a.env(KernelAddress), wasmvmtypes.IBCPacketAckMsg{
				Acknowledgement: wasmvmtypes.IBCAcknowledgement{Data: ack},
				OriginalPacket:  pkt.wasm(),
				Relayer:         "relayer",
			})
			if err != nil {
				return err
			}
			return a.handleBasic(f, resp)
		}
	})
}

// TimeoutPacket expires pkt on its source chain.
func (a *App) TimeoutPacket(pkt Packet) (*Result, error) {
	return a.runTx(func(f *frame) error {
		switch pkt.Kind {
		case PacketKindTransfer:
			if err := a.refundTransfer(f, pkt); err != nil {
				return err
			}
			if pkt.Sender != KernelAddress {
				return nil
			}
			return a.sudoKernel(f, kernel.SudoMsg{IBCLifecycleComplete: &kernel.IBCLifecycleComplete{
				IBCTimeout: &kernel.IBCTimeout{Channel: pkt.SrcChannel, Sequence: pkt.Sequence},
			}})
		default:
			resp, err := a.Kernel.IBCPacketTimeout(f.ctx, a.env(KernelAddress), wasmvmtypes.IBCPacketTimeoutMsg{
				Packet:  pkt.wasm(),
				Relayer: "relayer",
			})
			if err != nil {
				return err
			}
			return a.handleBasic(f, resp)
		}
	})
}

func (a *App) refundTransfer(f *frame, pkt Packet) error {
	data, err := pkt.TransferData()
	if err != nil {
		return err
	}
	amount, ok := sdkmath.NewIntFromString(data.Amount)
	if !ok {
		return sdkerrors.ErrInvalidCoins
	}
	denom := transfertypes.ParseDenomTrace(data.Denom).IBCDenom()
	if transfertypes.SenderChainIsSource(pkt.SrcPort, pkt.SrcChannel, data.Denom) {
		return burnAndMint(f.store, escrowAddress(pkt.SrcChannel), data.Sender, sdk.NewCoin(denom, amount))
	}
	mint(f.store, data.Sender, sdk.NewCoins(sdk.NewCoin(denom, amount)))
	return nil
}

func burnAndMint(store storetypes.KVStore, from, to string, coin sdk.Coin) error {
	if err := burn(store, from, sdk.NewCoins(coin)); err != nil {
		return err
	}
	mint(store, to, sdk.NewCoins(coin))
	return nil
}

func (a *App) sudoKernel(f *frame, msg kernel.SudoMsg) error {
	resp, err := a.Kernel.Sudo(f.ctx, a.env(KernelAddress), msg)
	if err != nil {
		return err
	}
	_, err = a.handleResponse(f, KernelAddress, resp)
	return err
}

func (a *App) handleBasic(f *frame, resp *wasmvmtypes.IBCBasicResponse) error {
	if resp == nil {
		return nil
	}
	_, err := a.handleResponse(f, KernelAddress, &wasmvmtypes.Response{
		Messages:   resp.Messages,
		Attributes: resp.Attributes,
		Events:     resp.Events,
	})
	return err
}

// Relay delivers pkt from src to dst and carries the acknowledgement back.
func Relay(src, dst *App, pkt Packet) ([]byte, error) {
	ack, _ := dst.ReceivePacket(pkt)
	if _, err := src.AcknowledgePacket(pkt, ack); err != nil {
		return ack, err
	}
	return ack, nil
}

// RelayAll relays every pending packet of src to dst, including packets the
// acknowledgements themselves produce on src.
func RelayAll(src, dst *App) ([][]byte, error) {
	var acks [][]byte
	for pkts := src.TakePackets(); len(pkts) > 0; pkts = src.TakePackets() {
		for _, pkt := range pkts {
			ack, err := Relay(src, dst, pkt)
			if err != nil {
				return acks, err
			}
			acks = append(acks, ack)
		}
	}
	return acks, nil
}
