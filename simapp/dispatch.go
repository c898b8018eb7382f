package simapp

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"
)

func (a *App) execute(f *frame, sender, contract string, msg []byte, funds wasmvmtypes.Coins) ([]byte, error) {
	entry, ok := a.contracts[contract]
	if !ok {
		return nil, errorsmod.Wrapf(sdkerrors.ErrUnknownAddress, "no contract at %s", contract)
	}
	if err := a.bankSend(f.store, sender, contract, funds); err != nil {
		return nil, err
	}
	resp, err := entry.contract.Execute(f.ctx, a.env(contract), wasmvmtypes.MessageInfo{Sender: sender, Funds: nonNil(funds)}, msg)
	if err != nil {
		return nil, err
	}
	return a.handleResponse(f, contract, resp)
}

func (a *App) instantiate(f *frame, sender string, msg *wasmvmtypes.InstantiateMsg) ([]byte, error) {
	factory, ok := a.codes[msg.CodeID]
	if !ok {
		return nil, errorsmod.Wrapf(sdkerrors.ErrNotFound, "code id %d cannot be instantiated", msg.CodeID)
	}
	a.nextContract++
	addr := fmt.Sprintf("contract%d", a.nextContract)
	c := factory(addr)
	a.contracts[addr] = &contractEntry{codeID: msg.CodeID, creator: sender, admin: msg.Admin, contract: c}

	f.events = append(f.events, wasmvmtypes.Event{
		Type: "instantiate",
		Attributes: []wasmvmtypes.EventAttribute{
			{Key: "_contract_address", Value: addr},
			{Key: "code_id", Value: fmt.Sprint(msg.CodeID)},
		},
	})
	if err := a.bankSend(f.store, sender, addr, msg.Funds); err != nil {
		return nil, err
	}
	inst, ok := c.(Instantiator)
	if !ok {
		return nil, nil
	}
	resp, err := inst.Instantiate(f.ctx, a.env(addr), wasmvmtypes.MessageInfo{Sender: sender, Funds: nonNil(msg.Funds)}, msg.Msg)
	if err != nil {
		return nil, err
	}
	return a.handleResponse(f, addr, resp)
}

// handleResponse records the contract's attributes and runs its sub-messages in order.
func (a *App) handleResponse(f *frame, contract string, resp *wasmvmtypes.Response) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	if len(resp.Attributes) > 0 {
		attrs := append([]wasmvmtypes.EventAttribute{{Key: "_contract_address", Value: contract}}, resp.Attributes...)
		f.events = append(f.events, wasmvmtypes.Event{Type: "wasm", Attributes: attrs})
	}
	f.events = append(f.events, resp.Events...)

	for _, sub := range resp.Messages {
		if err := a.dispatchSubMsg(f, contract, sub); err != nil {
			return nil, err
		}
	}
	return resp.Data, nil
}

// dispatchSubMsg runs sub in its own cache and replies to contract as sub.ReplyOn asks.
// A failure the contract did not ask to hear about fails the whole call.
func (a *App) dispatchSubMsg(f *frame, contract string, sub wasmvmtypes.SubMsg) error {
	child := f.child()
	data, err := a.dispatch(child, contract, sub.Msg)

	var reply *wasmvmtypes.Reply
	switch {
	case err != nil:
		if sub.ReplyOn != wasmvmtypes.ReplyError && sub.ReplyOn != wasmvmtypes.ReplyAlways {
			return err
		}
		reply = &wasmvmtypes.Reply{
			ID:     sub.ID,
			Result: wasmvmtypes.SubMsgResult{Err: err.Error()},
		}
	default:
		f.commit(child)
		if sub.ReplyOn == wasmvmtypes.ReplySuccess || sub.ReplyOn == wasmvmtypes.ReplyAlways {
			reply = &wasmvmtypes.Reply{
				ID: sub.ID,
				Result: wasmvmtypes.SubMsgResult{
					Ok: &wasmvmtypes.SubMsgResponse{Events: child.events, Data: data},
				},
			}
		}
	}
	if reply == nil {
		return nil
	}

	replier, ok := a.contracts[contract].contract.(Replier)
	if !ok {
		return fmt.Errorf("contract %s cannot handle reply %d", contract, sub.ID)
	}
	resp, err := replier.Reply(f.ctx, a.env(contract), *reply)
	if err != nil {
		return err
	}
	_, err = a.handleResponse(f, contract, resp)
	return err
}

func (a *App) dispatch(f *frame, sender string, msg wasmvmtypes.CosmosMsg) ([]byte, error) {
	f.msgs = append(f.msgs, DispatchedMsg{Sender: sender, Msg: msg})
	switch {
	case msg.Bank != nil && msg.Bank.Send != nil:
		return nil, a.bankSend(f.store, sender, msg.Bank.Send.ToAddress, msg.Bank.Send.Amount)
	case msg.Wasm != nil && msg.Wasm.Execute != nil:
		return a.execute(f, sender, msg.Wasm.Execute.ContractAddr, msg.Wasm.Execute.Msg, msg.Wasm.Execute.Funds)
	case msg.Wasm != nil && msg.Wasm.Instantiate != nil:
		return a.instantiate(f, sender, msg.Wasm.Instantiate)
	case msg.IBC != nil && msg.IBC.Transfer != nil:
		return a.transfer(f, sender, msg.IBC.Transfer)
	case msg.IBC != nil && msg.IBC.SendPacket != nil:
		return nil, a.sendPacket(f, sender, msg.IBC.SendPacket)
	default:
		return nil, errorsmod.Wrap(sdkerrors.ErrUnknownRequest, "unsupported message")
	}
}

func nonNil(coins wasmvmtypes.Coins) wasmvmtypes.Coins {
	if coins == nil {
		return wasmvmtypes.Coins{}
	}
	return coins
}
