package cosmwasmapi

import (
	"encoding/json"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

type BroadcastOptions struct {
	ContractAddr  string           // ContractAddr: Address of the kernel or target contract
	ExecuteMsg    []byte           // ExecuteMsg: JSON encoded execute message
	Funds         sdktypes.Coins   // Funds: Coins attached to the execution
	GasAdjustment float64          // GasAdjustment: Factor applied to the simulated gas
	GasPrice      sdktypes.DecCoin // GasPrice: Gas price, e.g. "0.025uandr"
	Gas           uint64           // Gas: Gas reserved when not simulating
	Simulate      bool             // Simulate: Estimate gas before broadcasting
}

func DefaultBroadcastOptions() BroadcastOptions {
	return BroadcastOptions{
		Funds:         sdktypes.Coins{},
		GasAdjustment: 1.3,
		GasPrice:      sdktypes.NewDecCoinFromDec("uandr", sdkmath.LegacyMustNewDecFromStr("0.025")),
		Gas:           300_000,
		Simulate:      true,
	}
}

func (opts BroadcastOptions) WithContractAddr(contractAddr string) BroadcastOptions {
	opts.ContractAddr = contractAddr
	return opts
}

func (opts BroadcastOptions) WithExecuteMsg(executeMsg any) BroadcastOptions {
	executeMsgBytes, err := json.Marshal(executeMsg)
	if err != nil {
		panic(err)
	}

	opts.ExecuteMsg = executeMsgBytes
	return opts
}

func (opts BroadcastOptions) WithFunds(funds string) BroadcastOptions {
	coinFunds, err := sdktypes.ParseCoinsNormalized(funds)
	if err != nil {
		panic(err)
	}

	opts.Funds = coinFunds
	return opts
}

func (opts BroadcastOptions) WithGasAdjustment(gasAdjustment float64) BroadcastOptions {
	opts.GasAdjustment = gasAdjustment
	return opts
}

func (opts BroadcastOptions) WithGasPrice(gasPrice string) BroadcastOptions {
	coin, err := sdktypes.ParseDecCoin(gasPrice)
	if err != nil {
		panic(err)
	}
	opts.GasPrice = coin
	return opts
}

func (opts BroadcastOptions) WithGas(gas uint64) BroadcastOptions {
	opts.Gas = gas
	return opts
}

func (opts BroadcastOptions) WithSimulate(simulate bool) BroadcastOptions {
	opts.Simulate = simulate
	return opts
}

// Fee is the fee paid for the reserved gas at the configured price.
func (opts BroadcastOptions) Fee() sdktypes.Coins {
	amount := opts.GasPrice.Amount.MulInt64(int64(opts.Gas)).Ceil().TruncateInt()
	return sdktypes.NewCoins(sdktypes.NewCoin(opts.GasPrice.Denom, amount))
}

// MsgExecuteContract builds the unsigned wasm execute message for sender.
func (opts BroadcastOptions) MsgExecuteContract(sender string) (*wasmtypes.MsgExecuteContract, error) {
	msg := &wasmtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: opts.ContractAddr,
		Msg:      opts.ExecuteMsg,
		Funds:    opts.Funds,
	}
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	return msg, nil
}
