package simapp

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"cosmossdk.io/store/prefix"
	storetypes "cosmossdk.io/store/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdkerrors "github.com/cosmos/cosmos-sdk/types/errors"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

var bankPrefix = []byte("bank/")

func balanceKey(addr, denom string) []byte {
	return []byte(addr + "\x00" + denom)
}

func getBalance(store storetypes.KVStore, addr, denom string) sdkmath.Int {
	bz := prefix.NewStore(store, bankPrefix).Get(balanceKey(addr, denom))
	if bz == nil {
		return sdkmath.ZeroInt()
	}
	amount, ok := sdkmath.NewIntFromString(string(bz))
	if !ok {
		panic("simapp: corrupt balance for " + addr)
	}
	return amount
}

func setBalance(store storetypes.KVStore, addr, denom string, amount sdkmath.Int) {
	bank := prefix.NewStore(store, bankPrefix)
	if amount.IsZero() {
		bank.Delete(balanceKey(addr, denom))
		return
	}
	bank.Set(balanceKey(addr, denom), []byte(amount.String()))
}

func mint(store storetypes.KVStore, addr string, coins sdk.Coins) {
	for _, c := range coins {
		setBalance(store, addr, c.Denom, getBalance(store, addr, c.Denom).Add(c.Amount))
	}
}

func burn(store storetypes.KVStore, addr string, coins sdk.Coins) error {
	for _, c := range coins {
		bal := getBalance(store, addr, c.Denom)
		if bal.LT(c.Amount) {
			return errorsmod.Wrapf(sdkerrors.ErrInsufficientFunds, "%s has %s%s, needs %s", addr, bal, c.Denom, c)
		}
		setBalance(store, addr, c.Denom, bal.Sub(c.Amount))
	}
	return nil
}

func (a *App) bankSend(store storetypes.KVStore, from, to string, coins wasmvmtypes.Coins) error {
	amount, err := amp.ToSdkCoins(coins)
	if err != nil {
		return errorsmod.Wrap(sdkerrors.ErrInvalidCoins, err.Error())
	}
	if err := burn(store, from, amount); err != nil {
		return err
	}
	mint(store, to, amount)
	return nil
}

// Mint credits addr outside of any transaction.
func (a *App) Mint(addr string, coins ...wasmvmtypes.Coin) error {
	amount, err := amp.ToSdkCoins(coins)
	if err != nil {
		return err
	}
	mint(a.store, addr, amount)
	return nil
}

// Balance reads a committed bank balance.
func (a *App) Balance(addr, denom string) sdkmath.Int {
	return getBalance(a.store, addr, denom)
}

// Supply sums every committed balance of denom.
func (a *App) Supply(denom string) sdkmath.Int {
	total := sdkmath.ZeroInt()
	it := prefix.NewStore(a.store, bankPrefix).Iterator(nil, nil)
	defer it.Close()
	for ; it.Valid(); it.Next() {
		key := string(it.Key())
		for i := len(key) - 1; i >= 0; i-- {
			if key[i] == 0 {
				if key[i+1:] == denom {
					amount, _ := sdkmath.NewIntFromString(string(it.Value()))
					total = total.Add(amount)
				}
				break
			}
		}
	}
	return total
}
