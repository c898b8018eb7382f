package amp

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// ToSdkCoins merges coins by denom. Zero amounts are dropped.
func ToSdkCoins(coins wasmvmtypes.Coins) (sdk.Coins, error) {
	out := sdk.Coins{}
	for _, c := range coins {
		coin, err := ToSdkCoin(c)
		if err != nil {
			return nil, err
		}
		out = out.Add(coin)
	}
	return out, nil
}

func ToSdkCoin(c wasmvmtypes.Coin) (sdk.Coin, error) {
	if err := sdk.ValidateDenom(c.Denom); err != nil {
		return sdk.Coin{}, err
	}
	amount, ok := sdkmath.NewIntFromString(c.Amount)
	if !ok || amount.IsNegative() {
		return sdk.Coin{}, fmt.Errorf("invalid amount %q for %s", c.Amount, c.Denom)
	}
	return sdk.Coin{Denom: c.Denom, Amount: amount}, nil
}

func FromSdkCoins(coins sdk.Coins) wasmvmtypes.Coins {
	out := make(wasmvmtypes.Coins, 0, len(coins))
	for _, c := range coins {
		out = append(out, FromSdkCoin(c))
	}
	return out
}

func FromSdkCoin(c sdk.Coin) wasmvmtypes.Coin {
	return wasmvmtypes.Coin{Denom: c.Denom, Amount: c.Amount.String()}
}

// MergeCoins returns the per-denom sum of every list.
func MergeCoins(lists ...wasmvmtypes.Coins) (sdk.Coins, error) {
	total := sdk.Coins{}
	for _, l := range lists {
		coins, err := ToSdkCoins(l)
		if err != nil {
			return nil, err
		}
		total = total.Add(coins...)
	}
	return total, nil
}

// CoversFunds reports whether attached holds at least declared, denom by denom.
func CoversFunds(attached, declared sdk.Coins) bool {
	return attached.IsAllGTE(declared)
}
