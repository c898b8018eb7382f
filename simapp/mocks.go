package simapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/kernel"
)

var errUnsupported = errors.New("unsupported message")

// MockVFS resolves paths and usernames from fixed tables. Usernames
// registered through execute live in contract storage.
type MockVFS struct {
	addr      string
	paths     map[string]string
	usernames map[string]string
}

func NewMockVFS(addr string) *MockVFS {
	return &MockVFS{addr: addr, paths: map[string]string{}, usernames: map[string]string{}}
}

func (v *MockVFS) SetPath(path, addr string) {
	v.paths[path] = addr
}

func (v *MockVFS) SetUsername(username, addr string) {
	v.usernames[username] = addr
}

func (v *MockVFS) Execute(ctx context.Context, _ wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var exec kernel.VFSExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, err
	}
	if exec.RegisterUser == nil {
		return nil, errUnsupported
	}
	addr := info.Sender
	if exec.RegisterUser.Address != nil {
		addr = *exec.RegisterUser.Address
	}
	if _, taken := v.lookupUsername(ctx, exec.RegisterUser.Username); taken {
		return nil, fmt.Errorf("username %s already taken", exec.RegisterUser.Username)
	}
	contractStore(ctx, v.addr).Set([]byte("user/"+exec.RegisterUser.Username), []byte(addr))
	return &wasmvmtypes.Response{
		Attributes: []wasmvmtypes.EventAttribute{
			{Key: "action", Value: "register_user"},
			{Key: "username", Value: exec.RegisterUser.Username},
		},
	}, nil
}

func (v *MockVFS) lookupUsername(ctx context.Context, username string) (string, bool) {
	if addr, ok := v.usernames[username]; ok {
		return addr, true
	}
	if bz := contractStore(ctx, v.addr).Get([]byte("user/" + username)); bz != nil {
		return string(bz), true
	}
	return "", false
}

func (v *MockVFS) Query(ctx context.Context, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var q kernel.VFSQueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return nil, err
	}
	switch {
	case q.ResolvePath != nil:
		addr, err := v.resolve(ctx, q.ResolvePath.Path.String())
		if err != nil {
			return nil, err
		}
		return json.Marshal(addr)
	case q.GetUsername != nil:
		for username, addr := range v.usernames {
			if addr == q.GetUsername.Address {
				return json.Marshal(username)
			}
		}
		return json.Marshal(q.GetUsername.Address)
	case q.GetAddressFromUsername != nil:
		addr, ok := v.lookupUsername(ctx, q.GetAddressFromUsername.Username)
		if !ok {
			return nil, fmt.Errorf("username %s not found", q.GetAddressFromUsername.Username)
		}
		return json.Marshal(addr)
	default:
		return nil, errUnsupported
	}
}

func (v *MockVFS) resolve(ctx context.Context, path string) (string, error) {
	if addr, ok := v.paths[path]; ok {
		return addr, nil
	}
	switch {
	case strings.HasPrefix(path, "~"):
		if addr, ok := v.lookupUsername(ctx, strings.TrimPrefix(path, "~")); ok {
			return addr, nil
		}
	case strings.HasPrefix(path, "/home/"):
		if addr, ok := v.lookupUsername(ctx, strings.TrimPrefix(path, "/home/")); ok {
			return addr, nil
		}
	}
	return "", fmt.Errorf("path %s not found", path)
}

// MockADODB maps code ids to ADO types.
type MockADODB struct {
	types map[uint64]string
	codes map[string]uint64
}

func NewMockADODB() *MockADODB {
	return &MockADODB{types: map[uint64]string{}, codes: map[string]uint64{}}
}

func (d *MockADODB) Publish(codeID uint64, adoType string) {
	d.types[codeID] = adoType
	d.codes[adoType] = codeID
}

func (d *MockADODB) Execute(context.Context, wasmvmtypes.Env, wasmvmtypes.MessageInfo, []byte) (*wasmvmtypes.Response, error) {
	return nil, errUnsupported
}

func (d *MockADODB) Query(_ context.Context, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var q kernel.ADODBQueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return nil, err
	}
	switch {
	case q.ADOType != nil:
		adoType, ok := d.types[q.ADOType.CodeID]
		if !ok {
			return json.Marshal(nil)
		}
		return json.Marshal(adoType)
	case q.CodeID != nil:
		codeID, ok := d.codes[q.CodeID.Key]
		if !ok {
			return nil, fmt.Errorf("ado type %s not found", q.CodeID.Key)
		}
		return json.Marshal(codeID)
	default:
		return nil, errUnsupported
	}
}

// MockRegistry answers denom trace queries for IBC vouchers.
type MockRegistry struct {
	denoms map[string]kernel.DenomInfo
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{denoms: map[string]kernel.DenomInfo{}}
}

func (r *MockRegistry) SetDenom(denom string, info kernel.DenomInfo) {
	r.denoms[denom] = info
}

func (r *MockRegistry) Execute(context.Context, wasmvmtypes.Env, wasmvmtypes.MessageInfo, []byte) (*wasmvmtypes.Response, error) {
	return nil, errUnsupported
}

func (r *MockRegistry) Query(_ context.Context, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var q kernel.IBCRegistryQueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return nil, err
	}
	if q.DenomInfo == nil {
		return nil, errUnsupported
	}
	info, ok := r.denoms[q.DenomInfo.Denom]
	if !ok {
		return nil, fmt.Errorf("denom %s not registered", q.DenomInfo.Denom)
	}
	return json.Marshal(kernel.DenomInfoResponse{DenomInfo: info})
}

// Call is one message a Recorder received.
type Call struct {
	Sender string            `json:"sender"`
	Msg    json.RawMessage   `json:"msg"`
	Funds  wasmvmtypes.Coins `json:"funds"`
}

// Recorder accepts any message and remembers it. A message with a top level
// "fail" key is rejected.
type Recorder struct {
	addr string
}

func NewRecorder(addr string) Contract {
	return &Recorder{addr: addr}
}

func (r *Recorder) Instantiate(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	return r.Execute(ctx, env, info, msg)
}

func (r *Recorder) Execute(ctx context.Context, _ wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(msg, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["fail"]; ok {
		return nil, fmt.Errorf("recorder %s: forced failure", r.addr)
	}

	store := contractStore(ctx, r.addr)
	var calls []Call
	if bz := store.Get([]byte("calls")); bz != nil {
		if err := json.Unmarshal(bz, &calls); err != nil {
			return nil, err
		}
	}
	calls = append(calls, Call{Sender: info.Sender, Msg: msg, Funds: info.Funds})
	bz, err := json.Marshal(calls)
	if err != nil {
		return nil, err
	}
	store.Set([]byte("calls"), bz)
	return &wasmvmtypes.Response{
		Attributes: []wasmvmtypes.EventAttribute{{Key: "action", Value: "recorded"}},
	}, nil
}

func (r *Recorder) Query(ctx context.Context, _ wasmvmtypes.Env, _ []byte) ([]byte, error) {
	bz := contractStore(ctx, r.addr).Get([]byte("calls"))
	if bz == nil {
		return []byte("[]"), nil
	}
	return bz, nil
}

// Calls lists what the recorder at addr has received in committed state.
func (a *App) Calls(addr string) ([]Call, error) {
	bz, err := a.QueryContract(addr, []byte(`{"calls":{}}`))
	if err != nil {
		return nil, err
	}
	var calls []Call
	return calls, json.Unmarshal(bz, &calls)
}

// MockCw20 is a minimal CW20 token: balances, transfer and send.
type MockCw20 struct {
	addr string
}

func NewMockCw20(addr string) *MockCw20 {
	return &MockCw20{addr: addr}
}

func (t *MockCw20) balance(ctx context.Context, owner string) sdkmath.Int {
	bz := contractStore(ctx, t.addr).Get([]byte("balance/" + owner))
	if bz == nil {
		return sdkmath.ZeroInt()
	}
	amount, _ := sdkmath.NewIntFromString(string(bz))
	return amount
}

func (t *MockCw20) setBalance(ctx context.Context, owner string, amount sdkmath.Int) {
	contractStore(ctx, t.addr).Set([]byte("balance/"+owner), []byte(amount.String()))
}

func (t *MockCw20) move(ctx context.Context, from, to, amount string) error {
	amt, ok := sdkmath.NewIntFromString(amount)
	if !ok || !amt.IsPositive() {
		return fmt.Errorf("invalid cw20 amount %q", amount)
	}
	bal := t.balance(ctx, from)
	if bal.LT(amt) {
		return fmt.Errorf("cw20 %s: %s has %s, needs %s", t.addr, from, bal, amt)
	}
	t.setBalance(ctx, from, bal.Sub(amt))
	t.setBalance(ctx, to, t.balance(ctx, to).Add(amt))
	return nil
}

type cw20Mint struct {
	Mint *struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	} `json:"mint,omitempty"`
}

func (t *MockCw20) Execute(ctx context.Context, _ wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m cw20Mint
	if err := json.Unmarshal(msg, &m); err == nil && m.Mint != nil {
		amt, ok := sdkmath.NewIntFromString(m.Mint.Amount)
		if !ok {
			return nil, fmt.Errorf("invalid cw20 amount %q", m.Mint.Amount)
		}
		t.setBalance(ctx, m.Mint.Recipient, t.balance(ctx, m.Mint.Recipient).Add(amt))
		return &wasmvmtypes.Response{}, nil
	}

	var exec kernel.Cw20ExecuteMsg
	if err := json.Unmarshal(msg, &exec); err != nil {
		return nil, err
	}
	switch {
	case exec.Transfer != nil:
		if err := t.move(ctx, info.Sender, exec.Transfer.Recipient, exec.Transfer.Amount); err != nil {
			return nil, err
		}
		return &wasmvmtypes.Response{Attributes: []wasmvmtypes.EventAttribute{{Key: "action", Value: "transfer"}}}, nil
	case exec.Send != nil:
		if err := t.move(ctx, info.Sender, exec.Send.Contract, exec.Send.Amount); err != nil {
			return nil, err
		}
		hook, err := json.Marshal(map[string]kernel.Cw20ReceiveMsg{"receive": {
			Sender: info.Sender,
			Amount: exec.Send.Amount,
			Msg:    exec.Send.Msg,
		}})
		if err != nil {
			return nil, err
		}
		return &wasmvmtypes.Response{
			Attributes: []wasmvmtypes.EventAttribute{{Key: "action", Value: "send"}},
			Messages: []wasmvmtypes.SubMsg{{
				Msg: wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Execute: &wasmvmtypes.ExecuteMsg{
					ContractAddr: exec.Send.Contract,
					Msg:          hook,
					Funds:        wasmvmtypes.Coins{},
				}}},
				ReplyOn: wasmvmtypes.ReplyNever,
			}},
		}, nil
	default:
		return nil, errUnsupported
	}
}

type cw20BalanceQuery struct {
	Balance *struct {
		Address string `json:"address"`
	} `json:"balance,omitempty"`
}

func (t *MockCw20) Query(ctx context.Context, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var q cw20BalanceQuery
	if err := json.Unmarshal(msg, &q); err != nil || q.Balance == nil {
		return nil, errUnsupported
	}
	return json.Marshal(map[string]string{"balance": t.balance(ctx, q.Balance.Address).String()})
}

// Cw20Balance reads a committed token balance.
func (a *App) Cw20Balance(token, owner string) (sdkmath.Int, error) {
	bz, err := a.QueryContract(token, []byte(fmt.Sprintf(`{"balance":{"address":%q}}`, owner)))
	if err != nil {
		return sdkmath.Int{}, err
	}
	var res struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(bz, &res); err != nil {
		return sdkmath.Int{}, err
	}
	amount, ok := sdkmath.NewIntFromString(res.Balance)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid balance %q", res.Balance)
	}
	return amount, nil
}

// kernelContract exposes the kernel through the generic Contract surface.
type kernelContract struct {
	k *kernel.Contract
}

func (c kernelContract) Execute(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	return c.k.ExecuteRaw(ctx, env, info, msg)
}

func (c kernelContract) Query(ctx context.Context, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	return c.k.QueryRaw(ctx, env, msg)
}

func (c kernelContract) Reply(ctx context.Context, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return c.k.Reply(ctx, env, reply)
}
