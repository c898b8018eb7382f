package simapp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cosmossdk.io/store/cachekv"
	"cosmossdk.io/store/prefix"
	storetypes "cosmossdk.io/store/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"

	"github.com/andromedaprotocol/andromeda-kernel/kernel"
	"github.com/andromedaprotocol/andromeda-kernel/kvstore"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
	"github.com/andromedaprotocol/andromeda-kernel/utils"
)

// Well known addresses every App starts with.
const (
	KernelAddress   = "kernel"
	VFSAddress      = "vfs"
	ADODBAddress    = "adodb"
	RegistryAddress = "ibcregistry"
	TriggerAddress  = "trigger"
	OwnerAddress    = "owner"
)

// Contract is the surface a contract exposes to the App.
type Contract interface {
	Execute(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error)
	Query(ctx context.Context, env wasmvmtypes.Env, msg []byte) ([]byte, error)
}

type Replier interface {
	Reply(ctx context.Context, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error)
}

type Instantiator interface {
	Instantiate(ctx context.Context, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error)
}

// CodeFactory builds a fresh contract for a newly instantiated address.
type CodeFactory func(addr string) Contract

type contractEntry struct {
	codeID   uint64
	creator  string
	admin    string
	contract Contract
}

type Config struct {
	ChainID string
	Owner   string
	Options kernel.Options
}

// App is a single in-memory chain hosting a kernel, its registries and any
// test contracts. Bank balances and contract state share one store, so a failed
// transaction or sub-message rolls both back.
type App struct {
	ChainID string
	Owner   string
	Height  uint64
	Time    time.Time

	txIndex uint32
	store   storetypes.KVStore

	contracts    map[string]*contractEntry
	codes        map[uint64]CodeFactory
	nextCodeID   uint64
	nextContract uint64

	channels map[string]wasmvmtypes.IBCChannel
	outbox   []Packet

	Kernel   *kernel.Contract
	VFS      *MockVFS
	ADODB    *MockADODB
	Registry *MockRegistry

	logger logger.Logger
}

var _ kernel.Querier = (*App)(nil)

func NewApp(cfg Config) (*App, error) {
	if cfg.ChainID == "" {
		return nil, utils.WrapError(utils.ErrScenarioInvalid, "chain id is empty")
	}
	if cfg.Owner == "" {
		cfg.Owner = OwnerAddress
	}
	opts := cfg.Options
	if opts.Logger == nil {
		opts.Logger = logger.NewLogrusLogger("kernel", nil)
	}

	a := &App{
		ChainID:    cfg.ChainID,
		Owner:      cfg.Owner,
		Height:     1,
		Time:       time.Unix(1_700_000_000, 0).UTC(),
		store:      kvstore.NewMemStore(),
		contracts:  map[string]*contractEntry{},
		codes:      map[uint64]CodeFactory{},
		nextCodeID: 1,
		channels:   map[string]wasmvmtypes.IBCChannel{},
		VFS:        NewMockVFS(VFSAddress),
		ADODB:      NewMockADODB(),
		Registry:   NewMockRegistry(),
		logger:     opts.Logger,
	}

	k, err := kernel.NewContract(kvstore.NewContextService(contractPrefix(KernelAddress)), a, PermissiveAPI{}, opts)
	if err != nil {
		return nil, err
	}
	a.Kernel = k

	a.RegisterContract(KernelAddress, a.StoreCode(nil), kernelContract{k})
	a.RegisterContract(VFSAddress, a.StoreCode(nil), a.VFS)
	a.RegisterContract(ADODBAddress, a.StoreCode(nil), a.ADODB)
	a.RegisterContract(RegistryAddress, a.StoreCode(nil), a.Registry)

	if _, err := a.runTx(func(f *frame) error {
		_, err := k.Instantiate(f.ctx, a.env(KernelAddress), wasmvmtypes.MessageInfo{Sender: cfg.Owner}, kernel.InstantiateMsg{
			ChainName: cfg.ChainID,
			Owner:     cfg.Owner,
		})
		return err
	}); err != nil {
		return nil, err
	}

	for key, addr := range map[string]string{
		kernel.VFSKey:         VFSAddress,
		kernel.ADODBKey:       ADODBAddress,
		kernel.IBCRegistryKey: RegistryAddress,
		kernel.TriggerKey:     TriggerAddress,
	} {
		if _, err := a.ExecuteKernel(cfg.Owner, kernel.ExecuteMsg{
			UpsertKeyAddress: &kernel.UpsertKeyAddress{Key: key, Value: addr},
		}, nil); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func contractPrefix(addr string) []byte {
	return []byte("c/" + addr + "/")
}

// contractStore is the slice of the current transaction's store owned by addr.
func contractStore(ctx context.Context, addr string) storetypes.KVStore {
	store, ok := kvstore.StoreFromContext(ctx)
	if !ok {
		panic("simapp: no store in context")
	}
	return prefix.NewStore(store, contractPrefix(addr))
}

// StoreCode registers a code id. A nil factory means the code cannot be instantiated.
func (a *App) StoreCode(factory CodeFactory) uint64 {
	id := a.nextCodeID
	a.nextCodeID++
	if factory != nil {
		a.codes[id] = factory
	}
	return id
}

func (a *App) RegisterContract(addr string, codeID uint64, c Contract) {
	a.contracts[addr] = &contractEntry{codeID: codeID, creator: OwnerAddress, contract: c}
}

func (a *App) CodeID(addr string) (uint64, bool) {
	entry, ok := a.contracts[addr]
	if !ok {
		return 0, false
	}
	return entry.codeID, true
}

func (a *App) NextBlock() {
	a.Height++
	a.Time = a.Time.Add(5 * time.Second)
	a.txIndex = 0
}

func (a *App) env(contract string) wasmvmtypes.Env {
	return wasmvmtypes.Env{
		Block: wasmvmtypes.BlockInfo{
			Height:  a.Height,
			Time:    uint64(a.Time.UnixNano()),
			ChainID: a.ChainID,
		},
		Transaction: &wasmvmtypes.TransactionInfo{Index: a.txIndex},
		Contract:    wasmvmtypes.ContractInfo{Address: contract},
	}
}

// Env is the environment contract would see in the next transaction.
func (a *App) Env(contract string) wasmvmtypes.Env {
	return a.env(contract)
}

// Execute runs one transaction: sender calls contract with msg and funds.
func (a *App) Execute(sender, contract string, msg []byte, funds wasmvmtypes.Coins) (*Result, error) {
	return a.runTx(func(f *frame) error {
		_, err := a.execute(f, sender, contract, msg, funds)
		return err
	})
}

func (a *App) ExecuteKernel(sender string, msg kernel.ExecuteMsg, funds wasmvmtypes.Coins) (*Result, error) {
	bz, err := msg.Marshal()
	if err != nil {
		return nil, err
	}
	return a.Execute(sender, KernelAddress, bz, funds)
}

func (a *App) Sudo(msg kernel.SudoMsg) (*Result, error) {
	return a.runTx(func(f *frame) error {
		resp, err := a.Kernel.Sudo(f.ctx, a.env(KernelAddress), msg)
		if err != nil {
			return err
		}
		_, err = a.handleResponse(f, KernelAddress, resp)
		return err
	})
}

// QueryContract runs a smart query against committed state.
func (a *App) QueryContract(addr string, msg []byte) ([]byte, error) {
	ctx := kvstore.WithStore(context.Background(), a.store)
	return a.Smart(ctx, addr, msg)
}

func (a *App) QueryKernel(msg kernel.QueryMsg, out any) error {
	bz, err := msg.Marshal()
	if err != nil {
		return err
	}
	res, err := a.QueryContract(KernelAddress, bz)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}

// KernelContext returns a context over committed state, for reading kernel storage.
func (a *App) KernelContext() context.Context {
	return kvstore.WithStore(context.Background(), a.store)
}

func (a *App) ContractInfo(_ context.Context, addr string) (*wasmvmtypes.ContractInfoResponse, error) {
	entry, ok := a.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("no such contract: %s", addr)
	}
	return &wasmvmtypes.ContractInfoResponse{
		CodeID:  entry.codeID,
		Creator: entry.creator,
		Admin:   entry.admin,
	}, nil
}

func (a *App) Smart(ctx context.Context, contract string, msg []byte) ([]byte, error) {
	entry, ok := a.contracts[contract]
	if !ok {
		return nil, fmt.Errorf("no such contract: %s", contract)
	}
	return entry.contract.Query(ctx, a.env(contract), msg)
}

func (a *App) Channel(_ context.Context, port, channelID string) (*wasmvmtypes.IBCChannel, error) {
	ch, ok := a.channels[channelID]
	if !ok || ch.Endpoint.PortID != port {
		return nil, fmt.Errorf("channel %s/%s not found", port, channelID)
	}
	return &ch, nil
}

// PermissiveAPI accepts any non-empty address without whitespace or path separators.
type PermissiveAPI struct{}

func (PermissiveAPI) AddrValidate(addr string) error {
	if addr == "" {
		return utils.ErrEmptyAddress
	}
	if strings.ContainsAny(addr, " \t\n/~") {
		return fmt.Errorf("invalid address %q", addr)
	}
	return nil
}

// Result is what a committed transaction did.
type Result struct {
	Events  []wasmvmtypes.Event
	Msgs    []DispatchedMsg
	Packets []Packet
	Data    []byte
}

// DispatchedMsg is one message a contract emitted and the App executed.
type DispatchedMsg struct {
	Sender string
	Msg    wasmvmtypes.CosmosMsg
}

// Attribute returns the first value of key across all events.
func (r *Result) Attribute(key string) (string, bool) {
	for _, e := range r.Events {
		for _, attr := range e.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}

// frame is one level of cached execution; children commit into their parent.
type frame struct {
	ctx     context.Context
	store   *cachekv.Store
	events  []wasmvmtypes.Event
	msgs    []DispatchedMsg
	packets []Packet
}

func newFrame(parent storetypes.KVStore) *frame {
	store := cachekv.NewStore(parent)
	return &frame{ctx: kvstore.WithStore(context.Background(), store), store: store}
}

func (f *frame) child() *frame {
	return newFrame(f.store)
}

func (f *frame) commit(child *frame) {
	child.store.Write()
	f.events = append(f.events, child.events...)
	f.msgs = append(f.msgs, child.msgs...)
	f.packets = append(f.packets, child.packets...)
}

func (a *App) runTx(fn func(f *frame) error) (*Result, error) {
	f := newFrame(a.store)
	err := fn(f)
	a.txIndex++
	if err != nil {
		a.logger.Debug("transaction failed", logger.WithField("chain", a.ChainID), logger.WithField("error", err.Error()))
		return nil, err
	}
	f.store.Write()
	a.outbox = append(a.outbox, f.packets...)
	return &Result{Events: f.events, Msgs: f.msgs, Packets: f.packets}, nil
}
