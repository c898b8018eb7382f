package kernel

import (
	"context"
	"encoding/json"
	"errors"

	"cosmossdk.io/collections"
	errorsmod "cosmossdk.io/errors"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

// Well known kernel_addresses keys.
const (
	VFSKey         = "vfs"
	ADODBKey       = "adodb"
	IBCRegistryKey = "ibc_registry"
	EconomicsKey   = "economics"
	TriggerKey     = "trigger_key"
)

// Querier is the read access the host gives a contract.
type Querier interface {
	ContractInfo(ctx context.Context, addr string) (*wasmvmtypes.ContractInfoResponse, error)
	Smart(ctx context.Context, contract string, msg []byte) ([]byte, error)
	Channel(ctx context.Context, port, channelID string) (*wasmvmtypes.IBCChannel, error)
}

type AddressAPI interface {
	AddrValidate(addr string) error
}

// Bech32API accepts bech32 addresses with a fixed human readable prefix.
type Bech32API struct {
	Prefix string
}

var _ AddressAPI = Bech32API{}

func (b Bech32API) AddrValidate(addr string) error {
	hrp, bz, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return errorsmod.Wrap(ErrInvalidAddress, err.Error())
	}
	if hrp != b.Prefix {
		return errorsmod.Wrapf(ErrInvalidAddress, "expected prefix %s, got %s", b.Prefix, hrp)
	}
	if len(bz) == 0 {
		return errorsmod.Wrap(ErrInvalidAddress, "empty address")
	}
	return nil
}

type VFSQueryMsg struct {
	ResolvePath            *ResolvePathQuery            `json:"resolve_path,omitempty"`
	GetUsername            *GetUsernameQuery            `json:"get_username,omitempty"`
	GetAddressFromUsername *GetAddressFromUsernameQuery `json:"get_address_from_username,omitempty"`
}

type ResolvePathQuery struct {
	Path amp.AndrAddr `json:"path"`
}

type GetUsernameQuery struct {
	Address string `json:"address"`
}

type GetAddressFromUsernameQuery struct {
	Username string `json:"username"`
}

type VFSExecuteMsg struct {
	RegisterUser *RegisterUser `json:"register_user,omitempty"`
}

type RegisterUser struct {
	Username string  `json:"username"`
	Address  *string `json:"address,omitempty"`
}

type ADODBQueryMsg struct {
	ADOType *ADOTypeQuery `json:"ado_type,omitempty"`
	CodeID  *CodeIDQuery  `json:"code_id,omitempty"`
}

type ADOTypeQuery struct {
	CodeID uint64 `json:"code_id"`
}

type CodeIDQuery struct {
	Key string `json:"key"`
}

type IBCRegistryQueryMsg struct {
	DenomInfo *DenomInfoQuery `json:"denom_info,omitempty"`
}

type DenomInfoQuery struct {
	Denom string `json:"denom"`
}

type DenomInfoResponse struct {
	DenomInfo DenomInfo `json:"denom_info"`
}

// DenomInfo is an ICS20 denom trace as stored by the IBC registry.
type DenomInfo struct {
	Path      string `json:"path"`
	BaseDenom string `json:"base_denom"`
}

func querySmart[R any](ctx context.Context, q Querier, contract string, msg any) (R, error) {
	var result R
	req, err := json.Marshal(msg)
	if err != nil {
		return result, err
	}
	bz, err := q.Smart(ctx, contract, req)
	if err != nil {
		return result, errorsmod.Wrapf(ErrGeneric, "query %s: %v", contract, err)
	}
	if err := json.Unmarshal(bz, &result); err != nil {
		return result, errorsmod.Wrapf(ErrGeneric, "decode %s response: %v", contract, err)
	}
	return result, nil
}

func (c *Contract) keyAddress(ctx context.Context, key string) (string, error) {
	addr, err := c.state.KernelAddresses.Get(ctx, key)
	if errors.Is(err, collections.ErrNotFound) {
		return "", errorsmod.Wrapf(ErrNotFound, "key address %s", key)
	}
	return addr, err
}

// resolveAddress turns a local recipient into a raw address, resolving VFS paths.
func (c *Contract) resolveAddress(ctx context.Context, addr amp.AndrAddr) (string, error) {
	if !addr.IsVFSPath() {
		if err := c.api.AddrValidate(addr.String()); err != nil {
			return "", err
		}
		return addr.String(), nil
	}
	vfs, err := c.keyAddress(ctx, VFSKey)
	if err != nil {
		return "", err
	}
	return querySmart[string](ctx, c.querier, vfs, VFSQueryMsg{ResolvePath: &ResolvePathQuery{Path: addr}})
}

func (c *Contract) adoType(ctx context.Context, codeID uint64) (*string, error) {
	adodb, err := c.keyAddress(ctx, ADODBKey)
	if err != nil {
		return nil, err
	}
	return querySmart[*string](ctx, c.querier, adodb, ADODBQueryMsg{ADOType: &ADOTypeQuery{CodeID: codeID}})
}

func (c *Contract) codeID(ctx context.Context, adoType string) (uint64, error) {
	adodb, err := c.keyAddress(ctx, ADODBKey)
	if err != nil {
		return 0, err
	}
	return querySmart[uint64](ctx, c.querier, adodb, ADODBQueryMsg{CodeID: &CodeIDQuery{Key: adoType}})
}

func (c *Contract) denomTrace(ctx context.Context, denom string) (DenomInfo, error) {
	registry, err := c.keyAddress(ctx, IBCRegistryKey)
	if err != nil {
		return DenomInfo{}, err
	}
	res, err := querySmart[DenomInfoResponse](ctx, c.querier, registry, IBCRegistryQueryMsg{DenomInfo: &DenomInfoQuery{Denom: denom}})
	if err != nil {
		return DenomInfo{}, err
	}
	return res.DenomInfo, nil
}

// usernameOf returns the VFS username registered for addr, if any.
func (c *Contract) usernameOf(ctx context.Context, addr string) (*amp.AndrAddr, error) {
	vfs, err := c.keyAddress(ctx, VFSKey)
	if err != nil {
		return nil, err
	}
	username, err := querySmart[string](ctx, c.querier, vfs, VFSQueryMsg{GetUsername: &GetUsernameQuery{Address: addr}})
	if err != nil {
		return nil, err
	}
	if username == "" || username == addr {
		return nil, nil
	}
	u := amp.AndrAddr(username)
	return &u, nil
}

func (c *Contract) addressOfUsername(ctx context.Context, username string) (string, error) {
	vfs, err := c.keyAddress(ctx, VFSKey)
	if err != nil {
		return "", err
	}
	return querySmart[string](ctx, c.querier, vfs, VFSQueryMsg{GetAddressFromUsername: &GetAddressFromUsernameQuery{Username: username}})
}

// verifyADO reports whether addr is a contract whose code id the ADODB knows.
func (c *Contract) verifyADO(ctx context.Context, addr string) (bool, error) {
	info, err := c.querier.ContractInfo(ctx, addr)
	if err != nil {
		return false, nil
	}
	adoType, err := c.adoType(ctx, info.CodeID)
	if err != nil {
		return false, err
	}
	return adoType != nil, nil
}
