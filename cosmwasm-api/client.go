package cosmwasmapi

import (
	"context"
	"encoding/json"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"

	"github.com/andromedaprotocol/andromeda-kernel/utils"
)

// NewClientCtx returns a query-capable client context for the node at nodeURI.
func NewClientCtx(nodeURI, chainID string) (client.Context, error) {
	interfaceRegistry := codectypes.NewInterfaceRegistry()
	wasmtypes.RegisterInterfaces(interfaceRegistry)
	marshaler := codec.NewProtoCodec(interfaceRegistry)

	clientCtx := client.Context{}.
		WithChainID(chainID).
		WithNodeURI(nodeURI).
		WithOutputFormat("json").
		WithInterfaceRegistry(interfaceRegistry).
		WithCodec(marshaler)

	rpcClient, err := rpchttp.New(nodeURI, "/websocket")
	if err != nil {
		return clientCtx, utils.WrapError("invalid node uri", err)
	}
	return clientCtx.WithClient(rpcClient), nil
}

// Query runs a smart query against the contract at addr and decodes the JSON result.
func Query[Response interface{}](
	clientCtx client.Context, ctx context.Context, addr string, msg interface{},
) (Response, error) {
	var result Response
	queryClient := wasmtypes.NewQueryClient(clientCtx)

	queryBytes, err := json.Marshal(msg)
	if err != nil {
		return result, err
	}

	queryMsg := &wasmtypes.QuerySmartContractStateRequest{
		Address:   addr,
		QueryData: queryBytes,
	}

	response, err := queryClient.SmartContractState(ctx, queryMsg)
	if err != nil {
		return result, err
	}

	err = json.Unmarshal(response.Data, &result)
	return result, err
}
