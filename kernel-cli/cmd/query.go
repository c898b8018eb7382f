package cmd

import (
	"context"
	"errors"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cosmwasmapi "github.com/andromedaprotocol/andromeda-kernel/cosmwasm-api"
	"github.com/andromedaprotocol/andromeda-kernel/kernel"
)

var errNoKernel = errors.New("kernel address not set, use --contract or contracts.kernel in the config file")

func QueryCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "query",
		Short: "Query a deployed kernel",
	}

	command.AddCommand(queryCmd[*kernel.ChannelInfoResponse]("channel-info <chain>", "Channels and remote kernel registered for a chain", 1,
		func(args []string) kernel.QueryMsg {
			return kernel.QueryMsg{ChannelInfo: &kernel.ChannelInfoQuery{Chain: args[0]}}
		}))
	command.AddCommand(queryCmd[string]("key-address <key>", "Address registered under a well-known key", 1,
		func(args []string) kernel.QueryMsg {
			return kernel.QueryMsg{KeyAddress: &kernel.KeyAddressQuery{Key: args[0]}}
		}))
	command.AddCommand(queryCmd[wasmvmtypes.Coins]("recoveries <addr>", "Funds awaiting recovery for an address", 1,
		func(args []string) kernel.QueryMsg {
			return kernel.QueryMsg{Recoveries: &kernel.RecoveriesQuery{Addr: args[0]}}
		}))
	command.AddCommand(queryCmd[kernel.EnvResponse]("env <variable>", "Value of a kernel environment variable", 1,
		func(args []string) kernel.QueryMsg {
			return kernel.QueryMsg{GetEnv: &kernel.GetEnvQuery{Variable: args[0]}}
		}))
	command.AddCommand(queryCmd[string]("chain-name", "Name of the chain the kernel runs on", 0,
		func([]string) kernel.QueryMsg {
			return kernel.QueryMsg{ChainName: &kernel.ChainNameQuery{}}
		}))
	return command
}

// queryCmd runs the smart query built from args and prints the decoded response.
func queryCmd[Response any](use, short string, nargs int, build func(args []string) kernel.QueryMsg) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := viper.GetString("contracts.kernel")
			if addr == "" {
				return errNoKernel
			}
			clientCtx, err := cosmwasmapi.NewClientCtx(viper.GetString("node"), viper.GetString("chain-id"))
			if err != nil {
				return err
			}
			response, err := cosmwasmapi.Query[Response](clientCtx, context.Background(), addr, build(args))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), response)
		},
	}
}
