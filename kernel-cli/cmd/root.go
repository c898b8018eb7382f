package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "kernel",
		Short:        "Build, query and simulate Andromeda kernel messages",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("node", "tcp://localhost:26657", "Node uri, endpoint to the node, e.g. https://rpc.andromeda-1.andromeda.aviaone.com")
	rootCmd.PersistentFlags().String("chain-id", "andromeda-1", "Chain id of the node, e.g. andromeda-1")
	rootCmd.PersistentFlags().String("contract", "", "Address of the kernel contract")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level, options: debug, info, warn, error")
	rootCmd.PersistentFlags().String("config", "", "Path to the config file, e.g. /path/to/config.yaml")

	_ = viper.BindPFlag("node", rootCmd.PersistentFlags().Lookup("node"))
	_ = viper.BindPFlag("chain-id", rootCmd.PersistentFlags().Lookup("chain-id"))
	_ = viper.BindPFlag("contracts.kernel", rootCmd.PersistentFlags().Lookup("contract"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(MsgCommand())
	rootCmd.AddCommand(QueryCommand())
	rootCmd.AddCommand(SimulateCommand())
	return rootCmd
}

func printJSON(out io.Writer, v any) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(bz))
	return err
}
