package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	cosmwasmapi "github.com/andromedaprotocol/andromeda-kernel/cosmwasm-api"
	"github.com/andromedaprotocol/andromeda-kernel/kernel"
)

// MsgCommand prints kernel execute messages. With --sender the message is wrapped
// into an unsigned MsgExecuteContract addressed to the configured kernel.
func MsgCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "msg",
		Short: "Build kernel execute messages",
	}
	command.PersistentFlags().String("sender", "", "Wrap the message in a MsgExecuteContract signed by this address")
	command.PersistentFlags().String("funds", "", "Funds attached to the execution, e.g. 100uandr")

	command.AddCommand(msgSend())
	command.AddCommand(msgAssignChannels())
	command.AddCommand(msgTriggerRelay())
	command.AddCommand(msgSetEnv())
	command.AddCommand(msgUpsertKeyAddress())
	return command
}

func emit(cmd *cobra.Command, msg kernel.ExecuteMsg) error {
	sender, _ := cmd.Flags().GetString("sender")
	funds, _ := cmd.Flags().GetString("funds")
	if sender == "" {
		return printJSON(cmd.OutOrStdout(), msg)
	}

	coins, err := sdktypes.ParseCoinsNormalized(funds)
	if err != nil {
		return err
	}
	opts := cosmwasmapi.DefaultBroadcastOptions().
		WithContractAddr(viper.GetString("contracts.kernel")).
		WithExecuteMsg(msg)
	opts.Funds = coins

	execMsg, err := opts.MsgExecuteContract(sender)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), execMsg)
}

func msgSend() *cobra.Command {
	command := &cobra.Command{
		Use:   "send <recipient>",
		Short: "Route an AMP message, e.g. to ibc://osmosis/<addr>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			funds, _ := cmd.Flags().GetString("funds")
			direct, _ := cmd.Flags().GetBool("direct")
			replyOn, _ := cmd.Flags().GetString("reply-on")
			recovery, _ := cmd.Flags().GetString("recovery-addr")

			var payload []byte
			if message != "" {
				if !json.Valid([]byte(message)) {
					return fmt.Errorf("message is not valid json: %s", message)
				}
				payload = []byte(message)
			}
			coins, err := sdktypes.ParseCoinsNormalized(funds)
			if err != nil {
				return err
			}

			config := amp.DefaultConfig()
			config.Direct = direct
			switch on := amp.ReplyOn(replyOn); on {
			case amp.ReplyAlways, amp.ReplySuccess, amp.ReplyError, amp.ReplyNever:
				config.ReplyOn = on
			default:
				return fmt.Errorf("invalid reply-on %q", replyOn)
			}
			if recovery != "" {
				addr := amp.AndrAddr(recovery)
				config.IBCConfig = &amp.IBCConfig{RecoveryAddr: &addr}
			}

			msg := amp.NewAMPMsg(amp.AndrAddr(args[0]), payload, amp.FromSdkCoins(coins)).WithConfig(config)
			return emit(cmd, kernel.ExecuteMsg{Send: &kernel.Send{Message: msg}})
		},
	}
	command.Flags().String("message", "", "JSON message delivered to the recipient")
	command.Flags().Bool("direct", false, "Deliver the message without AMP wrapping")
	command.Flags().String("reply-on", string(amp.ReplyAlways), "When the kernel expects a reply: always, error, success, never")
	command.Flags().String("recovery-addr", "", "Address credited when a cross-chain transfer fails")
	return command
}

func msgAssignChannels() *cobra.Command {
	command := &cobra.Command{
		Use:   "assign-channels <chain> <kernel-address>",
		Short: "Register the channels and remote kernel of a chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := &kernel.AssignChannels{Chain: args[0], KernelAddress: args[1]}
			if ics20, _ := cmd.Flags().GetString("ics20"); ics20 != "" {
				msg.Ics20ChannelID = &ics20
			}
			if direct, _ := cmd.Flags().GetString("direct"); direct != "" {
				msg.DirectChannelID = &direct
			}
			if cmd.Flags().Changed("modules") {
				msg.SupportedModules, _ = cmd.Flags().GetStringSlice("modules")
			}
			return emit(cmd, kernel.ExecuteMsg{AssignChannels: msg})
		},
	}
	command.Flags().String("ics20", "", "ICS20 transfer channel id, e.g. channel-1")
	command.Flags().String("direct", "", "Kernel to kernel channel id, e.g. channel-0")
	command.Flags().StringSlice("modules", nil, "Modules the remote chain supports, comma separated")
	return command
}

func msgTriggerRelay() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-relay <channel> <sequence> <ack-json>",
		Short: "Settle a pending funds transfer with its acknowledgement",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sequence, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sequence %q: %w", args[1], err)
			}
			if !json.Valid([]byte(args[2])) {
				return fmt.Errorf("acknowledgement is not valid json: %s", args[2])
			}
			return emit(cmd, kernel.ExecuteMsg{TriggerRelay: &kernel.TriggerRelay{
				ChannelID:      args[0],
				PacketSequence: sequence,
				PacketAck:      []byte(args[2]),
			}})
		},
	}
}

func msgSetEnv() *cobra.Command {
	return &cobra.Command{
		Use:   "set-env <variable> <value>",
		Short: "Set a kernel environment variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(cmd, kernel.ExecuteMsg{SetEnv: &kernel.SetEnv{Variable: args[0], Value: args[1]}})
		},
	}
}

func msgUpsertKeyAddress() *cobra.Command {
	return &cobra.Command{
		Use:   "upsert-key-address <key> <address>",
		Short: "Point a well-known key (vfs, adodb, trigger_key, ...) at an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(cmd, kernel.ExecuteMsg{UpsertKeyAddress: &kernel.UpsertKeyAddress{Key: args[0], Value: args[1]}})
		},
	}
}
