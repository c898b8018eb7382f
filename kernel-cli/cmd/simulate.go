package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andromedaprotocol/andromeda-kernel/kernel"
	"github.com/andromedaprotocol/andromeda-kernel/logger"
	"github.com/andromedaprotocol/andromeda-kernel/metrics"
	kernelactivity "github.com/andromedaprotocol/andromeda-kernel/metrics/indicators/kernel_activity"
	"github.com/andromedaprotocol/andromeda-kernel/simapp"
	"github.com/andromedaprotocol/andromeda-kernel/utils"
)

// StepReport is printed for every scenario step.
type StepReport struct {
	Step     int                    `json:"step"`
	Name     string                 `json:"name,omitempty"`
	Chain    string                 `json:"chain"`
	OK       bool                   `json:"ok"`
	Error    string                 `json:"error,omitempty"`
	PacketID string                 `json:"packet_id,omitempty"`
	Msgs     []simapp.DispatchedMsg `json:"msgs,omitempty"`
	Packets  []PacketReport         `json:"packets,omitempty"`
	Acks     []string               `json:"acks,omitempty"`
}

type PacketReport struct {
	Kind     simapp.PacketKind `json:"kind"`
	Channel  string            `json:"channel"`
	Sequence uint64            `json:"sequence"`
}

// Simulator runs a Scenario on in-memory chains.
type Simulator struct {
	apps   map[string]*simapp.App
	logger logger.Logger
	out    io.Writer
}

func NewSimulator(s *Scenario, reg prometheus.Registerer, log logger.Logger, out io.Writer) (*Simulator, error) {
	sim := &Simulator{apps: map[string]*simapp.App{}, logger: log, out: out}
	for _, chain := range s.Chains {
		opts := kernel.DefaultOptions()
		opts.CrossChainCreate = chain.CrossChainCreate
		opts.Logger = log
		if reg != nil {
			opts.Indicators = kernelactivity.NewPromIndicators(chain.ID, reg)
		}
		app, err := simapp.NewApp(simapp.Config{ChainID: chain.ID, Options: opts})
		if err != nil {
			return nil, err
		}
		if err := setupChain(app, chain); err != nil {
			return nil, utils.WrapError(fmt.Sprintf("setup %s failed", chain.ID), err)
		}
		sim.apps[chain.ID] = app
	}
	for _, l := range s.Links {
		if err := simapp.Link(sim.apps[l.A], sim.apps[l.B], simapp.DefaultLink()); err != nil {
			return nil, utils.WrapError(fmt.Sprintf("link %s <> %s failed", l.A, l.B), err)
		}
	}
	return sim, nil
}

func setupChain(app *simapp.App, chain ChainSpec) error {
	for _, addr := range sortedKeys(chain.Balances) {
		coins, err := parseCoins(chain.Balances[addr])
		if err != nil {
			return err
		}
		if err := app.Mint(addr, coins...); err != nil {
			return err
		}
	}
	for _, addr := range chain.Recorders {
		app.RegisterContract(addr, app.StoreCode(simapp.NewRecorder), simapp.NewRecorder(addr))
	}
	for _, addr := range sortedKeys(chain.ADOs) {
		code := app.StoreCode(simapp.NewRecorder)
		app.ADODB.Publish(code, chain.ADOs[addr])
		app.RegisterContract(addr, code, simapp.NewRecorder(addr))
	}
	for _, username := range sortedKeys(chain.Usernames) {
		app.VFS.SetUsername(username, chain.Usernames[username])
	}
	for _, key := range sortedKeys(chain.Keys) {
		if _, err := app.ExecuteKernel(app.Owner, kernel.ExecuteMsg{UpsertKeyAddress: &kernel.UpsertKeyAddress{
			Key:   key,
			Value: chain.Keys[key],
		}}, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (sim *Simulator) App(chain string) *simapp.App {
	return sim.apps[chain]
}

// Run executes every step and checks the expected balances. It stops at the
// first step whose outcome differs from expect_error.
func (sim *Simulator) Run(s *Scenario) ([]StepReport, error) {
	var reports []StepReport
	for i, step := range s.Steps {
		report := sim.runStep(i, step)
		reports = append(reports, report)
		if err := printJSON(sim.out, report); err != nil {
			return reports, err
		}
		if report.OK == step.ExpectError {
			return reports, fmt.Errorf("step %d (%s): expected error %v, got %q", i, step.Name, step.ExpectError, report.Error)
		}
	}
	for _, b := range s.Expect {
		want, ok := sdkmath.NewIntFromString(b.Amount)
		if !ok {
			return reports, utils.WrapError(utils.ErrScenarioInvalid, "invalid amount "+b.Amount)
		}
		if got := sim.apps[b.Chain].Balance(b.Address, b.Denom); !got.Equal(want) {
			return reports, fmt.Errorf("%s: balance of %s is %s%s, expected %s%s", b.Chain, b.Address, got, b.Denom, want, b.Denom)
		}
	}
	return reports, nil
}

func (sim *Simulator) runStep(i int, step Step) StepReport {
	report := StepReport{Step: i, Name: step.Name, Chain: step.Chain}
	var err error
	switch {
	case step.Relay != nil:
		report.Chain = step.Relay.From
		var acks [][]byte
		acks, err = simapp.RelayAll(sim.apps[step.Relay.From], sim.apps[step.Relay.To])
		for _, ack := range acks {
			report.Acks = append(report.Acks, string(ack))
		}
	case step.Timeout != nil:
		report.Chain = step.Timeout.From
		app := sim.apps[step.Timeout.From]
		for _, pkt := range app.TakePackets() {
			if _, err = app.TimeoutPacket(pkt); err != nil {
				break
			}
			report.Packets = append(report.Packets, PacketReport{Kind: pkt.Kind, Channel: pkt.SrcChannel, Sequence: pkt.Sequence})
		}
	default:
		err = sim.execute(step, &report)
	}

	report.OK = err == nil
	if err != nil {
		report.Error = err.Error()
		sim.logger.Warn("step failed", logger.WithField("step", i), logger.WithField("error", err.Error()))
	}
	return report
}

func (sim *Simulator) execute(step Step, report *StepReport) error {
	msg, err := step.kernelMsg()
	if err != nil {
		return err
	}
	funds, err := parseCoins(step.Funds)
	if err != nil {
		return err
	}
	app := sim.apps[step.Chain]
	app.NextBlock()
	res, err := app.Execute(step.Sender, simapp.KernelAddress, msg, funds)
	if err != nil {
		return err
	}
	report.PacketID, _ = res.Attribute("packet_id")
	report.Msgs = res.Msgs
	for _, pkt := range res.Packets {
		report.Packets = append(report.Packets, PacketReport{Kind: pkt.Kind, Channel: pkt.SrcChannel, Sequence: pkt.Sequence})
	}
	return nil
}

func SimulateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scenario against in-memory chains and print what every step emitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := LoadScenario(args[0])
			if err != nil {
				return err
			}

			log := logger.NewLogrusLogger("kernel-simulate", os.Stderr)
			if addr, _ := cmd.Flags().GetString("logstash-addr"); addr != "" {
				conn, err := net.Dial("tcp", addr)
				if err != nil {
					return utils.WrapError("failed to connect to logstash", err)
				}
				defer conn.Close()
				log = logger.NewLogstashLogger("kernel-simulate", os.Stderr, conn)
			}
			log.SetLogLevel(viper.GetString("log-level"))

			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			linger, _ := cmd.Flags().GetDuration("linger")

			reg := prometheus.NewRegistry()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var errChan <-chan error
			if metricsAddr != "" {
				errChan = metrics.NewKernelMetrics(metricsAddr, log).Start(ctx, reg)
			}

			sim, err := NewSimulator(scenario, reg, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if _, err := sim.Run(scenario); err != nil {
				return err
			}

			if errChan == nil {
				return nil
			}
			select {
			case err := <-errChan:
				return err
			case <-time.After(linger):
			}
			cancel()
			return <-errChan
		},
	}
	command.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address while simulating, e.g. localhost:9090")
	command.Flags().String("logstash-addr", "", "Also ship logs to this logstash tcp input, e.g. localhost:5044")
	command.Flags().Duration("linger", 0, "Keep serving metrics this long after the scenario finishes")
	return command
}
