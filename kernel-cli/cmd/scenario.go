package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"gopkg.in/yaml.v3"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
	"github.com/andromedaprotocol/andromeda-kernel/kernel"
	"github.com/andromedaprotocol/andromeda-kernel/utils"
)

// Scenario is a scripted run over one or more simulated chains.
type Scenario struct {
	Chains []ChainSpec `yaml:"chains"`
	Links  []LinkSpec  `yaml:"links"`
	Steps  []Step      `yaml:"steps"`
	Expect []Balance   `yaml:"expect"`
}

type ChainSpec struct {
	ID               string            `yaml:"id"`
	CrossChainCreate bool              `yaml:"cross_chain_create"`
	Balances         map[string]string `yaml:"balances"`
	Recorders        []string          `yaml:"recorders"`
	ADOs             map[string]string `yaml:"ados"`
	Usernames        map[string]string `yaml:"usernames"`
	Keys             map[string]string `yaml:"keys"`
}

type LinkSpec struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Step does exactly one of: send an AMP message, execute a raw kernel message,
// relay pending packets, or time them out.
type Step struct {
	Name        string         `yaml:"name"`
	Chain       string         `yaml:"chain"`
	Sender      string         `yaml:"sender"`
	Funds       string         `yaml:"funds"`
	Send        *SendStep      `yaml:"send"`
	Execute     map[string]any `yaml:"execute"`
	Relay       *Route         `yaml:"relay"`
	Timeout     *Route         `yaml:"timeout"`
	ExpectError bool           `yaml:"expect_error"`
}

type SendStep struct {
	Recipient    string `yaml:"recipient"`
	Message      any    `yaml:"message"`
	Funds        string `yaml:"funds"`
	Direct       bool   `yaml:"direct"`
	ReplyOn      string `yaml:"reply_on"`
	RecoveryAddr string `yaml:"recovery_addr"`
}

type Route struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type Balance struct {
	Chain   string `yaml:"chain"`
	Address string `yaml:"address"`
	Denom   string `yaml:"denom"`
	Amount  string `yaml:"amount"`
}

func LoadScenario(path string) (*Scenario, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(bz)
}

func ParseScenario(bz []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(bz, &s); err != nil {
		return nil, utils.WrapError(utils.ErrScenarioInvalid, err)
	}
	if err := s.validate(); err != nil {
		return nil, utils.WrapError(utils.ErrScenarioInvalid, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if len(s.Chains) == 0 {
		return fmt.Errorf("no chains")
	}
	chains := map[string]bool{}
	for _, c := range s.Chains {
		if c.ID == "" {
			return fmt.Errorf("chain without id")
		}
		if chains[c.ID] {
			return fmt.Errorf("duplicate chain %s", c.ID)
		}
		chains[c.ID] = true
	}
	known := func(id string) error {
		if !chains[id] {
			return fmt.Errorf("unknown chain %q", id)
		}
		return nil
	}
	for _, l := range s.Links {
		if err := known(l.A); err != nil {
			return err
		}
		if err := known(l.B); err != nil {
			return err
		}
	}
	for i, step := range s.Steps {
		actions := 0
		for _, set := range []bool{step.Send != nil, step.Execute != nil, step.Relay != nil, step.Timeout != nil} {
			if set {
				actions++
			}
		}
		if actions != 1 {
			return fmt.Errorf("step %d: exactly one of send, execute, relay, timeout must be set", i)
		}
		var err error
		switch {
		case step.Relay != nil:
			if err = known(step.Relay.From); err == nil {
				err = known(step.Relay.To)
			}
		case step.Timeout != nil:
			err = known(step.Timeout.From)
		default:
			err = known(step.Chain)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	for _, b := range s.Expect {
		if err := known(b.Chain); err != nil {
			return err
		}
	}
	return nil
}

func parseCoins(s string) (wasmvmtypes.Coins, error) {
	coins, err := sdktypes.ParseCoinsNormalized(s)
	if err != nil {
		return nil, err
	}
	return amp.FromSdkCoins(coins), nil
}

// kernelMsg builds the execute message of a send or execute step.
func (step Step) kernelMsg() ([]byte, error) {
	if step.Execute != nil {
		return json.Marshal(step.Execute)
	}

	send := step.Send
	var payload []byte
	if send.Message != nil {
		bz, err := json.Marshal(send.Message)
		if err != nil {
			return nil, err
		}
		payload = bz
	}
	funds, err := parseCoins(send.Funds)
	if err != nil {
		return nil, err
	}
	config := amp.DefaultConfig()
	config.Direct = send.Direct
	if send.ReplyOn != "" {
		config.ReplyOn = amp.ReplyOn(send.ReplyOn)
	}
	if send.RecoveryAddr != "" {
		addr := amp.AndrAddr(send.RecoveryAddr)
		config.IBCConfig = &amp.IBCConfig{RecoveryAddr: &addr}
	}
	msg := amp.NewAMPMsg(amp.AndrAddr(send.Recipient), payload, funds).WithConfig(config)
	return json.Marshal(kernel.ExecuteMsg{Send: &kernel.Send{Message: msg}})
}
