package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stakepool/core"
	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
	"stakepool/native/jetton"
)

var (
	ErrUnknownStep   = errors.New("scenario: unknown step")
	ErrUnknownWallet = errors.New("scenario: unknown wallet")
)

const coinDecimals = 9

// Step is one scripted action. Coins and the loan bounds are coin amounts
// with up to nine decimals.
type Step struct {
	Op          string `yaml:"op"`
	Name        string `yaml:"name"`
	From        string `yaml:"from"`
	Master      bool   `yaml:"master"`
	Coins       string `yaml:"coins"`
	Shares      string `yaml:"shares"` // nanotons; empty burns the whole balance
	ID          uint32 `yaml:"id"`
	MinLoan     string `yaml:"min_loan"`
	MaxLoan     string `yaml:"max_loan"`
	MaxInterest uint32 `yaml:"max_interest"`
	Wait        bool   `yaml:"wait"`
	FillOrKill  bool   `yaml:"fill_or_kill"`
	Seconds     uint64 `yaml:"seconds"`
	RewardBps   int64  `yaml:"reward_bps"`
	// MayFail logs a rejected step instead of aborting the replay.
	MayFail bool `yaml:"may_fail"`
}

type Scenario struct {
	Steps []Step `yaml:"steps"`
}

var knownSteps = map[string]bool{
	"wallet": true, "deposit": true, "burn": true, "donate": true,
	"deploy_controller": true, "approve": true, "request_loan": true,
	"stake": true, "recover": true, "update_hash": true, "return_unused": true,
	"rotate": true, "unfreeze": true, "advance": true, "touch": true,
	"halt": true, "unhalt": true,
}

func LoadScenario(path string) (*Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()
	return ParseScenario(file)
}

func ParseScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	for i, step := range sc.Steps {
		if !knownSteps[step.Op] {
			return nil, fmt.Errorf("step %d: %w %q", i, ErrUnknownStep, step.Op)
		}
	}
	return &sc, nil
}

func parseCoins(raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return new(big.Int), nil
	}
	whole, frac, _ := strings.Cut(trimmed, ".")
	if len(frac) > coinDecimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", raw, coinDecimals)
	}
	frac += strings.Repeat("0", coinDecimals-len(frac))
	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

type runner struct {
	node    *core.Node
	wallets map[string]crypto.Address
}

// Run replays the steps in order against node.
func (s *Scenario) Run(ctx context.Context, node *core.Node, logger *slog.Logger) error {
	wallets := map[string]crypto.Address{
		"governor":         node.Roles.Governor,
		"interest-manager": node.Roles.InterestManager,
		"halter":           node.Roles.Halter,
		"approver":         node.Roles.Approver,
	}
	r := &runner{node: node, wallets: wallets}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.apply(ctx, step); err != nil {
			if step.MayFail {
				logger.Warn("scenario step rejected", "step", i, "op", step.Op, "error", err)
				continue
			}
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		logger.Debug("scenario step applied", "step", i, "op", step.Op)
	}
	logger.Info("scenario replayed", "steps", len(s.Steps))
	return nil
}

func (r *runner) wallet(name string) (crypto.Address, error) {
	addr, ok := r.wallets[name]
	if !ok {
		return crypto.Address{}, fmt.Errorf("%w %q", ErrUnknownWallet, name)
	}
	return addr, nil
}

func (r *runner) submit(ctx context.Context, src, dst crypto.Address, value *big.Int, mode types.SendMode, body types.Body) error {
	return r.node.Submit(ctx, &types.Message{Src: src, Dst: dst, Value: value, Mode: mode, Bounce: true, Body: body})
}

func (r *runner) apply(ctx context.Context, step Step) error {
	n := r.node
	coins, err := parseCoins(step.Coins)
	if err != nil {
		return err
	}
	switch step.Op {
	case "wallet":
		if step.Name == "" {
			return errors.New("wallet needs a name")
		}
		r.wallets[step.Name] = n.Wallet(step.Name, step.Master, coins)
		return nil
	case "rotate":
		_, err := n.Rotate(ctx)
		return err
	case "unfreeze":
		return n.Authority.Unfreeze(step.RewardBps)
	case "advance":
		n.Net.Advance(step.Seconds)
		return nil
	case "touch":
		return n.Touch(ctx)
	case "halt":
		return r.submit(ctx, n.Roles.Halter, n.Pool, common.Coin, types.SendDefault, types.Halt{})
	case "unhalt":
		return r.submit(ctx, n.Roles.Halter, n.Pool, common.Coin, types.SendDefault, types.Unhalt{})
	}

	from, err := r.wallet(step.From)
	if err != nil {
		return err
	}
	ctrl := controller.Address(n.Pool, from, step.ID)
	switch step.Op {
	case "deposit":
		return r.submit(ctx, from, n.Pool, coins, types.SendPayFeesSeparately, types.Deposit{})
	case "donate":
		return r.submit(ctx, from, n.Pool, coins, types.SendPayFeesSeparately, types.Donate{})
	case "burn":
		shares, err := r.shares(from, step.Shares)
		if err != nil {
			return err
		}
		return r.submit(ctx, from, n.Ledger, common.Coin, types.SendDefault, types.JettonBurn{
			Amount:           shares,
			WaitTillRoundEnd: step.Wait,
			FillOrKill:       step.FillOrKill,
		})
	case "deploy_controller":
		if coins.Sign() == 0 {
			coins = common.Coins(5)
		}
		return r.submit(ctx, from, n.Pool, coins, types.SendDefault, types.DeployController{ControllerID: step.ID})
	case "approve":
		return r.submit(ctx, n.Roles.Approver, ctrl, common.Coin, types.SendDefault, types.Approve{})
	case "update_hash":
		return r.submit(ctx, n.Roles.Approver, ctrl, common.Coin, types.SendDefault, types.UpdateValidatorHash{})
	case "request_loan":
		minLoan, err := parseCoins(step.MinLoan)
		if err != nil {
			return err
		}
		maxLoan, err := parseCoins(step.MaxLoan)
		if err != nil {
			return err
		}
		return r.submit(ctx, from, ctrl, common.Coin, types.SendDefault, types.RequestLoan{
			MinLoan:     minLoan,
			MaxLoan:     maxLoan,
			MaxInterest: step.MaxInterest,
		})
	case "stake":
		return r.submit(ctx, from, ctrl, common.Coin, types.SendDefault, types.NewStake{Amount: coins})
	case "recover":
		return r.submit(ctx, from, ctrl, common.Coin, types.SendDefault, types.RecoverStake{})
	case "return_unused":
		return r.submit(ctx, from, ctrl, common.Coin, types.SendDefault, types.ReturnUnusedLoan{})
	}
	return fmt.Errorf("%w %q", ErrUnknownStep, step.Op)
}

func (r *runner) shares(owner crypto.Address, raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) != "" {
		v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || v.Sign() <= 0 {
			return nil, fmt.Errorf("invalid share amount %q", raw)
		}
		return v, nil
	}
	ledger, ok := bus.Lookup[*jetton.Minter](r.node.Net, r.node.Ledger)
	if !ok {
		return nil, core.ErrNotBootstrapped
	}
	return ledger.BalanceOf(owner), nil
}
