package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Scenario operations.
const (
	OpFund        = "fund"
	OpTransfer    = "transfer"
	OpDeposit     = "deposit"
	OpProvide     = "provide"
	OpWithdraw    = "withdraw"
	OpRedeem      = "redeem"
	OpSwap        = "swap"
	OpSwapExactIn = "swap_exact_in"
	OpSkim        = "skim"
	OpSync        = "sync"
	OpAdvance     = "advance"
)

// Step is one line of a scenario file. Addresses are hex, amounts are
// decimal or 0x-prefixed hex strings.
type Step struct {
	Op      string `json:"op"`
	Sender  string `json:"sender,omitempty"`
	To      string `json:"to,omitempty"`
	Token   string `json:"token,omitempty"`
	Amount  string `json:"amount,omitempty"`
	AmountA string `json:"amount_a,omitempty"`
	AmountB string `json:"amount_b,omitempty"`
	Shares  string `json:"shares,omitempty"`

	TokenIn    string `json:"token_in,omitempty"`
	AmountIn   string `json:"amount_in,omitempty"`
	MinOut     string `json:"min_out,omitempty"`
	AmountOutA string `json:"amount_out_a,omitempty"`
	AmountOutB string `json:"amount_out_b,omitempty"`
	Data       string `json:"data,omitempty"`

	// Flash swaps: what the recipient pays back from inside the callback.
	RepayToken  string `json:"repay_token,omitempty"`
	RepayAmount string `json:"repay_amount,omitempty"`

	// Advance moves the clock forward by this many seconds before the step.
	Advance uint64 `json:"advance,omitempty"`
}

type stepArgs struct {
	sender, to, token, tokenIn, repayToken common.Address

	amount, amountA, amountB, shares *uint256.Int

	amountIn, minOut, amountOutA, amountOutB *uint256.Int

	repayAmount *uint256.Int
	hasMinOut   bool
	data        []byte
}

// argParser parses step fields; the first failure sticks.
type argParser struct {
	err error
}

func (p *argParser) address(field, value string, required bool) common.Address {
	if p.err != nil {
		return common.Address{}
	}
	if value == "" {
		if required {
			p.err = fmt.Errorf("%s is required", field)
		}
		return common.Address{}
	}
	addr, err := ParseAddress(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return addr
}

func (p *argParser) amount(field, value string, required bool) *uint256.Int {
	if p.err != nil {
		return new(uint256.Int)
	}
	if value == "" && required {
		p.err = fmt.Errorf("%s is required", field)
		return new(uint256.Int)
	}
	v, err := ParseAmount(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
		return new(uint256.Int)
	}
	return v
}

// args parses and checks the fields the step's operation needs.
func (s Step) args() (stepArgs, error) {
	var (
		needSender, needTo, needToken, needAmount bool
		needAB, needShares, needTokenIn           bool
	)
	switch s.Op {
	case OpFund:
		needTo, needToken, needAmount = true, true, true
	case OpTransfer:
		needSender, needTo, needToken, needAmount = true, true, true, true
	case OpDeposit:
		needSender, needTo, needAB = true, true, true
	case OpProvide, OpWithdraw, OpSwap:
		needSender, needTo = true, true
	case OpRedeem:
		needSender, needTo, needShares = true, true, true
	case OpSwapExactIn:
		needSender, needTo, needTokenIn = true, true, true
	case OpSkim:
		needTo = true
	case OpSync, OpAdvance:
	default:
		return stepArgs{}, fmt.Errorf("unknown op %q", s.Op)
	}

	p := &argParser{}
	a := stepArgs{
		sender:      p.address("sender", s.Sender, needSender),
		to:          p.address("to", s.To, needTo),
		token:       p.address("token", s.Token, needToken),
		tokenIn:     p.address("token_in", s.TokenIn, needTokenIn),
		repayToken:  p.address("repay_token", s.RepayToken, s.RepayAmount != ""),
		amount:      p.amount("amount", s.Amount, needAmount),
		amountA:     p.amount("amount_a", s.AmountA, needAB),
		amountB:     p.amount("amount_b", s.AmountB, needAB),
		shares:      p.amount("shares", s.Shares, needShares),
		amountIn:    p.amount("amount_in", s.AmountIn, needTokenIn),
		minOut:      p.amount("min_out", s.MinOut, false),
		amountOutA:  p.amount("amount_out_a", s.AmountOutA, false),
		amountOutB:  p.amount("amount_out_b", s.AmountOutB, false),
		repayAmount: p.amount("repay_amount", s.RepayAmount, false),
		hasMinOut:   s.MinOut != "",
	}
	if p.err != nil {
		return stepArgs{}, p.err
	}
	data, err := ParseData(s.Data)
	if err != nil {
		return stepArgs{}, err
	}
	a.data = data
	return a, nil
}

// ParseScenario reads one JSON step per line. Blank lines and lines starting
// with '#' are skipped.
func ParseScenario(r io.Reader) ([]Step, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var steps []Step
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		var step Step
		if err := dec.Decode(&step); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if _, err := step.args(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return steps, nil
}

// LoadScenario parses the scenario file at path.
func LoadScenario(path string) ([]Step, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()
	return ParseScenario(file)
}
