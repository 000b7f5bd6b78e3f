package rpcapi

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/replay"
)

// Namespace is the JSON-RPC namespace the pool is served under.
const Namespace = "pair"

// Reserves is the pair_getReserves result.
type Reserves struct {
	Pool        common.Address `json:"pool"`
	TokenA      common.Address `json:"tokenA"`
	TokenB      common.Address `json:"tokenB"`
	ReserveA    string         `json:"reserveA"`
	ReserveB    string         `json:"reserveB"`
	LastSync    uint64         `json:"lastSync"`
	TotalSupply string         `json:"totalSupply"`
}

// LiquidityArgs addresses a mint or burn of tokens already sent to the pool.
type LiquidityArgs struct {
	Sender common.Address `json:"sender"`
	To     common.Address `json:"to"`
}

type DepositArgs struct {
	Sender  common.Address `json:"sender"`
	To      common.Address `json:"to"`
	AmountA string         `json:"amountA"`
	AmountB string         `json:"amountB"`
}

type RedeemArgs struct {
	Sender common.Address `json:"sender"`
	To     common.Address `json:"to"`
	Shares string         `json:"shares"`
}

// SwapArgs is a raw swap. A non-empty Data requests the flash-swap callback.
type SwapArgs struct {
	Sender     common.Address `json:"sender"`
	To         common.Address `json:"to"`
	AmountOutA string         `json:"amountOutA"`
	AmountOutB string         `json:"amountOutB"`
	Data       hexutil.Bytes  `json:"data,omitempty"`
}

type SwapExactInArgs struct {
	Sender   common.Address `json:"sender"`
	To       common.Address `json:"to"`
	TokenIn  common.Address `json:"tokenIn"`
	AmountIn string         `json:"amountIn"`
	MinOut   string         `json:"minOut,omitempty"`
}

// Amounts is a pair of token amounts.
type Amounts struct {
	AmountA string `json:"amountA"`
	AmountB string `json:"amountB"`
}

// PairAPI exposes a pool and its ledger over JSON-RPC. Amounts are decimal
// strings. Pool calls are not queued: the pool lock rejects a call that
// overlaps a running operation with amm.ErrReentrancy, which is also what a
// flash-swap receiver gets when it calls back into the pool. Ledger writes
// made while an operation holds the lock become part of that operation and
// are reverted with it; this is how a receiver repays through pair_transfer.
type PairAPI struct {
	env    *replay.Env
	logger *zap.Logger
}

func NewPairAPI(env *replay.Env, logger *zap.Logger) (*PairAPI, error) {
	if env == nil || env.Pool == nil {
		return nil, fmt.Errorf("env is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PairAPI{env: env, logger: logger}, nil
}

// Register exposes api on srv under Namespace.
func Register(srv *rpc.Server, api *PairAPI) error {
	return srv.RegisterName(Namespace, api)
}

func (api *PairAPI) GetReserves() Reserves {
	pool := api.env.Pool
	reserveA, reserveB, lastSync := pool.GetReserves()
	tokenA, tokenB := pool.Tokens()
	return Reserves{
		Pool:        pool.Address(),
		TokenA:      tokenA,
		TokenB:      tokenB,
		ReserveA:    dec(reserveA),
		ReserveB:    dec(reserveB),
		LastSync:    lastSync,
		TotalSupply: dec(pool.TotalSupply()),
	}
}

func (api *PairAPI) BalanceOf(token, holder common.Address) string {
	return dec(api.env.Ledger.BalanceOf(token, holder))
}

// Fund mints amount of token to `to` on the in-memory ledger.
func (api *PairAPI) Fund(token, to common.Address, amount string) error {
	value, err := parseAmount("amount", amount)
	if err != nil {
		return err
	}
	return api.env.Ledger.Mint(token, to, value)
}

func (api *PairAPI) Transfer(token, from, to common.Address, amount string) error {
	value, err := parseAmount("amount", amount)
	if err != nil {
		return err
	}
	return api.env.Ledger.Transfer(token, from, to, value)
}

// Mint issues shares for whatever the sender already moved into the pool.
func (api *PairAPI) Mint(args LiquidityArgs) (string, error) {
	shares, err := api.env.Pool.ProvideLiquidity(args.Sender, args.To)
	if err != nil {
		return "", api.fail("mint", err)
	}
	return dec(shares), nil
}

// Burn redeems the shares held by the pool itself.
func (api *PairAPI) Burn(args LiquidityArgs) (Amounts, error) {
	amountA, amountB, err := api.env.Pool.WithdrawLiquidity(args.Sender, args.To)
	if err != nil {
		return Amounts{}, api.fail("burn", err)
	}
	return Amounts{AmountA: dec(amountA), AmountB: dec(amountB)}, nil
}

func (api *PairAPI) Deposit(args DepositArgs) (string, error) {
	amountA, err := parseAmount("amountA", args.AmountA)
	if err != nil {
		return "", err
	}
	amountB, err := parseAmount("amountB", args.AmountB)
	if err != nil {
		return "", err
	}
	shares, err := api.env.Pool.Deposit(args.Sender, amountA, amountB, args.To)
	if err != nil {
		return "", api.fail("deposit", err)
	}
	return dec(shares), nil
}

func (api *PairAPI) Redeem(args RedeemArgs) (Amounts, error) {
	shares, err := parseAmount("shares", args.Shares)
	if err != nil {
		return Amounts{}, err
	}
	amountA, amountB, err := api.env.Pool.Redeem(args.Sender, shares, args.To)
	if err != nil {
		return Amounts{}, api.fail("redeem", err)
	}
	return Amounts{AmountA: dec(amountA), AmountB: dec(amountB)}, nil
}

func (api *PairAPI) Swap(ctx context.Context, args SwapArgs) error {
	amountOutA, err := parseAmount("amountOutA", args.AmountOutA)
	if err != nil {
		return err
	}
	amountOutB, err := parseAmount("amountOutB", args.AmountOutB)
	if err != nil {
		return err
	}
	if err := api.env.Pool.Swap(ctx, args.Sender, amountOutA, amountOutB, args.To, args.Data); err != nil {
		return api.fail("swap", err)
	}
	return nil
}

// SwapExactIn returns the amount sent to args.To.
func (api *PairAPI) SwapExactIn(ctx context.Context, args SwapExactInArgs) (string, error) {
	amountIn, err := parseAmount("amountIn", args.AmountIn)
	if err != nil {
		return "", err
	}
	var minOut *uint256.Int
	if args.MinOut != "" {
		if minOut, err = parseAmount("minOut", args.MinOut); err != nil {
			return "", err
		}
	}
	amountOut, err := api.env.Pool.SwapExactIn(ctx, args.Sender, args.TokenIn, amountIn, minOut, args.To)
	if err != nil {
		return "", api.fail("swap_exact_in", err)
	}
	return dec(amountOut), nil
}

func (api *PairAPI) Skim(to common.Address) error {
	if err := api.env.Pool.Skim(to); err != nil {
		return api.fail("skim", err)
	}
	return nil
}

func (api *PairAPI) Sync() error {
	if err := api.env.Pool.Sync(); err != nil {
		return api.fail("sync", err)
	}
	return nil
}

func (api *PairAPI) fail(op string, err error) error {
	if amm.IsFatal(err) {
		api.logger.Error("pool call aborted", zap.String("op", op), zap.Error(err))
	} else {
		api.logger.Info("pool call failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func parseAmount(field, value string) (*uint256.Int, error) {
	if value == "" {
		return new(uint256.Int), nil
	}
	v, err := replay.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func dec(v *uint256.Int) string {
	return v.ToBig().String()
}
