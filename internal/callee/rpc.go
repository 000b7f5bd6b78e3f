package callee

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"pairEngine/internal/dex"
)

// Namespace is the JSON-RPC namespace flash-swap receivers are served under.
const Namespace = "callee"

// ErrRejected is returned when a remote receiver declines the callback.
var ErrRejected = errors.New("flash-swap callback rejected")

// CallArgs carries one callback: the receiver and its ABI-encoded
// uniswapV2Call input.
type CallArgs struct {
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
}

// RPCCallee delivers flash-swap callbacks to a JSON-RPC endpoint.
type RPCCallee struct {
	rpcClient *rpc.Client
	calleeABI abi.ABI
	timeout   time.Duration
}

// Dial connects to the receiver endpoint at rpcURL.
func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*RPCCallee, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	c, err := NewRPCCallee(rpcClient, timeout)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	return c, nil
}

// NewRPCCallee wraps an existing RPC client. A zero timeout disables the
// per-call deadline.
func NewRPCCallee(rpcClient *rpc.Client, timeout time.Duration) (*RPCCallee, error) {
	calleeABI, err := dex.CalleeABI()
	if err != nil {
		return nil, fmt.Errorf("parse callee abi: %w", err)
	}
	return &RPCCallee{rpcClient: rpcClient, calleeABI: calleeABI, timeout: timeout}, nil
}

// Close closes the underlying RPC client.
func (c *RPCCallee) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *RPCCallee) Notify(ctx context.Context, recipient, sender common.Address, amountOutA, amountOutB *uint256.Int, data []byte) error {
	input, err := c.calleeABI.Pack("uniswapV2Call", sender, amountOutA.ToBig(), amountOutB.ToBig(), data)
	if err != nil {
		return fmt.Errorf("pack uniswapV2Call: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var ok bool
	if err := c.rpcClient.CallContext(ctx, &ok, Namespace+"_uniswapV2Call", CallArgs{To: recipient, Input: input}); err != nil {
		return fmt.Errorf("call %s: %w", recipient.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w by %s", ErrRejected, recipient.Hex())
	}
	return nil
}

// Service serves a Registry to RPCCallee clients.
type Service struct {
	registry  *Registry
	calleeABI abi.ABI
}

func NewService(registry *Registry) (*Service, error) {
	calleeABI, err := dex.CalleeABI()
	if err != nil {
		return nil, fmt.Errorf("parse callee abi: %w", err)
	}
	return &Service{registry: registry, calleeABI: calleeABI}, nil
}

// UniswapV2Call decodes the callback input and dispatches it to the
// registered receiver.
func (s *Service) UniswapV2Call(ctx context.Context, args CallArgs) (bool, error) {
	if len(args.Input) < 4 {
		return false, fmt.Errorf("input too short: %d bytes", len(args.Input))
	}
	method, err := s.calleeABI.MethodById(args.Input[:4])
	if err != nil {
		return false, err
	}
	values, err := method.Inputs.Unpack(args.Input[4:])
	if err != nil {
		return false, fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	if len(values) != 4 {
		return false, fmt.Errorf("unexpected %s values: %d", method.Name, len(values))
	}

	sender, ok := values[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("unsupported sender type %T", values[0])
	}
	amountOutA, err := toUint256(values[1])
	if err != nil {
		return false, err
	}
	amountOutB, err := toUint256(values[2])
	if err != nil {
		return false, err
	}
	data, ok := values[3].([]byte)
	if !ok {
		return false, fmt.Errorf("unsupported data type %T", values[3])
	}

	if err := s.registry.Notify(ctx, args.To, sender, amountOutA, amountOutB, data); err != nil {
		return false, err
	}
	return true, nil
}

// Register exposes s on srv under Namespace.
func Register(srv *rpc.Server, s *Service) error {
	return srv.RegisterName(Namespace, s)
}

func toUint256(value interface{}) (*uint256.Int, error) {
	b, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported amount type %T", value)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount overflows 256 bits: %s", b)
	}
	return v, nil
}
