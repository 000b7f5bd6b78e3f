package callee

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

var (
	receiver = common.HexToAddress("0x4444444444444444444444444444444444444444")
	sender   = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type notification struct {
	recipient, sender      common.Address
	amountOutA, amountOutB *uint256.Int
	data                   []byte
}

func recorder(got *[]notification, err error) Func {
	return func(_ context.Context, recipient, sender common.Address, outA, outB *uint256.Int, data []byte) error {
		*got = append(*got, notification{recipient, sender, outA, outB, data})
		return err
	}
}

func TestRegistryRoutesByRecipient(t *testing.T) {
	var got []notification
	registry := NewRegistry()
	registry.Register(receiver, recorder(&got, nil))

	err := registry.Notify(context.Background(), receiver, sender, uint256.NewInt(1), uint256.NewInt(2), []byte{9})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(got) != 1 || got[0].sender != sender || got[0].amountOutB.Uint64() != 2 {
		t.Fatalf("unexpected notifications: %+v", got)
	}

	err = registry.Notify(context.Background(), sender, sender, uint256.NewInt(1), uint256.NewInt(2), nil)
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}

	registry.SetFallback(recorder(&got, nil))
	if err := registry.Notify(context.Background(), sender, sender, uint256.NewInt(1), uint256.NewInt(2), nil); err != nil {
		t.Fatalf("fallback notify: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fallback not used")
	}
}

func newInprocCallee(t *testing.T, registry *Registry) *RPCCallee {
	t.Helper()
	svc, err := NewService(registry)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := gethrpc.NewServer()
	t.Cleanup(srv.Stop)
	if err := Register(srv, svc); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	c, err := NewRPCCallee(gethrpc.DialInProc(srv), 0)
	if err != nil {
		t.Fatalf("rpc callee: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestRPCCalleeDeliversCallback(t *testing.T) {
	var got []notification
	registry := NewRegistry()
	registry.Register(receiver, recorder(&got, nil))
	c := newInprocCallee(t, registry)

	big := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	err := c.Notify(context.Background(), receiver, sender, big, uint256.NewInt(0), []byte("flash"))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	n := got[0]
	if n.recipient != receiver || n.sender != sender {
		t.Fatalf("address mismatch: %+v", n)
	}
	if !n.amountOutA.Eq(big) || !n.amountOutB.IsZero() {
		t.Fatalf("amount mismatch: %s %s", n.amountOutA.ToBig(), n.amountOutB.ToBig())
	}
	if string(n.data) != "flash" {
		t.Fatalf("data mismatch: %q", n.data)
	}
}

func TestRPCCalleePropagatesFailure(t *testing.T) {
	var got []notification
	registry := NewRegistry()
	registry.Register(receiver, recorder(&got, errors.New("cannot repay")))
	c := newInprocCallee(t, registry)

	err := c.Notify(context.Background(), receiver, sender, uint256.NewInt(1), uint256.NewInt(1), []byte{1})
	if err == nil || !strings.Contains(err.Error(), "cannot repay") {
		t.Fatalf("expected receiver error, got %v", err)
	}

	err = c.Notify(context.Background(), sender, sender, uint256.NewInt(1), uint256.NewInt(1), []byte{1})
	if err == nil || !strings.Contains(err.Error(), "not implemented") {
		t.Fatalf("expected not implemented error, got %v", err)
	}
}
