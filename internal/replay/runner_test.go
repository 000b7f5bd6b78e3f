package replay

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/model"
)

var (
	testTokenA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTokenB  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testFactory = common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f")
	testAlice   = "0xa11ce00000000000000000000000000000000000"
	testBob     = "0xb0b0000000000000000000000000000000000000"
)

const basicScenario = `
# seed and trade
{"op":"fund","token":"0x1111111111111111111111111111111111111111","to":"0xa11ce00000000000000000000000000000000000","amount":"10000"}
{"op":"fund","token":"0x2222222222222222222222222222222222222222","to":"0xa11ce00000000000000000000000000000000000","amount":"10000"}
{"op":"deposit","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","amount_a":"2000","amount_b":"2000"}
{"op":"swap_exact_in","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","token_in":"0x1111111111111111111111111111111111111111","amount_in":"100","advance":12}
{"op":"redeem","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","shares":"1000000"}
{"op":"redeem","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","shares":"500"}
`

type memoryStorage struct {
	mu      sync.Mutex
	records []model.LogRecord
	fail    int
}

func (m *memoryStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail > 0 {
		m.fail--
		return errors.New("storage unavailable")
	}
	m.records = append(m.records, logs...)
	return nil
}

type memoryReserves struct {
	snapshots []model.ReserveSnapshot
}

func (m *memoryReserves) SaveReserves(_ context.Context, snapshots []model.ReserveSnapshot) error {
	m.snapshots = append(m.snapshots, snapshots...)
	return nil
}

type memoryProgress struct {
	state map[string]uint64
}

func (m *memoryProgress) LoadState(_ context.Context, name string) (uint64, bool, error) {
	seq, ok := m.state[name]
	return seq, ok, nil
}

func (m *memoryProgress) SaveState(_ context.Context, name string, seq uint64) error {
	m.state[name] = seq
	return nil
}

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := NewEnv(EnvConfig{
		TokenA:    testTokenA,
		TokenB:    testTokenB,
		Factory:   testFactory,
		StartTime: 1_700_000_000,
	})
	if err != nil {
		t.Fatalf("new env: %v", err)
	}
	return env
}

func mustParse(t *testing.T, text string) []Step {
	t.Helper()
	steps, err := ParseScenario(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	return steps
}

func TestNewEnvDerivesPairAddress(t *testing.T) {
	env := newTestEnv(t)
	if env.Pool.Address() != amm.PairAddress(testFactory, testTokenA, testTokenB) {
		t.Fatalf("pool address %s not derived from factory", env.Pool.Address().Hex())
	}
}

func TestRunnerAppliesScenario(t *testing.T) {
	env := newTestEnv(t)
	store := &memoryStorage{}
	reserves := &memoryReserves{}
	runner, err := NewRunner(RunConfig{Scenario: "basic", ChainID: 31337, BatchSize: 2}, env, store, zap.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	runner.SetReserveStore(reserves)

	res, err := runner.Run(context.Background(), mustParse(t, basicScenario))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Steps != 6 || res.Applied != 5 || res.Failed != 1 || res.Events != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(store.records) != 6 {
		t.Fatalf("expected 6 log records, got %d", len(store.records))
	}
	for _, rec := range store.records {
		if rec.ChainID != 31337 || rec.Address != env.Pool.Address().Hex() {
			t.Fatalf("unexpected record: %+v", rec)
		}
	}
	if store.records[0].BlockNumber != 3 || store.records[len(store.records)-1].BlockNumber != 6 {
		t.Fatalf("records must be numbered by step")
	}
	if len(reserves.snapshots) != 3 {
		t.Fatalf("expected one snapshot per eventful step, got %d", len(reserves.snapshots))
	}
	swapSnap := reserves.snapshots[1]
	if swapSnap.Seq != 4 || swapSnap.ReserveA != "2100" || swapSnap.ReserveB != "1906" {
		t.Fatalf("unexpected swap snapshot: %+v", swapSnap)
	}
	if got := env.Clock.Now(); got != 1_700_000_012 {
		t.Fatalf("clock not advanced: %d", got)
	}

	summary := res.Totals.Summary(0, 0)
	if summary.Swaps != 1 || summary.Mints != 1 || summary.Burns != 1 {
		t.Fatalf("unexpected totals: %+v", summary)
	}
}

func TestRunnerResumeDoesNotPersistTwice(t *testing.T) {
	checkpointPath := filepath.Join(t.TempDir(), "checkpoint.json")
	cfg := RunConfig{
		Scenario:          "basic",
		ChainID:           1,
		BatchSize:         4,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}
	steps := mustParse(t, basicScenario)

	first := &memoryStorage{}
	runner, err := NewRunner(cfg, newTestEnv(t), first, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background(), steps); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &memoryStorage{}
	env := newTestEnv(t)
	runner, err = NewRunner(cfg, env, second, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := runner.Run(context.Background(), steps)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.records) != 0 {
		t.Fatalf("resumed run persisted %d records", len(second.records))
	}
	if res.Replayed != 5 || res.Events != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	reserveA, reserveB, _ := env.Pool.GetReserves()
	if reserveA.Uint64() != 1575 || reserveB.Uint64() != 1430 {
		t.Fatalf("state not rebuilt: %s/%s", reserveA, reserveB)
	}
}

func TestRunnerProgressStore(t *testing.T) {
	progress := &memoryProgress{state: map[string]uint64{"basic": 4}}
	store := &memoryStorage{}
	runner, err := NewRunner(RunConfig{Scenario: "basic", BatchSize: 10}, newTestEnv(t), store, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	runner.SetProgressStore(progress)

	if _, err := runner.Run(context.Background(), mustParse(t, basicScenario)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.records) != 2 {
		t.Fatalf("expected only the last redeem to be stored, got %d", len(store.records))
	}
	if progress.state["basic"] != 6 {
		t.Fatalf("progress not saved: %d", progress.state["basic"])
	}
}

func TestRunnerRetriesStorage(t *testing.T) {
	store := &memoryStorage{fail: 2}
	runner, err := NewRunner(RunConfig{Scenario: "basic", BatchSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond}, newTestEnv(t), store, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background(), mustParse(t, basicScenario)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.records) != 6 {
		t.Fatalf("expected records after retry, got %d", len(store.records))
	}
}

func TestRunnerAbortsOnFatal(t *testing.T) {
	env := newTestEnv(t)
	pool := strings.ToLower(env.Pool.Address().Hex())
	scenario := strings.Join([]string{
		`{"op":"fund","token":"0x1111111111111111111111111111111111111111","to":"` + testAlice + `","amount":"5000"}`,
		`{"op":"fund","token":"0x2222222222222222222222222222222222222222","to":"` + testAlice + `","amount":"5000"}`,
		`{"op":"deposit","sender":"` + testAlice + `","to":"` + testAlice + `","amount_a":"2000","amount_b":"2000"}`,
		`{"op":"transfer","token":"0x1111111111111111111111111111111111111111","sender":"` + pool + `","to":"` + testBob + `","amount":"10"}`,
		`{"op":"skim","to":"` + testBob + `"}`,
		`{"op":"sync"}`,
	}, "\n")

	runner, err := NewRunner(RunConfig{Scenario: "fatal", BatchSize: 10}, env, &memoryStorage{}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := runner.Run(context.Background(), mustParse(t, scenario))
	if err == nil || !amm.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if res.Applied != 4 {
		t.Fatalf("expected 4 applied steps before abort, got %d", res.Applied)
	}
}

func TestRunnerFlashSwapRepays(t *testing.T) {
	env := newTestEnv(t)
	scenario := strings.Join([]string{
		`{"op":"fund","token":"0x1111111111111111111111111111111111111111","to":"` + testAlice + `","amount":"2000"}`,
		`{"op":"fund","token":"0x2222222222222222222222222222222222222222","to":"` + testAlice + `","amount":"2000"}`,
		`{"op":"fund","token":"0x1111111111111111111111111111111111111111","to":"` + testBob + `","amount":"1"}`,
		`{"op":"deposit","sender":"` + testAlice + `","to":"` + testAlice + `","amount_a":"2000","amount_b":"2000"}`,
		`{"op":"swap","sender":"` + testBob + `","to":"` + testBob + `","amount_out_a":"100","data":"0x01","repay_token":"0x1111111111111111111111111111111111111111","repay_amount":"100"}`,
		`{"op":"swap","sender":"` + testBob + `","to":"` + testBob + `","amount_out_a":"100","data":"0x01","repay_token":"0x1111111111111111111111111111111111111111","repay_amount":"101"}`,
	}, "\n")

	runner, err := NewRunner(RunConfig{Scenario: "flash", BatchSize: 10}, env, &memoryStorage{}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	res, err := runner.Run(context.Background(), mustParse(t, scenario))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 1 || res.Applied != 5 {
		t.Fatalf("expected the underpaid flash swap to fail: %+v", res)
	}
	reserveA, reserveB, _ := env.Pool.GetReserves()
	if reserveA.Uint64() != 2001 || reserveB.Uint64() != 2000 {
		t.Fatalf("unexpected reserves %s/%s", reserveA, reserveB)
	}
	if bal := env.Ledger.BalanceOf(testTokenA, common.HexToAddress(testBob)); !bal.IsZero() {
		t.Fatalf("bob should have repaid everything, has %s", bal)
	}
}

func TestRunnerValidatesConfig(t *testing.T) {
	if _, err := (&Runner{cfg: RunConfig{BatchSize: 1}, env: newTestEnv(t)}).Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil storage")
	}
	runner, err := NewRunner(RunConfig{}, newTestEnv(t), &memoryStorage{}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background(), mustParse(t, basicScenario)); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
