package replay

import (
	"strings"
	"testing"
)

func TestParseScenarioSkipsCommentsAndBlankLines(t *testing.T) {
	steps := mustParse(t, basicScenario)
	if len(steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(steps))
	}
	if steps[3].Op != OpSwapExactIn || steps[3].Advance != 12 {
		t.Fatalf("unexpected step: %+v", steps[3])
	}
}

func TestParseScenarioErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{name: "unknown op", line: `{"op":"mint"}`, want: `unknown op "mint"`},
		{name: "unknown field", line: `{"op":"sync","amount0":"1"}`, want: "unknown field"},
		{name: "missing sender", line: `{"op":"redeem","to":"0xa11ce00000000000000000000000000000000000","shares":"1"}`, want: "sender is required"},
		{name: "missing shares", line: `{"op":"redeem","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000"}`, want: "shares is required"},
		{name: "bad amount", line: `{"op":"fund","token":"0x1111111111111111111111111111111111111111","to":"0xa11ce00000000000000000000000000000000000","amount":"-5"}`, want: "amount"},
		{name: "repay without token", line: `{"op":"swap","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","repay_amount":"5"}`, want: "repay_token is required"},
		{name: "bad data", line: `{"op":"swap","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","data":"zz"}`, want: "invalid data"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario(strings.NewReader("\n" + tc.line))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), "line 2") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention line 2 and %q", err, tc.want)
			}
		})
	}
}

func TestStepArgsMinOut(t *testing.T) {
	steps := mustParse(t, `{"op":"swap_exact_in","sender":"0xa11ce00000000000000000000000000000000000","to":"0xa11ce00000000000000000000000000000000000","token_in":"0x1111111111111111111111111111111111111111","amount_in":"0x64","min_out":"90"}`)
	args, err := steps[0].args()
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	if !args.hasMinOut || args.minOut.Uint64() != 90 || args.amountIn.Uint64() != 100 {
		t.Fatalf("unexpected args: %+v", args)
	}

	steps = mustParse(t, `{"op":"sync"}`)
	args, err = steps[0].args()
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	if args.hasMinOut {
		t.Fatalf("min_out should be unset")
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	if _, err := LoadScenario("does-not-exist.jsonl"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
