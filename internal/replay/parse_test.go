package replay

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"0", 0},
		{"2000", 2000},
		{" 42 ", 42},
		{"0x10", 16},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got.Uint64() != tc.want {
			t.Fatalf("parse %q = %d, want %d", tc.in, got.Uint64(), tc.want)
		}
	}

	max := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	if v, err := ParseAmount(max); err != nil || v.ToBig().String() != max {
		t.Fatalf("max uint256 mismatch: %v %v", v, err)
	}

	for _, bad := range []string{"-1", "abc", "1.5", max + "0"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseData(t *testing.T) {
	data, err := ParseData("0x0102")
	if err != nil || len(data) != 2 {
		t.Fatalf("data mismatch: %v %v", data, err)
	}
	if data, err := ParseData(""); err != nil || data != nil {
		t.Fatalf("expected nil data, got %v %v", data, err)
	}
	if _, err := ParseData("0102"); err == nil {
		t.Fatalf("expected missing prefix error")
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(" 0x1111111111111111111111111111111111111111 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != common.HexToAddress("0x1111111111111111111111111111111111111111") {
		t.Fatalf("address mismatch: %s", got.Hex())
	}
	if _, err := ParseAddress("0x12"); err == nil {
		t.Fatalf("expected invalid address error")
	}
}
