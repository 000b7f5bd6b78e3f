package dex

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"pairEngine/internal/amm"
	"pairEngine/internal/model"
)

var (
	testPool    = common.HexToAddress("0x9999999999999999999999999999999999999999")
	testFactory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	testTokenA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTokenB  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testSender  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTo      = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func newDecodeContext() DecodeContext {
	cache := NewPoolMetaCache()
	cache.Set(testPool, NewPoolMeta(testPool, testFactory, testTokenA, testTokenB))
	return DecodeContext{PoolMetaCache: cache, Logger: zap.NewNop()}
}

func encodeOne(t *testing.T, ev amm.Event) model.LogRecord {
	t.Helper()
	enc, err := NewEncoder(31337)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	ev.Pool = testPool
	ev.Timestamp = 1700000000
	records, err := enc.Encode(7, []amm.Event{ev}, time.Unix(1700000001, 0))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	return records[0]
}

func TestV2PairDecoderSwap(t *testing.T) {
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	record := encodeOne(t, amm.Event{
		Kind:       amm.EventSwap,
		Sender:     testSender,
		To:         testTo,
		AmountInA:  uint256.NewInt(10000),
		AmountInB:  new(uint256.Int),
		AmountOutA: new(uint256.Int),
		AmountOutB: uint256.NewInt(9871),
	})
	if record.BlockNumber != 7 || record.ChainID != 31337 {
		t.Fatalf("placement mismatch: %+v", record)
	}
	if len(record.Topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(record.Topics))
	}

	event, err := decoder.Decode(record, newDecodeContext())
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	swap := event.Swap
	if swap == nil || event.Kind != "Swap" {
		t.Fatalf("decoded kind mismatch: %+v", event)
	}
	if swap.Amount0In != "10000" || swap.Amount1In != "0" || swap.Amount0Out != "0" || swap.Amount1Out != "9871" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Sender != testSender.Hex() || swap.To != testTo.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
	if event.PoolMeta.Share.Symbol != ShareSymbol || event.PoolMeta.Factory != testFactory.Hex() {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
	if event.Timestamp != 1700000000 {
		t.Fatalf("timestamp mismatch: %d", event.Timestamp)
	}
	if event.Step != 7 || event.TxHash != record.TxHash || event.Topic0 != record.Topics[0] {
		t.Fatalf("placement not carried: %+v", event)
	}
	if event.Mint != nil || event.Burn != nil || event.Sync != nil {
		t.Fatalf("unexpected payloads: %+v", event)
	}
}

func TestV2PairDecoderMintBurnSync(t *testing.T) {
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := newDecodeContext()

	mintRecord := encodeOne(t, amm.Event{
		Kind:    amm.EventMint,
		Sender:  testSender,
		AmountA: uint256.NewInt(2000),
		AmountB: uint256.NewInt(3000),
	})
	event, err := decoder.Decode(mintRecord, ctx)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	mint := event.Mint
	if mint == nil || event.Kind != "Mint" {
		t.Fatalf("mint kind mismatch: %+v", event)
	}
	if mint.Sender != testSender.Hex() || mint.Amount0 != "2000" || mint.Amount1 != "3000" {
		t.Fatalf("mint mismatch: %+v", mint)
	}

	burnRecord := encodeOne(t, amm.Event{
		Kind:    amm.EventBurn,
		Sender:  testSender,
		To:      testTo,
		AmountA: uint256.NewInt(5),
		AmountB: uint256.NewInt(6),
	})
	event, err = decoder.Decode(burnRecord, ctx)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	burn := event.Burn
	if burn == nil || event.Kind != "Burn" {
		t.Fatalf("burn kind mismatch: %+v", event)
	}
	if burn.To != testTo.Hex() || burn.Amount0 != "5" || burn.Amount1 != "6" {
		t.Fatalf("burn mismatch: %+v", burn)
	}

	reserve := new(uint256.Int).Set(amm.MaxReserve)
	syncRecord := encodeOne(t, amm.Event{
		Kind:     amm.EventSync,
		ReserveA: reserve,
		ReserveB: uint256.NewInt(1),
	})
	event, err = decoder.Decode(syncRecord, ctx)
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	sync := event.Sync
	if sync == nil || event.Kind != "Sync" {
		t.Fatalf("sync kind mismatch: %+v", event)
	}
	if sync.Reserve0 != reserve.ToBig().String() || sync.Reserve1 != "1" {
		t.Fatalf("sync mismatch: %+v", sync)
	}
}

func TestV2PairDecoderRejects(t *testing.T) {
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	record := encodeOne(t, amm.Event{Kind: amm.EventSync, ReserveA: uint256.NewInt(1), ReserveB: uint256.NewInt(1)})
	if _, err := decoder.Decode(record, DecodeContext{PoolMetaCache: NewPoolMetaCache()}); err == nil {
		t.Fatalf("expected unknown pool error")
	}

	if decoder.CanDecode("0x1234") {
		t.Fatalf("unexpected topic support")
	}
	if !decoder.CanDecode(record.Topic0()) {
		t.Fatalf("sync topic not supported")
	}

	record.Topics = append(record.Topics, record.Topics[0])
	if _, err := decoder.Decode(record, newDecodeContext()); err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestDecoderTopic0Override(t *testing.T) {
	custom := "0x00000000000000000000000000000000000000000000000000000000deadbeef"
	decoder, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{custom: "sync"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(custom) {
		t.Fatalf("override not applied")
	}

	if _, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{custom: "collect"}}); err == nil {
		t.Fatalf("expected unsupported event name error")
	}
}

func TestEncoderStepPlacement(t *testing.T) {
	enc, err := NewEncoder(1)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	events := []amm.Event{
		{Kind: amm.EventSync, Pool: testPool, ReserveA: uint256.NewInt(1), ReserveB: uint256.NewInt(2)},
		{Kind: amm.EventMint, Pool: testPool, Sender: testSender, AmountA: uint256.NewInt(1), AmountB: uint256.NewInt(2)},
	}
	records, err := enc.Encode(3, events, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if records[0].TxHash != records[1].TxHash || records[0].BlockHash != records[1].BlockHash {
		t.Fatalf("events of one step must share a transaction")
	}
	if records[0].LogIndex != 0 || records[1].LogIndex != 1 {
		t.Fatalf("log index mismatch: %d %d", records[0].LogIndex, records[1].LogIndex)
	}

	other, err := enc.Encode(4, events[:1], time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if other[0].TxHash == records[0].TxHash {
		t.Fatalf("distinct steps must not share a transaction")
	}

	if _, err := enc.EncodeLog(amm.Event{Kind: "Collect"}); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
}
