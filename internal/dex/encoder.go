package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"pairEngine/internal/amm"
	"pairEngine/internal/model"
)

// Encoder turns committed pool events into EVM-style log records.
type Encoder struct {
	pairABI abi.ABI
	chainID uint64
}

// NewEncoder builds an encoder stamping records with chainID.
func NewEncoder(chainID uint64) (*Encoder, error) {
	pairABI, err := PairABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{pairABI: pairABI, chainID: chainID}, nil
}

// EncodeLog converts a single event. Block placement is left empty.
func (e *Encoder) EncodeLog(ev amm.Event) (types.Log, error) {
	event, ok := e.pairABI.Events[string(ev.Kind)]
	if !ok {
		return types.Log{}, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}

	topics := []common.Hash{event.ID}
	var values []interface{}
	switch ev.Kind {
	case amm.EventMint:
		topics = append(topics, addressTopic(ev.Sender))
		values = []interface{}{toBig(ev.AmountA), toBig(ev.AmountB)}
	case amm.EventBurn:
		topics = append(topics, addressTopic(ev.Sender), addressTopic(ev.To))
		values = []interface{}{toBig(ev.AmountA), toBig(ev.AmountB)}
	case amm.EventSwap:
		topics = append(topics, addressTopic(ev.Sender), addressTopic(ev.To))
		values = []interface{}{toBig(ev.AmountInA), toBig(ev.AmountInB), toBig(ev.AmountOutA), toBig(ev.AmountOutB)}
	case amm.EventSync:
		values = []interface{}{toBig(ev.ReserveA), toBig(ev.ReserveB)}
	}

	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return types.Log{}, fmt.Errorf("pack %s: %w", event.Name, err)
	}
	return types.Log{
		Address: ev.Pool,
		Topics:  topics,
		Data:    data,
	}, nil
}

// Encode converts the events of step seq into log records. The events of a
// step share one block and one transaction.
func (e *Encoder) Encode(seq uint64, events []amm.Event, emittedAt time.Time) ([]model.LogRecord, error) {
	blockHash := stepHash("block", seq)
	txHash := stepHash("tx", seq)

	out := make([]model.LogRecord, 0, len(events))
	for i, ev := range events {
		log, err := e.EncodeLog(ev)
		if err != nil {
			return nil, fmt.Errorf("encode event %d of step %d: %w", i, seq, err)
		}
		log.BlockNumber = seq
		log.BlockHash = blockHash
		log.TxHash = txHash
		log.Index = uint(i)
		out = append(out, buildLogRecord(e.chainID, log, ev.Timestamp, emittedAt))
	}
	return out, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func stepHash(kind string, seq uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return crypto.Keccak256Hash([]byte(kind), buf[:])
}
