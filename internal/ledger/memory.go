package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSupplyOverflow      = errors.New("total supply overflow")
)

// Memory is an in-memory multi-token ledger with journaled snapshots.
type Memory struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int
	supply   map[common.Address]*uint256.Int

	journal   []change
	revisions []revision
	nextRevID int
}

// change records the value a balance or supply held before it was modified.
type change struct {
	token  common.Address
	holder common.Address
	supply bool
	prev   *uint256.Int
}

type revision struct {
	id           int
	journalIndex int
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		supply:   make(map[common.Address]*uint256.Int),
	}
}

// BalanceOf returns a copy of holder's balance of token.
func (m *Memory) BalanceOf(token, holder common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance(token, holder).Clone()
}

// TotalSupply returns a copy of the outstanding supply of token.
func (m *Memory) TotalSupply(token common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.supply[token]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// Transfer moves amount of token from one holder to another.
func (m *Memory) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromBal := m.balance(token, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBal.ToBig(), token.Hex(), amount.ToBig())
	}
	if from == to {
		return nil
	}
	m.setBalance(token, from, new(uint256.Int).Sub(fromBal, amount))
	m.setBalance(token, to, new(uint256.Int).Add(m.balance(token, to), amount))
	return nil
}

// Mint creates amount of token for `to`.
func (m *Memory) Mint(token, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	supply, overflow := new(uint256.Int).AddOverflow(m.totalSupply(token), amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrSupplyOverflow, token.Hex())
	}
	m.setSupply(token, supply)
	m.setBalance(token, to, new(uint256.Int).Add(m.balance(token, to), amount))
	return nil
}

// Burn destroys amount of token held by `from`.
func (m *Memory) Burn(token, from common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balance(token, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, burning %s", ErrInsufficientBalance, from.Hex(), bal.ToBig(), token.Hex(), amount.ToBig())
	}
	m.setBalance(token, from, new(uint256.Int).Sub(bal, amount))
	m.setSupply(token, new(uint256.Int).Sub(m.totalSupply(token), amount))
	return nil
}

// Holders returns every holder with a non-zero balance of token, sorted.
func (m *Memory) Holders(token common.Address) []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]common.Address, 0, len(m.balances[token]))
	for holder, bal := range m.balances[token] {
		if !bal.IsZero() {
			out = append(out, holder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Snapshot returns an identifier for the current ledger state.
func (m *Memory) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextRevID
	m.nextRevID++
	m.revisions = append(m.revisions, revision{id: id, journalIndex: len(m.journal)})
	return id
}

// RevertToSnapshot undoes every change made since the snapshot was taken.
// Reverting an unknown or already discarded snapshot panics.
func (m *Memory) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.revisionIndex(id)
	if idx < 0 {
		panic(fmt.Errorf("ledger revision %d cannot be reverted", id))
	}
	start := m.revisions[idx].journalIndex
	for i := len(m.journal) - 1; i >= start; i-- {
		ch := m.journal[i]
		if ch.supply {
			m.supply[ch.token] = ch.prev
			continue
		}
		m.holderMap(ch.token)[ch.holder] = ch.prev
	}
	m.journal = m.journal[:start]
	m.revisions = m.revisions[:idx]
}

// DiscardSnapshot keeps the changes made since the snapshot and forgets it.
func (m *Memory) DiscardSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.revisionIndex(id)
	if idx < 0 {
		return
	}
	m.revisions = m.revisions[:idx]
	if len(m.revisions) == 0 {
		m.journal = m.journal[:0]
	}
}

func (m *Memory) revisionIndex(id int) int {
	idx := sort.Search(len(m.revisions), func(i int) bool {
		return m.revisions[i].id >= id
	})
	if idx == len(m.revisions) || m.revisions[idx].id != id {
		return -1
	}
	return idx
}

func (m *Memory) holderMap(token common.Address) map[common.Address]*uint256.Int {
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		m.balances[token] = holders
	}
	return holders
}

func (m *Memory) balance(token, holder common.Address) *uint256.Int {
	if bal, ok := m.balances[token][holder]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (m *Memory) totalSupply(token common.Address) *uint256.Int {
	if s, ok := m.supply[token]; ok {
		return s
	}
	return new(uint256.Int)
}

func (m *Memory) setBalance(token, holder common.Address, value *uint256.Int) {
	if len(m.revisions) > 0 {
		m.journal = append(m.journal, change{token: token, holder: holder, prev: m.balance(token, holder).Clone()})
	}
	m.holderMap(token)[holder] = value
}

func (m *Memory) setSupply(token common.Address, value *uint256.Int) {
	if len(m.revisions) > 0 {
		m.journal = append(m.journal, change{token: token, supply: true, prev: m.totalSupply(token).Clone()})
	}
	m.supply[token] = value
}
