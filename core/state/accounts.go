package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	balancePrefix = []byte("balance:")
	noncePrefix   = []byte("nonce:")
	eventSeqKey   = []byte("ledger:event-sequence")
)

// BalanceGet returns the balance held by addr. Unknown addresses hold zero.
func (m *Manager) BalanceGet(addr common.Address) (*uint256.Int, error) {
	bal := new(uint256.Int)
	if _, err := m.getRLP(hashKey(balancePrefix, addr.Bytes()), bal); err != nil {
		return nil, err
	}
	return bal, nil
}

// BalancePut overwrites the balance held by addr.
func (m *Manager) BalancePut(addr common.Address, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return m.putRLP(hashKey(balancePrefix, addr.Bytes()), amount)
}

// NonceNext returns the deployment nonce of addr and advances it.
func (m *Manager) NonceNext(addr common.Address) (uint64, error) {
	key := hashKey(noncePrefix, addr.Bytes())
	var nonce uint64
	if _, err := m.getRLP(key, &nonce); err != nil {
		return 0, err
	}
	if err := m.putRLP(key, nonce+1); err != nil {
		return 0, err
	}
	return nonce, nil
}

// EventSequence returns the sequence number of the last published event.
func (m *Manager) EventSequence() (uint64, error) {
	var seq uint64
	if _, err := m.getRLP(hashKey(eventSeqKey), &seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// SetEventSequence records the sequence number of the last published event.
func (m *Manager) SetEventSequence(seq uint64) error {
	return m.putRLP(hashKey(eventSeqKey), seq)
}
