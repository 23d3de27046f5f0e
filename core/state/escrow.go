package state

import (
	"github.com/ethereum/go-ethereum/common"

	"listingchain/native/escrow"
)

var escrowPrefix = []byte("escrow:")

// EscrowGet loads the escrow at addr.
func (m *Manager) EscrowGet(addr common.Address) (*escrow.Escrow, bool, error) {
	esc := new(escrow.Escrow)
	ok, err := m.getRLP(hashKey(escrowPrefix, addr.Bytes()), esc)
	if err != nil || !ok {
		return nil, false, err
	}
	return esc, true, nil
}

// EscrowPut persists an escrow after validating it.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return m.putRLP(hashKey(escrowPrefix, sanitized.Address.Bytes()), sanitized)
}
