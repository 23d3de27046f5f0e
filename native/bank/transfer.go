package bank

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
)

// State is the balance store the bank operates on.
type State interface {
	BalanceGet(addr common.Address) (*uint256.Int, error)
	BalancePut(addr common.Address, amount *uint256.Int) error
}

// Transfer moves amount from one address to another. Zero transfers and
// self-transfers succeed without touching state once the sender is known to
// cover the amount.
func Transfer(st State, from, to common.Address, amount *uint256.Int) error {
	if st == nil {
		return fmt.Errorf("bank: state not configured")
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	fromBal, err := st.BalanceGet(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", coreerrors.ErrInsufficientFunds, from.Hex(), fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, err := st.BalanceGet(to)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("bank: balance overflow for %s", to.Hex())
	}
	if err := st.BalancePut(from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return st.BalancePut(to, credited)
}

// Credit mints amount into addr. It is only used while applying genesis.
func Credit(st State, addr common.Address, amount *uint256.Int) error {
	if st == nil {
		return fmt.Errorf("bank: state not configured")
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	bal, err := st.BalanceGet(addr)
	if err != nil {
		return err
	}
	credited, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("bank: balance overflow for %s", addr.Hex())
	}
	return st.BalancePut(addr, credited)
}
