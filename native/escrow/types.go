package escrow

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Status represents the lifecycle of a single escrow. Settled and Refunded are
// terminal.
type Status uint8

const (
	StatusOpen Status = iota + 1
	StatusSettled
	StatusRefunded
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusSettled, StatusRefunded:
		return true
	default:
		return false
	}
}

// Final reports whether the escrow can no longer transition.
func (s Status) Final() bool {
	return s == StatusSettled || s == StatusRefunded
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusSettled:
		return "settled"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow holds the value a buyer committed to one purchase or booking request.
// The listing that opened it is the only party allowed to finalize it.
//
// Version and ContentHash are only meaningful for versioned listings: they
// capture the listing version current at request time and the buyer's request
// details.
type Escrow struct {
	Address     common.Address
	Listing     common.Address
	Seller      common.Address
	Buyer       common.Address
	HeldValue   *uint256.Int
	Version     uint64
	ContentHash common.Hash
	CreatedAt   uint64
	Status      Status
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.HeldValue != nil {
		clone.HeldValue = new(uint256.Int).Set(e.HeldValue)
	} else {
		clone.HeldValue = new(uint256.Int)
	}
	return &clone
}

// SanitizeEscrow validates the supplied escrow and returns a cloned instance
// with a non-nil held value. The original is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	if e.Address == (common.Address{}) {
		return nil, fmt.Errorf("escrow address required")
	}
	if e.Listing == (common.Address{}) {
		return nil, fmt.Errorf("escrow listing required")
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", e.Status)
	}
	return e.Clone(), nil
}

// OpenRequest describes a new escrow. Nonce must be unique per listing; the
// listing's purchase count is used so addresses follow the escrow sequence.
type OpenRequest struct {
	Listing     common.Address
	Nonce       uint64
	Seller      common.Address
	Buyer       common.Address
	HeldValue   *uint256.Int
	Version     uint64
	ContentHash common.Hash
}
