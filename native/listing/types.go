package listing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultDuration is how long a fixed listing accepts purchases, in seconds.
const DefaultDuration uint64 = 60 * 24 * 60 * 60

// Kind distinguishes the two listing variants sharing the address space.
type Kind uint8

const (
	KindFixed Kind = iota + 1
	KindVersioned
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindVersioned:
		return "versioned"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Status is the derived lifecycle of a fixed listing. Expiry is detected
// lazily from the call timestamp; nothing fires when the deadline passes.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusClosed
	StatusSoldOut
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusSoldOut:
		return "sold_out"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// FixedListing sells a fixed number of units at a fixed price until it expires.
type FixedListing struct {
	Address        common.Address
	Registry       common.Address
	Seller         common.Address
	ContentHash    common.Hash
	Price          *uint256.Int
	InitialUnits   uint64
	UnitsAvailable uint64
	Created        uint64
	Expiration     uint64
	Closed         bool
	Purchases      uint64
}

// Clone returns a deep copy of the listing.
func (l *FixedListing) Clone() *FixedListing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Price = cloneAmount(l.Price)
	return &clone
}

// Status derives the listing state at the supplied timestamp.
func (l *FixedListing) Status(now uint64) Status {
	switch {
	case l.Closed:
		return StatusClosed
	case l.UnitsAvailable == 0:
		return StatusSoldOut
	case now >= l.Expiration:
		return StatusExpired
	default:
		return StatusActive
	}
}

// VersionedListing keeps an append-only history of content versions. The
// current version is always the last one.
type VersionedListing struct {
	Address  common.Address
	Registry common.Address
	Seller   common.Address
	Created  uint64
	Versions uint64
	Requests uint64
}

// Clone returns a copy of the listing.
func (l *VersionedListing) Clone() *VersionedListing {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// CurrentVersion returns the index of the latest version.
func (l *VersionedListing) CurrentVersion() uint64 {
	if l.Versions == 0 {
		return 0
	}
	return l.Versions - 1
}

// Version is a single entry of a versioned listing's history.
type Version struct {
	Timestamp   uint64
	ContentHash common.Hash
}

// Purchase is one entry in a listing's escrow sequence. Fixed listings record
// the units bought; versioned listings record the version the request was made
// against and the hash of the request details.
type Purchase struct {
	Escrow      common.Address
	Buyer       common.Address
	Units       uint64
	Version     uint64
	ContentHash common.Hash
	Value       *uint256.Int
	At          uint64
}

// Clone returns a deep copy of the purchase.
func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Value = cloneAmount(p.Value)
	return &clone
}

// FixedParams describes a fixed listing created by a registry.
type FixedParams struct {
	Registry    common.Address
	Nonce       uint64
	Seller      common.Address
	ContentHash common.Hash
	Price       *uint256.Int
	Units       uint64
}

// VersionedParams describes a versioned listing created by a registry.
type VersionedParams struct {
	Registry    common.Address
	Nonce       uint64
	Seller      common.Address
	ContentHash common.Hash
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
