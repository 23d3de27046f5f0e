package listing

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"listingchain/core/types"
)

const (
	EventTypeListingPurchased = "listing.purchased"
	EventTypeListingClosed    = "listing.closed"
	EventTypeListingRequested = "listing.requested"
	EventTypeListingUpdated   = "listing.updated"
)

// Purchased is emitted for every successful buy. It is the only place the new
// escrow reference is published.
type Purchased struct {
	Listing        common.Address
	Escrow         common.Address
	Buyer          common.Address
	Units          uint64
	Value          *uint256.Int
	UnitsAvailable uint64
	Index          uint64
}

func (Purchased) EventType() string { return EventTypeListingPurchased }

func (p Purchased) Event() *types.Event {
	return &types.Event{Type: EventTypeListingPurchased, Attributes: map[string]string{
		"listing":        p.Listing.Hex(),
		"escrow":         p.Escrow.Hex(),
		"buyer":          p.Buyer.Hex(),
		"units":          strconv.FormatUint(p.Units, 10),
		"value":          amountString(p.Value),
		"unitsAvailable": strconv.FormatUint(p.UnitsAvailable, 10),
		"index":          strconv.FormatUint(p.Index, 10),
	}}
}

// Closed is emitted when the seller withdraws the remaining inventory.
type Closed struct {
	Listing common.Address
	Seller  common.Address
}

func (Closed) EventType() string { return EventTypeListingClosed }

func (c Closed) Event() *types.Event {
	return &types.Event{Type: EventTypeListingClosed, Attributes: map[string]string{
		"listing":        c.Listing.Hex(),
		"seller":         c.Seller.Hex(),
		"unitsAvailable": "0",
	}}
}

// Requested is emitted for every booking request against a versioned listing.
type Requested struct {
	Listing     common.Address
	Escrow      common.Address
	Buyer       common.Address
	Version     uint64
	ContentHash common.Hash
	Value       *uint256.Int
	Index       uint64
}

func (Requested) EventType() string { return EventTypeListingRequested }

func (r Requested) Event() *types.Event {
	return &types.Event{Type: EventTypeListingRequested, Attributes: map[string]string{
		"listing":     r.Listing.Hex(),
		"escrow":      r.Escrow.Hex(),
		"buyer":       r.Buyer.Hex(),
		"version":     strconv.FormatUint(r.Version, 10),
		"contentHash": r.ContentHash.Hex(),
		"value":       amountString(r.Value),
		"index":       strconv.FormatUint(r.Index, 10),
	}}
}

// Updated is emitted when the seller appends a new version.
type Updated struct {
	Listing     common.Address
	Version     uint64
	ContentHash common.Hash
	Timestamp   uint64
}

func (Updated) EventType() string { return EventTypeListingUpdated }

func (u Updated) Event() *types.Event {
	return &types.Event{Type: EventTypeListingUpdated, Attributes: map[string]string{
		"listing":     u.Listing.Hex(),
		"version":     strconv.FormatUint(u.Version, 10),
		"contentHash": u.ContentHash.Hex(),
		"timestamp":   strconv.FormatUint(u.Timestamp, 10),
	}}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
