package listing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
	"listingchain/native/escrow"
)

// CreateFixed stores a new fixed listing. The registry is responsible for
// emitting the creation event once the listing is recorded in storage.
func (e *Engine) CreateFixed(params FixedParams) (*FixedListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if params.Seller == (common.Address{}) {
		return nil, fmt.Errorf("%w: seller required", coreerrors.ErrInvalidArgument)
	}
	if params.Units == 0 {
		return nil, fmt.Errorf("%w: units must be positive", coreerrors.ErrInvalidArgument)
	}
	if params.Price == nil {
		return nil, fmt.Errorf("%w: price required", coreerrors.ErrInvalidArgument)
	}
	addr := Address(params.Registry, params.Nonce)
	if err := e.ensureUnused(addr); err != nil {
		return nil, err
	}
	now := e.now()
	expiration, overflow := addUint64(now, e.duration)
	if overflow {
		return nil, fmt.Errorf("%w: listing duration overflows", coreerrors.ErrInvalidArgument)
	}
	l := &FixedListing{
		Address:        addr,
		Registry:       params.Registry,
		Seller:         params.Seller,
		ContentHash:    params.ContentHash,
		Price:          new(uint256.Int).Set(params.Price),
		InitialUnits:   params.Units,
		UnitsAvailable: params.Units,
		Created:        now,
		Expiration:     expiration,
	}
	if err := e.state.FixedListingPut(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Buy sells units to caller and locks payment in a new escrow. Payment must
// already sit in the listing's balance; it is not compared with the price.
func (e *Engine) Buy(caller, addr common.Address, units uint64, payment *uint256.Int) (*Purchase, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.loadFixed(addr)
	if err != nil {
		return nil, err
	}
	if units == 0 {
		return nil, fmt.Errorf("%w: units must be positive", coreerrors.ErrInvalidArgument)
	}
	now := e.now()
	if now >= l.Expiration {
		return nil, fmt.Errorf("%w: listing %s expired at %d", coreerrors.ErrExpired, addr.Hex(), l.Expiration)
	}
	if units > l.UnitsAvailable {
		return nil, fmt.Errorf("%w: requested %d, available %d", coreerrors.ErrInsufficientInventory, units, l.UnitsAvailable)
	}
	esc, err := e.escrows.Open(escrow.OpenRequest{
		Listing:   l.Address,
		Nonce:     l.Purchases,
		Seller:    l.Seller,
		Buyer:     caller,
		HeldValue: payment,
	})
	if err != nil {
		return nil, err
	}
	p := &Purchase{
		Escrow: esc.Address,
		Buyer:  caller,
		Units:  units,
		Value:  esc.HeldValue,
		At:     now,
	}
	index := l.Purchases
	if err := e.appendPurchase(l.Address, index, p); err != nil {
		return nil, err
	}
	l.UnitsAvailable -= units
	l.Purchases++
	if err := e.state.FixedListingPut(l); err != nil {
		return nil, err
	}
	e.emit(Purchased{
		Listing:        l.Address,
		Escrow:         esc.Address,
		Buyer:          caller,
		Units:          units,
		Value:          p.Value,
		UnitsAvailable: l.UnitsAvailable,
		Index:          index,
	})
	return p.Clone(), nil
}

// Close withdraws the remaining inventory. Escrows opened before closing are
// left as they are.
func (e *Engine) Close(caller, addr common.Address) (*FixedListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.loadFixed(addr)
	if err != nil {
		return nil, err
	}
	if caller != l.Seller {
		return nil, fmt.Errorf("%w: only the seller may close %s", coreerrors.ErrUnauthorized, addr.Hex())
	}
	l.UnitsAvailable = 0
	l.Closed = true
	if err := e.state.FixedListingPut(l); err != nil {
		return nil, err
	}
	e.emit(Closed{Listing: l.Address, Seller: l.Seller})
	return l.Clone(), nil
}

// Fixed returns the fixed listing stored at addr.
func (e *Engine) Fixed(addr common.Address) (*FixedListing, error) {
	return e.loadFixed(addr)
}

func (e *Engine) loadFixed(addr common.Address) (*FixedListing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	l, ok, err := e.state.FixedListingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: fixed listing %s", coreerrors.ErrNotFound, addr.Hex())
	}
	return l.Clone(), nil
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}
