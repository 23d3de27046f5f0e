package listing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
	"listingchain/native/escrow"
)

// CreateVersioned stores a new versioned listing whose version 0 carries
// contentHash.
func (e *Engine) CreateVersioned(params VersionedParams) (*VersionedListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if params.Seller == (common.Address{}) {
		return nil, fmt.Errorf("%w: seller required", coreerrors.ErrInvalidArgument)
	}
	addr := Address(params.Registry, params.Nonce)
	if err := e.ensureUnused(addr); err != nil {
		return nil, err
	}
	now := e.now()
	l := &VersionedListing{
		Address:  addr,
		Registry: params.Registry,
		Seller:   params.Seller,
		Created:  now,
		Versions: 1,
	}
	if err := e.state.ListingVersionPut(addr, 0, &Version{Timestamp: now, ContentHash: params.ContentHash}); err != nil {
		return nil, err
	}
	if err := e.state.VersionedListingPut(l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Update appends a new version. expectedVersion must equal the current
// version; a stale writer gets ErrVersionConflict and should re-read.
func (e *Engine) Update(caller, addr common.Address, expectedVersion uint64, contentHash common.Hash) (*Version, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.loadVersioned(addr)
	if err != nil {
		return nil, err
	}
	if caller != l.Seller {
		return nil, fmt.Errorf("%w: only the seller may update %s", coreerrors.ErrUnauthorized, addr.Hex())
	}
	if current := l.CurrentVersion(); expectedVersion != current {
		return nil, fmt.Errorf("%w: expected %d, current %d", coreerrors.ErrVersionConflict, expectedVersion, current)
	}
	v := &Version{Timestamp: e.now(), ContentHash: contentHash}
	index := l.Versions
	if err := e.state.ListingVersionPut(addr, index, v); err != nil {
		return nil, err
	}
	l.Versions++
	if err := e.state.VersionedListingPut(l); err != nil {
		return nil, err
	}
	e.emit(Updated{Listing: addr, Version: index, ContentHash: contentHash, Timestamp: v.Timestamp})
	out := *v
	return &out, nil
}

// Request books the current version for caller. The escrow keeps the version
// it was made against, so later updates never change what was booked.
func (e *Engine) Request(caller, addr common.Address, contentHash common.Hash, payment *uint256.Int) (*Purchase, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	l, err := e.loadVersioned(addr)
	if err != nil {
		return nil, err
	}
	version := l.CurrentVersion()
	esc, err := e.escrows.Open(escrow.OpenRequest{
		Listing:     l.Address,
		Nonce:       l.Requests,
		Seller:      l.Seller,
		Buyer:       caller,
		HeldValue:   payment,
		Version:     version,
		ContentHash: contentHash,
	})
	if err != nil {
		return nil, err
	}
	p := &Purchase{
		Escrow:      esc.Address,
		Buyer:       caller,
		Version:     version,
		ContentHash: contentHash,
		Value:       esc.HeldValue,
		At:          e.now(),
	}
	index := l.Requests
	if err := e.appendPurchase(l.Address, index, p); err != nil {
		return nil, err
	}
	l.Requests++
	if err := e.state.VersionedListingPut(l); err != nil {
		return nil, err
	}
	e.emit(Requested{
		Listing:     l.Address,
		Escrow:      esc.Address,
		Buyer:       caller,
		Version:     version,
		ContentHash: contentHash,
		Value:       p.Value,
		Index:       index,
	})
	return p.Clone(), nil
}

// Data returns version index of the listing's history.
func (e *Engine) Data(addr common.Address, index uint64) (*Version, error) {
	l, err := e.loadVersioned(addr)
	if err != nil {
		return nil, err
	}
	if index >= l.Versions {
		return nil, fmt.Errorf("%w: version %d of %d", coreerrors.ErrIndexOutOfRange, index, l.Versions)
	}
	v, ok, err := e.state.ListingVersionGet(addr, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("listing engine: version %d missing for %s", index, addr.Hex())
	}
	out := *v
	return &out, nil
}

// CurrentVersion returns the index of the listing's latest version.
func (e *Engine) CurrentVersion(addr common.Address) (uint64, error) {
	l, err := e.loadVersioned(addr)
	if err != nil {
		return 0, err
	}
	return l.CurrentVersion(), nil
}

// ContentHash returns the content hash of the listing's latest version.
func (e *Engine) ContentHash(addr common.Address) (common.Hash, error) {
	current, err := e.CurrentVersion(addr)
	if err != nil {
		return common.Hash{}, err
	}
	v, err := e.Data(addr, current)
	if err != nil {
		return common.Hash{}, err
	}
	return v.ContentHash, nil
}

// Versioned returns the versioned listing stored at addr.
func (e *Engine) Versioned(addr common.Address) (*VersionedListing, error) {
	return e.loadVersioned(addr)
}

func (e *Engine) loadVersioned(addr common.Address) (*VersionedListing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	l, ok, err := e.state.VersionedListingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: versioned listing %s", coreerrors.ErrNotFound, addr.Hex())
	}
	return l.Clone(), nil
}
