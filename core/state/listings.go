package state

import (
	"github.com/ethereum/go-ethereum/common"

	"listingchain/native/listing"
)

var (
	fixedListingPrefix     = []byte("listing-fixed:")
	versionedListingPrefix = []byte("listing-versioned:")
	listingPurchasePrefix  = []byte("listing-purchase:")
	listingVersionPrefix   = []byte("listing-version:")
)

// FixedListingGet loads the fixed listing at addr.
func (m *Manager) FixedListingGet(addr common.Address) (*listing.FixedListing, bool, error) {
	l := new(listing.FixedListing)
	ok, err := m.getRLP(hashKey(fixedListingPrefix, addr.Bytes()), l)
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

// FixedListingPut persists a fixed listing.
func (m *Manager) FixedListingPut(l *listing.FixedListing) error {
	return m.putRLP(hashKey(fixedListingPrefix, l.Address.Bytes()), l)
}

// VersionedListingGet loads the versioned listing at addr.
func (m *Manager) VersionedListingGet(addr common.Address) (*listing.VersionedListing, bool, error) {
	l := new(listing.VersionedListing)
	ok, err := m.getRLP(hashKey(versionedListingPrefix, addr.Bytes()), l)
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

// VersionedListingPut persists a versioned listing.
func (m *Manager) VersionedListingPut(l *listing.VersionedListing) error {
	return m.putRLP(hashKey(versionedListingPrefix, l.Address.Bytes()), l)
}

// ListingPurchaseGet loads entry index of a listing's escrow sequence.
func (m *Manager) ListingPurchaseGet(addr common.Address, index uint64) (*listing.Purchase, bool, error) {
	p := new(listing.Purchase)
	ok, err := m.getRLP(hashKey(listingPurchasePrefix, addr.Bytes(), indexBytes(index)), p)
	if err != nil || !ok {
		return nil, false, err
	}
	return p, true, nil
}

// ListingPurchasePut writes entry index of a listing's escrow sequence.
func (m *Manager) ListingPurchasePut(addr common.Address, index uint64, p *listing.Purchase) error {
	return m.putRLP(hashKey(listingPurchasePrefix, addr.Bytes(), indexBytes(index)), p)
}

// ListingVersionGet loads version index of a versioned listing.
func (m *Manager) ListingVersionGet(addr common.Address, index uint64) (*listing.Version, bool, error) {
	v := new(listing.Version)
	ok, err := m.getRLP(hashKey(listingVersionPrefix, addr.Bytes(), indexBytes(index)), v)
	if err != nil || !ok {
		return nil, false, err
	}
	return v, true, nil
}

// ListingVersionPut writes version index of a versioned listing.
func (m *Manager) ListingVersionPut(addr common.Address, index uint64, v *listing.Version) error {
	return m.putRLP(hashKey(listingVersionPrefix, addr.Bytes(), indexBytes(index)), v)
}
