package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"listingchain/native/escrow"
	"listingchain/native/listing"
	"listingchain/native/registry"
)

func view[T any](ctx context.Context, n *Node, fn func() (T, error)) (T, error) {
	var out T
	err := n.ledger.View(ctx, func(context.Context) error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsTrusted reports whether listingAddr was created through the lineage of
// registryAddr's storage.
func (n *Node) IsTrusted(ctx context.Context, registryAddr, listingAddr common.Address) (bool, error) {
	return view(ctx, n, func() (bool, error) { return n.registry.IsTrusted(registryAddr, listingAddr) })
}

// Registry returns the registry record at addr.
func (n *Node) Registry(ctx context.Context, addr common.Address) (*registry.Registry, error) {
	return view(ctx, n, func() (*registry.Registry, error) { return n.registry.Get(addr) })
}

// ListingsLength returns the number of listings in the registry's storage.
func (n *Node) ListingsLength(ctx context.Context, registryAddr common.Address) (uint64, error) {
	return view(ctx, n, func() (uint64, error) { return n.registry.ListingsLength(registryAddr) })
}

// ListingAt returns the listing at index of the registry's storage.
func (n *Node) ListingAt(ctx context.Context, registryAddr common.Address, index uint64) (common.Address, error) {
	return view(ctx, n, func() (common.Address, error) { return n.registry.ListingAt(registryAddr, index) })
}

// Storage returns the storage record at addr.
func (n *Node) Storage(ctx context.Context, addr common.Address) (*registry.Storage, error) {
	return view(ctx, n, func() (*registry.Storage, error) { return n.storage.Get(addr) })
}

// StorageContains reports whether listingAddr was appended to the storage.
func (n *Node) StorageContains(ctx context.Context, storageAddr, listingAddr common.Address) (bool, error) {
	return view(ctx, n, func() (bool, error) { return n.storage.Contains(storageAddr, listingAddr) })
}

// StorageListingAt returns the listing at index of the storage.
func (n *Node) StorageListingAt(ctx context.Context, storageAddr common.Address, index uint64) (common.Address, error) {
	return view(ctx, n, func() (common.Address, error) { return n.storage.ListingAt(storageAddr, index) })
}

// ListingKind reports which listing variant lives at addr.
func (n *Node) ListingKind(ctx context.Context, addr common.Address) (listing.Kind, error) {
	return view(ctx, n, func() (listing.Kind, error) { return n.listings.KindOf(addr) })
}

// FixedListing returns the fixed listing at addr.
func (n *Node) FixedListing(ctx context.Context, addr common.Address) (*listing.FixedListing, error) {
	return view(ctx, n, func() (*listing.FixedListing, error) { return n.listings.Fixed(addr) })
}

// FixedListingStatus derives the status of a fixed listing at the current time.
func (n *Node) FixedListingStatus(ctx context.Context, addr common.Address) (listing.Status, error) {
	return view(ctx, n, func() (listing.Status, error) {
		l, err := n.listings.Fixed(addr)
		if err != nil {
			return 0, err
		}
		return l.Status(n.ledger.Now()), nil
	})
}

// VersionedListing returns the versioned listing at addr.
func (n *Node) VersionedListing(ctx context.Context, addr common.Address) (*listing.VersionedListing, error) {
	return view(ctx, n, func() (*listing.VersionedListing, error) { return n.listings.Versioned(addr) })
}

// VersionData returns version index of a versioned listing.
func (n *Node) VersionData(ctx context.Context, addr common.Address, index uint64) (*listing.Version, error) {
	return view(ctx, n, func() (*listing.Version, error) { return n.listings.Data(addr, index) })
}

// CurrentVersion returns the latest version index of a versioned listing.
func (n *Node) CurrentVersion(ctx context.Context, addr common.Address) (uint64, error) {
	return view(ctx, n, func() (uint64, error) { return n.listings.CurrentVersion(addr) })
}

// ContentHash returns the content hash of a versioned listing's latest version.
func (n *Node) ContentHash(ctx context.Context, addr common.Address) (common.Hash, error) {
	return view(ctx, n, func() (common.Hash, error) { return n.listings.ContentHash(addr) })
}

// PurchasesLength returns the length of a listing's escrow sequence.
func (n *Node) PurchasesLength(ctx context.Context, addr common.Address) (uint64, error) {
	return view(ctx, n, func() (uint64, error) { return n.listings.PurchasesLength(addr) })
}

// Purchase returns entry index of a listing's escrow sequence.
func (n *Node) Purchase(ctx context.Context, addr common.Address, index uint64) (*listing.Purchase, error) {
	return view(ctx, n, func() (*listing.Purchase, error) { return n.listings.Purchase(addr, index) })
}

// Escrow returns the escrow at addr.
func (n *Node) Escrow(ctx context.Context, addr common.Address) (*escrow.Escrow, error) {
	return view(ctx, n, func() (*escrow.Escrow, error) { return n.escrows.Get(addr) })
}

// Balance returns the balance held by addr.
func (n *Node) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	return view(ctx, n, func() (*uint256.Int, error) { return n.state.BalanceGet(addr) })
}
