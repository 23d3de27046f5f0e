package registry

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"listingchain/core/types"
	"listingchain/native/listing"
)

const (
	EventTypeStorageDeployed     = "registry.storage_deployed"
	EventTypeStorageOwnerChanged = "registry.storage_owner_changed"
	EventTypeActiveChanged       = "registry.active_changed"
	EventTypeRegistryDeployed    = "registry.deployed"
	EventTypeOwnerChanged        = "registry.owner_changed"
	EventTypeListingCreated      = "registry.listing_created"
)

// StorageDeployed is emitted when a new storage record is created.
type StorageDeployed struct {
	Storage common.Address
	Owner   common.Address
}

func (StorageDeployed) EventType() string { return EventTypeStorageDeployed }

func (e StorageDeployed) Event() *types.Event {
	return &types.Event{Type: EventTypeStorageDeployed, Attributes: map[string]string{
		"storage": e.Storage.Hex(),
		"owner":   e.Owner.Hex(),
	}}
}

// OwnerChanged covers ownership transfers of both storage and registries.
type OwnerChanged struct {
	kind     string
	Subject  common.Address
	Previous common.Address
	Owner    common.Address
}

func (e OwnerChanged) EventType() string { return e.kind }

func (e OwnerChanged) Event() *types.Event {
	subject := "registry"
	if e.kind == EventTypeStorageOwnerChanged {
		subject = "storage"
	}
	return &types.Event{Type: e.kind, Attributes: map[string]string{
		subject:    e.Subject.Hex(),
		"previous": e.Previous.Hex(),
		"owner":    e.Owner.Hex(),
	}}
}

// ActiveChanged is emitted when storage is migrated to a different registry.
type ActiveChanged struct {
	Storage  common.Address
	Previous common.Address
	Registry common.Address
}

func (ActiveChanged) EventType() string { return EventTypeActiveChanged }

func (e ActiveChanged) Event() *types.Event {
	return &types.Event{Type: EventTypeActiveChanged, Attributes: map[string]string{
		"storage":  e.Storage.Hex(),
		"previous": e.Previous.Hex(),
		"registry": e.Registry.Hex(),
	}}
}

// RegistryDeployed is emitted when a registry is bound to a storage.
type RegistryDeployed struct {
	Registry common.Address
	Storage  common.Address
	Owner    common.Address
}

func (RegistryDeployed) EventType() string { return EventTypeRegistryDeployed }

func (e RegistryDeployed) Event() *types.Event {
	return &types.Event{Type: EventTypeRegistryDeployed, Attributes: map[string]string{
		"registry": e.Registry.Hex(),
		"storage":  e.Storage.Hex(),
		"owner":    e.Owner.Hex(),
	}}
}

// ListingCreated carries everything an external index needs to start tracking
// a listing.
type ListingCreated struct {
	Registry    common.Address
	Storage     common.Address
	Listing     common.Address
	Seller      common.Address
	Kind        listing.Kind
	Index       uint64
	ContentHash common.Hash
	Price       *uint256.Int
	Units       uint64
	Created     uint64
	Expiration  uint64
}

func (ListingCreated) EventType() string { return EventTypeListingCreated }

func (e ListingCreated) Event() *types.Event {
	attrs := map[string]string{
		"registry":    e.Registry.Hex(),
		"storage":     e.Storage.Hex(),
		"listing":     e.Listing.Hex(),
		"seller":      e.Seller.Hex(),
		"kind":        e.Kind.String(),
		"index":       strconv.FormatUint(e.Index, 10),
		"contentHash": e.ContentHash.Hex(),
		"created":     strconv.FormatUint(e.Created, 10),
	}
	if e.Kind == listing.KindFixed {
		price := "0"
		if e.Price != nil {
			price = e.Price.Dec()
		}
		attrs["price"] = price
		attrs["units"] = strconv.FormatUint(e.Units, 10)
		attrs["expiration"] = strconv.FormatUint(e.Expiration, 10)
	}
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}
