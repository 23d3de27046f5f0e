package registry

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/native/listing"
)

type registryState interface {
	NonceNext(addr common.Address) (uint64, error)
	RegistryGet(addr common.Address) (*Registry, bool, error)
	RegistryPut(*Registry) error
}

type listingEngine interface {
	CreateFixed(listing.FixedParams) (*listing.FixedListing, error)
	CreateVersioned(listing.VersionedParams) (*listing.VersionedListing, error)
}

// Engine implements the registry logic on top of a StorageEngine. A registry
// can be retired by pointing its storage elsewhere; it then keeps answering
// trust queries but can no longer create listings.
type Engine struct {
	state    registryState
	storage  *StorageEngine
	listings listingEngine
	emitter  events.Emitter
	nowFn    func() uint64
}

// NewEngine creates a registry engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state registryState) { e.state = state }

// SetStorageEngine configures the engine managing storage records.
func (e *Engine) SetStorageEngine(storage *StorageEngine) { e.storage = storage }

// SetListingEngine configures the engine that instantiates listings.
func (e *Engine) SetListingEngine(listings listingEngine) { e.listings = listings }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.storage == nil || e.listings == nil {
		return errNilState
	}
	return nil
}

// Deploy creates a registry owned by caller and bound to storage. The new
// registry cannot append until the storage owner makes it active.
func (e *Engine) Deploy(caller, storage common.Address) (*Registry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.storage.Get(storage); err != nil {
		return nil, err
	}
	nonce, err := e.state.NonceNext(caller)
	if err != nil {
		return nil, err
	}
	addr := ethcrypto.CreateAddress(caller, nonce)
	if _, ok, err := e.state.RegistryGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, errAddressInUse
	}
	reg := &Registry{Address: addr, Storage: storage, Owner: caller, Created: e.nowFn()}
	if err := e.state.RegistryPut(reg); err != nil {
		return nil, err
	}
	e.emit(RegistryDeployed{Registry: addr, Storage: storage, Owner: caller})
	return reg.Clone(), nil
}

// Create instantiates a fixed listing sold by caller.
func (e *Engine) Create(caller, registry common.Address, contentHash common.Hash, price *uint256.Int, units uint64) (*listing.FixedListing, error) {
	return e.createFixed(registry, caller, contentHash, price, units)
}

// CreateOnBehalf instantiates a fixed listing sold by beneficiary.
func (e *Engine) CreateOnBehalf(caller, registry common.Address, contentHash common.Hash, price *uint256.Int, units uint64, beneficiary common.Address) (*listing.FixedListing, error) {
	return e.createFixed(registry, beneficiary, contentHash, price, units)
}

func (e *Engine) createFixed(registry, seller common.Address, contentHash common.Hash, price *uint256.Int, units uint64) (*listing.FixedListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	reg, err := e.load(registry)
	if err != nil {
		return nil, err
	}
	l, err := e.listings.CreateFixed(listing.FixedParams{
		Registry:    reg.Address,
		Nonce:       reg.Nonce,
		Seller:      seller,
		ContentHash: contentHash,
		Price:       price,
		Units:       units,
	})
	if err != nil {
		return nil, err
	}
	index, err := e.record(reg, l.Address)
	if err != nil {
		return nil, err
	}
	e.emit(ListingCreated{
		Registry:    reg.Address,
		Storage:     reg.Storage,
		Listing:     l.Address,
		Seller:      l.Seller,
		Kind:        listing.KindFixed,
		Index:       index,
		ContentHash: l.ContentHash,
		Price:       l.Price,
		Units:       l.UnitsAvailable,
		Created:     l.Created,
		Expiration:  l.Expiration,
	})
	return l, nil
}

// CreateFractional instantiates a versioned listing sold by caller.
func (e *Engine) CreateFractional(caller, registry common.Address, contentHash common.Hash) (*listing.VersionedListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	reg, err := e.load(registry)
	if err != nil {
		return nil, err
	}
	l, err := e.listings.CreateVersioned(listing.VersionedParams{
		Registry:    reg.Address,
		Nonce:       reg.Nonce,
		Seller:      caller,
		ContentHash: contentHash,
	})
	if err != nil {
		return nil, err
	}
	index, err := e.record(reg, l.Address)
	if err != nil {
		return nil, err
	}
	e.emit(ListingCreated{
		Registry:    reg.Address,
		Storage:     reg.Storage,
		Listing:     l.Address,
		Seller:      l.Seller,
		Kind:        listing.KindVersioned,
		Index:       index,
		ContentHash: contentHash,
		Created:     l.Created,
	})
	return l, nil
}

// record appends the listing to the registry's storage and bumps the registry
// nonce. A rejected append leaves the listing record behind; the ledger
// discards it together with the rest of the failed call.
func (e *Engine) record(reg *Registry, listingAddr common.Address) (uint64, error) {
	index, err := e.storage.Append(reg.Address, reg.Storage, listingAddr)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", coreerrors.ErrStorageRejected, err)
	}
	reg.Nonce++
	if err := e.state.RegistryPut(reg); err != nil {
		return 0, err
	}
	return index, nil
}

// IsTrusted reports whether addr was created through any registry that ever
// wrote to this registry's storage. Unknown addresses are simply untrusted.
func (e *Engine) IsTrusted(registry, addr common.Address) (bool, error) {
	reg, err := e.load(registry)
	if err != nil {
		return false, err
	}
	return e.storage.Contains(reg.Storage, addr)
}

// ListingsLength returns the number of listings in the registry's storage.
func (e *Engine) ListingsLength(registry common.Address) (uint64, error) {
	reg, err := e.load(registry)
	if err != nil {
		return 0, err
	}
	return e.storage.Length(reg.Storage)
}

// ListingAt returns the listing at index of the registry's storage.
func (e *Engine) ListingAt(registry common.Address, index uint64) (common.Address, error) {
	reg, err := e.load(registry)
	if err != nil {
		return common.Address{}, err
	}
	return e.storage.ListingAt(reg.Storage, index)
}

// SetOwner hands the registry to newOwner.
func (e *Engine) SetOwner(caller, registry, newOwner common.Address) error {
	reg, err := e.load(registry)
	if err != nil {
		return err
	}
	if caller != reg.Owner {
		return fmt.Errorf("%w: only the registry owner may transfer ownership", coreerrors.ErrUnauthorized)
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: owner required", coreerrors.ErrInvalidArgument)
	}
	previous := reg.Owner
	reg.Owner = newOwner
	if err := e.state.RegistryPut(reg); err != nil {
		return err
	}
	e.emit(OwnerChanged{kind: EventTypeOwnerChanged, Subject: registry, Previous: previous, Owner: newOwner})
	return nil
}

// Get returns the registry record at addr.
func (e *Engine) Get(addr common.Address) (*Registry, error) {
	return e.load(addr)
}

func (e *Engine) load(addr common.Address) (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	reg, ok, err := e.state.RegistryGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: registry %s", coreerrors.ErrNotFound, addr.Hex())
	}
	return reg.Clone(), nil
}
