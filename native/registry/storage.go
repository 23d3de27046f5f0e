package registry

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
)

var (
	errNilState       = errors.New("registry: state not configured")
	errAddressInUse   = errors.New("registry: address already in use")
	errCorruptStorage = errors.New("registry: storage index entry missing")
)

type storageState interface {
	NonceNext(addr common.Address) (uint64, error)
	RegistryStorageGet(addr common.Address) (*Storage, bool, error)
	RegistryStoragePut(*Storage) error
	RegistryStorageListingGet(storage common.Address, index uint64) (common.Address, bool, error)
	RegistryStorageListingPut(storage common.Address, index uint64, listing common.Address) error
	RegistryStorageMemberGet(storage, listing common.Address) (bool, error)
	RegistryStorageMemberPut(storage, listing common.Address) error
}

// StorageEngine manages storage records: an append-only listing sequence, a
// membership index over it and the pointer to the registry allowed to append.
type StorageEngine struct {
	state   storageState
	emitter events.Emitter
}

// NewStorageEngine creates a storage engine with a no-op emitter.
func NewStorageEngine() *StorageEngine {
	return &StorageEngine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (s *StorageEngine) SetState(state storageState) { s.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (s *StorageEngine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *StorageEngine) emit(evt events.Event) {
	if s == nil || s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

// Deploy creates a storage record owned by caller. The address is derived from
// the caller and its deployment nonce.
func (s *StorageEngine) Deploy(caller common.Address) (*Storage, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	nonce, err := s.state.NonceNext(caller)
	if err != nil {
		return nil, err
	}
	addr := ethcrypto.CreateAddress(caller, nonce)
	if _, ok, err := s.state.RegistryStorageGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, errAddressInUse
	}
	st := &Storage{Address: addr, Owner: caller}
	if err := s.state.RegistryStoragePut(st); err != nil {
		return nil, err
	}
	s.emit(StorageDeployed{Storage: addr, Owner: caller})
	return st.Clone(), nil
}

// SetOwner hands the storage to newOwner.
func (s *StorageEngine) SetOwner(caller, addr, newOwner common.Address) error {
	st, err := s.load(addr)
	if err != nil {
		return err
	}
	if caller != st.Owner {
		return fmt.Errorf("%w: only the storage owner may transfer ownership", coreerrors.ErrUnauthorized)
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: owner required", coreerrors.ErrInvalidArgument)
	}
	previous := st.Owner
	st.Owner = newOwner
	if err := s.state.RegistryStoragePut(st); err != nil {
		return err
	}
	s.emit(OwnerChanged{kind: EventTypeStorageOwnerChanged, Subject: addr, Previous: previous, Owner: newOwner})
	return nil
}

// SetActiveRegistry points the storage at a new registry. Listings appended
// under earlier registries stay members.
func (s *StorageEngine) SetActiveRegistry(caller, addr, registry common.Address) error {
	st, err := s.load(addr)
	if err != nil {
		return err
	}
	if caller != st.Owner {
		return fmt.Errorf("%w: only the storage owner may set the active registry", coreerrors.ErrUnauthorized)
	}
	if registry == (common.Address{}) {
		return fmt.Errorf("%w: registry required", coreerrors.ErrInvalidArgument)
	}
	previous := st.ActiveRegistry
	st.ActiveRegistry = registry
	if err := s.state.RegistryStoragePut(st); err != nil {
		return err
	}
	s.emit(ActiveChanged{Storage: addr, Previous: previous, Registry: registry})
	return nil
}

// Append records listing and returns its permanent index. Only the active
// registry may append.
func (s *StorageEngine) Append(caller, addr, listing common.Address) (uint64, error) {
	st, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	if st.ActiveRegistry == (common.Address{}) || caller != st.ActiveRegistry {
		return 0, fmt.Errorf("%w: %s is not the active registry of %s", coreerrors.ErrUnauthorized, caller.Hex(), addr.Hex())
	}
	member, err := s.state.RegistryStorageMemberGet(addr, listing)
	if err != nil {
		return 0, err
	}
	if member {
		return 0, fmt.Errorf("%w: listing %s already stored", coreerrors.ErrInvalidArgument, listing.Hex())
	}
	index := st.Length
	if err := s.state.RegistryStorageListingPut(addr, index, listing); err != nil {
		return 0, err
	}
	if err := s.state.RegistryStorageMemberPut(addr, listing); err != nil {
		return 0, err
	}
	st.Length++
	if err := s.state.RegistryStoragePut(st); err != nil {
		return 0, err
	}
	return index, nil
}

// Length returns the number of listings ever appended.
func (s *StorageEngine) Length(addr common.Address) (uint64, error) {
	st, err := s.load(addr)
	if err != nil {
		return 0, err
	}
	return st.Length, nil
}

// Contains reports whether listing was ever appended to the storage.
func (s *StorageEngine) Contains(addr, listing common.Address) (bool, error) {
	if _, err := s.load(addr); err != nil {
		return false, err
	}
	return s.state.RegistryStorageMemberGet(addr, listing)
}

// ListingAt returns the listing stored at index.
func (s *StorageEngine) ListingAt(addr common.Address, index uint64) (common.Address, error) {
	st, err := s.load(addr)
	if err != nil {
		return common.Address{}, err
	}
	if index >= st.Length {
		return common.Address{}, fmt.Errorf("%w: listing %d of %d", coreerrors.ErrIndexOutOfRange, index, st.Length)
	}
	listing, ok, err := s.state.RegistryStorageListingGet(addr, index)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, errCorruptStorage
	}
	return listing, nil
}

// Get returns the storage record at addr.
func (s *StorageEngine) Get(addr common.Address) (*Storage, error) {
	return s.load(addr)
}

func (s *StorageEngine) load(addr common.Address) (*Storage, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	st, ok, err := s.state.RegistryStorageGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: storage %s", coreerrors.ErrNotFound, addr.Hex())
	}
	return st.Clone(), nil
}
