package state

import (
	"github.com/ethereum/go-ethereum/common"

	"listingchain/native/registry"
)

var (
	registryStoragePrefix        = []byte("registry-storage:")
	registryStorageListingPrefix = []byte("registry-storage-listing:")
	registryStorageMemberPrefix  = []byte("registry-storage-member:")
	registryPrefix               = []byte("registry:")
)

// RegistryStorageGet loads the storage record at addr.
func (m *Manager) RegistryStorageGet(addr common.Address) (*registry.Storage, bool, error) {
	st := new(registry.Storage)
	ok, err := m.getRLP(hashKey(registryStoragePrefix, addr.Bytes()), st)
	if err != nil || !ok {
		return nil, false, err
	}
	return st, true, nil
}

// RegistryStoragePut persists a storage record.
func (m *Manager) RegistryStoragePut(st *registry.Storage) error {
	return m.putRLP(hashKey(registryStoragePrefix, st.Address.Bytes()), st)
}

// RegistryStorageListingGet loads entry index of a storage's listing sequence.
func (m *Manager) RegistryStorageListingGet(storageAddr common.Address, index uint64) (common.Address, bool, error) {
	var listing common.Address
	ok, err := m.getRLP(hashKey(registryStorageListingPrefix, storageAddr.Bytes(), indexBytes(index)), &listing)
	return listing, ok, err
}

// RegistryStorageListingPut writes entry index of a storage's listing sequence.
func (m *Manager) RegistryStorageListingPut(storageAddr common.Address, index uint64, listing common.Address) error {
	return m.putRLP(hashKey(registryStorageListingPrefix, storageAddr.Bytes(), indexBytes(index)), listing)
}

// RegistryStorageMemberGet reports whether listing was appended to storage.
func (m *Manager) RegistryStorageMemberGet(storageAddr, listing common.Address) (bool, error) {
	var member bool
	ok, err := m.getRLP(hashKey(registryStorageMemberPrefix, storageAddr.Bytes(), listing.Bytes()), &member)
	if err != nil || !ok {
		return false, err
	}
	return member, nil
}

// RegistryStorageMemberPut marks listing as a member of storage.
func (m *Manager) RegistryStorageMemberPut(storageAddr, listing common.Address) error {
	return m.putRLP(hashKey(registryStorageMemberPrefix, storageAddr.Bytes(), listing.Bytes()), true)
}

// RegistryGet loads the registry record at addr.
func (m *Manager) RegistryGet(addr common.Address) (*registry.Registry, bool, error) {
	reg := new(registry.Registry)
	ok, err := m.getRLP(hashKey(registryPrefix, addr.Bytes()), reg)
	if err != nil || !ok {
		return nil, false, err
	}
	return reg, true, nil
}

// RegistryPut persists a registry record.
func (m *Manager) RegistryPut(reg *registry.Registry) error {
	return m.putRLP(hashKey(registryPrefix, reg.Address.Bytes()), reg)
}
