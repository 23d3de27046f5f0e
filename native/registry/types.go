package registry

import (
	"github.com/ethereum/go-ethereum/common"
)

// Storage is the durable half of a registry deployment. It outlives any
// registry that writes to it: retiring a registry only moves ActiveRegistry,
// and every listing ever appended stays a member.
type Storage struct {
	Address        common.Address
	Owner          common.Address
	ActiveRegistry common.Address
	Length         uint64
}

// Clone returns a copy of the storage record.
func (s *Storage) Clone() *Storage {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Registry is the logic half. It holds no listing state of its own; Nonce only
// counts the listings it has instantiated so their addresses stay unique.
type Registry struct {
	Address common.Address
	Storage common.Address
	Owner   common.Address
	Created uint64
	Nonce   uint64
}

// Clone returns a copy of the registry record.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
