package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"listingchain/native/escrow"
	"listingchain/native/listing"
	"listingchain/native/registry"
)

// JSON renderings of engine records. Amounts are decimal strings.

type fixedJSON struct {
	Kind           string `json:"kind"`
	Address        string `json:"address"`
	Registry       string `json:"registry"`
	Seller         string `json:"seller"`
	ContentHash    string `json:"contentHash"`
	Price          string `json:"price"`
	InitialUnits   uint64 `json:"initialUnits"`
	UnitsAvailable uint64 `json:"unitsAvailable"`
	Created        uint64 `json:"created"`
	Expiration     uint64 `json:"expiration"`
	Purchases      uint64 `json:"purchases"`
	Status         string `json:"status,omitempty"`
}

func fixedView(l *listing.FixedListing, status listing.Status) *fixedJSON {
	if l == nil {
		return nil
	}
	out := &fixedJSON{
		Kind:           listing.KindFixed.String(),
		Address:        l.Address.Hex(),
		Registry:       l.Registry.Hex(),
		Seller:         l.Seller.Hex(),
		ContentHash:    l.ContentHash.Hex(),
		Price:          amount(l.Price),
		InitialUnits:   l.InitialUnits,
		UnitsAvailable: l.UnitsAvailable,
		Created:        l.Created,
		Expiration:     l.Expiration,
		Purchases:      l.Purchases,
	}
	if status != 0 {
		out.Status = status.String()
	}
	return out
}

type versionedJSON struct {
	Kind           string `json:"kind"`
	Address        string `json:"address"`
	Registry       string `json:"registry"`
	Seller         string `json:"seller"`
	Created        uint64 `json:"created"`
	CurrentVersion uint64 `json:"currentVersion"`
	ContentHash    string `json:"contentHash"`
	Requests       uint64 `json:"requests"`
}

func versionedView(l *listing.VersionedListing, current common.Hash) *versionedJSON {
	if l == nil {
		return nil
	}
	return &versionedJSON{
		Kind:           listing.KindVersioned.String(),
		Address:        l.Address.Hex(),
		Registry:       l.Registry.Hex(),
		Seller:         l.Seller.Hex(),
		Created:        l.Created,
		CurrentVersion: l.CurrentVersion(),
		ContentHash:    current.Hex(),
		Requests:       l.Requests,
	}
}

type purchaseJSON struct {
	Escrow      string `json:"escrow"`
	Buyer       string `json:"buyer"`
	Units       uint64 `json:"units,omitempty"`
	Version     uint64 `json:"version"`
	ContentHash string `json:"contentHash,omitempty"`
	Value       string `json:"value"`
	At          uint64 `json:"at"`
}

func purchaseView(p *listing.Purchase) *purchaseJSON {
	if p == nil {
		return nil
	}
	out := &purchaseJSON{
		Escrow:  p.Escrow.Hex(),
		Buyer:   p.Buyer.Hex(),
		Units:   p.Units,
		Version: p.Version,
		Value:   amount(p.Value),
		At:      p.At,
	}
	if p.ContentHash != (common.Hash{}) {
		out.ContentHash = p.ContentHash.Hex()
	}
	return out
}

type escrowJSON struct {
	Kind        string `json:"kind"`
	Address     string `json:"address"`
	Listing     string `json:"listing"`
	Seller      string `json:"seller"`
	Buyer       string `json:"buyer"`
	HeldValue   string `json:"heldValue"`
	Version     uint64 `json:"version"`
	ContentHash string `json:"contentHash"`
	CreatedAt   uint64 `json:"createdAt"`
	Status      string `json:"status"`
}

func escrowView(e *escrow.Escrow) *escrowJSON {
	return &escrowJSON{
		Kind:        "escrow",
		Address:     e.Address.Hex(),
		Listing:     e.Listing.Hex(),
		Seller:      e.Seller.Hex(),
		Buyer:       e.Buyer.Hex(),
		HeldValue:   amount(e.HeldValue),
		Version:     e.Version,
		ContentHash: e.ContentHash.Hex(),
		CreatedAt:   e.CreatedAt,
		Status:      e.Status.String(),
	}
}

type registryJSON struct {
	Kind     string `json:"kind"`
	Address  string `json:"address"`
	Storage  string `json:"storage"`
	Owner    string `json:"owner"`
	Created  uint64 `json:"created"`
	Listings uint64 `json:"listings"`
}

func registryView(r *registry.Registry, listings uint64) *registryJSON {
	if r == nil {
		return nil
	}
	return &registryJSON{
		Kind:     "registry",
		Address:  r.Address.Hex(),
		Storage:  r.Storage.Hex(),
		Owner:    r.Owner.Hex(),
		Created:  r.Created,
		Listings: listings,
	}
}

type storageJSON struct {
	Kind           string `json:"kind"`
	Address        string `json:"address"`
	Owner          string `json:"owner"`
	ActiveRegistry string `json:"activeRegistry"`
	Length         uint64 `json:"length"`
}

func storageView(s *registry.Storage) *storageJSON {
	return &storageJSON{
		Kind:           "storage",
		Address:        s.Address.Hex(),
		Owner:          s.Owner.Hex(),
		ActiveRegistry: s.ActiveRegistry.Hex(),
		Length:         s.Length,
	}
}

func amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
