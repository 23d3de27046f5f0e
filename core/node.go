package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/trace"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/core/ledger"
	"listingchain/core/state"
	"listingchain/core/types"
	"listingchain/native/bank"
	"listingchain/native/escrow"
	"listingchain/native/listing"
	"listingchain/native/registry"
	"listingchain/storage"
)

// Method names recorded on receipts, metrics and spans.
const (
	MethodFund              = "genesis.fund"
	MethodDeployStorage     = "storage.deploy"
	MethodSetStorageOwner   = "storage.setOwner"
	MethodSetActiveRegistry = "storage.setActiveRegistry"
	MethodDeployRegistry    = "registry.deploy"
	MethodSetRegistryOwner  = "registry.setOwner"
	MethodCreate            = "registry.create"
	MethodCreateOnBehalf    = "registry.createOnBehalf"
	MethodCreateFractional  = "registry.createFractional"
	MethodBuy               = "listing.buy"
	MethodClose             = "listing.close"
	MethodUpdate            = "listing.update"
	MethodRequest           = "listing.request"
	MethodSettlePurchase    = "listing.settlePurchase"
	MethodRefundPurchase    = "listing.refundPurchase"
)

// Node wires the marketplace engines to one state manager and runs every
// entry point through the ledger.
type Node struct {
	db       storage.Database
	state    *state.Manager
	ledger   *ledger.Ledger
	storage  *registry.StorageEngine
	registry *registry.Engine
	listings *listing.Engine
	escrows  *escrow.Engine
}

// NewNode builds a node over db.
func NewNode(db storage.Database) *Node {
	st := state.NewManager(db)
	l := ledger.New(st)
	emitter := l.Emitter()

	escrows := escrow.NewEngine()
	escrows.SetState(st)
	escrows.SetEmitter(emitter)
	escrows.SetNowFunc(l.Now)

	listings := listing.NewEngine()
	listings.SetState(st)
	listings.SetEscrowEngine(escrows)
	listings.SetEmitter(emitter)
	listings.SetNowFunc(l.Now)

	storageEngine := registry.NewStorageEngine()
	storageEngine.SetState(st)
	storageEngine.SetEmitter(emitter)

	registries := registry.NewEngine()
	registries.SetState(st)
	registries.SetStorageEngine(storageEngine)
	registries.SetListingEngine(listings)
	registries.SetEmitter(emitter)
	registries.SetNowFunc(l.Now)

	return &Node{
		db:       db,
		state:    st,
		ledger:   l,
		storage:  storageEngine,
		registry: registries,
		listings: listings,
		escrows:  escrows,
	}
}

// SetEventSink configures where committed events are published.
func (n *Node) SetEventSink(sink events.Emitter) { n.ledger.SetSink(sink) }

// SetLogger configures the ledger logger.
func (n *Node) SetLogger(logger *slog.Logger) { n.ledger.SetLogger(logger) }

// SetTracer configures the ledger tracer.
func (n *Node) SetTracer(tracer trace.Tracer) { n.ledger.SetTracer(tracer) }

// SetClock overrides the ledger time source.
func (n *Node) SetClock(clock func() time.Time) { n.ledger.SetClock(clock) }

// SetListingDuration sets the lifetime of fixed listings created afterwards.
func (n *Node) SetListingDuration(seconds uint64) { n.listings.SetListingDuration(seconds) }

// Close releases the underlying database.
func (n *Node) Close() { n.db.Close() }

func nonPayable(call types.Call) error {
	if !call.AttachedValue().IsZero() {
		return fmt.Errorf("%w: method does not accept value", coreerrors.ErrInvalidArgument)
	}
	return nil
}

// Fund credits amount to addr. It bypasses the bank's sender checks and is only
// meant for genesis.
func (n *Node) Fund(ctx context.Context, addr common.Address, amount *uint256.Int) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, types.Call{}, MethodFund, addr, func(context.Context) error {
		return bank.Credit(n.state, addr, amount)
	})
}

// DeployStorage creates a registry storage owned by the caller.
func (n *Node) DeployStorage(ctx context.Context, call types.Call) (*registry.Storage, *types.Receipt, error) {
	var out *registry.Storage
	receipt, err := n.ledger.Execute(ctx, call, MethodDeployStorage, common.Address{}, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		st, err := n.storage.Deploy(call.Caller)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Address.Hex()
	return out, receipt, nil
}

// SetStorageOwner transfers a storage to newOwner.
func (n *Node) SetStorageOwner(ctx context.Context, call types.Call, storageAddr, newOwner common.Address) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodSetStorageOwner, storageAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		return n.storage.SetOwner(call.Caller, storageAddr, newOwner)
	})
}

// SetActiveRegistry migrates a storage to registryAddr.
func (n *Node) SetActiveRegistry(ctx context.Context, call types.Call, storageAddr, registryAddr common.Address) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodSetActiveRegistry, storageAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		return n.storage.SetActiveRegistry(call.Caller, storageAddr, registryAddr)
	})
}

// DeployRegistry creates a registry bound to storageAddr and owned by the
// caller.
func (n *Node) DeployRegistry(ctx context.Context, call types.Call, storageAddr common.Address) (*registry.Registry, *types.Receipt, error) {
	var out *registry.Registry
	receipt, err := n.ledger.Execute(ctx, call, MethodDeployRegistry, common.Address{}, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		reg, err := n.registry.Deploy(call.Caller, storageAddr)
		if err != nil {
			return err
		}
		out = reg
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Address.Hex()
	return out, receipt, nil
}

// SetRegistryOwner transfers a registry to newOwner.
func (n *Node) SetRegistryOwner(ctx context.Context, call types.Call, registryAddr, newOwner common.Address) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodSetRegistryOwner, registryAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		return n.registry.SetOwner(call.Caller, registryAddr, newOwner)
	})
}

// CreateListing creates a fixed listing sold by the caller.
func (n *Node) CreateListing(ctx context.Context, call types.Call, registryAddr common.Address, contentHash common.Hash, price *uint256.Int, units uint64) (*listing.FixedListing, *types.Receipt, error) {
	return n.createFixed(ctx, call, MethodCreate, registryAddr, func() (*listing.FixedListing, error) {
		return n.registry.Create(call.Caller, registryAddr, contentHash, price, units)
	})
}

// CreateListingOnBehalf creates a fixed listing sold by beneficiary.
func (n *Node) CreateListingOnBehalf(ctx context.Context, call types.Call, registryAddr common.Address, contentHash common.Hash, price *uint256.Int, units uint64, beneficiary common.Address) (*listing.FixedListing, *types.Receipt, error) {
	return n.createFixed(ctx, call, MethodCreateOnBehalf, registryAddr, func() (*listing.FixedListing, error) {
		return n.registry.CreateOnBehalf(call.Caller, registryAddr, contentHash, price, units, beneficiary)
	})
}

func (n *Node) createFixed(ctx context.Context, call types.Call, method string, registryAddr common.Address, create func() (*listing.FixedListing, error)) (*listing.FixedListing, *types.Receipt, error) {
	var out *listing.FixedListing
	receipt, err := n.ledger.Execute(ctx, call, method, registryAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		l, err := create()
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Address.Hex()
	return out, receipt, nil
}

// CreateFractional creates a versioned listing sold by the caller.
func (n *Node) CreateFractional(ctx context.Context, call types.Call, registryAddr common.Address, contentHash common.Hash) (*listing.VersionedListing, *types.Receipt, error) {
	var out *listing.VersionedListing
	receipt, err := n.ledger.Execute(ctx, call, MethodCreateFractional, registryAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		l, err := n.registry.CreateFractional(call.Caller, registryAddr, contentHash)
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Address.Hex()
	return out, receipt, nil
}

// Buy purchases units of a fixed listing. The call's attached value is the
// payment held in the new escrow.
func (n *Node) Buy(ctx context.Context, call types.Call, listingAddr common.Address, units uint64) (*listing.Purchase, *types.Receipt, error) {
	var out *listing.Purchase
	receipt, err := n.ledger.Execute(ctx, call, MethodBuy, listingAddr, func(context.Context) error {
		p, err := n.listings.Buy(call.Caller, listingAddr, units, call.AttachedValue())
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Escrow.Hex()
	return out, receipt, nil
}

// CloseListing withdraws the remaining inventory of a fixed listing.
func (n *Node) CloseListing(ctx context.Context, call types.Call, listingAddr common.Address) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodClose, listingAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		_, err := n.listings.Close(call.Caller, listingAddr)
		return err
	})
}

// Update appends a version to a versioned listing.
func (n *Node) Update(ctx context.Context, call types.Call, listingAddr common.Address, expectedVersion uint64, contentHash common.Hash) (*types.Receipt, error) {
	var version uint64
	receipt, err := n.ledger.Execute(ctx, call, MethodUpdate, listingAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		if _, err := n.listings.Update(call.Caller, listingAddr, expectedVersion, contentHash); err != nil {
			return err
		}
		version = expectedVersion + 1
		return nil
	})
	if err != nil {
		return receipt, err
	}
	receipt.Result = strconv.FormatUint(version, 10)
	return receipt, nil
}

// Request books the current version of a versioned listing. The call's
// attached value is held in the new escrow.
func (n *Node) Request(ctx context.Context, call types.Call, listingAddr common.Address, contentHash common.Hash) (*listing.Purchase, *types.Receipt, error) {
	var out *listing.Purchase
	receipt, err := n.ledger.Execute(ctx, call, MethodRequest, listingAddr, func(context.Context) error {
		p, err := n.listings.Request(call.Caller, listingAddr, contentHash, call.AttachedValue())
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, receipt, err
	}
	receipt.Result = out.Escrow.Hex()
	return out, receipt, nil
}

// SettlePurchase releases the escrow of purchase index to the seller.
func (n *Node) SettlePurchase(ctx context.Context, call types.Call, listingAddr common.Address, index uint64) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodSettlePurchase, listingAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		_, err := n.listings.SettlePurchase(call.Caller, listingAddr, index)
		return err
	})
}

// RefundPurchase returns the escrow of purchase index to the buyer.
func (n *Node) RefundPurchase(ctx context.Context, call types.Call, listingAddr common.Address, index uint64) (*types.Receipt, error) {
	return n.ledger.Execute(ctx, call, MethodRefundPurchase, listingAddr, func(context.Context) error {
		if err := nonPayable(call); err != nil {
			return err
		}
		_, err := n.listings.RefundPurchase(call.Caller, listingAddr, index)
		return err
	})
}
