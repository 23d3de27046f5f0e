package listing

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/native/escrow"
)

var (
	errNilState       = errors.New("listing engine: state not configured")
	errNilEscrow      = errors.New("listing engine: escrow engine not configured")
	errAddressInUse   = errors.New("listing engine: listing address already in use")
	errCorruptListing = errors.New("listing engine: purchase entry missing")
)

type engineState interface {
	FixedListingGet(addr common.Address) (*FixedListing, bool, error)
	FixedListingPut(*FixedListing) error
	VersionedListingGet(addr common.Address) (*VersionedListing, bool, error)
	VersionedListingPut(*VersionedListing) error
	ListingPurchaseGet(listing common.Address, index uint64) (*Purchase, bool, error)
	ListingPurchasePut(listing common.Address, index uint64, p *Purchase) error
	ListingVersionGet(listing common.Address, index uint64) (*Version, bool, error)
	ListingVersionPut(listing common.Address, index uint64, v *Version) error
}

type escrowEngine interface {
	Open(escrow.OpenRequest) (*escrow.Escrow, error)
	Settle(caller, addr common.Address) (*escrow.Escrow, error)
	Refund(caller, addr common.Address) (*escrow.Escrow, error)
}

// Engine implements both listing variants. Listings are created by a registry
// and identified by the address derived from that registry and its nonce.
type Engine struct {
	state    engineState
	escrows  escrowEngine
	emitter  events.Emitter
	nowFn    func() uint64
	duration uint64
}

// NewEngine creates a listing engine with a no-op emitter and the default
// listing duration.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    wallClock,
		duration: DefaultDuration,
	}
}

func wallClock() uint64 { return uint64(time.Now().Unix()) }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEscrowEngine configures the engine that owns the escrow records.
func (e *Engine) SetEscrowEngine(esc escrowEngine) { e.escrows = esc }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = wallClock
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

// SetListingDuration changes the lifetime given to fixed listings created
// afterwards. Zero restores the default.
func (e *Engine) SetListingDuration(seconds uint64) {
	if seconds == 0 {
		seconds = DefaultDuration
	}
	e.duration = seconds
}

// ListingDuration returns the lifetime given to new fixed listings.
func (e *Engine) ListingDuration() uint64 { return e.duration }

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return wallClock()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.escrows == nil {
		return errNilEscrow
	}
	return nil
}

// Address returns the address of the listing a registry creates with nonce.
func Address(registry common.Address, nonce uint64) common.Address {
	return ethcrypto.CreateAddress(registry, nonce)
}

// KindOf reports which variant is stored at addr.
func (e *Engine) KindOf(addr common.Address) (Kind, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if _, ok, err := e.state.FixedListingGet(addr); err != nil {
		return 0, err
	} else if ok {
		return KindFixed, nil
	}
	if _, ok, err := e.state.VersionedListingGet(addr); err != nil {
		return 0, err
	} else if ok {
		return KindVersioned, nil
	}
	return 0, fmt.Errorf("%w: listing %s", coreerrors.ErrNotFound, addr.Hex())
}

func (e *Engine) ensureUnused(addr common.Address) error {
	_, err := e.KindOf(addr)
	switch {
	case err == nil:
		return errAddressInUse
	case errors.Is(err, coreerrors.ErrNotFound):
		return nil
	default:
		return err
	}
}

// PurchasesLength returns the number of escrows opened by the listing.
func (e *Engine) PurchasesLength(addr common.Address) (uint64, error) {
	kind, err := e.KindOf(addr)
	if err != nil {
		return 0, err
	}
	if kind == KindFixed {
		l, err := e.loadFixed(addr)
		if err != nil {
			return 0, err
		}
		return l.Purchases, nil
	}
	l, err := e.loadVersioned(addr)
	if err != nil {
		return 0, err
	}
	return l.Requests, nil
}

// Purchase returns entry index of the listing's escrow sequence.
func (e *Engine) Purchase(addr common.Address, index uint64) (*Purchase, error) {
	length, err := e.PurchasesLength(addr)
	if err != nil {
		return nil, err
	}
	if index >= length {
		return nil, fmt.Errorf("%w: purchase %d of %d", coreerrors.ErrIndexOutOfRange, index, length)
	}
	p, ok, err := e.state.ListingPurchaseGet(addr, index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errCorruptListing
	}
	return p.Clone(), nil
}

func (e *Engine) appendPurchase(addr common.Address, index uint64, p *Purchase) error {
	return e.state.ListingPurchasePut(addr, index, p)
}

// SettlePurchase releases the escrow of purchase index to the seller. Only the
// buyer who opened it may confirm.
func (e *Engine) SettlePurchase(caller, addr common.Address, index uint64) (*escrow.Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.Purchase(addr, index)
	if err != nil {
		return nil, err
	}
	if caller != p.Buyer {
		return nil, fmt.Errorf("%w: only the buyer may settle purchase %d", coreerrors.ErrUnauthorized, index)
	}
	return e.escrows.Settle(addr, p.Escrow)
}

// RefundPurchase returns the escrow of purchase index to its buyer. Only the
// seller may refund.
func (e *Engine) RefundPurchase(caller, addr common.Address, index uint64) (*escrow.Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	seller, err := e.sellerOf(addr)
	if err != nil {
		return nil, err
	}
	if caller != seller {
		return nil, fmt.Errorf("%w: only the seller may refund", coreerrors.ErrUnauthorized)
	}
	p, err := e.Purchase(addr, index)
	if err != nil {
		return nil, err
	}
	return e.escrows.Refund(addr, p.Escrow)
}

func (e *Engine) sellerOf(addr common.Address) (common.Address, error) {
	kind, err := e.KindOf(addr)
	if err != nil {
		return common.Address{}, err
	}
	if kind == KindFixed {
		l, err := e.loadFixed(addr)
		if err != nil {
			return common.Address{}, err
		}
		return l.Seller, nil
	}
	l, err := e.loadVersioned(addr)
	if err != nil {
		return common.Address{}, err
	}
	return l.Seller, nil
}
