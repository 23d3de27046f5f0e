package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/native/bank"
)

var (
	errNilState     = errors.New("escrow engine: state not configured")
	errEscrowExists = errors.New("escrow engine: escrow already exists")
)

type engineState interface {
	bank.State
	EscrowPut(*Escrow) error
	EscrowGet(addr common.Address) (*Escrow, bool, error)
}

// Engine owns escrow records. Every mutating entry point takes the address of
// the calling listing; an escrow can only be finalized by the listing that
// opened it.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() uint64
}

// NewEngine creates an escrow engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   wallClock,
	}
}

func wallClock() uint64 { return uint64(time.Now().Unix()) }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// Address returns the address an escrow opened by listing with nonce receives.
func Address(listing common.Address, nonce uint64) common.Address {
	return ethcrypto.CreateAddress(listing, nonce)
}

// Open creates a new escrow and moves the held value from the listing's
// balance into the escrow's. The listing is expected to have received the
// value as the attached payment of the buyer's call.
func (e *Engine) Open(req OpenRequest) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if req.Listing == (common.Address{}) {
		return nil, fmt.Errorf("%w: listing required", coreerrors.ErrInvalidArgument)
	}
	addr := Address(req.Listing, req.Nonce)
	if _, ok, err := e.state.EscrowGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, errEscrowExists
	}
	held := new(uint256.Int)
	if req.HeldValue != nil {
		held.Set(req.HeldValue)
	}
	if err := bank.Transfer(e.state, req.Listing, addr, held); err != nil {
		return nil, err
	}
	esc := &Escrow{
		Address:     addr,
		Listing:     req.Listing,
		Seller:      req.Seller,
		Buyer:       req.Buyer,
		HeldValue:   held,
		Version:     req.Version,
		ContentHash: req.ContentHash,
		CreatedAt:   e.now(),
		Status:      StatusOpen,
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// Settle releases the held value to the seller.
func (e *Engine) Settle(caller, addr common.Address) (*Escrow, error) {
	return e.finalize(caller, addr, StatusSettled)
}

// Refund returns the held value to the buyer.
func (e *Engine) Refund(caller, addr common.Address) (*Escrow, error) {
	return e.finalize(caller, addr, StatusRefunded)
}

func (e *Engine) finalize(caller, addr common.Address, target Status) (*Escrow, error) {
	esc, err := e.load(addr)
	if err != nil {
		return nil, err
	}
	if caller != esc.Listing {
		return nil, fmt.Errorf("%w: escrow %s is owned by listing %s", coreerrors.ErrUnauthorized, addr.Hex(), esc.Listing.Hex())
	}
	if esc.Status != StatusOpen {
		return nil, fmt.Errorf("%w: escrow %s is %s", coreerrors.ErrAlreadyFinalized, addr.Hex(), esc.Status)
	}
	recipient := esc.Seller
	if target == StatusRefunded {
		recipient = esc.Buyer
	}
	if err := bank.Transfer(e.state, esc.Address, recipient, esc.HeldValue); err != nil {
		return nil, err
	}
	esc.Status = target
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	if target == StatusSettled {
		e.emit(NewSettledEvent(esc, e.now()))
	} else {
		e.emit(NewRefundedEvent(esc, e.now()))
	}
	return esc.Clone(), nil
}

// Get returns the escrow stored at addr.
func (e *Engine) Get(addr common.Address) (*Escrow, error) {
	return e.load(addr)
}

func (e *Engine) load(addr common.Address) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: escrow %s", coreerrors.ErrNotFound, addr.Hex())
	}
	return SanitizeEscrow(esc)
}
