package escrow

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"listingchain/core/types"
)

const (
	EventTypeEscrowSettled  = "escrow.settled"
	EventTypeEscrowRefunded = "escrow.refunded"
)

// Finalized is emitted when an escrow leaves the open state.
type Finalized struct {
	kind      string
	Escrow    common.Address
	Listing   common.Address
	Recipient common.Address
	Amount    *uint256.Int
	At        uint64
}

// NewSettledEvent returns the payload for a release of held value to the
// seller.
func NewSettledEvent(e *Escrow, at uint64) Finalized {
	return newFinalized(EventTypeEscrowSettled, e, e.Seller, at)
}

// NewRefundedEvent returns the payload for a return of held value to the
// buyer.
func NewRefundedEvent(e *Escrow, at uint64) Finalized {
	return newFinalized(EventTypeEscrowRefunded, e, e.Buyer, at)
}

func newFinalized(kind string, e *Escrow, recipient common.Address, at uint64) Finalized {
	return Finalized{
		kind:      kind,
		Escrow:    e.Address,
		Listing:   e.Listing,
		Recipient: recipient,
		Amount:    e.Clone().HeldValue,
		At:        at,
	}
}

func (f Finalized) EventType() string { return f.kind }

func (f Finalized) Event() *types.Event {
	amount := "0"
	if f.Amount != nil {
		amount = f.Amount.Dec()
	}
	return &types.Event{Type: f.kind, Attributes: map[string]string{
		"escrow":    f.Escrow.Hex(),
		"listing":   f.Listing.Hex(),
		"recipient": f.Recipient.Hex(),
		"amount":    amount,
		"at":        strconv.FormatUint(f.At, 10),
	}}
}
