package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Call carries the authenticated caller and the value attached to a single
// state-changing invocation.
type Call struct {
	Caller common.Address
	Value  *uint256.Int
}

// NewCall builds a call with no attached value.
func NewCall(caller common.Address) Call {
	return Call{Caller: caller, Value: new(uint256.Int)}
}

// WithValue returns a copy of the call carrying the supplied value.
func (c Call) WithValue(v *uint256.Int) Call {
	if v == nil {
		c.Value = new(uint256.Int)
		return c
	}
	c.Value = new(uint256.Int).Set(v)
	return c
}

// AttachedValue returns the attached value, never nil.
func (c Call) AttachedValue() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return c.Value
}

// Outcome labels recorded on receipts.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Receipt records the result of one executed call.
type Receipt struct {
	ID        string         `json:"id"`
	Method    string         `json:"method"`
	Caller    common.Address `json:"caller"`
	Target    common.Address `json:"target"`
	Value     string         `json:"value"`
	Timestamp uint64         `json:"timestamp"`
	Outcome   string         `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
	Result    string         `json:"result,omitempty"`
	Events    []Event        `json:"events,omitempty"`
}

// Succeeded reports whether the call committed.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}
