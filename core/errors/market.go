package errors

import stderrors "errors"

// Marketplace rejection taxonomy. Every rejection leaves state unchanged; the
// core never retries on the caller's behalf.
var (
	ErrUnauthorized          = stderrors.New("unauthorized")
	ErrInsufficientInventory = stderrors.New("insufficient inventory")
	ErrExpired               = stderrors.New("listing expired")
	ErrVersionConflict       = stderrors.New("version conflict")
	ErrAlreadyFinalized      = stderrors.New("escrow already finalized")
	ErrIndexOutOfRange       = stderrors.New("index out of range")
	ErrStorageRejected       = stderrors.New("storage rejected write")

	ErrInvalidArgument   = stderrors.New("invalid argument")
	ErrNotFound          = stderrors.New("not found")
	ErrInsufficientFunds = stderrors.New("insufficient funds")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrInsufficientInventory, "insufficient_inventory"},
	{ErrExpired, "expired"},
	{ErrVersionConflict, "version_conflict"},
	{ErrAlreadyFinalized, "already_finalized"},
	{ErrIndexOutOfRange, "index_out_of_range"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrNotFound, "not_found"},
	{ErrInsufficientFunds, "insufficient_funds"},
}

// Reason returns a stable, metric-friendly label for err. Errors outside the
// taxonomy map to "internal".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	// StorageRejected wraps Unauthorized, so it is matched first.
	if stderrors.Is(err, ErrStorageRejected) {
		return "storage_rejected"
	}
	for _, r := range reasons {
		if stderrors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
