package product

import "errors"

// Lifecycle error taxonomy. Authorization and validation failures are
// rejected before any state change; capacity and payment failures are
// recoverable by the caller adjusting parameters; temporal failures resolve
// as the ledger clock advances.
var (
	// ErrZeroAddress rejects the zero address as a policyholder.
	ErrZeroAddress = errors.New("zero address")
	// ErrZeroCover rejects policies insuring nothing.
	ErrZeroCover = errors.New("zero cover value")
	// ErrInvalidPeriod rejects durations outside [minPeriod, maxPeriod].
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrPaused gates all fund-moving entry points while paused.
	ErrPaused = errors.New("cannot buy when paused")
	// ErrCannotAcceptRisk rejects covers beyond the strategy's ceilings.
	ErrCannotAcceptRisk = errors.New("cannot accept that risk")
	// ErrInsufficientPayment rejects underpayment; overpayment is refunded.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrNotPolicyholder rejects lifecycle calls from non-owners.
	ErrNotPolicyholder = errors.New("!policyholder")
	// ErrWrongProduct rejects claims against policies of another product.
	ErrWrongProduct = errors.New("wrong product")
	// ErrPolicyExpired rejects lifecycle calls on lapsed policies.
	ErrPolicyExpired = errors.New("policy is expired")
	// ErrExcessiveAmountOut rejects claims above the policy's cover amount.
	ErrExcessiveAmountOut = errors.New("excessive amount out")
	// ErrZeroPositionValue rejects positions the appraiser values at zero.
	ErrZeroPositionValue = errors.New("zero position value")
)
