package market

import "errors"

var (
	// ErrNotFound marks lookups for asset IDs with no listing record.
	ErrNotFound = errors.New("market: asset not found")
	// ErrAlreadySold is returned when purchasing an asset that is not
	// currently listed for sale.
	ErrAlreadySold = errors.New("market: asset not listed for sale")
	// ErrSelfPurchase is returned when the buyer already owns the asset.
	ErrSelfPurchase = errors.New("market: buyer already owns asset")
	// ErrInsufficientPayment is returned when the payment does not cover
	// the asking price.
	ErrInsufficientPayment = errors.New("market: payment below asking price")
	// ErrInsufficientFunds is returned when the buyer's balance cannot
	// cover the payment.
	ErrInsufficientFunds = errors.New("market: insufficient balance")
	// ErrInvalidPrice marks non-positive listing prices.
	ErrInvalidPrice = errors.New("market: price must be positive")
	// ErrInvalidRoyalty marks royalty percentages outside 0-100.
	ErrInvalidRoyalty = errors.New("market: royalty percent out of range")
	// ErrInvalidCommission marks commission percentages outside 0-100.
	ErrInvalidCommission = errors.New("market: commission percent out of range")
	// ErrDuplicateMetadata is returned when a metadata pointer is reused.
	ErrDuplicateMetadata = errors.New("market: metadata pointer already in use")
	// ErrArityMismatch is returned when bulk input slices differ in length.
	ErrArityMismatch = errors.New("market: bulk input lengths differ")
	// ErrUnauthorized is returned when the caller lacks the required
	// capability for the operation.
	ErrUnauthorized = errors.New("market: caller not authorized")
	// ErrReentrancy is returned when a guarded operation is entered while
	// another is still in progress.
	ErrReentrancy = errors.New("market: reentrant call rejected")

	errNilState    = errors.New("market: state not configured")
	errNilRegistry = errors.New("market: ownership registry not configured")
	errNilEngine   = errors.New("market: engine not configured")
)
