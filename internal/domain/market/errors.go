package market

import "errors"

// Rejection kinds shared by every marketplace service. All of these are
// returned before any state mutation; ErrSettlementFailed is the one failure
// that can surface after the transaction id has been committed.
var (
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrNotApproved         = errors.New("contract is not in the approval set")
	ErrItemNotFound        = errors.New("item not found")
	ErrAuctionActive       = errors.New("an auction is active on the item")
	ErrAuctionStillOpen    = errors.New("auction has not ended yet")
	ErrAuctionExpired      = errors.New("auction has ended")
	ErrNoAuction           = errors.New("no auction on the item")
	ErrPriceTooLow         = errors.New("price does not exceed the current bid")
	ErrZeroPrice           = errors.New("price must not be zero")
	ErrDuplicateOffer      = errors.New("an identical offer already exists")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrNotForSale          = errors.New("item is not for sale")
	ErrInsufficientPayment = errors.New("attached payment does not cover the price")
	ErrTransactionPending  = errors.New("item is locked by an in-flight settlement")
	ErrSettlementFailed    = errors.New("settlement step did not complete")
)
