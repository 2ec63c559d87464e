package shared

import "errors"

// Domain-specific errors. Rejections are expected business outcomes that
// callers branch on; they are never wrapped into generic failures.
var (
	// Auction errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionNotActive     = errors.New("auction is not accepting bids")
	ErrAuctionNotStarted    = errors.New("auction has not started")
	ErrAuctionClosed        = errors.New("auction has already closed")
	ErrAuctionTerminal      = errors.New("auction is in a terminal state")
	ErrAuctionStillRunning  = errors.New("auction has not reached its end time")
	ErrAuctionQuarantined   = errors.New("auction is quarantined pending manual review")
	ErrInvalidStartTime     = errors.New("start time cannot be in the past")
	ErrInvalidEndTime       = errors.New("end time must be after start time")
	ErrInvalidStartingPrice = errors.New("starting price must be greater than 0")

	// Bid admission errors
	ErrSelfBid           = errors.New("sellers cannot bid on their own auction")
	ErrBidTooLow         = errors.New("bid must exceed the current bid by at least the minimum increment")
	ErrBidBelowStarting  = errors.New("bid must meet the starting price")
	ErrBiddingNotEnabled = errors.New("bidding not enabled: no valid deposit hold")
	ErrFraudCheckFailed  = errors.New("bid rejected by fraud check")
	ErrBidNotFound       = errors.New("bid not found")
	ErrNoBidsFound       = errors.New("no bids found")
	ErrLockTimeout       = errors.New("timed out waiting for auction lock")

	// Deposit errors
	ErrDepositNotFound = errors.New("deposit not found")
	ErrDepositTerminal = errors.New("deposit already released or captured")
	ErrHoldDeclined    = errors.New("payment method declined the hold")

	// Payment errors
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentExists      = errors.New("payment record already exists")
	ErrPaymentNotPaid     = errors.New("payment has not been confirmed")
	ErrChargeFailed       = errors.New("buyer fee charge failed")
	ErrPayoutFailed       = errors.New("seller payout transfer failed")
	ErrNoWinner           = errors.New("auction ended without a winner")
	ErrInvariantViolation = errors.New("invariant violation detected")

	// Database errors
	ErrDatabaseQuery       = errors.New("database query failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")
	ErrVersionConflict     = errors.New("concurrent modification detected")
)

// Reason codes reported alongside rejections so API consumers get a stable,
// actionable identifier regardless of error message wording.
const (
	ReasonAuctionNotFound   = "auction_not_found"
	ReasonAuctionNotActive  = "auction_not_active"
	ReasonAuctionClosed     = "auction_closed"
	ReasonSelfBid           = "self_bid"
	ReasonBiddingNotEnabled = "bidding_not_enabled"
	ReasonBidTooLow         = "bid_too_low"
	ReasonBidBelowStarting  = "bid_below_starting"
	ReasonFraudCheckFailed  = "fraud_check_failed"
	ReasonLockTimeout       = "try_again"
)

// ReasonFor maps a rejection error to its reason code; non-rejections map to
// an empty string.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonAuctionNotFound
	case errors.Is(err, ErrAuctionNotActive), errors.Is(err, ErrAuctionNotStarted):
		return ReasonAuctionNotActive
	case errors.Is(err, ErrAuctionClosed):
		return ReasonAuctionClosed
	case errors.Is(err, ErrSelfBid):
		return ReasonSelfBid
	case errors.Is(err, ErrBiddingNotEnabled):
		return ReasonBiddingNotEnabled
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow
	case errors.Is(err, ErrBidBelowStarting):
		return ReasonBidBelowStarting
	case errors.Is(err, ErrFraudCheckFailed):
		return ReasonFraudCheckFailed
	case errors.Is(err, ErrLockTimeout):
		return ReasonLockTimeout
	default:
		return ""
	}
}

// IsRejection reports whether err is an expected business-rule rejection as
// opposed to a transient or fatal failure.
func IsRejection(err error) bool {
	return ReasonFor(err) != ""
}
