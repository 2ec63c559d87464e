package app

import (
	"paddock-auction-engine/internal/ports/inbound"
)

// Engine bundles the four engine-facing services for embedding callers. The
// engine itself carries no transport; whatever hosts it (an API layer, a
// job runner, tests) talks to these interfaces.
type Engine struct {
	Auctions   inbound.AuctionService
	Bids       inbound.BidService
	Settlement inbound.SettlementService
	Payouts    inbound.PayoutService
}

var (
	_ inbound.AuctionService    = (*AuctionStateMachine)(nil)
	_ inbound.BidService        = (*BidAdmission)(nil)
	_ inbound.SettlementService = (*SettlementService)(nil)
	_ inbound.PayoutService     = (*SellerPayoutService)(nil)
)
