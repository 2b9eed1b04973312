package types

import "time"

// BidResponse is the payload returned to a bidder after a successful
// placement, including any proxy resolution that followed it.
type BidResponse struct {
	Bid           Bid        `json:"bid"`
	Auction       Auction    `json:"auction"`
	WasExtended   bool       `json:"was_extended"`
	Extension     *Extension `json:"extension,omitempty"`
	OutbidUserIDs []string   `json:"outbid_user_ids,omitempty"`

	// Set when proxy resolution placed further bids after this one.
	FinalPrice    float64 `json:"final_price"`
	FinalBidderID string  `json:"final_bidder_id"`
}

// ProxyBidResponse is returned after a proxy bid setup.
type ProxyBidResponse struct {
	ProxyBid ProxyBid `json:"proxy_bid"`
	Auction  Auction  `json:"auction"`
}

// CloseResponse is the outcome of closing a single auction.
type CloseResponse struct {
	AuctionID  string    `json:"auction_id"`
	Status     string    `json:"status"`
	WinnerID   string    `json:"winner_id,omitempty"`
	FinalPrice float64   `json:"final_price,omitempty"`
	ReserveMet bool      `json:"reserve_met"`
	ClosedAt   time.Time `json:"closed_at"`
}
