package types

import (
	"time"

	"gorm.io/gorm"
)

// Auction lifecycle statuses. An auction only ever moves ACTIVE -> terminal;
// terminal auctions never re-open.
const (
	AuctionStatusDraft     = "DRAFT"
	AuctionStatusActive    = "ACTIVE"
	AuctionStatusEnded     = "ENDED"
	AuctionStatusSold      = "SOLD"
	AuctionStatusCancelled = "CANCELLED"
)

// Bid statuses. At most one bid per auction is WINNING at any committed
// instant; the closer promotes the final WINNING bid to WON.
const (
	BidStatusWinning = "WINNING"
	BidStatusOutbid  = "OUTBID"
	BidStatusWon     = "WON"
)

// IsTerminalStatus reports whether an auction status can no longer change.
func IsTerminalStatus(status string) bool {
	return status == AuctionStatusEnded ||
		status == AuctionStatusSold ||
		status == AuctionStatusCancelled
}

type Auction struct {
	gorm.Model    `json:"-"`
	AuctionID     string    `gorm:"uniqueIndex" json:"auction_id"`
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"` // DRAFT, ACTIVE, ENDED, SOLD, CANCELLED
	StartingPrice float64   `json:"starting_price"`
	CurrentPrice  float64   `json:"current_price"`
	ReservePrice  float64   `json:"reserve_price"` // 0 means no reserve
	MinIncrement  float64   `json:"min_increment"`
	Duration      time.Duration `json:"duration"`
	Deadline      time.Time `json:"deadline"`

	// Anti-sniping configuration
	AutoExtend      bool          `json:"auto_extend"`
	ExtendThreshold time.Duration `json:"extend_threshold"`
	ExtendBy        time.Duration `json:"extend_by"`
	ExtensionCount  int           `json:"extension_count"`
	MaxExtensions   int           `json:"max_extensions"`

	WinnerID   string    `json:"winner_id,omitempty"`
	FinalPrice float64   `json:"final_price,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Bid struct {
	gorm.Model `json:"-"`
	BidID      string    `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string    `gorm:"index" json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"` // WINNING, OUTBID, WON
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProxyBid is a standing maximum a bidder authorizes the engine to bid up to
// on their behalf. One row per (auction, bidder); a new setup replaces it.
type ProxyBid struct {
	gorm.Model `json:"-"`
	ProxyID    string    `gorm:"uniqueIndex" json:"proxy_id"`
	AuctionID  string    `gorm:"index;uniqueIndex:idx_proxy_auction_bidder" json:"auction_id"`
	BidderID   string    `gorm:"uniqueIndex:idx_proxy_auction_bidder" json:"bidder_id"`
	MaxAmount  float64   `json:"max_amount"`
	CurrentBid float64   `json:"current_bid"` // last amount placed on the bidder's behalf
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Extension is the append-only audit record for an anti-sniping deadline push.
type Extension struct {
	gorm.Model       `json:"-"`
	AuctionID        string    `gorm:"index" json:"auction_id"`
	PreviousDeadline time.Time `json:"previous_deadline"`
	NewDeadline      time.Time `json:"new_deadline"`
	ExtensionNumber  int       `json:"extension_number"`
	TriggeringBidID  string    `json:"triggering_bid_id"`
	CreatedAt        time.Time `json:"created_at"`
}
