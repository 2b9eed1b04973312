package types

import "time"

// Domain events emitted by the engine after a successful commit. The engine
// pushes them onto a channel owned by the caller; it never holds a transport
// reference itself.

type EventType string

const (
	EventBidPlaced       EventType = "BID_PLACED"
	EventBidOutbid       EventType = "BID_OUTBID"
	EventAuctionExtended EventType = "AUCTION_EXTENDED"
	EventAuctionEnded    EventType = "AUCTION_ENDED"
)

// Event is implemented by every post-commit domain event.
type Event interface {
	EventType() EventType
}

type BidPlacedEvent struct {
	AuctionID    string  `json:"auction_id"`
	Bid          Bid     `json:"bid"`
	CurrentPrice float64 `json:"current_price"`
}

func (BidPlacedEvent) EventType() EventType { return EventBidPlaced }

type BidOutbidEvent struct {
	AuctionID  string  `json:"auction_id"`
	BidderID   string  `json:"bidder_id"`
	NewHighest float64 `json:"new_highest"`
}

func (BidOutbidEvent) EventType() EventType { return EventBidOutbid }

type AuctionExtendedEvent struct {
	AuctionID        string    `json:"auction_id"`
	PreviousDeadline time.Time `json:"previous_deadline"`
	NewDeadline      time.Time `json:"new_deadline"`
	ExtensionNumber  int       `json:"extension_number"`
}

func (AuctionExtendedEvent) EventType() EventType { return EventAuctionExtended }

type AuctionEndedEvent struct {
	AuctionID  string  `json:"auction_id"`
	WinnerID   string  `json:"winner_id,omitempty"`
	FinalPrice float64 `json:"final_price,omitempty"`
	ReserveMet bool    `json:"reserve_met"`
}

func (AuctionEndedEvent) EventType() EventType { return EventAuctionEnded }
