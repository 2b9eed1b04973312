package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service orchestrates bid placement, proxy bidding and auction closing.
// Every mutation runs as one serializable transaction against the store;
// domain events are emitted only after a successful commit.
type Service struct {
	db     *Database
	events chan<- types.Event
	retry  RetryPolicy
	now    func() time.Time
}

// NewService creates the bidding engine service. events may be nil, in which
// case no events are emitted; the channel is owned by the caller and the
// engine never blocks on it.
func NewService(gormDB *gorm.DB, events chan<- types.Event) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		events: events,
		retry:  DefaultRetryPolicy,
		now:    time.Now,
	}
}

// PlacementResult reports the committed outcome of a single bid placement.
type PlacementResult struct {
	Bid           *types.Bid
	Auction       *types.Auction
	WasExtended   bool
	Extension     *types.Extension
	OutbidUserIDs []string
}

// PlaceBid validates and records a bid as one serializable transaction:
// legality check, possible anti-sniping extension, insertion of the new
// WINNING bid, demotion of the prior one, and the price/deadline update on
// the auction. Store conflicts are retried with backoff; validation
// rejections abort immediately with no partial writes.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*PlacementResult, error) {
	logger := log.With().
		Str("service", "bidding").
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Float64("amount", amount).
		Logger()

	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	var result *PlacementResult
	err := withRetry(ctx, s.retry, IsConflict, func() error {
		var err error
		result, err = s.placeBidTx(ctx, auctionID, bidderID, amount)
		return err
	})
	if err != nil {
		logger.Debug().Err(err).Msg("bid rejected")
		return nil, err
	}

	logger.Info().
		Str("bid_id", result.Bid.BidID).
		Float64("current_price", result.Auction.CurrentPrice).
		Bool("was_extended", result.WasExtended).
		Msg("bid placed")

	s.emit(types.BidPlacedEvent{
		AuctionID:    auctionID,
		Bid:          *result.Bid,
		CurrentPrice: result.Auction.CurrentPrice,
	})
	for _, outbid := range result.OutbidUserIDs {
		s.emit(types.BidOutbidEvent{
			AuctionID:  auctionID,
			BidderID:   outbid,
			NewHighest: result.Auction.CurrentPrice,
		})
	}
	if result.WasExtended {
		s.emit(types.AuctionExtendedEvent{
			AuctionID:        auctionID,
			PreviousDeadline: result.Extension.PreviousDeadline,
			NewDeadline:      result.Extension.NewDeadline,
			ExtensionNumber:  result.Extension.ExtensionNumber,
		})
	}

	return result, nil
}

func (s *Service) placeBidTx(ctx context.Context, auctionID, bidderID string, amount float64) (*PlacementResult, error) {
	var result *PlacementResult

	err := s.db.RunInTx(ctx, func(tx *gorm.DB) error {
		auction, err := s.db.GetAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return notFoundError(auctionID)
		}

		// One now for both legality and extension, so the checks cannot
		// race each other inside the transaction.
		now := s.now()
		if err := ValidateBid(auction, amount, now); err != nil {
			return err
		}

		winning, err := s.db.GetWinningBid(tx, auctionID)
		if err != nil {
			return err
		}

		bid := &types.Bid{
			BidID:     "BID_" + uuid.New().String(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			Status:    types.BidStatusWinning,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var extension *types.Extension
		if decision := ShouldExtend(auction, now); decision != nil {
			extension = &types.Extension{
				AuctionID:        auctionID,
				PreviousDeadline: auction.Deadline,
				NewDeadline:      decision.NewDeadline,
				ExtensionNumber:  decision.ExtensionNumber,
				TriggeringBidID:  bid.BidID,
				CreatedAt:        now,
			}
			if err := s.db.CreateExtension(tx, extension); err != nil {
				return err
			}
			auction.Deadline = decision.NewDeadline
			auction.ExtensionCount = decision.ExtensionNumber
		}

		if err := s.db.CreateBid(tx, bid); err != nil {
			return err
		}

		var outbid []string
		if winning != nil {
			winning.Status = types.BidStatusOutbid
			winning.UpdatedAt = now
			if err := s.db.UpdateBid(tx, winning); err != nil {
				return err
			}
			outbid = append(outbid, winning.BidderID)
		}

		auction.CurrentPrice = amount
		auction.UpdatedAt = now
		if err := s.db.UpdateAuction(tx, auction); err != nil {
			return err
		}

		result = &PlacementResult{
			Bid:           bid,
			Auction:       auction,
			WasExtended:   extension != nil,
			Extension:     extension,
			OutbidUserIDs: outbid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetupProxyBid registers (or replaces) a bidder's standing maximum on an
// auction. The maximum must exceed the auction's current price.
func (s *Service) SetupProxyBid(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*types.ProxyBidResponse, error) {
	logger := log.With().
		Str("service", "bidding").
		Str("auction_id", auctionID).
		Str("bidder_id", bidderID).
		Float64("max_amount", maxAmount).
		Logger()

	if err := ValidateAmount(maxAmount); err != nil {
		return nil, err
	}

	var resp *types.ProxyBidResponse
	err := withRetry(ctx, s.retry, IsConflict, func() error {
		return s.db.RunInTx(ctx, func(tx *gorm.DB) error {
			auction, err := s.db.GetAuction(tx, auctionID)
			if err != nil {
				return err
			}
			if auction == nil {
				return notFoundError(auctionID)
			}
			if auction.Status != types.AuctionStatusActive {
				return notActiveError(auction.Status)
			}
			if maxAmount <= auction.CurrentPrice {
				return proxyRejectedError(auction.CurrentPrice)
			}

			now := s.now()
			proxy, err := s.db.GetProxyBid(tx, auctionID, bidderID)
			if err != nil {
				return err
			}
			if proxy == nil {
				proxy = &types.ProxyBid{
					ProxyID:   "PRX_" + uuid.New().String(),
					AuctionID: auctionID,
					BidderID:  bidderID,
					MaxAmount: maxAmount,
					Active:    true,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := s.db.CreateProxyBid(tx, proxy); err != nil {
					return err
				}
			} else {
				// Replacement: the new maximum supersedes the old one; what
				// the old proxy already caused stays in the bids table.
				proxy.MaxAmount = maxAmount
				proxy.CurrentBid = 0
				proxy.Active = true
				proxy.UpdatedAt = now
				if err := s.db.UpdateProxyBid(tx, proxy); err != nil {
					return err
				}
			}

			resp = &types.ProxyBidResponse{ProxyBid: *proxy, Auction: *auction}
			return nil
		})
	})
	if err != nil {
		logger.Debug().Err(err).Msg("proxy bid setup rejected")
		return nil, err
	}

	logger.Info().Str("proxy_id", resp.ProxyBid.ProxyID).Msg("proxy bid set up")
	return resp, nil
}

// GetAuction returns an auction by public ID, nil when absent.
func (s *Service) GetAuction(ctx context.Context, auctionID string) (*types.Auction, error) {
	return s.db.GetAuction(s.db.db.WithContext(ctx), auctionID)
}

// GetWinningBid returns the current WINNING bid, nil when the auction has no
// bids.
func (s *Service) GetWinningBid(ctx context.Context, auctionID string) (*types.Bid, error) {
	return s.db.GetWinningBid(s.db.db.WithContext(ctx), auctionID)
}

func (s *Service) emit(event types.Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		log.Warn().
			Str("service", "bidding").
			Str("event_type", string(event.EventType())).
			Msg("event channel full, dropping event")
	}
}
