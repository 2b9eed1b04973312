package auction

import (
	"context"

	"github.com/ksred/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ResolveProxyBids runs the ascending auto-outbid war that follows a bid:
// each round the single active proxy with the greatest maximum (excluding the
// current leader's own) responds with leadingAmount + minIncrement, placed
// through the ordinary orchestrator. A top proxy that cannot meet the
// increment ends resolution; it does not fall through to the runner-up.
//
// Returns the last successful placement, or nil when no proxy responded.
// The loop terminates because the leading amount strictly increases each
// round, so each proxy can lead at most once per price level.
func (s *Service) ResolveProxyBids(ctx context.Context, auctionID string, leadingAmount float64, leadingBidderID string) (*PlacementResult, error) {
	logger := log.With().
		Str("service", "proxy_resolver").
		Str("auction_id", auctionID).
		Logger()

	var last *PlacementResult
	for {
		result, err := s.resolveOnce(ctx, auctionID, leadingAmount, leadingBidderID)
		if err != nil {
			// A round can lose a race with a concurrent human bid; the state
			// it would have produced is superseded, so stop with what
			// committed so far.
			logger.Debug().Err(err).Msg("proxy round stopped")
			return last, nil
		}
		if result == nil {
			break
		}

		last = result
		leadingAmount = result.Bid.Amount
		leadingBidderID = result.Bid.BidderID

		logger.Info().
			Str("bidder_id", result.Bid.BidderID).
			Float64("amount", result.Bid.Amount).
			Msg("proxy bid placed")
	}

	return last, nil
}

// resolveOnce runs a single proxy round: pick the strongest eligible proxy,
// place its counter-bid, and record the amount it bid up to. Returns nil when
// no proxy can or will respond.
func (s *Service) resolveOnce(ctx context.Context, auctionID string, leadingAmount float64, leadingBidderID string) (*PlacementResult, error) {
	var (
		selected  *types.ProxyBid
		candidate float64
	)

	err := s.db.RunInTx(ctx, func(tx *gorm.DB) error {
		auction, err := s.db.GetAuction(tx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return notFoundError(auctionID)
		}

		proxy, err := s.db.TopProxyBid(tx, auctionID, leadingBidderID)
		if err != nil {
			return err
		}
		if proxy == nil {
			return nil
		}

		candidate = leadingAmount + auction.MinIncrement
		if candidate > proxy.MaxAmount {
			// The strongest proxy cannot meet the increment; this round is
			// over for everyone.
			return nil
		}

		selected = proxy
		return nil
	})
	if err != nil || selected == nil {
		return nil, err
	}

	result, err := s.PlaceBid(ctx, auctionID, selected.BidderID, candidate)
	if err != nil {
		return nil, err
	}

	err = withRetry(ctx, s.retry, IsConflict, func() error {
		return s.db.RunInTx(ctx, func(tx *gorm.DB) error {
			proxy, err := s.db.GetProxyBid(tx, auctionID, selected.BidderID)
			if err != nil || proxy == nil {
				return err
			}
			proxy.CurrentBid = candidate
			proxy.UpdatedAt = s.now()
			return s.db.UpdateProxyBid(tx, proxy)
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// PlaceBidAndResolve places a human bid and then lets standing proxies
// respond. The response carries the human placement plus the final price and
// leader after resolution settled.
func (s *Service) PlaceBidAndResolve(ctx context.Context, auctionID, bidderID string, amount float64) (*types.BidResponse, error) {
	result, err := s.PlaceBid(ctx, auctionID, bidderID, amount)
	if err != nil {
		return nil, err
	}

	resp := &types.BidResponse{
		Bid:           *result.Bid,
		Auction:       *result.Auction,
		WasExtended:   result.WasExtended,
		Extension:     result.Extension,
		OutbidUserIDs: result.OutbidUserIDs,
		FinalPrice:    result.Bid.Amount,
		FinalBidderID: result.Bid.BidderID,
	}

	final, err := s.ResolveProxyBids(ctx, auctionID, result.Bid.Amount, result.Bid.BidderID)
	if err != nil {
		return nil, err
	}
	if final != nil {
		resp.Auction = *final.Auction
		resp.FinalPrice = final.Bid.Amount
		resp.FinalBidderID = final.Bid.BidderID
	}

	return resp, nil
}

// SetupProxyBidAndResolve registers a proxy bid and immediately runs a
// resolution round against the current leader, so a freshly armed proxy
// takes the lead it is entitled to.
func (s *Service) SetupProxyBidAndResolve(ctx context.Context, auctionID, bidderID string, maxAmount float64) (*types.ProxyBidResponse, error) {
	resp, err := s.SetupProxyBid(ctx, auctionID, bidderID, maxAmount)
	if err != nil {
		return nil, err
	}

	leadingBidderID := ""
	if winning, err := s.GetWinningBid(ctx, auctionID); err != nil {
		return nil, err
	} else if winning != nil {
		leadingBidderID = winning.BidderID
	}

	final, err := s.ResolveProxyBids(ctx, auctionID, resp.Auction.CurrentPrice, leadingBidderID)
	if err != nil {
		return nil, err
	}
	if final != nil {
		resp.Auction = *final.Auction
		if proxy, err := s.db.GetProxyBid(s.db.db.WithContext(ctx), auctionID, bidderID); err == nil && proxy != nil {
			resp.ProxyBid = *proxy
		}
	}

	return resp, nil
}
