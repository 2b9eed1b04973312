package auction

import (
	"context"

	"github.com/ksred/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CloseAuction transitions an ACTIVE auction to its terminal state and
// selects the winner: SOLD when a WINNING bid meets the reserve (or none is
// set), ENDED otherwise. Closing an already-terminal auction is a no-op and
// emits nothing, so the closing sweep and a racing manual close cannot
// double-fire.
func (s *Service) CloseAuction(ctx context.Context, auctionID string) (*types.CloseResponse, error) {
	logger := log.With().
		Str("service", "closer").
		Str("auction_id", auctionID).
		Logger()

	var (
		resp    *types.CloseResponse
		changed bool
	)

	err := withRetry(ctx, s.retry, IsConflict, func() error {
		changed = false
		return s.db.RunInTx(ctx, func(tx *gorm.DB) error {
			auction, err := s.db.GetAuction(tx, auctionID)
			if err != nil {
				return err
			}
			if auction == nil {
				return notFoundError(auctionID)
			}

			now := s.now()
			if types.IsTerminalStatus(auction.Status) {
				// Lost the race to another closer, or a repeat call.
				resp = &types.CloseResponse{
					AuctionID:  auction.AuctionID,
					Status:     auction.Status,
					WinnerID:   auction.WinnerID,
					FinalPrice: auction.FinalPrice,
					ReserveMet: auction.Status == types.AuctionStatusSold,
					ClosedAt:   auction.UpdatedAt,
				}
				return nil
			}
			if auction.Status != types.AuctionStatusActive {
				return notActiveError(auction.Status)
			}

			winning, err := s.db.GetWinningBid(tx, auctionID)
			if err != nil {
				return err
			}

			reserveMet := false
			switch {
			case winning == nil:
				auction.Status = types.AuctionStatusEnded
			case auction.ReservePrice > 0 && winning.Amount < auction.ReservePrice:
				// Reserve not met: no sale, winner left unset.
				auction.Status = types.AuctionStatusEnded
			default:
				reserveMet = true
				auction.Status = types.AuctionStatusSold
				auction.WinnerID = winning.BidderID
				auction.FinalPrice = winning.Amount
				winning.Status = types.BidStatusWon
				winning.UpdatedAt = now
				if err := s.db.UpdateBid(tx, winning); err != nil {
					return err
				}
			}

			auction.UpdatedAt = now
			if err := s.db.UpdateAuction(tx, auction); err != nil {
				return err
			}

			// Proxies go inert but stay on record for audit.
			if err := s.db.DeactivateProxyBids(tx, auctionID); err != nil {
				return err
			}

			changed = true
			resp = &types.CloseResponse{
				AuctionID:  auction.AuctionID,
				Status:     auction.Status,
				WinnerID:   auction.WinnerID,
				FinalPrice: auction.FinalPrice,
				ReserveMet: reserveMet,
				ClosedAt:   now,
			}
			return nil
		})
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to close auction")
		return nil, err
	}

	if changed {
		logger.Info().
			Str("status", resp.Status).
			Str("winner_id", resp.WinnerID).
			Float64("final_price", resp.FinalPrice).
			Bool("reserve_met", resp.ReserveMet).
			Msg("auction closed")

		s.emit(types.AuctionEndedEvent{
			AuctionID:  resp.AuctionID,
			WinnerID:   resp.WinnerID,
			FinalPrice: resp.FinalPrice,
			ReserveMet: resp.ReserveMet,
		})
	}

	return resp, nil
}

// SweepExpiredAuctions closes every ACTIVE auction whose deadline has
// passed. Each auction's close attempt is isolated: a failure is logged and
// the sweep moves on. Contains no timer; the Sweeper drives it on an
// interval.
func (s *Service) SweepExpiredAuctions(ctx context.Context) ([]types.CloseResponse, error) {
	logger := log.With().Str("service", "closer").Logger()

	expired, err := s.db.ListExpiredActiveAuctions(ctx, s.now())
	if err != nil {
		return nil, err
	}

	if len(expired) > 0 {
		logger.Info().Int("expired_count", len(expired)).Msg("sweeping expired auctions")
	}

	closed := make([]types.CloseResponse, 0, len(expired))
	for _, auction := range expired {
		resp, err := s.CloseAuction(ctx, auction.AuctionID)
		if err != nil {
			logger.Error().
				Err(err).
				Str("auction_id", auction.AuctionID).
				Msg("failed to close expired auction")
			continue
		}
		closed = append(closed, *resp)
	}

	return closed, nil
}
