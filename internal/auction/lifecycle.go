package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// NewAuctionParams carries the listing-side fields an auction record is
// created with. Catalog details beyond the title live with the listing
// collaborator.
type NewAuctionParams struct {
	SellerID        string
	Title           string
	StartingPrice   float64
	ReservePrice    float64
	MinIncrement    float64
	Duration        time.Duration
	AutoExtend      bool
	ExtendThreshold time.Duration
	ExtendBy        time.Duration
	MaxExtensions   int
}

// CreateAuction records a new DRAFT auction. The deadline is fixed when the
// auction is started, not when it is created.
func (s *Service) CreateAuction(ctx context.Context, params NewAuctionParams) (*types.Auction, error) {
	if err := ValidateAmount(params.StartingPrice); err != nil {
		return nil, err
	}
	if params.MinIncrement < 0 {
		return nil, invalidInputError("Minimum increment must not be negative")
	}
	if params.Duration <= 0 {
		return nil, invalidInputError("Duration must be positive")
	}

	now := s.now()
	auction := &types.Auction{
		AuctionID:       "AUC_" + uuid.New().String(),
		SellerID:        params.SellerID,
		Title:           params.Title,
		Status:          types.AuctionStatusDraft,
		StartingPrice:   params.StartingPrice,
		CurrentPrice:    params.StartingPrice,
		ReservePrice:    params.ReservePrice,
		MinIncrement:    params.MinIncrement,
		Duration:        params.Duration,
		AutoExtend:      params.AutoExtend,
		ExtendThreshold: params.ExtendThreshold,
		ExtendBy:        params.ExtendBy,
		MaxExtensions:   params.MaxExtensions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.RunInTx(ctx, func(tx *gorm.DB) error {
		return s.db.CreateAuction(tx, auction)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "bidding").
		Str("auction_id", auction.AuctionID).
		Str("seller_id", auction.SellerID).
		Float64("starting_price", auction.StartingPrice).
		Msg("auction created")

	return auction, nil
}

// StartAuction activates a DRAFT auction and fixes its deadline at
// now + duration.
func (s *Service) StartAuction(ctx context.Context, auctionID string) (*types.Auction, error) {
	var started *types.Auction
	err := withRetry(ctx, s.retry, IsConflict, func() error {
		return s.db.RunInTx(ctx, func(tx *gorm.DB) error {
			auction, err := s.db.GetAuction(tx, auctionID)
			if err != nil {
				return err
			}
			if auction == nil {
				return notFoundError(auctionID)
			}
			if auction.Status != types.AuctionStatusDraft {
				return notActiveError(auction.Status)
			}

			now := s.now()
			auction.Status = types.AuctionStatusActive
			auction.Deadline = now.Add(auction.Duration)
			auction.UpdatedAt = now
			if err := s.db.UpdateAuction(tx, auction); err != nil {
				return err
			}

			started = auction
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("service", "bidding").
		Str("auction_id", started.AuctionID).
		Time("deadline", started.Deadline).
		Msg("auction started")

	return started, nil
}
