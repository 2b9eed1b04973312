package auction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestCreateAuction(t *testing.T) {
	svc, _ := newTestService(t, nil)

	created, err := svc.CreateAuction(context.Background(), defaultParams())
	assert.Nil(t, err)

	check.True(t, strings.HasPrefix(created.AuctionID, "AUC_"))
	check.Equal(t, types.AuctionStatusDraft, created.Status)
	check.Equal(t, 20.0, created.CurrentPrice)
	check.True(t, created.Deadline.IsZero())
}

func TestCreateAuction_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	params := defaultParams()
	params.StartingPrice = 0
	_, err := svc.CreateAuction(ctx, params)
	check.Equal(t, CodeInvalidInput, CodeOf(err))

	params = defaultParams()
	params.MinIncrement = -1
	_, err = svc.CreateAuction(ctx, params)
	check.Equal(t, CodeInvalidInput, CodeOf(err))

	params = defaultParams()
	params.Duration = 0
	_, err = svc.CreateAuction(ctx, params)
	check.Equal(t, CodeInvalidInput, CodeOf(err))
}

func TestStartAuction(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateAuction(ctx, defaultParams())
	assert.Nil(t, err)

	started, err := svc.StartAuction(ctx, created.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, types.AuctionStatusActive, started.Status)
	check.Equal(t, testClock.Add(time.Hour), started.Deadline)

	// Starting twice rejects: the auction is no longer DRAFT.
	_, err = svc.StartAuction(ctx, created.AuctionID)
	check.Equal(t, CodeNotActive, CodeOf(err))
}

func TestPlaceBid_HappyPath(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	result, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)

	check.True(t, strings.HasPrefix(result.Bid.BidID, "BID_"))
	check.Equal(t, types.BidStatusWinning, result.Bid.Status)
	check.Equal(t, 21.0, result.Auction.CurrentPrice)
	check.False(t, result.WasExtended)
	check.Equal(t, 0, len(result.OutbidUserIDs))
}

func TestPlaceBid_DemotesPriorWinner(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)

	result, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-b", 22)
	assert.Nil(t, err)
	check.Equal(t, []string{"bidder-a"}, result.OutbidUserIDs)

	// Exactly one WINNING bid after every commit.
	check.Equal(t, 1, countWinningBids(t, svc, auction.AuctionID))

	winning, err := svc.GetWinningBid(ctx, auction.AuctionID)
	assert.Nil(t, err)
	assert.NotNil(t, winning)
	check.Equal(t, "bidder-b", winning.BidderID)
	check.Equal(t, 22.0, winning.Amount)
}

func TestPlaceBid_MonotonicPrice(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	prev := auction.CurrentPrice
	for _, amount := range []float64{21, 22.5, 24, 30, 31} {
		result, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", amount)
		assert.Nil(t, err)
		check.True(t, result.Auction.CurrentPrice > prev)
		prev = result.Auction.CurrentPrice

		check.Equal(t, 1, countWinningBids(t, svc, auction.AuctionID))
	}
}

func TestPlaceBid_Rejections(t *testing.T) {
	svc, clock := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, "AUC_missing", "bidder-a", 21)
	check.Equal(t, CodeNotFound, CodeOf(err))

	_, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 20)
	check.Equal(t, CodeTooLow, CodeOf(err))

	_, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", -3)
	check.Equal(t, CodeInvalidInput, CodeOf(err))

	// Past the deadline every bid is EXPIRED.
	*clock = auction.Deadline.Add(time.Second)
	_, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 100)
	check.Equal(t, CodeExpired, CodeOf(err))

	// A rejected bid leaves no trace.
	check.Equal(t, 0, countWinningBids(t, svc, auction.AuctionID))
	reloaded, err := svc.GetAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, 20.0, reloaded.CurrentPrice)
}

func TestPlaceBid_OnDraftAuction(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateAuction(ctx, defaultParams())
	assert.Nil(t, err)

	_, err = svc.PlaceBid(ctx, created.AuctionID, "bidder-a", 21)
	check.Equal(t, CodeNotActive, CodeOf(err))
}

func TestPlaceBid_ExtendsNearDeadline(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	params := defaultParams()
	params.Duration = 30 * time.Second
	params.AutoExtend = true
	params.ExtendThreshold = 120 * time.Second
	params.ExtendBy = 60 * time.Second
	params.MaxExtensions = 2
	auction := newActiveAuction(t, svc, params)

	// 30s remaining is inside the 120s threshold.
	result, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)
	check.True(t, result.WasExtended)
	assert.NotNil(t, result.Extension)
	check.Equal(t, auction.Deadline, result.Extension.PreviousDeadline)
	check.Equal(t, auction.Deadline.Add(60*time.Second), result.Extension.NewDeadline)
	check.Equal(t, 1, result.Extension.ExtensionNumber)
	check.Equal(t, result.Bid.BidID, result.Extension.TriggeringBidID)
	check.Equal(t, result.Extension.NewDeadline, result.Auction.Deadline)
	check.Equal(t, 1, result.Auction.ExtensionCount)

	// Second extension consumes the budget.
	result, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-b", 22)
	assert.Nil(t, err)
	check.True(t, result.WasExtended)
	check.Equal(t, 2, result.Auction.ExtensionCount)

	// Budget exhausted: further bids no longer move the deadline.
	deadline := result.Auction.Deadline
	result, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 23)
	assert.Nil(t, err)
	check.False(t, result.WasExtended)
	check.Equal(t, deadline, result.Auction.Deadline)

	// Every extension left an audit row.
	var extensions []types.Extension
	err = svc.db.db.Where("auction_id = ?", auction.AuctionID).
		Order("extension_number ASC").Find(&extensions).Error
	assert.Nil(t, err)
	assert.Equal(t, 2, len(extensions))
	check.Equal(t, 1, extensions[0].ExtensionNumber)
	check.Equal(t, 2, extensions[1].ExtensionNumber)
}

func TestPlaceBid_NoExtensionFarFromDeadline(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	params := defaultParams()
	params.AutoExtend = true
	params.ExtendThreshold = 120 * time.Second
	params.ExtendBy = 60 * time.Second
	params.MaxExtensions = 2
	auction := newActiveAuction(t, svc, params)

	// One hour remaining is far outside the threshold.
	result, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)
	check.False(t, result.WasExtended)
	check.Equal(t, auction.Deadline, result.Auction.Deadline)
}

func TestPlaceBid_EmitsEventsAfterCommit(t *testing.T) {
	events := make(chan types.Event, 16)
	svc, _ := newTestService(t, events)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)

	placed := (<-events).(types.BidPlacedEvent)
	check.Equal(t, auction.AuctionID, placed.AuctionID)
	check.Equal(t, 21.0, placed.CurrentPrice)
	check.Equal(t, 0, len(events))

	_, err = svc.PlaceBid(ctx, auction.AuctionID, "bidder-b", 22)
	assert.Nil(t, err)

	placed = (<-events).(types.BidPlacedEvent)
	check.Equal(t, "bidder-b", placed.Bid.BidderID)

	outbid := (<-events).(types.BidOutbidEvent)
	check.Equal(t, "bidder-a", outbid.BidderID)
	check.Equal(t, 22.0, outbid.NewHighest)
}

func TestPlaceBid_NoEventsOnRejection(t *testing.T) {
	events := make(chan types.Event, 16)
	svc, _ := newTestService(t, events)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 5)
	check.Equal(t, CodeTooLow, CodeOf(err))
	check.Equal(t, 0, len(events))
}

func TestSetupProxyBid(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	resp, err := svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", 50)
	assert.Nil(t, err)
	check.True(t, strings.HasPrefix(resp.ProxyBid.ProxyID, "PRX_"))
	check.Equal(t, 50.0, resp.ProxyBid.MaxAmount)
	check.Equal(t, 0.0, resp.ProxyBid.CurrentBid)
	check.True(t, resp.ProxyBid.Active)
}

func TestSetupProxyBid_ReplacesPrior(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	first, err := svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", 50)
	assert.Nil(t, err)

	second, err := svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", 80)
	assert.Nil(t, err)

	// Same row, new maximum, progress reset.
	check.Equal(t, first.ProxyBid.ProxyID, second.ProxyBid.ProxyID)
	check.Equal(t, 80.0, second.ProxyBid.MaxAmount)
	check.Equal(t, 0.0, second.ProxyBid.CurrentBid)

	var n int64
	err = svc.db.db.Model(&types.ProxyBid{}).
		Where("auction_id = ? AND bidder_id = ?", auction.AuctionID, "bidder-a").
		Count(&n).Error
	assert.Nil(t, err)
	check.Equal(t, int64(1), n)
}

func TestSetupProxyBid_Rejections(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.SetupProxyBid(ctx, "AUC_missing", "bidder-a", 50)
	check.Equal(t, CodeNotFound, CodeOf(err))

	// Maximum must beat the current price.
	_, err = svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", 20)
	check.Equal(t, CodeProxyRejected, CodeOf(err))

	_, err = svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", -1)
	check.Equal(t, CodeInvalidInput, CodeOf(err))

	created, err := svc.CreateAuction(ctx, defaultParams())
	assert.Nil(t, err)
	_, err = svc.SetupProxyBid(ctx, created.AuctionID, "bidder-a", 50)
	check.Equal(t, CodeNotActive, CodeOf(err))
}
