package auction

import (
	"context"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestCloseAuction_ReserveMet(t *testing.T) {
	svc, clock := newTestService(t, nil)
	ctx := context.Background()

	params := defaultParams()
	params.ReservePrice = 10
	auction := newActiveAuction(t, svc, params)

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 25)
	assert.Nil(t, err)

	*clock = auction.Deadline.Add(time.Second)
	resp, err := svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)

	check.Equal(t, types.AuctionStatusSold, resp.Status)
	check.Equal(t, "bidder-a", resp.WinnerID)
	check.Equal(t, 25.0, resp.FinalPrice)
	check.True(t, resp.ReserveMet)

	// The winning bid is promoted to WON.
	var bid types.Bid
	err = svc.db.db.Where("auction_id = ? AND bidder_id = ?", auction.AuctionID, "bidder-a").
		First(&bid).Error
	assert.Nil(t, err)
	check.Equal(t, types.BidStatusWon, bid.Status)
}

func TestCloseAuction_NoReserve(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)

	// No reserve set: any winning bid sells.
	resp, err := svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, types.AuctionStatusSold, resp.Status)
	check.Equal(t, "bidder-a", resp.WinnerID)
	check.True(t, resp.ReserveMet)
}

func TestCloseAuction_ReserveNotMet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	params := defaultParams()
	params.ReservePrice = 50
	auction := newActiveAuction(t, svc, params)

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 25)
	assert.Nil(t, err)

	resp, err := svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)

	// No sale: the auction ends without a winner.
	check.Equal(t, types.AuctionStatusEnded, resp.Status)
	check.Equal(t, "", resp.WinnerID)
	check.Equal(t, 0.0, resp.FinalPrice)
	check.False(t, resp.ReserveMet)
}

func TestCloseAuction_NoBids(t *testing.T) {
	svc, _ := newTestService(t, nil)
	auction := newActiveAuction(t, svc, defaultParams())

	resp, err := svc.CloseAuction(context.Background(), auction.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, types.AuctionStatusEnded, resp.Status)
	check.Equal(t, "", resp.WinnerID)
}

func TestCloseAuction_DeactivatesProxies(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-a", 50)
	assert.Nil(t, err)
	_, err = svc.SetupProxyBid(ctx, auction.AuctionID, "bidder-b", 40)
	assert.Nil(t, err)

	_, err = svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)

	// Rows survive for audit but are inert.
	var proxies []types.ProxyBid
	err = svc.db.db.Where("auction_id = ?", auction.AuctionID).Find(&proxies).Error
	assert.Nil(t, err)
	assert.Equal(t, 2, len(proxies))
	for _, proxy := range proxies {
		check.False(t, proxy.Active)
	}
}

func TestCloseAuction_IdempotentReclose(t *testing.T) {
	events := make(chan types.Event, 16)
	svc, _ := newTestService(t, events)
	ctx := context.Background()
	auction := newActiveAuction(t, svc, defaultParams())

	_, err := svc.PlaceBid(ctx, auction.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)
	<-events // BidPlaced

	first, err := svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, types.AuctionStatusSold, first.Status)

	ended := (<-events).(types.AuctionEndedEvent)
	check.Equal(t, "bidder-a", ended.WinnerID)
	check.Equal(t, 21.0, ended.FinalPrice)
	check.True(t, ended.ReserveMet)

	// Second close is a no-op: same outcome, no duplicate event.
	second, err := svc.CloseAuction(ctx, auction.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, first.Status, second.Status)
	check.Equal(t, first.WinnerID, second.WinnerID)
	check.Equal(t, first.FinalPrice, second.FinalPrice)
	check.Equal(t, 0, len(events))
}

func TestCloseAuction_Rejections(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.CloseAuction(ctx, "AUC_missing")
	check.Equal(t, CodeNotFound, CodeOf(err))

	// A DRAFT auction never ran, so it cannot be closed.
	created, err := svc.CreateAuction(ctx, defaultParams())
	assert.Nil(t, err)
	_, err = svc.CloseAuction(ctx, created.AuctionID)
	check.Equal(t, CodeNotActive, CodeOf(err))
}

func TestSweepExpiredAuctions(t *testing.T) {
	svc, clock := newTestService(t, nil)
	ctx := context.Background()

	expired1 := newActiveAuction(t, svc, defaultParams())
	expired2 := newActiveAuction(t, svc, defaultParams())
	_, err := svc.PlaceBid(ctx, expired2.AuctionID, "bidder-a", 21)
	assert.Nil(t, err)

	// A longer-running auction stays untouched by the sweep.
	longParams := defaultParams()
	longParams.Duration = 48 * time.Hour
	running := newActiveAuction(t, svc, longParams)

	*clock = expired1.Deadline.Add(time.Minute)
	closed, err := svc.SweepExpiredAuctions(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(closed))

	byID := map[string]types.CloseResponse{}
	for _, resp := range closed {
		byID[resp.AuctionID] = resp
	}
	check.Equal(t, types.AuctionStatusEnded, byID[expired1.AuctionID].Status)
	check.Equal(t, types.AuctionStatusSold, byID[expired2.AuctionID].Status)
	check.Equal(t, "bidder-a", byID[expired2.AuctionID].WinnerID)

	still, err := svc.GetAuction(ctx, running.AuctionID)
	assert.Nil(t, err)
	check.Equal(t, types.AuctionStatusActive, still.Status)
}

func TestSweepExpiredAuctions_NothingExpired(t *testing.T) {
	svc, _ := newTestService(t, nil)
	newActiveAuction(t, svc, defaultParams())

	closed, err := svc.SweepExpiredAuctions(context.Background())
	assert.Nil(t, err)
	check.Equal(t, 0, len(closed))
}
