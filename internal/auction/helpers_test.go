package auction

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/types"
	"github.com/peterldowns/testy/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestService builds a Service against a fresh sqlite database under the
// test's temp dir. The returned pointer controls the service's clock: assign
// through it to move time.
func newTestService(t *testing.T, events chan<- types.Event) (*Service, *time.Time) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auctions.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.Nil(t, err)
	assert.Nil(t, database.Migrate(db))

	svc := NewService(db, events)
	now := testClock
	svc.now = func() time.Time { return now }
	return svc, &now
}

func defaultParams() NewAuctionParams {
	return NewAuctionParams{
		SellerID:      "seller-1",
		Title:         "Vintage Camera",
		StartingPrice: 20,
		MinIncrement:  1,
		Duration:      time.Hour,
	}
}

// newActiveAuction creates and starts an auction, returning its started state.
func newActiveAuction(t *testing.T, svc *Service, params NewAuctionParams) *types.Auction {
	t.Helper()

	created, err := svc.CreateAuction(context.Background(), params)
	assert.Nil(t, err)

	started, err := svc.StartAuction(context.Background(), created.AuctionID)
	assert.Nil(t, err)
	return started
}

// countWinningBids reports how many bids on the auction currently hold
// WINNING status.
func countWinningBids(t *testing.T, svc *Service, auctionID string) int {
	t.Helper()

	var n int64
	err := svc.db.db.Model(&types.Bid{}).
		Where("auction_id = ? AND status = ?", auctionID, types.BidStatusWinning).
		Count(&n).Error
	assert.Nil(t, err)
	return int(n)
}
