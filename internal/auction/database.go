package auction

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ksred/auction-api/internal/types"
	"gorm.io/gorm"
)

// Database is the store adapter for the bidding engine. It is the sole owner
// of durable auction state; services operate on rows only inside a
// transaction it opens.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// txTimeout bounds every engine transaction; the store aborts the work if it
// is exceeded.
const txTimeout = 10 * time.Second

// RunInTx executes fn inside one serializable transaction. Conflicting
// concurrent transactions surface through IsConflict rather than silently
// interleaving.
func (d *Database) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx := d.db.WithContext(ctx).Begin(&sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetAuction loads an auction by its public ID, nil when absent.
func (d *Database) GetAuction(tx *gorm.DB, auctionID string) (*types.Auction, error) {
	var auction types.Auction
	if err := tx.Where("auction_id = ?", auctionID).First(&auction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

// GetWinningBid returns the auction's currently WINNING bid, nil when the
// auction has no bids yet.
func (d *Database) GetWinningBid(tx *gorm.DB, auctionID string) (*types.Bid, error) {
	var bid types.Bid
	err := tx.Where("auction_id = ? AND status = ?", auctionID, types.BidStatusWinning).
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bid, nil
}

func (d *Database) CreateAuction(tx *gorm.DB, auction *types.Auction) error {
	return tx.Create(auction).Error
}

func (d *Database) UpdateAuction(tx *gorm.DB, auction *types.Auction) error {
	return tx.Save(auction).Error
}

func (d *Database) CreateBid(tx *gorm.DB, bid *types.Bid) error {
	return tx.Create(bid).Error
}

func (d *Database) UpdateBid(tx *gorm.DB, bid *types.Bid) error {
	return tx.Save(bid).Error
}

func (d *Database) CreateExtension(tx *gorm.DB, extension *types.Extension) error {
	return tx.Create(extension).Error
}

// GetProxyBid returns a bidder's proxy bid on an auction, nil when absent.
func (d *Database) GetProxyBid(tx *gorm.DB, auctionID, bidderID string) (*types.ProxyBid, error) {
	var proxy types.ProxyBid
	err := tx.Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).
		First(&proxy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &proxy, nil
}

func (d *Database) CreateProxyBid(tx *gorm.DB, proxy *types.ProxyBid) error {
	return tx.Create(proxy).Error
}

func (d *Database) UpdateProxyBid(tx *gorm.DB, proxy *types.ProxyBid) error {
	return tx.Save(proxy).Error
}

// TopProxyBid selects the active proxy with the greatest maximum on an
// auction, excluding the given bidder. Ties break toward the earliest
// created row so resolution stays deterministic.
func (d *Database) TopProxyBid(tx *gorm.DB, auctionID, excludingBidderID string) (*types.ProxyBid, error) {
	var proxy types.ProxyBid
	err := tx.Where("auction_id = ? AND bidder_id <> ? AND active = ?", auctionID, excludingBidderID, true).
		Order("max_amount DESC, id ASC").
		First(&proxy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &proxy, nil
}

// DeactivateProxyBids marks all of an auction's proxies inert. Rows are kept
// for audit.
func (d *Database) DeactivateProxyBids(tx *gorm.DB, auctionID string) error {
	return tx.Model(&types.ProxyBid{}).
		Where("auction_id = ?", auctionID).
		Update("active", false).Error
}

// ListExpiredActiveAuctions returns ACTIVE auctions whose deadline has
// passed, oldest deadline first.
func (d *Database) ListExpiredActiveAuctions(ctx context.Context, now time.Time) ([]types.Auction, error) {
	var auctions []types.Auction
	err := d.db.WithContext(ctx).
		Where("status = ? AND deadline <= ?", types.AuctionStatusActive, now).
		Order("deadline ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// IsConflict reports whether the store rejected a transaction because of a
// concurrent writer (serialization failure, deadlock, or sqlite busy/locked).
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "serialization failure") ||
		strings.Contains(msg, "deadlock")
}

// ErrTxConflict is the generic conflict the adapter maps store-specific
// errors onto; tests and alternative adapters can return it directly.
var ErrTxConflict = errors.New("transaction conflict")
