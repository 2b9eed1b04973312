package migrations

import (
	"gorm.io/gorm"
)

// AddBiddingIndexes creates the indexes the hot bidding paths depend on
func AddBiddingIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// The orchestrator loads the WINNING bid on every placement
		`CREATE INDEX IF NOT EXISTS idx_bids_auction_status
		 ON bids(auction_id, status)`,

		// Proxy resolution selects the top active proxy per auction
		`CREATE INDEX IF NOT EXISTS idx_proxy_bids_auction_active_max
		 ON proxy_bids(auction_id, active, max_amount)`,

		// The sweep scans for ACTIVE auctions past their deadline
		`CREATE INDEX IF NOT EXISTS idx_auctions_status_deadline
		 ON auctions(status, deadline)`,

		// Extension audit lookups by auction
		`CREATE INDEX IF NOT EXISTS idx_extensions_auction_id
		 ON extensions(auction_id)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
