package database

import (
	"fmt"
	"os"

	"github.com/ksred/auction-api/internal/database/migrations"
	"github.com/ksred/auction-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
// The database path can be overridden with the DATABASE_PATH environment variable
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "auctions.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate creates and updates the engine's schema. Exposed separately so
// tests can run it against their own databases.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.Auction{},
		&types.Bid{},
		&types.ProxyBid{},
		&types.Extension{},
	)
	if err != nil {
		return err
	}

	return migrations.AddBiddingIndexes(db)
}
