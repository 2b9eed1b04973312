package auction

import (
	"math"
	"time"

	"github.com/ksred/auction-api/internal/types"
)

// ValidateBid checks an incoming bid against auction state and increment
// rules. Pure: no side effects, deterministic for a given auction, amount and
// now. The caller must reuse the same now for the extension policy so the two
// checks cannot race inside one transaction.
//
// Checks run in order: existence, status, deadline, amount.
func ValidateBid(auction *types.Auction, amount float64, now time.Time) error {
	if auction == nil {
		return notFoundError("")
	}

	if auction.Status != types.AuctionStatusActive {
		return notActiveError(auction.Status)
	}

	if now.After(auction.Deadline) {
		return expiredError()
	}

	// Both conditions are required: a zero-increment auction still demands a
	// strictly higher amount.
	if amount <= auction.CurrentPrice || amount < auction.CurrentPrice+auction.MinIncrement {
		return tooLowError(auction.CurrentPrice, auction.MinIncrement)
	}

	return nil
}

// ValidateAmount rejects non-finite or non-positive monetary input before a
// transaction is opened.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return invalidInputError("Amount must be a finite number")
	}
	if amount <= 0 {
		return invalidInputError("Amount must be positive")
	}
	return nil
}
