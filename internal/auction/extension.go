package auction

import (
	"time"

	"github.com/ksred/auction-api/internal/types"
)

// ExtensionDecision is the outcome of the anti-sniping policy when the
// deadline should be pushed back.
type ExtensionDecision struct {
	NewDeadline     time.Time
	ExtensionNumber int
}

// ShouldExtend computes whether a bid landing at now pushes the auction
// deadline outward. Pure. Extends only when auto-extension is enabled, the
// bid lands inside the threshold window before the deadline (but not after
// it), and the extension budget is not exhausted.
//
// Must be evaluated with the same now used for the bid's legality check.
func ShouldExtend(auction *types.Auction, now time.Time) *ExtensionDecision {
	if !auction.AutoExtend {
		return nil
	}

	remaining := auction.Deadline.Sub(now)
	if remaining <= 0 || remaining >= auction.ExtendThreshold {
		return nil
	}

	if auction.ExtensionCount >= auction.MaxExtensions {
		return nil
	}

	return &ExtensionDecision{
		NewDeadline:     auction.Deadline.Add(auction.ExtendBy),
		ExtensionNumber: auction.ExtensionCount + 1,
	}
}
