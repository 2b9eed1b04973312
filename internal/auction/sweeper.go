package auction

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically closes expired auctions. It owns the timer so the
// sweep itself stays schedulable from tests or an external scheduler.
type Sweeper struct {
	service       *Service
	sweepInterval time.Duration
}

func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		service:       service,
		sweepInterval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "auction_sweeper").Logger()
	logger.Info().Dur("interval", sw.sweepInterval).Msg("starting auction sweeper")

	ticker := time.NewTicker(sw.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down auction sweeper")
			return
		case <-ticker.C:
			closed, err := sw.service.SweepExpiredAuctions(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("failed to sweep expired auctions")
				continue
			}
			if len(closed) > 0 {
				logger.Info().Int("closed_count", len(closed)).Msg("sweep completed")
			}
		}
	}
}
