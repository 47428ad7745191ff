package mock

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaultscope/vaultscope/internal/models"
)

// Run populates the state immediately and then refreshes it on the given
// interval until the context is cancelled.
func Run(ctx context.Context, state *models.State, cfg Config, interval time.Duration) {
	gen := NewGenerator(cfg)
	gen.Populate(state, time.Now())
	log.Info().Dur("interval", interval).Msg("Mock data generator started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Mock data generator stopped")
			return
		case <-ticker.C:
			gen.Populate(state, time.Now())
		}
	}
}
