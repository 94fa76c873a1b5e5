package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"github.com/infinyte/mcp-server/internal/infrastructure/logger"
	"github.com/infinyte/mcp-server/internal/infrastructure/state"
	"github.com/infinyte/mcp-server/internal/utils/platformerrors"
)

const (
	DefaultFlushIntervalMinutes = 5
	CronJobTimeout              = 2 * time.Minute
)

type Crontab struct {
	ctab         *crontab.Crontab
	stateManager *state.Manager
	interval     time.Duration
}

func NewCrontab(stateManager *state.Manager, interval time.Duration) *Crontab {
	return &Crontab{
		ctab:         crontab.New(),
		stateManager: stateManager,
		interval:     interval,
	}
}

// Run schedules the periodic state flush and blocks until the context ends.
func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	minutes := int(c.interval.Minutes())
	if minutes <= 0 {
		minutes = DefaultFlushIntervalMinutes
	}

	cronExpr := fmt.Sprintf("*/%d * * * *", minutes)
	if err := c.ctab.AddJob(cronExpr, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		if err := c.stateManager.SaveState(jobCtx); err != nil {
			log.Error().Err(err).Msg("Scheduled state flush failed")
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to add state flush job")
	}
	log.Info().Msgf("State flush scheduled: every %d minute(s)", minutes)

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}
