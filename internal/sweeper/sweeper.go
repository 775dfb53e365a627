// Package sweeper runs the periodic cleanup pass: appointments whose slot is
// comfortably past and absences whose last day is over get deleted, then the
// affected panels are redrawn.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/remember-rp/concierge/internal/absence"
	"github.com/remember-rp/concierge/internal/board"
)

// AppointmentGrace keeps an appointment listed for two hours past its slot
// before the sweep removes it.
const AppointmentGrace = 2 * time.Hour

type AppointmentStore interface {
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sweeper struct {
	appts    AppointmentStore
	absences *absence.Service
	board    *board.Refresher
	logger   *slog.Logger
	now      func() time.Time
}

func New(appts AppointmentStore, absences *absence.Service, boardRefresher *board.Refresher, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		appts:    appts,
		absences: absences,
		board:    boardRefresher,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep runs one cleanup pass. Deletion failures are logged and the pass
// continues; the panels are refreshed either way so they never show rows the
// stores no longer hold.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	if n, err := s.appts.DeleteEndedBefore(ctx, now.Add(-AppointmentGrace)); err != nil {
		s.logger.Error("appointment sweep failed", "err", err)
	} else if n > 0 {
		s.logger.Info("swept past appointments", "count", n)
	}

	if _, err := s.absences.SweepExpired(ctx, now); err != nil {
		s.logger.Error("absence sweep failed", "err", err)
	}

	s.board.All(ctx)
}

// Start schedules Sweep on the given cron spec and returns the running
// scheduler. The caller stops it on shutdown.
func (s *Sweeper) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		s.Sweep(runCtx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
