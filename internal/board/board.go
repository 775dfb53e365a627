// Package board ties the store data to the status panels: each Refresh
// rebuilds one panel body from the stores and pushes it through the
// synchronizer. Refreshes are idempotent and safe to repeat.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/remember-rp/concierge/internal/absence"
	"github.com/remember-rp/concierge/internal/config"
	"github.com/remember-rp/concierge/internal/links"
	"github.com/remember-rp/concierge/internal/model"
	"github.com/remember-rp/concierge/internal/panel"
	"github.com/remember-rp/concierge/internal/render"
)

type Appointments interface {
	ListUpcoming(ctx context.Context, after time.Time, limit int) ([]model.Appointment, error)
}

type Refresher struct {
	sync     *panel.Synchronizer
	appts    Appointments
	absences *absence.Service
	links    *links.Service
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewRefresher(sync *panel.Synchronizer, appts Appointments, absences *absence.Service, linkSvc *links.Service, cfg *config.Config, logger *slog.Logger) *Refresher {
	return &Refresher{
		sync:     sync,
		appts:    appts,
		absences: absences,
		links:    linkSvc,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *Refresher) Planning(ctx context.Context) error {
	now := r.now()
	appts, err := r.appts.ListUpcoming(ctx, now, 0)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	return r.sync.Upsert(ctx, panel.KeyPlanning, r.cfg.Channels.Planning, render.Planning(appts, now))
}

func (r *Refresher) Absences(ctx context.Context) error {
	absences, err := r.absences.ListUpcoming(ctx, 0)
	if err != nil {
		return fmt.Errorf("list absences: %w", err)
	}
	return r.sync.Upsert(ctx, panel.KeyAbsences, r.cfg.Channels.Absences, render.AbsenceBoard(absences, r.now()))
}

func (r *Refresher) Links(ctx context.Context) error {
	all, err := r.links.List(ctx)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	return r.sync.Upsert(ctx, panel.KeyLinks, r.cfg.Channels.Links, render.Links(all))
}

// Rules posts the two write-once rules panels. They have no store behind
// them; the content comes straight from configuration, and the channel-empty
// guard in the synchronizer keeps hand-maintained channels untouched.
func (r *Refresher) Rules(ctx context.Context) error {
	docs := []struct {
		key     string
		channel string
		doc     config.RuleDoc
	}{
		{panel.KeyRulesGeneral, r.cfg.Channels.RulesGeneral, r.cfg.RulesGeneral},
		{panel.KeyRulesPlatform, r.cfg.Channels.RulesPlatform, r.cfg.RulesPlatform},
	}
	for _, d := range docs {
		if d.channel == "" || d.doc.Title == "" {
			continue
		}
		if err := r.sync.Upsert(ctx, d.key, d.channel, renderRuleDoc(d.doc)); err != nil {
			return err
		}
	}
	return nil
}

// All refreshes every panel, continuing past individual failures so one
// broken channel does not starve the others.
func (r *Refresher) All(ctx context.Context) {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"planning", r.Planning},
		{"absences", r.Absences},
		{"links", r.Links},
		{"rules", r.Rules},
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			r.logger.Error("panel refresh failed", "panel", s.name, "err", err)
		}
	}
}

func renderRuleDoc(doc config.RuleDoc) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(doc.Title) + "\n")
	if doc.Body != "" {
		b.WriteString("\n" + doc.Body + "\n")
	}
	if doc.URL != "" {
		b.WriteString("\nFull document: " + doc.URL + "\n")
	}
	return b.String()
}
