// Package pipeline runs periodic maintenance jobs, currently the archive of
// old executions and journal records to object storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// Archiver moves rows older than the retention window to cold storage.
type Archiver struct {
	blobArchiver domain.Archiver
	retention    time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(blobArchiver domain.Archiver, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver: blobArchiver,
		retention:    retention,
		logger:       logger.With(slog.String("component", "archiver")),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run archives executions and journal records older than now-retention.
// Both kinds are attempted even if the first fails.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().Add(-a.retention)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Duration("retention", a.retention),
	)

	execs, execErr := a.blobArchiver.ArchiveExecutions(ctx, cutoff)
	if execErr != nil {
		execErr = fmt.Errorf("archiving executions before %v: %w", cutoff, execErr)
	}
	journal, journalErr := a.blobArchiver.ArchiveJournal(ctx, cutoff)
	if journalErr != nil {
		journalErr = fmt.Errorf("archiving journal before %v: %w", cutoff, journalErr)
	}

	a.logger.Info("archive run complete",
		slog.Int64("executions_archived", execs),
		slog.Int64("journal_archived", journal),
	)
	if execErr != nil {
		return execErr
	}
	return journalErr
}

// RunCron runs the archiver on a 5-field cron schedule
// ("minute hour day-of-month month day-of-week") until ctx is cancelled.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := cron.next(a.now())
		if err != nil {
			return err
		}
		a.logger.Debug("archiver waiting for next cron trigger", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
