package cleaner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/logger"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/metrics"
	"github.com/deleterr/deleterr/internal/notification"
)

// ErrAlreadyRunning is returned when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("a cleanup run is already in progress")

// Notifier receives run summaries.
type Notifier interface {
	NotifyRun(ctx context.Context, event notification.RunEvent)
	NotifyLeavingSoon(ctx context.Context, event notification.LeavingSoonEvent)
}

// LibraryOutcome is the result of one library pass, or the error that ended it.
type LibraryOutcome struct {
	Result
	Err error
}

// Summary describes a finished run.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	BytesFreed int64
	Deleted    int
	Libraries  []LibraryOutcome
}

// Failed reports whether any library ended with an error.
func (s *Summary) Failed() bool {
	for _, l := range s.Libraries {
		if l.Err != nil {
			return true
		}
	}
	return false
}

// Runner runs the configured libraries in order. Only one run is active at a time.
type Runner struct {
	cfg       *config.Config
	cleaner   *Cleaner
	instances map[string]ArrClient
	resetters []Resetter
	notifier  Notifier
	logger    zerolog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *Summary
}

// NewRunner creates a runner over the given arr instances.
func NewRunner(cfg *config.Config, c *Cleaner, instances []ArrClient, logger zerolog.Logger) *Runner {
	r := &Runner{
		cfg:       cfg,
		cleaner:   c,
		instances: make(map[string]ArrClient, len(instances)),
		logger:    logger.With().Str("component", "runner").Logger(),
	}
	for _, inst := range instances {
		r.instances[instanceKey(inst.Kind(), inst.Name())] = inst
	}
	return r
}

// SetNotifier sets where run summaries are sent.
func (r *Runner) SetNotifier(n Notifier) {
	r.notifier = n
}

// AddResetter registers a cache that is dropped at the start of every run.
func (r *Runner) AddResetter(rs ...Resetter) {
	r.resetters = append(r.resetters, rs...)
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastSummary returns the summary of the last finished run, or nil.
func (r *Runner) LastSummary() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func instanceKey(kind media.Kind, name string) string {
	return string(kind) + "/" + name
}

func libraryKind(lib *config.Library) media.Kind {
	if lib.InstanceKind() == "radarr" {
		return media.KindMovie
	}
	return media.KindShow
}

// Run processes every library. A failing library is logged and the run
// moves on to the next one. The returned error is only set when the run
// did not happen or was cancelled.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	summary := &Summary{StartedAt: time.Now(), DryRun: r.cfg.DryRun}
	r.logger.Info().Bool("dryRun", r.cfg.DryRun).Int("libraries", len(r.cfg.Libraries)).Msg("Starting cleanup run")

	for _, inst := range r.instances {
		inst.ResetCache()
	}
	for _, rs := range r.resetters {
		rs.Reset()
	}

	listings := make(map[string][]media.Record)
	for i := range r.cfg.Libraries {
		if ctx.Err() != nil {
			break
		}
		lib := &r.cfg.Libraries[i]
		outcome := r.runLibrary(ctx, lib, listings)
		if outcome.Err != nil {
			reason := "error"
			if errors.Is(outcome.Err, config.ErrInvalid) {
				reason = "config"
			}
			metrics.LibrariesSkipped.WithLabelValues(lib.Name, reason).Inc()
			r.logger.Error().Err(outcome.Err).Str("library", lib.Name).Msg("Library failed, continuing with the next one")
		}
		summary.BytesFreed += outcome.BytesFreed
		summary.Deleted += len(outcome.Deleted)
		summary.Libraries = append(summary.Libraries, outcome)
	}
	summary.FinishedAt = time.Now()

	outcome := "success"
	if summary.Failed() || ctx.Err() != nil {
		outcome = "failed"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	metrics.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	metrics.LastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))

	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		r.logger.Warn().Err(err).Msg("Cleanup run cancelled")
		return summary, err
	}

	verb := "Deleted"
	if summary.DryRun {
		verb = "Would delete"
	}
	r.logger.Info().
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msgf("Cleanup run finished. %s %d items, %s", verb, summary.Deleted, logger.Size(summary.BytesFreed))

	if r.notifier != nil {
		r.notifier.NotifyRun(ctx, runEvent(summary))
		if ev := leavingSoonEvent(r.cfg, summary); len(ev.Items) > 0 {
			r.notifier.NotifyLeavingSoon(ctx, ev)
		}
	}
	return summary, nil
}

func (r *Runner) runLibrary(ctx context.Context, lib *config.Library, listings map[string][]media.Record) LibraryOutcome {
	outcome := LibraryOutcome{Result: Result{Library: lib.Name, Instance: lib.InstanceName()}}

	key := instanceKey(libraryKind(lib), lib.InstanceName())
	inst, ok := r.instances[key]
	if !ok {
		outcome.Err = fmt.Errorf("%w: library %q references unknown %s instance %q", config.ErrInvalid, lib.Name, lib.InstanceKind(), lib.InstanceName())
		return outcome
	}

	records, ok := listings[key]
	if !ok {
		var err error
		records, err = inst.ListMedia(ctx)
		if err != nil {
			outcome.Err = fmt.Errorf("failed to list %s: %w", inst.Name(), err)
			return outcome
		}
		listings[key] = records
	}

	outcome.Result, outcome.Err = r.cleaner.ProcessLibrary(ctx, lib, inst, records)
	if !r.cfg.DryRun && len(outcome.Deleted) > 0 {
		listings[key] = withoutDeleted(records, outcome.Deleted)
	}
	return outcome
}

// withoutDeleted drops records removed by an earlier library so later
// libraries on the same instance never act on them again.
func withoutDeleted(records, deleted []media.Record) []media.Record {
	gone := make(map[int64]bool, len(deleted))
	for _, rec := range deleted {
		gone[rec.Data().ID] = true
	}
	kept := make([]media.Record, 0, len(records))
	for _, rec := range records {
		if !gone[rec.Data().ID] {
			kept = append(kept, rec)
		}
	}
	return kept
}

func mediaInfo(lib, instance string, rec media.Record) notification.MediaInfo {
	data := rec.Data()
	return notification.MediaInfo{
		Title:     data.Title,
		Year:      data.Year,
		MediaType: string(rec.Kind()),
		Library:   lib,
		Instance:  instance,
		SizeBytes: data.SizeOnDisk,
		TMDbID:    data.TmdbID,
		TVDbID:    data.TvdbID,
		IMDbID:    data.ImdbID,
	}
}

func runEvent(s *Summary) notification.RunEvent {
	ev := notification.RunEvent{
		DryRun:     s.DryRun,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		BytesFreed: s.BytesFreed,
	}
	var earliest time.Time
	for _, l := range s.Libraries {
		for _, rec := range l.Deleted {
			ev.Deleted = append(ev.Deleted, mediaInfo(l.Library, l.Instance, rec))
		}
		for _, rec := range l.Preview {
			ev.Preview = append(ev.Preview, mediaInfo(l.Library, l.Instance, rec))
		}
		sum := notification.LibrarySummary{
			Name:       l.Library,
			Instance:   l.Instance,
			Deleted:    len(l.Deleted),
			BytesFreed: l.BytesFreed,
			Preview:    len(l.Preview),
			Skipped:    l.Skipped,
		}
		if l.Err != nil {
			sum.Error = l.Err.Error()
		}
		ev.Libraries = append(ev.Libraries, sum)
		if !l.DeletionDate.IsZero() && (earliest.IsZero() || l.DeletionDate.Before(earliest)) {
			earliest = l.DeletionDate
		}
	}
	if !earliest.IsZero() {
		ev.DeletionDate = &earliest
	}
	return ev
}

// leavingSoonEvent lists the preview items of libraries using the leaving
// soon workflow.
func leavingSoonEvent(cfg *config.Config, s *Summary) notification.LeavingSoonEvent {
	ev := notification.LeavingSoonEvent{DryRun: s.DryRun}
	run := runEvent(s)
	ev.DeletionDate = run.DeletionDate

	leaving := make(map[string]bool)
	for _, lib := range cfg.Libraries {
		leaving[lib.Name] = lib.LeavingSoon != nil
	}
	for _, l := range s.Libraries {
		if !leaving[l.Library] {
			continue
		}
		for _, rec := range l.Preview {
			ev.Items = append(ev.Items, mediaInfo(l.Library, l.Instance, rec))
		}
	}
	return ev
}
