// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SORT ROSTER COMMAND
// Distributes an inline roster into groups. The result is cached by input
// fingerprint; identical input is answered from the cache.
// ══════════════════════════════════════════════════════════════════════════════

// SortRosterCommand contains the roster to distribute.
type SortRosterCommand struct {
	// Students are the submitted forms, in the order labels are reported.
	Students []roster.StudentRecord

	// MinSize and MaxSize bound every group.
	MinSize int
	MaxSize int
}

// Bounds returns the group size bounds of the command.
func (c SortRosterCommand) Bounds() grouping.Bounds {
	return grouping.Bounds{MinSize: c.MinSize, MaxSize: c.MaxSize}
}

// SortRosterResult contains the distribution.
type SortRosterResult struct {
	Result *grouping.Result

	// Cached is true when the result was served from the cache.
	Cached bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// ResultCache stores grouping results by fingerprint.
type ResultCache interface {
	// Get returns false when nothing is cached for fingerprint.
	Get(ctx context.Context, fingerprint string) (*grouping.Result, bool, error)
	Set(ctx context.Context, res *grouping.Result) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SortRosterHandler handles the SortRosterCommand.
type SortRosterHandler struct {
	sorter *grouping.Sorter
	cache  ResultCache
	log    *logger.Logger
}

// NewSortRosterHandler creates a new SortRosterHandler. cache may be nil.
func NewSortRosterHandler(sorter *grouping.Sorter, cache ResultCache, log *logger.Logger) *SortRosterHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SortRosterHandler{
		sorter: sorter,
		cache:  cache,
		log:    log.With(logger.Component("sort_roster")),
	}
}

// Handle executes the sort roster command.
func (h *SortRosterHandler) Handle(ctx context.Context, cmd SortRosterCommand) (*SortRosterResult, error) {
	res, cached, err := sortCached(ctx, h.sorter, h.cache, h.log, cmd.Students, cmd.Bounds())
	if err != nil {
		return nil, fmt.Errorf("sort_roster: %w", err)
	}
	return &SortRosterResult{Result: res, Cached: cached}, nil
}

// sortCached serves a cached result when one exists and otherwise sorts and
// caches. Cache failures are logged and never fail the run.
func sortCached(
	ctx context.Context,
	sorter *grouping.Sorter,
	cache ResultCache,
	log *logger.Logger,
	records []roster.StudentRecord,
	bounds grouping.Bounds,
) (*grouping.Result, bool, error) {
	var fingerprint string
	if cache != nil && len(records) > 0 {
		fingerprint = sorter.Fingerprint(records, bounds)
		res, ok, err := cache.Get(ctx, fingerprint)
		switch {
		case err != nil:
			log.Warn("result cache read failed", logger.Operation("cache_get"), logger.Err(err))
		case ok:
			log.Debug("result served from cache", logger.RunID(res.RunID))
			return res, true, nil
		}
	}

	start := time.Now()
	res, err := sorter.Sort(records, bounds)
	if err != nil {
		return nil, false, err
	}

	if cache != nil {
		if err := cache.Set(ctx, res); err != nil {
			log.Warn("result cache write failed", logger.Operation("cache_set"), logger.Err(err), logger.RunID(res.RunID))
		}
	}

	log.Debug("roster sorted",
		logger.RunID(res.RunID),
		logger.Students(len(records)),
		logger.Latency(time.Since(start)),
	)
	return res, false, nil
}
