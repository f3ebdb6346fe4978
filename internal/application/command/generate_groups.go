package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
	"github.com/metrocollab/grouper/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE GROUPS COMMAND
// Loads a class roster, distributes it with the class bounds and writes each
// student's group number back. Refuses to run until every expected student
// has submitted a form, unless forced.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateGroupsCommand contains the class to generate groups for.
type GenerateGroupsCommand struct {
	// Code is the class code.
	Code string

	// Force runs even when some expected students have not submitted yet.
	Force bool
}

// Validate validates the command.
func (c *GenerateGroupsCommand) Validate() error {
	c.Code = strings.TrimSpace(c.Code)
	if c.Code == "" {
		return shared.ErrEmptyClassCode
	}
	return nil
}

// GenerateGroupsResult contains the stored distribution.
type GenerateGroupsResult struct {
	Code   string
	Result *grouping.Result

	// Submitted and Expected are the form counts at generation time.
	Submitted int
	Expected  int

	// Cached is true when the distribution came from the cache.
	Cached bool
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Locker serializes generation per class.
type Locker interface {
	// Lock returns ok=false when the resource is already held.
	Lock(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// DefaultLockTTL bounds how long a crashed run can block a class.
const DefaultLockTTL = 2 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GenerateGroupsHandler handles the GenerateGroupsCommand.
type GenerateGroupsHandler struct {
	repo    roster.Repository
	sorter  *grouping.Sorter
	cache   ResultCache
	locker  Locker
	lockTTL time.Duration
	log     *logger.Logger
}

// GenerateGroupsHandlerConfig contains optional collaborators.
type GenerateGroupsHandlerConfig struct {
	Cache   ResultCache
	Locker  Locker
	LockTTL time.Duration
	Logger  *logger.Logger
}

// NewGenerateGroupsHandler creates a new GenerateGroupsHandler.
func NewGenerateGroupsHandler(repo roster.Repository, sorter *grouping.Sorter, cfg GenerateGroupsHandlerConfig) *GenerateGroupsHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &GenerateGroupsHandler{
		repo:    repo,
		sorter:  sorter,
		cache:   cfg.Cache,
		locker:  cfg.Locker,
		lockTTL: cfg.LockTTL,
		log:     cfg.Logger.With(logger.Component("generate_groups")),
	}
}

// Handle executes the generate groups command.
func (h *GenerateGroupsHandler) Handle(ctx context.Context, cmd GenerateGroupsCommand) (*GenerateGroupsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := h.log.With(logger.ClassCode(cmd.Code))

	if h.locker != nil {
		release, ok, err := h.locker.Lock(ctx, "class:"+cmd.Code, h.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("generate_groups: lock class %s: %w", cmd.Code, err)
		}
		if !ok {
			return nil, shared.ErrGenerationLocked
		}
		defer func() {
			// the request context may already be cancelled
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release class lock", logger.Err(err))
			}
		}()
	}

	class, err := h.repo.GetRoster(ctx, cmd.Code)
	if err != nil {
		return nil, err
	}

	if !class.IsComplete() {
		if !cmd.Force {
			return nil, shared.WrapError("roster", "Generate", shared.ErrIncomplete,
				fmt.Sprintf("%d of %d forms submitted", class.Submitted(), class.TotalStudents),
				shared.ErrRosterIncomplete)
		}
		log.Warn("generating groups for an incomplete roster",
			logger.Int("submitted", class.Submitted()),
			logger.Int("expected", class.TotalStudents),
		)
	}

	bounds := grouping.Bounds{MinSize: class.MinSize, MaxSize: class.MaxSize}
	res, cached, err := sortCached(ctx, h.sorter, h.cache, log, class.Students, bounds)
	if err != nil {
		return nil, err
	}

	if err := h.repo.SaveGroups(ctx, cmd.Code, res.Groups); err != nil {
		return nil, fmt.Errorf("generate_groups: save groups: %w", err)
	}

	log.Info("groups generated",
		logger.RunID(res.RunID),
		logger.Students(class.Submitted()),
		logger.GroupCount(res.Plan.GroupCount),
		logger.Bool("cached", cached),
	)

	return &GenerateGroupsResult{
		Code:      cmd.Code,
		Result:    res,
		Submitted: class.Submitted(),
		Expected:  class.TotalStudents,
		Cached:    cached,
	}, nil
}
