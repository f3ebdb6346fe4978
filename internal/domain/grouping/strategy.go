package grouping

import (
	"fmt"
	"strings"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT STRATEGY
// ══════════════════════════════════════════════════════════════════════════════

const (
	StrategyGreedy = "greedy"
	StrategyRepair = "repair"
)

// Resolution - итог распределения: метка (индекс центра) каждого студента.
type Resolution struct {
	Labels []int

	// Forced - сколько студентов назначено принудительно после основного прохода.
	Forced int
}

// Counts возвращает размер каждой группы.
func (r Resolution) Counts(k int) []int {
	counts := make([]int, k)
	for _, l := range r.Labels {
		counts[l]++
	}
	return counts
}

// AssignmentStrategy превращает центры кластеров в распределение, где размер
// группы c равен sizes[c].
type AssignmentStrategy interface {
	Name() string
	Resolve(features, centers [][]float64, sizes []int) (Resolution, error)
}

// ParseStrategy возвращает стратегию по имени. Пустое имя - жадная стратегия.
func ParseStrategy(name string, workers int) (AssignmentStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyGreedy:
		return NewGreedyStrategy(workers), nil
	case StrategyRepair:
		return NewRepairStrategy(workers), nil
	default:
		return nil, shared.WrapError("grouping", "ParseStrategy", shared.ErrInvalidConfiguration,
			fmt.Sprintf("strategy %q", name), shared.ErrUnknownStrategy)
	}
}

func validateResolveInput(features, centers [][]float64, sizes []int) error {
	if len(centers) == 0 || len(centers) != len(sizes) {
		return shared.NewDomainError("grouping", "Resolve", shared.ErrInvalidConfiguration,
			fmt.Sprintf("%d centers for %d target sizes", len(centers), len(sizes)))
	}
	total := 0
	for c, s := range sizes {
		if s < 1 {
			return shared.NewDomainError("grouping", "Resolve", shared.ErrInvalidConfiguration,
				fmt.Sprintf("target size of group %d is %d", c, s))
		}
		total += s
	}
	if total != len(features) {
		return shared.NewDomainError("grouping", "Resolve", shared.ErrInvalidConfiguration,
			fmt.Sprintf("target sizes sum to %d, have %d students", total, len(features)))
	}
	return nil
}
