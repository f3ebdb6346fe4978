package grouping

import (
	"fmt"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GROUP SIZE PLANNER
// ══════════════════════════════════════════════════════════════════════════════

// Bounds - допустимый диапазон размера группы.
type Bounds struct {
	MinSize int `json:"min_size"`
	MaxSize int `json:"max_size"`
}

// Validate проверяет 1 <= MinSize <= MaxSize.
func (b Bounds) Validate() error {
	if b.MinSize < 1 {
		return shared.NewDomainError("grouping", "Plan", shared.ErrInvalidConfiguration,
			fmt.Sprintf("min_size must be at least 1, got %d", b.MinSize))
	}
	if b.MinSize > b.MaxSize {
		return shared.NewDomainError("grouping", "Plan", shared.ErrInvalidConfiguration,
			fmt.Sprintf("min_size %d is greater than max_size %d", b.MinSize, b.MaxSize))
	}
	return nil
}

// Contains проверяет, попадает ли размер в диапазон.
func (b Bounds) Contains(size int) bool {
	return size >= b.MinSize && size <= b.MaxSize
}

// Plan - число групп и целевой размер каждой.
type Plan struct {
	GroupCount int   `json:"group_count"`
	Sizes      []int `json:"sizes"`

	// Fallback - план получен жадной упаковкой, точного разбиения нет.
	Fallback bool `json:"fallback"`
}

// Total возвращает сумму размеров.
func (p Plan) Total() int {
	total := 0
	for _, s := range p.Sizes {
		total += s
	}
	return total
}

// OutOfBounds возвращает индексы групп, размер которых вне диапазона.
func (p Plan) OutOfBounds(b Bounds) []int {
	var idx []int
	for i, s := range p.Sizes {
		if !b.Contains(s) {
			idx = append(idx, i)
		}
	}
	return idx
}

// PlanGroups подбирает число групп для n студентов.
//
// Перебирает g по возрастанию от ceil(n/max) до floor(n/min) (обе границы не
// меньше 1) и берёт первое g, при котором n делится на g группы с размерами
// base и base+1 внутри диапазона. Меньше групп - группы крупнее.
// Если такого g нет, применяется жадная упаковка; её последняя группа может
// выйти за границы (например, n < min), это не ошибка.
func PlanGroups(n, minSize, maxSize int) (Plan, error) {
	b := Bounds{MinSize: minSize, MaxSize: maxSize}
	if err := b.Validate(); err != nil {
		return Plan{}, err
	}
	if n < 1 {
		return Plan{}, shared.ErrEmptyRoster
	}

	lo := max(1, ceilDiv(n, maxSize))
	hi := max(1, n/minSize)

	for g := lo; g <= hi; g++ {
		base := n / g
		rem := n % g
		if !b.Contains(base) {
			continue
		}
		if rem == 0 || (base+1 <= maxSize && rem <= g) {
			sizes := make([]int, g)
			for i := range sizes {
				sizes[i] = base
				if i < rem {
					sizes[i]++
				}
			}
			return Plan{GroupCount: g, Sizes: sizes}, nil
		}
	}

	sizes := greedyPack(n, minSize, maxSize)
	return Plan{GroupCount: len(sizes), Sizes: sizes, Fallback: true}, nil
}

// greedyPack отрезает группы по min(max, remaining-min), пока после них
// остаётся место ещё хотя бы на одну минимальную группу.
func greedyPack(n, minSize, maxSize int) []int {
	var sizes []int
	remaining := n
	for remaining > 0 {
		size := remaining
		if remaining >= 2*minSize {
			size = min(maxSize, remaining-minSize)
		}
		sizes = append(sizes, size)
		remaining -= size
	}
	return sizes
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
