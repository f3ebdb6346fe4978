package grouping

import (
	"cmp"
	"slices"
)

// GreedyStrategy - ёмкостное жадное распределение.
//
// Все пары (студент, центр) сортируются по расстоянию, затем один
// последовательный проход назначает студента центру, если студент ещё
// свободен и центр не заполнен. Сортировка стабильная, пары строятся в
// порядке (студент, центр), поэтому равные расстояния разрешаются
// детерминированно.
type GreedyStrategy struct {
	workers int
}

// NewGreedyStrategy создаёт стратегию; workers ограничивает расчёт расстояний.
func NewGreedyStrategy(workers int) *GreedyStrategy {
	return &GreedyStrategy{workers: workers}
}

// Name возвращает имя стратегии.
func (s *GreedyStrategy) Name() string {
	return StrategyGreedy
}

type candidate struct {
	student  int
	center   int
	distance float64
}

// Resolve распределяет студентов по центрам с точными размерами.
func (s *GreedyStrategy) Resolve(features, centers [][]float64, sizes []int) (Resolution, error) {
	if err := validateResolveInput(features, centers, sizes); err != nil {
		return Resolution{}, err
	}

	dist, err := distanceMatrix(features, centers, s.workers)
	if err != nil {
		return Resolution{}, err
	}

	pairs := make([]candidate, 0, len(features)*len(centers))
	for i, row := range dist {
		for c, d := range row {
			pairs = append(pairs, candidate{student: i, center: c, distance: d})
		}
	}
	slices.SortStableFunc(pairs, func(a, b candidate) int {
		return cmp.Compare(a.distance, b.distance)
	})

	labels := make([]int, len(features))
	for i := range labels {
		labels[i] = -1
	}
	counts := make([]int, len(centers))
	assigned := 0

	for _, p := range pairs {
		if assigned == len(features) {
			break
		}
		if labels[p.student] >= 0 || counts[p.center] >= sizes[p.center] {
			continue
		}
		labels[p.student] = p.center
		counts[p.center]++
		assigned++
	}

	forced := forceRemaining(labels, counts, sizes)
	return Resolution{Labels: labels, Forced: forced}, nil
}

// forceRemaining отдаёт каждого неназначенного студента (метка -1) первому
// по индексу центру со свободным местом. Если мест нет, студент уходит в
// последний центр. Возвращает число таких студентов.
func forceRemaining(labels, counts, sizes []int) int {
	forced := 0
	for i, l := range labels {
		if l >= 0 {
			continue
		}
		target := len(sizes) - 1
		for c := range sizes {
			if counts[c] < sizes[c] {
				target = c
				break
			}
		}
		labels[i] = target
		counts[target]++
		forced++
	}
	return forced
}
