package grouping

import (
	"fmt"
	"math"
	"sort"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// RepairStrategy начинает с ближайших центров без ограничений и чинит
// размеры в два прохода:
//  1. pull - группы меньше минимального целевого размера распускаются,
//     их участники уходят в ближайшую другую группу с местом;
//  2. push - из переполненных групп уходят самые далёкие от центра
//     участники, каждый в ближайшую группу с местом.
type RepairStrategy struct {
	workers int
}

// NewRepairStrategy создаёт стратегию двухпроходной починки.
func NewRepairStrategy(workers int) *RepairStrategy {
	return &RepairStrategy{workers: workers}
}

// Name возвращает имя стратегии.
func (s *RepairStrategy) Name() string {
	return StrategyRepair
}

// Resolve распределяет студентов и проверяет, что размеры совпали с целевыми.
func (s *RepairStrategy) Resolve(features, centers [][]float64, sizes []int) (Resolution, error) {
	if err := validateResolveInput(features, centers, sizes); err != nil {
		return Resolution{}, err
	}

	dist, err := distanceMatrix(features, centers, s.workers)
	if err != nil {
		return Resolution{}, err
	}
	k := len(centers)

	labels := make([]int, len(features))
	counts := make([]int, k)
	for i, row := range dist {
		labels[i] = nearest(row)
		counts[labels[i]]++
	}

	smallest := sizes[0]
	for _, sz := range sizes {
		smallest = min(smallest, sz)
	}

	// pull
	for c := 0; c < k; c++ {
		if counts[c] == 0 || counts[c] >= smallest {
			continue
		}
		for i := range labels {
			if labels[i] != c {
				continue
			}
			to := nearestWithSpace(dist[i], counts, sizes, c)
			if to < 0 {
				to = nearestOther(dist[i], c)
			}
			labels[i] = to
			counts[c]--
			counts[to]++
		}
	}

	// push
	for c := 0; c < k; c++ {
		excess := counts[c] - sizes[c]
		if excess <= 0 {
			continue
		}
		for _, i := range farthestMembers(labels, dist, c, excess) {
			to := nearestWithSpace(dist[i], counts, sizes, c)
			if to < 0 {
				break
			}
			labels[i] = to
			counts[c]--
			counts[to]++
		}
	}

	for c := range counts {
		if counts[c] != sizes[c] {
			return Resolution{}, shared.NewDomainError("grouping", "Resolve", shared.ErrInternal,
				fmt.Sprintf("repair left group %d with %d students, want %d", c, counts[c], sizes[c]))
		}
	}
	return Resolution{Labels: labels}, nil
}

// nearestWithSpace - ближайший центр, кроме exclude, у которого есть место.
// Возвращает -1, если мест нет.
func nearestWithSpace(distances []float64, counts, sizes []int, exclude int) int {
	best := -1
	bestDist := math.Inf(1)
	for c, d := range distances {
		if c == exclude || counts[c] >= sizes[c] {
			continue
		}
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func nearestOther(distances []float64, exclude int) int {
	best := -1
	bestDist := math.Inf(1)
	for c, d := range distances {
		if c != exclude && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// farthestMembers возвращает до limit участников группы c в порядке убывания
// расстояния до её центра; равные расстояния - по индексу студента.
func farthestMembers(labels []int, dist [][]float64, c, limit int) []int {
	var members []int
	for i, l := range labels {
		if l == c {
			members = append(members, i)
		}
	}
	sort.SliceStable(members, func(a, b int) bool {
		return dist[members[a]][c] > dist[members[b]][c]
	})
	if len(members) > limit {
		members = members[:limit]
	}
	return members
}
