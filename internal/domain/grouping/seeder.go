package grouping

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLUSTER SEEDER
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultRestarts      = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)

// KMeansSeeder находит k центров алгоритмом Ллойда с инициализацией k-means++.
// Выполняет несколько независимых запусков и оставляет запуск с наименьшей
// инерцией. Результат зависит только от (features, k, seed) и настроек.
type KMeansSeeder struct {
	restarts      int
	maxIterations int
	tolerance     float64
}

// SeederOption настраивает KMeansSeeder.
type SeederOption func(*KMeansSeeder)

// WithRestarts задаёт число независимых запусков.
func WithRestarts(n int) SeederOption {
	return func(s *KMeansSeeder) {
		if n > 0 {
			s.restarts = n
		}
	}
}

// WithMaxIterations ограничивает число итераций одного запуска.
func WithMaxIterations(n int) SeederOption {
	return func(s *KMeansSeeder) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithTolerance задаёт порог суммарного сдвига центров для остановки.
func WithTolerance(tol float64) SeederOption {
	return func(s *KMeansSeeder) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// NewKMeansSeeder создаёт сеялку с настройками по умолчанию.
func NewKMeansSeeder(opts ...SeederOption) *KMeansSeeder {
	s := &KMeansSeeder{
		restarts:      DefaultRestarts,
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restarts возвращает число запусков.
func (s *KMeansSeeder) Restarts() int {
	return s.restarts
}

// MaxIterations возвращает предел итераций Ллойда.
func (s *KMeansSeeder) MaxIterations() int {
	return s.maxIterations
}

// Tolerance возвращает порог сходимости.
func (s *KMeansSeeder) Tolerance() float64 {
	return s.tolerance
}

// Seed возвращает ровно k центров в пространстве признаков.
func (s *KMeansSeeder) Seed(features [][]float64, k int, seed int64) ([][]float64, error) {
	n := len(features)
	if k < 1 || k > n {
		return nil, shared.NewDomainError("grouping", "Seed", shared.ErrInvalidConfiguration,
			fmt.Sprintf("cannot seed %d centers from %d points", k, n))
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return nil, shared.NewDomainError("grouping", "Seed", shared.ErrInvalidFormat,
				fmt.Sprintf("row %d has width %d, want %d", i, len(row), width))
		}
	}

	if k == n {
		return copyRows(features), nil
	}

	var best [][]float64
	bestInertia := math.Inf(1)
	for r := 0; r < s.restarts; r++ {
		rng := rand.New(rand.NewSource(seed + int64(r)))
		centers, inertia := s.run(features, k, rng)
		if inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}
	return best, nil
}

// run - один запуск: k-means++ и итерации Ллойда.
func (s *KMeansSeeder) run(features [][]float64, k int, rng *rand.Rand) ([][]float64, float64) {
	centers := initPlusPlus(features, k, rng)
	labels := make([]int, len(features))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < s.maxIterations; iter++ {
		changed := assignNearest(features, centers, labels)
		next := recomputeCenters(features, labels, centers)

		shift := 0.0
		for c := range centers {
			shift += squaredEuclidean(centers[c], next[c])
		}
		centers = next

		if !changed || shift <= s.tolerance {
			break
		}
	}

	assignNearest(features, centers, labels)
	return centers, inertia(features, centers, labels)
}

// initPlusPlus выбирает начальные центры с вероятностью, пропорциональной
// квадрату расстояния до ближайшего уже выбранного центра.
func initPlusPlus(features [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(features)
	centers := make([][]float64, 0, k)
	centers = append(centers, copyRow(features[rng.Intn(n)]))

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = squaredEuclidean(features[i], centers[0])
	}

	for len(centers) < k {
		total := 0.0
		for _, w := range weights {
			total += w
		}

		var pick int
		if total == 0 {
			pick = rng.Intn(n)
		} else {
			threshold := rng.Float64() * total
			pick = -1
			cum := 0.0
			lastPositive := 0
			for i, w := range weights {
				if w > 0 {
					lastPositive = i
				}
				cum += w
				if cum > threshold {
					pick = i
					break
				}
			}
			if pick < 0 {
				pick = lastPositive
			}
		}

		center := copyRow(features[pick])
		centers = append(centers, center)
		for i := range weights {
			if d := squaredEuclidean(features[i], center); d < weights[i] {
				weights[i] = d
			}
		}
	}
	return centers
}

// assignNearest обновляет метки и сообщает, изменилась ли хоть одна.
func assignNearest(features, centers [][]float64, labels []int) bool {
	changed := false
	for i, row := range features {
		best, bestDist := 0, math.Inf(1)
		for c, center := range centers {
			if d := squaredEuclidean(row, center); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recomputeCenters усредняет точки кластеров. Пустой кластер получает точку,
// самую далёкую от своего центра; одна точка не отдаётся двум кластерам.
func recomputeCenters(features [][]float64, labels []int, prev [][]float64) [][]float64 {
	k := len(prev)
	width := len(features[0])
	next := make([][]float64, k)
	counts := make([]int, k)
	for c := range next {
		next[c] = make([]float64, width)
	}
	for i, row := range features {
		c := labels[i]
		counts[c]++
		for j, v := range row {
			next[c][j] += v
		}
	}

	var far []float64
	for c := range next {
		if counts[c] > 0 {
			for j := range next[c] {
				next[c][j] /= float64(counts[c])
			}
			continue
		}

		if far == nil {
			far = make([]float64, len(features))
			for i, row := range features {
				far[i] = squaredEuclidean(row, prev[labels[i]])
			}
		}
		idx := 0
		for i := range far {
			if far[i] > far[idx] {
				idx = i
			}
		}
		next[c] = copyRow(features[idx])
		far[idx] = -1
	}
	return next
}

func inertia(features, centers [][]float64, labels []int) float64 {
	total := 0.0
	for i, row := range features {
		total += squaredEuclidean(row, centers[labels[i]])
	}
	return total
}

func copyRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = copyRow(row)
	}
	return out
}
