package grouping

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(squaredEuclidean(a, b))
}

// distanceMatrix считает расстояние от каждого студента до каждого центра.
// Строки независимы, поэтому считаются параллельно; результат не зависит
// от числа воркеров. Строка другой ширины, чем центры, - нарушение
// инварианта кодировщика.
func distanceMatrix(features, centers [][]float64, workers int) ([][]float64, error) {
	out := make([][]float64, len(features))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range features {
		g.Go(func() error {
			row := make([]float64, len(centers))
			for c, center := range centers {
				if len(features[i]) != len(center) {
					return shared.NewDomainError("grouping", "Resolve", shared.ErrInternal,
						fmt.Sprintf("feature row %d has width %d, center %d has width %d", i, len(features[i]), c, len(center)))
				}
				row[c] = euclidean(features[i], center)
			}
			out[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// nearest возвращает индекс ближайшего центра; при равенстве - меньший индекс.
func nearest(distances []float64) int {
	best := 0
	for c := 1; c < len(distances); c++ {
		if distances[c] < distances[best] {
			best = c
		}
	}
	return best
}
