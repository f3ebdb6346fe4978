package grouping

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

func twoBlobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0, 1}, {1, 0},
		{10, 10}, {10, 11}, {11, 10},
	}
}

func TestKMeansSeeder_FindsSeparatedClusters(t *testing.T) {
	centers, err := NewKMeansSeeder().Seed(twoBlobs(), 2, DefaultSeed)
	require.NoError(t, err)
	require.Len(t, centers, 2)

	sort.Slice(centers, func(i, j int) bool { return centers[i][0] < centers[j][0] })
	assert.InDelta(t, 1.0/3.0, centers[0][0], 1e-9)
	assert.InDelta(t, 1.0/3.0, centers[0][1], 1e-9)
	assert.InDelta(t, 31.0/3.0, centers[1][0], 1e-9)
	assert.InDelta(t, 31.0/3.0, centers[1][1], 1e-9)
}

func TestKMeansSeeder_Deterministic(t *testing.T) {
	m, err := NewEncoder(testEmbeddings()).Encode(sampleRoster(30))
	require.NoError(t, err)

	seeder := NewKMeansSeeder(WithRestarts(5))
	first, err := seeder.Seed(m.Rows, 6, 7)
	require.NoError(t, err)
	second, err := seeder.Seed(m.Rows, 6, 7)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("centers differ between runs:\n%s", diff)
	}
}

func TestKMeansSeeder_KEqualsN(t *testing.T) {
	points := [][]float64{{1, 2}, {3, 4}}
	centers, err := NewKMeansSeeder().Seed(points, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, points, centers)

	centers[0][0] = 99
	assert.Equal(t, 1.0, points[0][0], "input must not be aliased")
}

func TestKMeansSeeder_SingleCluster(t *testing.T) {
	centers, err := NewKMeansSeeder().Seed([][]float64{{0, 0}, {2, 0}, {4, 6}}, 1, 1)
	require.NoError(t, err)
	require.Len(t, centers, 1)
	assert.InDelta(t, 2.0, centers[0][0], 1e-9)
	assert.InDelta(t, 2.0, centers[0][1], 1e-9)
}

func TestKMeansSeeder_DuplicatePoints(t *testing.T) {
	points := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	centers, err := NewKMeansSeeder().Seed(points, 2, 3)
	require.NoError(t, err)
	assert.Len(t, centers, 2)
}

func TestKMeansSeeder_Errors(t *testing.T) {
	seeder := NewKMeansSeeder()

	_, err := seeder.Seed(twoBlobs(), 7, 1)
	assert.True(t, shared.IsInvalidConfiguration(err))

	_, err = seeder.Seed(twoBlobs(), 0, 1)
	assert.True(t, shared.IsInvalidConfiguration(err))

	_, err = seeder.Seed([][]float64{{1, 2}, {3}}, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestKMeansSeeder_Options(t *testing.T) {
	s := NewKMeansSeeder(WithRestarts(3), WithMaxIterations(50), WithTolerance(0))
	assert.Equal(t, 3, s.Restarts())
	assert.Equal(t, 50, s.maxIterations)
	assert.Zero(t, s.tolerance)

	d := NewKMeansSeeder(WithRestarts(-1))
	assert.Equal(t, DefaultRestarts, d.Restarts())
}
