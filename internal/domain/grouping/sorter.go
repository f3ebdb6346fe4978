// Package grouping содержит ядро распределения студентов по проектным группам:
// кодирование анкет в векторы, план размеров групп, поиск центров k-means
// и сбалансированное распределение с точными размерами групп.
//
// Всё ядро - чистые функции от входа; единственный источник случайности -
// явный seed поиска центров.
package grouping

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/pkg/logger"
)

// DefaultSeed совпадает с фиксированным random_state исходного алгоритма.
const DefaultSeed int64 = 42

// Этапы конвейера для метрик отказов.
const (
	StagePlan    = "plan"
	StageEncode  = "encode"
	StageSeed    = "seed"
	StageResolve = "resolve"
)

// Sorter собирает конвейер: план -> кодирование -> центры -> распределение.
type Sorter struct {
	encoder  *Encoder
	seeder   *KMeansSeeder
	strategy AssignmentStrategy
	seed     int64
	log      *logger.Logger
	metrics  Metrics
	now      func() time.Time
}

// SorterOption настраивает Sorter.
type SorterOption func(*Sorter)

// WithSeed задаёт seed поиска центров.
func WithSeed(seed int64) SorterOption {
	return func(s *Sorter) { s.seed = seed }
}

// WithStrategy задаёт стратегию распределения.
func WithStrategy(strategy AssignmentStrategy) SorterOption {
	return func(s *Sorter) {
		if strategy != nil {
			s.strategy = strategy
		}
	}
}

// WithSeeder задаёт поиск центров.
func WithSeeder(seeder *KMeansSeeder) SorterOption {
	return func(s *Sorter) {
		if seeder != nil {
			s.seeder = seeder
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.Logger) SorterOption {
	return func(s *Sorter) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics задаёт приёмник метрик.
func WithMetrics(m Metrics) SorterOption {
	return func(s *Sorter) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewSorter создаёт конвейер. По умолчанию: жадная стратегия, seed 42,
// 10 перезапусков k-means.
func NewSorter(encoder *Encoder, opts ...SorterOption) *Sorter {
	if encoder == nil {
		encoder = NewEncoder(nil)
	}
	s := &Sorter{
		encoder:  encoder,
		seeder:   NewKMeansSeeder(),
		strategy: NewGreedyStrategy(0),
		seed:     DefaultSeed,
		log:      logger.Nop(),
		metrics:  nopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("sorter"))
	return s
}

// Strategy возвращает имя стратегии распределения.
func (s *Sorter) Strategy() string {
	return s.strategy.Name()
}

// Fingerprint возвращает отпечаток входа с настройками этого конвейера.
func (s *Sorter) Fingerprint(records []roster.StudentRecord, bounds Bounds) string {
	return Fingerprint(FingerprintInput{
		Records:           records,
		Bounds:            bounds,
		Seed:              s.seed,
		Strategy:          s.strategy.Name(),
		Restarts:          s.seeder.Restarts(),
		MaxIterations:     s.seeder.MaxIterations(),
		Tolerance:         s.seeder.Tolerance(),
		EmbeddingDim:      s.encoder.Dimensions(),
		EmbeddingIdentity: s.encoder.ProviderIdentity(),
	})
}

// Sort распределяет студентов по группам.
//
// Ошибки конфигурации (пустой список, неверные границы) и некорректные записи
// возвращаются до любых вычислений. Невозможность точной упаковки и
// принудительные назначения - не ошибки, а предупреждения в Result.
func (s *Sorter) Sort(records []roster.StudentRecord, bounds Bounds) (*Result, error) {
	start := s.now()
	runID := uuid.NewString()
	log := s.log.With(logger.RunID(runID), logger.Strategy(s.strategy.Name()))

	plan, err := PlanGroups(len(records), bounds.MinSize, bounds.MaxSize)
	if err != nil {
		s.metrics.RecordFailure(StagePlan)
		return nil, err
	}
	if err := roster.ValidateBatch(records); err != nil {
		s.metrics.RecordFailure(StagePlan)
		return nil, err
	}

	log.Info("group plan selected",
		logger.Students(len(records)),
		logger.GroupCount(plan.GroupCount),
		logger.Any("sizes", plan.Sizes),
	)
	if plan.Fallback {
		log.Warn("no exact packing, using greedy fallback sizes",
			logger.Int("min_size", bounds.MinSize),
			logger.Int("max_size", bounds.MaxSize),
			logger.Any("sizes", plan.Sizes),
		)
	}

	matrix, err := s.encoder.Encode(records)
	if err != nil {
		s.metrics.RecordFailure(StageEncode)
		return nil, err
	}
	log.Debug("features encoded",
		logger.Int("width", matrix.Vocabulary.Width()),
		logger.Int("interests", len(matrix.Vocabulary.Interests)),
		logger.Int("slots", len(matrix.Vocabulary.Slots)),
	)

	centers, err := s.seeder.Seed(matrix.Rows, plan.GroupCount, s.seed)
	if err != nil {
		s.metrics.RecordFailure(StageSeed)
		return nil, fmt.Errorf("seed centers: %w", err)
	}

	res, err := s.strategy.Resolve(matrix.Rows, centers, plan.Sizes)
	if err != nil {
		s.metrics.RecordFailure(StageResolve)
		return nil, fmt.Errorf("resolve assignment: %w", err)
	}
	if res.Forced > 0 {
		log.Warn("students force-assigned after greedy pass", logger.Int("forced", res.Forced))
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	assignment, groups := buildGroups(ids, res.Labels, plan.GroupCount)

	result := &Result{
		RunID:       runID,
		Fingerprint: s.Fingerprint(records, bounds),
		Strategy:    s.strategy.Name(),
		Bounds:      bounds,
		Plan:        plan,
		Assignment:  assignment,
		Groups:      groups,
		Warnings:    collectWarnings(plan, bounds, res.Forced),
		CreatedAt:   start.UTC(),
	}

	elapsed := s.now().Sub(start)
	s.metrics.RecordRun(result.Strategy, elapsed, len(records), plan.GroupCount)
	for _, w := range result.Warnings {
		s.metrics.RecordWarning(w.Code)
	}
	log.Info("grouping completed",
		logger.GroupCount(plan.GroupCount),
		logger.Int("warnings", len(result.Warnings)),
		logger.Latency(elapsed),
	)

	return result, nil
}
