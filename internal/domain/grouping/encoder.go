package grouping

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDING PROVIDER
// ══════════════════════════════════════════════════════════════════════════════

// EmbeddingProvider - предобученная таблица эмбеддингов слов.
// Загружается один раз при старте процесса и далее только читается.
type EmbeddingProvider interface {
	// Lookup возвращает вектор слова или false, если слова нет в словаре.
	Lookup(token string) ([]float64, bool)

	// Dimensions возвращает размерность векторов.
	Dimensions() int
}

// IdentifiedProvider - провайдер, умеющий назвать своё содержимое.
// Идентичность входит в отпечаток запуска: другая таблица - другой ключ кеша.
type IdentifiedProvider interface {
	EmbeddingProvider
	Identity() string
}

// noEmbeddings - провайдер без словаря: блок навыков нулевой ширины.
type noEmbeddings struct{}

func (noEmbeddings) Identity() string { return "none" }

func (noEmbeddings) Lookup(string) ([]float64, bool) { return nil, false }
func (noEmbeddings) Dimensions() int                 { return 0 }

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE MATRIX
// ══════════════════════════════════════════════════════════════════════════════

// Vocabulary - словари одной партии, определяющие ширину блоков.
type Vocabulary struct {
	EmbeddingDim int      `json:"embedding_dim"`
	Interests    []string `json:"interests"`
	Slots        []string `json:"slots"`
}

// Width возвращает длину вектора признаков.
func (v Vocabulary) Width() int {
	return v.EmbeddingDim + len(v.Interests) + len(v.Slots) + 1
}

// Equal сравнивает словари поэлементно.
func (v Vocabulary) Equal(other Vocabulary) bool {
	return v.EmbeddingDim == other.EmbeddingDim &&
		equalStrings(v.Interests, other.Interests) &&
		equalStrings(v.Slots, other.Slots)
}

// FeatureMatrix - векторы признаков в порядке входных записей.
// Создаётся один раз и не изменяется.
type FeatureMatrix struct {
	Rows       [][]float64
	Vocabulary Vocabulary
}

// Len возвращает число строк.
func (m *FeatureMatrix) Len() int {
	return len(m.Rows)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENCODER
// ══════════════════════════════════════════════════════════════════════════════

// Encoder превращает анкеты в векторы:
// навыки (средний эмбеддинг) | интересы (one-hot) | слоты (one-hot) | часы.
type Encoder struct {
	provider EmbeddingProvider
	workers  int
}

// EncoderOption настраивает Encoder.
type EncoderOption func(*Encoder)

// WithEncoderWorkers ограничивает число горутин при построении строк.
func WithEncoderWorkers(n int) EncoderOption {
	return func(e *Encoder) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEncoder создаёт кодировщик. nil провайдер отключает блок навыков.
func NewEncoder(provider EmbeddingProvider, opts ...EncoderOption) *Encoder {
	if provider == nil {
		provider = noEmbeddings{}
	}
	e := &Encoder{
		provider: provider,
		workers:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimensions возвращает ширину блока навыков.
func (e *Encoder) Dimensions() int {
	return e.provider.Dimensions()
}

// ProviderIdentity возвращает идентичность таблицы эмбеддингов. Провайдер
// без Identity опознаётся по типу и размерности.
func (e *Encoder) ProviderIdentity() string {
	if p, ok := e.provider.(IdentifiedProvider); ok {
		return p.Identity()
	}
	return fmt.Sprintf("%T/%d", e.provider, e.provider.Dimensions())
}

// Encode строит матрицу признаков. Словари интересов и слотов собираются
// по всей партии до того, как будет построена хоть одна строка.
func (e *Encoder) Encode(records []roster.StudentRecord) (*FeatureMatrix, error) {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	vocab := BuildVocabulary(records, e.provider.Dimensions())
	interestIdx := indexOf(vocab.Interests)
	slotIdx := indexOf(vocab.Slots)

	rows := make([][]float64, len(records))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range records {
		g.Go(func() error {
			row, err := e.encodeRow(records[i], vocab, interestIdx, slotIdx)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &FeatureMatrix{Rows: rows, Vocabulary: vocab}, nil
}

// BuildVocabulary собирает отсортированные словари интересов и слотов партии.
func BuildVocabulary(records []roster.StudentRecord, embeddingDim int) Vocabulary {
	interests := make(map[string]struct{})
	slots := make(map[string]struct{})
	for _, r := range records {
		for _, in := range r.Interests {
			interests[in] = struct{}{}
		}
		for _, s := range r.Availability.Slots() {
			slots[s] = struct{}{}
		}
	}
	return Vocabulary{
		EmbeddingDim: embeddingDim,
		Interests:    sortedKeys(interests),
		Slots:        sortedKeys(slots),
	}
}

func (e *Encoder) encodeRow(r roster.StudentRecord, vocab Vocabulary, interestIdx, slotIdx map[string]int) ([]float64, error) {
	row := make([]float64, vocab.Width())

	skills, err := e.skillVector(r)
	if err != nil {
		return nil, err
	}
	copy(row, skills)

	offset := vocab.EmbeddingDim
	for _, in := range r.Interests {
		row[offset+interestIdx[in]] = 1
	}

	offset += len(vocab.Interests)
	for _, s := range r.Availability.Slots() {
		row[offset+slotIdx[s]] = 1
	}

	row[len(row)-1] = float64(r.HoursBucket.Ordinal())
	return row, nil
}

// skillVector - среднее векторов навыков. Навык без известных токенов
// даёт нулевой вектор и участвует в среднем; без навыков - нулевой вектор.
func (e *Encoder) skillVector(r roster.StudentRecord) ([]float64, error) {
	dim := e.provider.Dimensions()
	sum := make([]float64, dim)
	if len(r.Skills) == 0 || dim == 0 {
		return sum, nil
	}

	for _, skill := range r.Skills {
		vec, ok, err := e.phraseVector(skill, dim)
		if err != nil {
			return nil, roster.MalformedRecordError(r.ID, err)
		}
		if !ok {
			continue
		}
		for i, v := range vec {
			sum[i] += v
		}
	}

	for i := range sum {
		sum[i] /= float64(len(r.Skills))
	}
	return sum, nil
}

// phraseVector - средний эмбеддинг найденных слов фразы.
func (e *Encoder) phraseVector(phrase string, dim int) ([]float64, bool, error) {
	tokens := strings.Fields(strings.ToLower(phrase))
	sum := make([]float64, dim)
	found := 0

	for _, tok := range tokens {
		vec, ok := e.provider.Lookup(tok)
		if !ok {
			continue
		}
		if len(vec) != dim {
			return nil, false, shared.NewDomainError("grouping", "Encode", shared.ErrInvalidFormat,
				fmt.Sprintf("embedding for %q has %d dimensions, want %d", tok, len(vec), dim))
		}
		for i, v := range vec {
			sum[i] += v
		}
		found++
	}

	if found == 0 {
		return nil, false, nil
	}
	for i := range sum {
		sum[i] /= float64(found)
	}
	return sum, true, nil
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
