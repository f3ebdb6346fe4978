// Package roster содержит доменную модель состава класса: анкеты студентов
// (навыки, интересы, доступность, часы в неделю) и границы размера групп.
// Здесь нет внешних зависимостей.
package roster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Day - ключ дня недели в анкете доступности.
type Day string

const (
	DayMonday    Day = "mon"
	DayTuesday   Day = "tue"
	DayWednesday Day = "wed"
	DayThursday  Day = "thu"
	DayFriday    Day = "fri"
	DayWeekend   Day = "weekend"
)

// Days возвращает все дни в каноническом порядке.
func Days() []Day {
	return []Day{DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DayWeekend}
}

// IsValid проверяет корректность ключа дня.
func (d Day) IsValid() bool {
	switch d {
	case DayMonday, DayTuesday, DayWednesday, DayThursday, DayFriday, DayWeekend:
		return true
	default:
		return false
	}
}

// Period - часть дня.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// IsValid проверяет корректность ключа периода.
func (p Period) IsValid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodEvening:
		return true
	default:
		return false
	}
}

// Availability - недельная доступность: день -> свободные периоды.
type Availability map[Day][]Period

// Validate проверяет, что все ключи дней и периодов из фиксированных наборов.
func (a Availability) Validate() error {
	for day, periods := range a {
		if !day.IsValid() {
			return fmt.Errorf("unknown availability day %q", day)
		}
		for _, p := range periods {
			if !p.IsValid() {
				return fmt.Errorf("unknown availability period %q for day %q", p, day)
			}
		}
	}
	return nil
}

// Slots возвращает отсортированные уникальные токены вида "day_period".
func (a Availability) Slots() []string {
	seen := make(map[string]struct{})
	slots := make([]string, 0)
	for day, periods := range a {
		for _, p := range periods {
			token := SlotToken(day, p)
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			slots = append(slots, token)
		}
	}
	sort.Strings(slots)
	return slots
}

// SlotToken склеивает день и период в один токен.
func SlotToken(day Day, period Period) string {
	return string(day) + "_" + string(period)
}

// HoursBucket - выбранный диапазон часов в неделю.
type HoursBucket string

const (
	Hours5To10  HoursBucket = "5-10"
	Hours10To15 HoursBucket = "10-15"
	Hours15To20 HoursBucket = "15-20"
	Hours20Plus HoursBucket = "20+"
)

// Ordinal возвращает порядковый номер диапазона (1..4).
// Нераспознанное значение даёт 0, это не ошибка.
func (h HoursBucket) Ordinal() int {
	switch h {
	case Hours5To10:
		return 1
	case Hours10To15:
		return 2
	case Hours15To20:
		return 3
	case Hours20Plus:
		return 4
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT RECORD
// ══════════════════════════════════════════════════════════════════════════════

// StudentRecord - анкета одного студента, уже размеченная тегами.
type StudentRecord struct {
	// ID - непрозрачный идентификатор, уникальный в пределах партии.
	ID string `json:"id"`

	// Skills - нормализованные навыки (lowercase).
	Skills []string `json:"skills"`

	// Interests - нормализованные интересы (lowercase).
	Interests []string `json:"interests"`

	// Availability - свободное время по дням.
	Availability Availability `json:"availability"`

	// HoursBucket - часы в неделю.
	HoursBucket HoursBucket `json:"hours_per_week"`
}

// Validate проверяет структурный контракт записи.
// Пустые наборы тегов допустимы, неизвестные ключи доступности - нет.
func (r StudentRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return shared.ErrEmptyStudentID
	}
	if err := r.Availability.Validate(); err != nil {
		return MalformedRecordError(r.ID, err)
	}
	return nil
}

// Normalize приводит теги к нижнему регистру, убирает пробелы по краям,
// пустые значения и дубликаты. Порядок первых вхождений сохраняется.
func (r StudentRecord) Normalize() StudentRecord {
	r.Skills = normalizeTags(r.Skills)
	r.Interests = normalizeTags(r.Interests)
	r.HoursBucket = HoursBucket(strings.TrimSpace(string(r.HoursBucket)))
	return r
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// MalformedRecordError помечает ошибку идентификатором студента.
func MalformedRecordError(studentID string, err error) error {
	return shared.WrapError("roster", "Validate", shared.ErrMalformedRecord,
		fmt.Sprintf("malformed record for student %q", studentID), err)
}

// ValidateBatch проверяет каждую запись и уникальность ID в партии.
func ValidateBatch(records []StudentRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, ok := seen[r.ID]; ok {
			return shared.NewDomainError("roster", "ValidateBatch", shared.ErrMalformedRecord,
				fmt.Sprintf("duplicate student id %q", r.ID))
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER
// ══════════════════════════════════════════════════════════════════════════════

// Roster - класс преподавателя: код, ожидаемое число студентов,
// границы размера групп и присланные анкеты.
type Roster struct {
	Code          string
	TotalStudents int
	MinSize       int
	MaxSize       int
	Students      []StudentRecord
}

// Submitted возвращает число присланных анкет.
func (r *Roster) Submitted() int {
	return len(r.Students)
}

// IsComplete возвращает true, когда все ожидаемые студенты прислали анкеты.
func (r *Roster) IsComplete() bool {
	return r.TotalStudents > 0 && len(r.Students) >= r.TotalStudents
}

// GroupMember - студент класса и номер его группы.
type GroupMember struct {
	StudentID string
	FirstName string
	LastName  string

	// GroupNumber - 0, пока группы не сформированы.
	GroupNumber int
}

// FullName возвращает имя и фамилию через пробел.
func (m GroupMember) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}
