package grouping

import (
	"fmt"
	"time"
)

// Assignment - ID студента -> номер группы (с 1).
type Assignment map[string]int

// WarningCode - код нефатального замечания к результату.
type WarningCode string

const (
	// WarningInfeasiblePacking - точного разбиения нет, план получен жадной упаковкой.
	WarningInfeasiblePacking WarningCode = "infeasible_packing"

	// WarningForcedAssignment - часть студентов назначена принудительно.
	WarningForcedAssignment WarningCode = "forced_assignment"

	// WarningGroupOutOfBounds - размер группы вне [min, max].
	WarningGroupOutOfBounds WarningCode = "group_out_of_bounds"
)

// Warning - замечание к результату. Не является ошибкой.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Result - итог одного запуска.
type Result struct {
	RunID       string           `json:"run_id"`
	Fingerprint string           `json:"fingerprint"`
	Strategy    string           `json:"strategy"`
	Bounds      Bounds           `json:"bounds"`
	Plan        Plan             `json:"plan"`
	Assignment  Assignment       `json:"assignment"`
	Groups      map[int][]string `json:"groups"`
	Warnings    []Warning        `json:"warnings,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// HasWarning проверяет наличие замечания с кодом.
func (r *Result) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// GroupSizes возвращает размеры групп в порядке номеров.
func (r *Result) GroupSizes() []int {
	sizes := make([]int, r.Plan.GroupCount)
	for label, ids := range r.Groups {
		if label >= 1 && label <= len(sizes) {
			sizes[label-1] = len(ids)
		}
	}
	return sizes
}

// buildGroups превращает метки в карту группа -> ID в порядке ввода.
func buildGroups(ids []string, labels []int, k int) (Assignment, map[int][]string) {
	assignment := make(Assignment, len(ids))
	groups := make(map[int][]string, k)
	for label := 1; label <= k; label++ {
		groups[label] = []string{}
	}
	for i, id := range ids {
		label := labels[i] + 1
		assignment[id] = label
		groups[label] = append(groups[label], id)
	}
	return assignment, groups
}

// Warnings возвращает замечания плана: пусто, если упаковка точная.
func (p Plan) Warnings(bounds Bounds) []Warning {
	if !p.Fallback {
		return nil
	}
	warnings := []Warning{{
		Code:    WarningInfeasiblePacking,
		Message: fmt.Sprintf("no exact packing into [%d,%d]; greedy sizes %v", bounds.MinSize, bounds.MaxSize, p.Sizes),
	}}
	for _, idx := range p.OutOfBounds(bounds) {
		warnings = append(warnings, Warning{
			Code:    WarningGroupOutOfBounds,
			Message: fmt.Sprintf("group %d has %d students", idx+1, p.Sizes[idx]),
		})
	}
	return warnings
}

// collectWarnings собирает замечания плана и распределения.
func collectWarnings(plan Plan, bounds Bounds, forced int) []Warning {
	warnings := plan.Warnings(bounds)
	if forced > 0 {
		warnings = append(warnings, Warning{
			Code:    WarningForcedAssignment,
			Message: fmt.Sprintf("%d students force-assigned after the greedy pass", forced),
		})
	}
	return warnings
}
