package query

import (
	"context"

	"github.com/metrocollab/grouper/internal/domain/grouping"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW PLAN QUERY
// Показывает число и размеры групп до кластеризации.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewPlanQuery содержит число студентов и границы размера групп.
type PreviewPlanQuery struct {
	Students int `json:"students"`
	MinSize  int `json:"min_size"`
	MaxSize  int `json:"max_size"`
}

// PlanView - план размеров групп.
type PlanView struct {
	Students   int                `json:"students"`
	GroupCount int                `json:"group_count"`
	Sizes      []int              `json:"sizes"`
	Fallback   bool               `json:"fallback"`
	Warnings   []grouping.Warning `json:"warnings,omitempty"`
}

// PreviewPlanHandler обрабатывает запрос плана.
type PreviewPlanHandler struct{}

// NewPreviewPlanHandler создаёт обработчик.
func NewPreviewPlanHandler() *PreviewPlanHandler {
	return &PreviewPlanHandler{}
}

// Handle выполняет запрос. Некорректные границы дают ErrInvalidConfiguration.
func (h *PreviewPlanHandler) Handle(_ context.Context, q PreviewPlanQuery) (*PlanView, error) {
	plan, err := grouping.PlanGroups(q.Students, q.MinSize, q.MaxSize)
	if err != nil {
		return nil, err
	}

	view := &PlanView{
		Students:   q.Students,
		GroupCount: plan.GroupCount,
		Sizes:      plan.Sizes,
		Fallback:   plan.Fallback,
		Warnings:   plan.Warnings(grouping.Bounds{MinSize: q.MinSize, MaxSize: q.MaxSize}),
	}
	return view, nil
}
