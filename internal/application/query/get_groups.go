// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUPS QUERY
// Возвращает сохранённое распределение класса по группам.
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupsQuery содержит код класса.
type GetGroupsQuery struct {
	Code string
}

// Validate проверяет корректность параметров запроса.
func (q *GetGroupsQuery) Validate() error {
	q.Code = strings.TrimSpace(q.Code)
	if q.Code == "" {
		return shared.ErrEmptyClassCode
	}
	return nil
}

// MemberDTO - студент в составе группы.
type MemberDTO struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
}

// GroupDTO - одна группа.
type GroupDTO struct {
	Number  int         `json:"number"`
	Members []MemberDTO `json:"members"`
}

// GroupsView - распределение класса.
type GroupsView struct {
	Code   string     `json:"code"`
	Groups []GroupDTO `json:"groups"`

	// Unassigned - студенты без номера группы (группы ещё не сформированы
	// или студент присоединился позже).
	Unassigned []MemberDTO `json:"unassigned"`
}

// GetGroupsHandler обрабатывает запрос распределения.
type GetGroupsHandler struct {
	repo roster.Repository
}

// NewGetGroupsHandler создаёт обработчик.
func NewGetGroupsHandler(repo roster.Repository) *GetGroupsHandler {
	return &GetGroupsHandler{repo: repo}
}

// Handle выполняет запрос. Группы упорядочены по номеру, студенты внутри
// группы - в порядке репозитория.
func (h *GetGroupsHandler) Handle(ctx context.Context, q GetGroupsQuery) (*GroupsView, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	members, err := h.repo.GetGroups(ctx, q.Code)
	if err != nil {
		return nil, err
	}

	view := &GroupsView{Code: q.Code, Groups: []GroupDTO{}, Unassigned: []MemberDTO{}}
	byNumber := make(map[int]int)
	for _, m := range members {
		dto := MemberDTO{StudentID: m.StudentID, FullName: m.FullName()}
		if m.GroupNumber <= 0 {
			view.Unassigned = append(view.Unassigned, dto)
			continue
		}
		idx, ok := byNumber[m.GroupNumber]
		if !ok {
			idx = len(view.Groups)
			byNumber[m.GroupNumber] = idx
			view.Groups = append(view.Groups, GroupDTO{Number: m.GroupNumber})
		}
		view.Groups[idx].Members = append(view.Groups[idx].Members, dto)
	}

	slices.SortFunc(view.Groups, func(a, b GroupDTO) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return view, nil
}
