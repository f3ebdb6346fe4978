package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

type stubRepo struct {
	members map[string][]roster.GroupMember
}

func (s stubRepo) GetRoster(context.Context, string) (*roster.Roster, error) { return nil, nil }

func (s stubRepo) SaveGroups(context.Context, string, map[int][]string) error { return nil }

func (s stubRepo) GetGroups(_ context.Context, code string) ([]roster.GroupMember, error) {
	m, ok := s.members[code]
	if !ok {
		return nil, shared.ErrRosterNotFound
	}
	return m, nil
}

func TestGetGroupsHandler(t *testing.T) {
	repo := stubRepo{members: map[string][]roster.GroupMember{
		"ABC": {
			{StudentID: "4", FirstName: "Dana", LastName: "Li"},
			{StudentID: "1", FirstName: "Ann", LastName: "Ng", GroupNumber: 2},
			{StudentID: "2", FirstName: "Bo", GroupNumber: 1},
			{StudentID: "3", FirstName: "Cy", LastName: "Ro", GroupNumber: 2},
		},
	}}

	view, err := NewGetGroupsHandler(repo).Handle(context.Background(), GetGroupsQuery{Code: " ABC "})
	require.NoError(t, err)

	assert.Equal(t, "ABC", view.Code)
	require.Len(t, view.Groups, 2)
	assert.Equal(t, 1, view.Groups[0].Number)
	assert.Equal(t, []MemberDTO{{StudentID: "2", FullName: "Bo"}}, view.Groups[0].Members)
	assert.Equal(t, 2, view.Groups[1].Number)
	assert.Equal(t, []MemberDTO{
		{StudentID: "1", FullName: "Ann Ng"},
		{StudentID: "3", FullName: "Cy Ro"},
	}, view.Groups[1].Members)
	assert.Equal(t, []MemberDTO{{StudentID: "4", FullName: "Dana Li"}}, view.Unassigned)
}

func TestGetGroupsHandler_Errors(t *testing.T) {
	h := NewGetGroupsHandler(stubRepo{})

	_, err := h.Handle(context.Background(), GetGroupsQuery{})
	assert.ErrorIs(t, err, shared.ErrEmptyClassCode)

	_, err = h.Handle(context.Background(), GetGroupsQuery{Code: "NOPE"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetGroupsHandler_NothingGenerated(t *testing.T) {
	repo := stubRepo{members: map[string][]roster.GroupMember{"ABC": nil}}

	view, err := NewGetGroupsHandler(repo).Handle(context.Background(), GetGroupsQuery{Code: "ABC"})
	require.NoError(t, err)
	assert.Empty(t, view.Groups)
	assert.NotNil(t, view.Groups)
	assert.Empty(t, view.Unassigned)
}

func TestPreviewPlanHandler(t *testing.T) {
	h := NewPreviewPlanHandler()

	view, err := h.Handle(context.Background(), PreviewPlanQuery{Students: 10, MinSize: 2, MaxSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, view.GroupCount)
	assert.Equal(t, []int{3, 3, 2, 2}, view.Sizes)
	assert.False(t, view.Fallback)
	assert.Empty(t, view.Warnings)

	view, err = h.Handle(context.Background(), PreviewPlanQuery{Students: 2, MinSize: 3, MaxSize: 4})
	require.NoError(t, err)
	assert.True(t, view.Fallback)
	require.NotEmpty(t, view.Warnings)
	assert.Equal(t, grouping.WarningInfeasiblePacking, view.Warnings[0].Code)

	_, err = h.Handle(context.Background(), PreviewPlanQuery{Students: 5, MinSize: 0, MaxSize: 3})
	assert.True(t, shared.IsInvalidConfiguration(err))
}
