package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// testDatabaseURLEnv names a disposable PostgreSQL database for the
// repository tests. They are skipped when it is unset.
const testDatabaseURLEnv = "GROUPER_TEST_DATABASE_URL"

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

func testConnection(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv(testDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := NewConnectionFromURL(ctx, url, PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	return conn
}

type fixtureStudent struct {
	first, last string
	form        *formRow // nil: joined but not submitted
}

// seedClass creates a teacher, a class with a unique code and its students.
// Returns the code and the student ids in insertion order.
func seedClass(t *testing.T, conn *Connection, total, minSize, maxSize int, students []fixtureStudent) (string, []string) {
	t.Helper()
	ctx := context.Background()
	code := "T" + uuid.NewString()[:8]

	var teacherID int64
	require.NoError(t, conn.QueryRow(ctx,
		`INSERT INTO users (user_firstname, user_lastname, user_type) VALUES ('Ada', 'Teacher', 1) RETURNING id`,
	).Scan(&teacherID))
	userIDs := []int64{teacherID}

	_, err := conn.Exec(ctx,
		`INSERT INTO teacher_group (teacher_id, group_code, total_students, min_students_per_group, max_students_per_group)
		 VALUES ($1, $2, $3, $4, $5)`,
		teacherID, code, total, minSize, maxSize)
	require.NoError(t, err)

	ids := make([]string, 0, len(students))
	for _, s := range students {
		var id int64
		require.NoError(t, conn.QueryRow(ctx,
			`INSERT INTO users (user_firstname, user_lastname) VALUES ($1, $2) RETURNING id`,
			s.first, s.last,
		).Scan(&id))
		userIDs = append(userIDs, id)
		ids = append(ids, strconv.FormatInt(id, 10))

		_, err := conn.Exec(ctx, `INSERT INTO student_group (student_id, group_code) VALUES ($1, $2)`, id, code)
		require.NoError(t, err)

		if s.form != nil {
			_, err := conn.Exec(ctx,
				`INSERT INTO student_form (student_id, skills, interests, availability, hours_per_week)
				 VALUES ($1, $2, $3, $4, $5)`,
				id, s.form.Skills, s.form.Interests, s.form.Availability, s.form.HoursPerWeek)
			require.NoError(t, err)
		}
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `DELETE FROM users WHERE id = ANY($1)`, userIDs)
	})
	return code, ids
}

func form(skills, hours string) *formRow {
	return &formRow{
		Skills:       skills,
		Interests:    `["web"]`,
		Availability: `{"mon": ["morning"]}`,
		HoursPerWeek: hours,
	}
}

func groupNumbers(t *testing.T, repo *RosterRepository, code string) map[string]int {
	t.Helper()
	members, err := repo.GetGroups(context.Background(), code)
	require.NoError(t, err)
	out := make(map[string]int, len(members))
	for _, m := range members {
		out[m.StudentID] = m.GroupNumber
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRosterRepository_GetRoster(t *testing.T) {
	conn := testConnection(t)
	repo := NewRosterRepository(conn)

	code, ids := seedClass(t, conn, 3, 2, 3, []fixtureStudent{
		{"Ann", "A", form(`["Go", "SQL"]`, `"10-15"`)},
		{"Ben", "B", form(`["python"]`, `"20+"`)},
		{"Cat", "C", nil},
	})

	class, err := repo.GetRoster(context.Background(), code)
	require.NoError(t, err)

	assert.Equal(t, code, class.Code)
	assert.Equal(t, 3, class.TotalStudents)
	assert.Equal(t, 2, class.MinSize)
	assert.Equal(t, 3, class.MaxSize)
	assert.Equal(t, 2, class.Submitted())
	assert.False(t, class.IsComplete())

	require.Len(t, class.Students, 2)
	assert.Equal(t, ids[0], class.Students[0].ID)
	assert.Equal(t, []string{"go", "sql"}, class.Students[0].Skills)
	assert.Equal(t, roster.Hours10To15, class.Students[0].HoursBucket)
	assert.Equal(t, ids[1], class.Students[1].ID)
	assert.Equal(t, roster.Hours20Plus, class.Students[1].HoursBucket)
}

func TestRosterRepository_GetRoster_MalformedForm(t *testing.T) {
	conn := testConnection(t)
	repo := NewRosterRepository(conn)

	code, _ := seedClass(t, conn, 1, 1, 1, []fixtureStudent{
		{"Ann", "A", form(`["go"]`, `10`)},
	})

	_, err := repo.GetRoster(context.Background(), code)
	require.Error(t, err)
	assert.True(t, shared.IsMalformedRecord(err))
}

func TestRosterRepository_NotFound(t *testing.T) {
	repo := NewRosterRepository(testConnection(t))
	ctx := context.Background()

	_, err := repo.GetRoster(ctx, "NOPE-"+uuid.NewString()[:6])
	assert.True(t, shared.IsNotFound(err))

	_, err = repo.GetGroups(ctx, "NOPE-"+uuid.NewString()[:6])
	assert.True(t, shared.IsNotFound(err))

	err = repo.SaveGroups(ctx, "NOPE-"+uuid.NewString()[:6], map[int][]string{1: {"1"}})
	assert.True(t, shared.IsNotFound(err))
}

func TestRosterRepository_SaveAndGetGroups(t *testing.T) {
	conn := testConnection(t)
	repo := NewRosterRepository(conn)

	code, ids := seedClass(t, conn, 4, 2, 2, []fixtureStudent{
		{"Ann", "A", form(`[]`, `""`)},
		{"Ben", "B", form(`[]`, `""`)},
		{"Cat", "C", form(`[]`, `""`)},
		{"Dan", "D", form(`[]`, `""`)},
	})

	before := groupNumbers(t, repo, code)
	for _, id := range ids {
		assert.Zero(t, before[id], "student %s has no group yet", id)
	}

	require.NoError(t, repo.SaveGroups(context.Background(), code, map[int][]string{
		1: {ids[0], ids[3]},
		2: {ids[1], ids[2]},
	}))

	members, err := repo.GetGroups(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, []string{ids[0], ids[3], ids[1], ids[2]},
		[]string{members[0].StudentID, members[1].StudentID, members[2].StudentID, members[3].StudentID})
	assert.Equal(t, "Ann", members[0].FirstName)
	assert.Equal(t, "A", members[0].LastName)
	assert.Equal(t, 2, members[3].GroupNumber)
}

func TestRosterRepository_SaveGroups_AbortsOnUnknownStudent(t *testing.T) {
	conn := testConnection(t)
	repo := NewRosterRepository(conn)
	ctx := context.Background()

	code, ids := seedClass(t, conn, 2, 1, 2, []fixtureStudent{
		{"Ann", "A", form(`[]`, `""`)},
		{"Ben", "B", form(`[]`, `""`)},
	})
	require.NoError(t, repo.SaveGroups(ctx, code, map[int][]string{1: {ids[0], ids[1]}}))

	err := repo.SaveGroups(ctx, code, map[int][]string{
		2: {ids[0]},
		3: {ids[1], "999999999"},
	})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Contains(t, err.Error(), fmt.Sprintf("not in class %q", code))

	assert.Equal(t, map[string]int{ids[0]: 1, ids[1]: 1}, groupNumbers(t, repo, code))
}

func TestRosterRepository_SaveGroups_RejectsNonNumericID(t *testing.T) {
	conn := testConnection(t)
	repo := NewRosterRepository(conn)

	code, ids := seedClass(t, conn, 1, 1, 1, []fixtureStudent{{"Ann", "A", form(`[]`, `""`)}})

	err := repo.SaveGroups(context.Background(), code, map[int][]string{1: {"s-01"}})
	require.Error(t, err)
	assert.True(t, shared.IsMalformedRecord(err))
	assert.Equal(t, map[string]int{ids[0]: 0}, groupNumbers(t, repo, code))
}
