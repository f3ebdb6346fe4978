package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// RosterRepository implements roster.Repository using PostgreSQL.
type RosterRepository struct {
	conn *Connection
}

// NewRosterRepository creates a new RosterRepository.
func NewRosterRepository(conn *Connection) *RosterRepository {
	return &RosterRepository{conn: conn}
}

var _ roster.Repository = (*RosterRepository)(nil)

const selectClassSQL = `
	SELECT group_code, total_students, min_students_per_group, max_students_per_group
	FROM teacher_group
	WHERE group_code = $1`

const selectFormsSQL = `
	SELECT u.id, f.skills, f.interests, f.availability, f.hours_per_week
	FROM users AS u
	JOIN student_form AS f ON f.student_id = u.id
	JOIN student_group AS g ON g.student_id = u.id
	WHERE g.group_code = $1
	ORDER BY u.id`

// GetRoster loads the class and every submitted form, ordered by student id.
func (r *RosterRepository) GetRoster(ctx context.Context, code string) (*roster.Roster, error) {
	class, err := r.getClass(ctx, r.conn, code)
	if err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, selectFormsSQL, code)
	if err != nil {
		return nil, fmt.Errorf("postgres: query forms for %s: %w", code, err)
	}
	forms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (formRow, error) {
		var f formRow
		err := row.Scan(&f.StudentID, &f.Skills, &f.Interests, &f.Availability, &f.HoursPerWeek)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan forms for %s: %w", code, err)
	}

	class.Students = make([]roster.StudentRecord, 0, len(forms))
	for _, f := range forms {
		rec, err := decodeForm(f)
		if err != nil {
			return nil, err
		}
		class.Students = append(class.Students, rec)
	}

	return class, nil
}

func (r *RosterRepository) getClass(ctx context.Context, q Querier, code string) (*roster.Roster, error) {
	class := &roster.Roster{}
	err := q.QueryRow(ctx, selectClassSQL, code).
		Scan(&class.Code, &class.TotalStudents, &class.MinSize, &class.MaxSize)
	if IsNoRows(err) {
		return nil, shared.WrapError("roster", "Find", shared.ErrNotFound,
			fmt.Sprintf("class %q", code), shared.ErrRosterNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get class %s: %w", code, err)
	}
	return class, nil
}

// SaveGroups writes every student's group number in one transaction.
// A student id that is not a member of the class aborts the whole write.
func (r *RosterRepository) SaveGroups(ctx context.Context, code string, groups map[int][]string) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := r.getClass(ctx, tx, code); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		type target struct {
			id    string
			group int
		}
		var targets []target
		for group, ids := range groups {
			for _, id := range ids {
				studentID, err := strconv.ParseInt(id, 10, 64)
				if err != nil {
					return roster.MalformedRecordError(id, err)
				}
				batch.Queue(
					"UPDATE student_group SET group_number = $1 WHERE student_id = $2 AND group_code = $3",
					group, studentID, code)
				targets = append(targets, target{id: id, group: group})
			}
		}

		results := tx.SendBatch(ctx, batch)
		for _, t := range targets {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("postgres: set group %d for student %s: %w", t.group, t.id, err)
			}
			if tag.RowsAffected() == 0 {
				_ = results.Close()
				return shared.NewDomainError("roster", "SaveGroups", shared.ErrNotFound,
					fmt.Sprintf("student %s is not in class %q", t.id, code))
			}
		}
		return results.Close()
	})
}

const selectGroupsSQL = `
	SELECT u.id, u.user_firstname, u.user_lastname, COALESCE(g.group_number, 0)
	FROM users AS u
	JOIN student_group AS g ON g.student_id = u.id
	WHERE g.group_code = $1
	ORDER BY COALESCE(g.group_number, 0), u.id`

// GetGroups lists the class members with their stored group numbers.
func (r *RosterRepository) GetGroups(ctx context.Context, code string) ([]roster.GroupMember, error) {
	if _, err := r.getClass(ctx, r.conn, code); err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, selectGroupsSQL, code)
	if err != nil {
		return nil, fmt.Errorf("postgres: query groups for %s: %w", code, err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (roster.GroupMember, error) {
		var (
			m  roster.GroupMember
			id int64
		)
		err := row.Scan(&id, &m.FirstName, &m.LastName, &m.GroupNumber)
		m.StudentID = strconv.FormatInt(id, 10)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan groups for %s: %w", code, err)
	}
	return members, nil
}
