package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/metrocollab/grouper/internal/domain/roster"
)

// formRow is one student_form row joined with its user id.
type formRow struct {
	StudentID    int64
	Skills       string
	Interests    string
	Availability string
	HoursPerWeek string
}

// decodeForm turns the JSON text columns into a normalized StudentRecord.
//
// skills and interests must be JSON arrays of strings, availability a JSON
// object of day -> periods. hours_per_week is stored as a JSON string such as
// "10-15"; a bare unquoted value is accepted as well. Any other JSON type is a
// malformed record.
func decodeForm(row formRow) (roster.StudentRecord, error) {
	id := fmt.Sprintf("%d", row.StudentID)

	var rec roster.StudentRecord
	rec.ID = id

	if err := decodeColumn(row.Skills, &rec.Skills); err != nil {
		return rec, roster.MalformedRecordError(id, fmt.Errorf("skills: %w", err))
	}
	if err := decodeColumn(row.Interests, &rec.Interests); err != nil {
		return rec, roster.MalformedRecordError(id, fmt.Errorf("interests: %w", err))
	}
	if err := decodeColumn(row.Availability, &rec.Availability); err != nil {
		return rec, roster.MalformedRecordError(id, fmt.Errorf("availability: %w", err))
	}

	hours, err := decodeHours(row.HoursPerWeek)
	if err != nil {
		return rec, roster.MalformedRecordError(id, fmt.Errorf("hours_per_week: %w", err))
	}
	rec.HoursBucket = roster.HoursBucket(hours)

	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// decodeColumn treats an empty column or JSON null as "no value".
func decodeColumn(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func decodeHours(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}

	// reject other JSON values: numbers, arrays, objects, booleans
	var v any
	if json.Unmarshal([]byte(raw), &v) == nil {
		return "", fmt.Errorf("expected a string, got %s", raw)
	}
	return strings.Trim(raw, `"`), nil
}
