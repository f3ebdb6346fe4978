package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrocollab/grouper/internal/domain/roster"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

func TestDecodeForm(t *testing.T) {
	rec, err := decodeForm(formRow{
		StudentID:    17,
		Skills:       `["Python", "machine learning", "python"]`,
		Interests:    `["AI", " web "]`,
		Availability: `{"mon": ["morning", "evening"], "weekend": []}`,
		HoursPerWeek: `"10-15"`,
	})
	require.NoError(t, err)

	assert.Equal(t, "17", rec.ID)
	assert.Equal(t, []string{"python", "machine learning"}, rec.Skills)
	assert.Equal(t, []string{"ai", "web"}, rec.Interests)
	assert.Equal(t, []string{"mon_evening", "mon_morning"}, rec.Availability.Slots())
	assert.Equal(t, roster.Hours10To15, rec.HoursBucket)
	assert.Equal(t, 2, rec.HoursBucket.Ordinal())
}

func TestDecodeForm_EmptyColumns(t *testing.T) {
	rec, err := decodeForm(formRow{StudentID: 3, Skills: "", Interests: "null", Availability: "{}", HoursPerWeek: `""`})
	require.NoError(t, err)

	assert.Empty(t, rec.Skills)
	assert.Empty(t, rec.Interests)
	assert.Empty(t, rec.Availability.Slots())
	assert.Equal(t, 0, rec.HoursBucket.Ordinal())
}

func TestDecodeHours(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"20+"`, "20+", false},
		{`20+`, "20+", false},
		{`5-10`, "5-10", false},
		{`"weird"`, "weird", false},
		{``, "", false},
		{`12`, "", true},
		{`["5-10"]`, "", true},
		{`{"h": 1}`, "", true},
		{`true`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := decodeHours(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeForm_Malformed(t *testing.T) {
	base := formRow{StudentID: 9, Skills: `[]`, Interests: `[]`, Availability: `{}`, HoursPerWeek: `"5-10"`}

	tests := []struct {
		name   string
		mutate func(*formRow)
	}{
		{"skills not an array", func(r *formRow) { r.Skills = `"go"` }},
		{"interests invalid json", func(r *formRow) { r.Interests = `[ai` }},
		{"unknown day", func(r *formRow) { r.Availability = `{"sunday": ["morning"]}` }},
		{"unknown period", func(r *formRow) { r.Availability = `{"tue": ["night"]}` }},
		{"periods not a list", func(r *formRow) { r.Availability = `{"tue": "morning"}` }},
		{"numeric hours", func(r *formRow) { r.HoursPerWeek = `15` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := base
			tt.mutate(&row)
			_, err := decodeForm(row)
			require.Error(t, err)
			assert.True(t, shared.IsMalformedRecord(err))
			assert.Contains(t, err.Error(), `"9"`)
		})
	}
}
