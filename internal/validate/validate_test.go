package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pick struct {
	Date string `json:"date" validate:"required,isodate"`
	Time string `json:"time" validate:"required,hhmm"`
}

type sample struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Language string  `json:"language" validate:"omitempty,language"`
	Platform *string `json:"meetingPlatform" validate:"omitempty,platform"`
	First    pick    `json:"session1"`
}

func valid() sample {
	return sample{
		Name:  "Jane Doe",
		Email: "jane@schools.nyc.gov",
		First: pick{Date: "2025-02-26", Time: "11:00"},
	}
}

func TestStructOK(t *testing.T) {
	assert.NoError(t, Struct(context.Background(), valid()))
}

func TestStructMessages(t *testing.T) {
	zoom, fax := "zoom", "fax"
	tests := []struct {
		name string
		mut  func(*sample)
		msg  string
	}{
		{"missing reported together", func(s *sample) { s.Name = ""; s.First.Date = "" }, "Missing required fields: name, session1.date"},
		{"bad email", func(s *sample) { s.Email = "jane" }, "email must be a valid email address"},
		{"bad date", func(s *sample) { s.First.Date = "2/26/2025" }, "session1.date must be a date in YYYY-MM-DD format"},
		{"bad time", func(s *sample) { s.First.Time = "9:00" }, "session1.time must be a time in HH:MM format"},
		{"bad platform", func(s *sample) { s.Platform = &fax }, "meetingPlatform must be one of: none, zoom, teams"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mut(&s)
			err := Struct(context.Background(), s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	s := valid()
	s.Platform = &zoom
	s.Language = "Korean"
	assert.NoError(t, Struct(context.Background(), s))
}

func TestLanguageTag(t *testing.T) {
	s := valid()
	s.Language = "Esperanto"
	err := Struct(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "language must be one of: English")
}
