package registrations

import (
	"encoding/json"
	"testing"

	"github.com/example/takeover-week/internal/sessions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguages(t *testing.T) {
	assert.Len(t, Languages, 12)
	assert.True(t, ValidLanguage("Haitian Creole"))
	assert.False(t, ValidLanguage("haitian creole"))
	assert.False(t, ValidLanguage("Klingon"))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusConfirmed.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("PENDING").Valid())
}

func TestWithSessionFlattensJSON(t *testing.T) {
	sid := uuid.New()
	w := WithSession{
		Registration: Registration{ID: uuid.New(), SessionID: sid, Name: "Jane Doe", Status: StatusConfirmed},
		Session:      &sessions.Session{ID: sid, ProgramName: "Robotics"},
	}
	b, err := json.Marshal(w)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "Jane Doe", m["name"])
	assert.Equal(t, "CONFIRMED", m["status"])
	assert.Equal(t, false, m["emailSent"])
	assert.Equal(t, "Robotics", m["session"].(map[string]any)["programName"])
}

func TestIDStrings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, []string{a.String(), b.String()}, idStrings([]uuid.UUID{a, b}))
}
