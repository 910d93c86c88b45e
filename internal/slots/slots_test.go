package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotValidate(t *testing.T) {
	ok := Slot{Date: "2025-02-26", Time: "11:00", SessionType: Daytime, Capacity: 2}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name string
		mut  func(*Slot)
	}{
		{"bad date", func(s *Slot) { s.Date = "02/26/2025" }},
		{"bad time", func(s *Slot) { s.Time = "11am" }},
		{"bad type", func(s *Slot) { s.SessionType = "morning" }},
		{"negative capacity", func(s *Slot) { s.Capacity = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mut(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSlotOpen(t *testing.T) {
	assert.True(t, Slot{Capacity: 1, Available: true}.Open())
	assert.False(t, Slot{Capacity: 0, Available: true}.Open())
	assert.False(t, Slot{Capacity: 3, Available: false}.Open())
}

func TestKey(t *testing.T) {
	s := Slot{Date: "2025-02-28", Time: "18:00", SessionType: Evening}
	assert.Equal(t, Key{Date: "2025-02-28", Time: "18:00", Type: Evening}, s.Key())
	assert.Equal(t, "2025-02-28 18:00", s.Key().String())
}
