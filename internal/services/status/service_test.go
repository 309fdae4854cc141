package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestTrack(t *testing.T) {
	s := NewService(arbor.NewLogger())
	assert.Equal(t, StateIdle, s.GetState())

	err := s.Track(StateSyncing, map[string]interface{}{"trigger": "manual"}, func() error {
		assert.Equal(t, StateSyncing, s.GetState())
		assert.Equal(t, "manual", s.GetStatus()["metadata"].(map[string]interface{})["trigger"])
		return errors.New("feed unreachable")
	})

	assert.EqualError(t, err, "feed unreachable")
	assert.Equal(t, StateIdle, s.GetState())
	assert.Empty(t, s.GetStatus()["metadata"])
}
