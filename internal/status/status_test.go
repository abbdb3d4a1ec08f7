package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedTracker() *Tracker {
	tr := NewTracker()
	tr.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return tr
}

func TestTrackerInit(t *testing.T) {
	tr := fixedTracker()
	tr.Init(false)
	assert.Equal(t, TextNoSensor, tr.Text())
	assert.False(t, tr.Available())

	tr.Init(true)
	assert.Equal(t, TextRunning, tr.Text())
	assert.True(t, tr.Available())
}

func TestTrackerTransitions(t *testing.T) {
	tr := fixedTracker()
	var seen []string
	tr.Subscribe(func(s State) { seen = append(seen, s.Text) })

	tr.Init(true)
	tr.SetAvailable(true)
	tr.SetAvailable(false)
	tr.SetAvailable(false)
	tr.SetAvailable(true)

	assert.Equal(t, []string{TextRunning, TextUnavailable, TextRunning}, seen)
}

func TestTrackerLostAfterMissingStart(t *testing.T) {
	tr := fixedTracker()
	tr.Init(false)
	tr.SetAvailable(false)
	assert.Equal(t, TextUnavailable, tr.Text())
	assert.Equal(t, CodeUnavailable, tr.State().Code)
}

func TestCodeText(t *testing.T) {
	assert.Equal(t, "Running", CodeRunning.Text())
	assert.Equal(t, "No ready Kinect found!", CodeNoSensor.Text())
	assert.Equal(t, "Kinect not available!", CodeUnavailable.Text())
	assert.Empty(t, Code("other").Text())
}
