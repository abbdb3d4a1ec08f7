// Package status tracks the user-visible sensor status line.
package status

import (
	"sync"
	"time"
)

type Code string

const (
	CodeRunning     Code = "running"
	CodeNoSensor    Code = "no_sensor"
	CodeUnavailable Code = "unavailable"
)

const (
	TextRunning     = "Running"
	TextNoSensor    = "No ready Kinect found!"
	TextUnavailable = "Kinect not available!"
)

func (c Code) Text() string {
	switch c {
	case CodeRunning:
		return TextRunning
	case CodeNoSensor:
		return TextNoSensor
	case CodeUnavailable:
		return TextUnavailable
	default:
		return ""
	}
}

type State struct {
	Code      Code      `json:"status"`
	Text      string    `json:"text"`
	Available bool      `json:"available"`
	Time      time.Time `json:"time"`
}

// Tracker holds the current status. Subscribers run synchronously on every
// change, outside the lock.
type Tracker struct {
	mu    sync.Mutex
	state State
	subs  []func(State)
	now   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Init sets the startup status: a sensor that is not available at start is
// reported as missing rather than lost.
func (t *Tracker) Init(available bool) {
	code := CodeNoSensor
	if available {
		code = CodeRunning
	}
	t.set(code, available, true)
}

// SetAvailable records an availability change after startup.
func (t *Tracker) SetAvailable(available bool) {
	code := CodeUnavailable
	if available {
		code = CodeRunning
	}
	t.set(code, available, false)
}

func (t *Tracker) set(code Code, available bool, force bool) {
	t.mu.Lock()
	if !force && t.state.Code == code {
		t.mu.Unlock()
		return
	}
	t.state = State{Code: code, Text: code.Text(), Available: available, Time: t.now()}
	state := t.state
	subs := append([]func(State){}, t.subs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Text() string {
	return t.State().Text
}

func (t *Tracker) Available() bool {
	return t.State().Available
}

func (t *Tracker) Subscribe(fn func(State)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}
