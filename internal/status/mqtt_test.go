package status

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (f fakeToken) Wait() bool                     { return true }
func (f fakeToken) WaitTimeout(time.Duration) bool { return true }
func (f fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f fakeToken) Error() error { return f.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	err          error
	messages     []published
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.messages = append(f.messages, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{err: f.err}
}

func (f *fakePublisher) Disconnect(uint) {
	f.disconnected = true
}

func TestMQTTNotifierPublishesRetained(t *testing.T) {
	pub := &fakePublisher{}
	n := newMQTTNotifier(pub, "depthview/status", 1, nil)
	tr := fixedTracker()
	tr.Subscribe(n.Notify)

	tr.Init(true)
	tr.SetAvailable(false)

	require.Len(t, pub.messages, 2)
	msg := pub.messages[1]
	assert.Equal(t, "depthview/status", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "unavailable", decoded["status"])
	assert.Equal(t, TextUnavailable, decoded["text"])
	assert.Equal(t, false, decoded["available"])
	assert.Equal(t, "2023-11-14T22:13:20Z", decoded["time"])
	assert.Equal(t, uint64(2), n.Published())

	n.Close()
	assert.True(t, pub.disconnected)
}

func TestMQTTNotifierCountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	n := newMQTTNotifier(pub, "t", 0, nil)

	assert.Error(t, n.Publish(State{Code: CodeRunning}))
	n.Notify(State{Code: CodeRunning})
	assert.Equal(t, uint64(2), n.Failures())
	assert.Zero(t, n.Published())
}

func TestNewMQTTNotifierRequiresBroker(t *testing.T) {
	_, err := NewMQTTNotifier(MQTTOptions{Topic: "x"}, nil)
	assert.Error(t, err)
}
