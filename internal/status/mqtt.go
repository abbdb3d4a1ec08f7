package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"
)

const publishTimeout = 2 * time.Second

type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes every status change as a retained JSON message.
type MQTTNotifier struct {
	client publisher
	topic  string
	qos    byte
	logger hclog.Logger

	published atomic.Uint64
	failures  atomic.Uint64
}

func NewMQTTNotifier(opts MQTTOptions, logger hclog.Logger) (*MQTTNotifier, error) {
	if opts.Broker == "" || opts.Topic == "" {
		return nil, errors.New("mqtt broker and topic are required")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("mqtt")

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(2 * time.Second)
	clientOpts.SetMaxReconnectInterval(30 * time.Second)
	clientOpts.OnConnect = func(mqtt.Client) {
		logger.Info("connected", "broker", opts.Broker)
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("connection lost, reconnecting", "broker", opts.Broker, "error", err)
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}
	return newMQTTNotifier(client, opts.Topic, opts.QoS, logger), nil
}

func newMQTTNotifier(client publisher, topic string, qos byte, logger hclog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &MQTTNotifier{client: client, topic: topic, qos: qos, logger: logger}
}

func (n *MQTTNotifier) Publish(state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	token := n.client.Publish(n.topic, n.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		n.failures.Add(1)
		return errors.New("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		n.failures.Add(1)
		return fmt.Errorf("mqtt publish: %w", err)
	}
	n.published.Add(1)
	return nil
}

// Notify is a Tracker subscriber; failures are logged, not returned.
func (n *MQTTNotifier) Notify(state State) {
	if err := n.Publish(state); err != nil {
		n.logger.Warn("status publish failed", "topic", n.topic, "error", err)
	}
}

func (n *MQTTNotifier) Published() uint64 {
	return n.published.Load()
}

func (n *MQTTNotifier) Failures() uint64 {
	return n.failures.Load()
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
