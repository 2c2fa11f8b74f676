package mqtt

import (
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeflux/tempagent/pkg/metrics"
	"github.com/edgeflux/tempagent/pkg/version"
)

var (
	// mqttClientID holds a reference to the application ID we send to a broker
	// when connecting
	mqttClientID = fmt.Sprintf("%s_agent", version.BinaryName)

	// publishCounter is a prometheus counter recording the number of payloads
	// mirrored to the broker
	publishCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "mqtt",
			Name:      "messages_published",
			Help:      "Count of MQTT messages published",
		},
	)
)

func init() {
	metrics.MustRegister(publishCounter)
}

// Publisher is our interface for the optional MQTT telemetry mirror. Payloads
// handed to Publish are forwarded to the configured topic.
type Publisher interface {
	Publish(payload []byte) error
}

// Config carries the broker address and topic the publisher writes to.
type Config struct {
	Broker string
	Topic  string
}

// publisher abstracts our connection to a single MQTT broker. The connection
// itself is only established when Start is called.
type publisher struct {
	broker string
	topic  string
	logger kitlog.Logger
	client paho.Client
}

// NewPublisher returns an instantiated publisher, ready to be started.
func NewPublisher(config *Config, logger kitlog.Logger) Publisher {
	logger = kitlog.With(logger, "module", "mqtt")

	logger.Log("broker", config.Broker, "topic", config.Topic, "msg", "creating mqtt publisher")

	return &publisher{
		broker: config.Broker,
		topic:  config.Topic,
		logger: logger,
	}
}

// Start connects to the configured broker.
func (p *publisher) Start() error {
	opts := createClientOptions(p.broker, p.logger)

	p.logger.Log("broker", p.broker, "msg", "connecting to broker")

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "failed to connect to broker")
	}

	p.logger.Log("broker", p.broker, "msg", "mqtt connected")

	p.client = client

	return nil
}

// Stop disconnects from the broker if a connection was established.
func (p *publisher) Stop() error {
	if p.client != nil {
		p.client.Disconnect(500)
		p.client = nil
	}

	return nil
}

// Publish forwards the payload to the configured topic at QoS 0, waiting on
// the delivery token before returning.
func (p *publisher) Publish(payload []byte) error {
	if p.client == nil {
		return errors.New("mqtt publisher not started")
	}

	if token := p.client.Publish(p.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "failed to publish payload")
	}

	publishCounter.Inc()

	return nil
}

// createClientOptions initializes a set of ClientOptions for connecting to an
// MQTT broker.
func createClientOptions(broker string, logger kitlog.Logger) *paho.ClientOptions {
	logger.Log("broker", broker, "msg", "configuring client")

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(mqttClientID)
	opts.SetAutoReconnect(true)

	return opts
}
