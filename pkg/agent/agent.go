package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/metrics"
	"github.com/edgeflux/tempagent/pkg/mqtt"
	"github.com/edgeflux/tempagent/pkg/onewire"
	"github.com/edgeflux/tempagent/pkg/uploader"
)

// DefaultInterval is the delay between read cycles.
const DefaultInterval = 2 * time.Second

var (
	// readingCounter is a prometheus counter recording the number of
	// successful probe readings.
	readingCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "agent",
			Name:      "readings",
			Help:      "Count of successful temperature readings",
		},
	)

	// reconnectCounter is a prometheus counter recording reconnect attempts
	// triggered by failed uploads.
	reconnectCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "agent",
			Name:      "reconnects",
			Help:      "Count of reconnect attempts triggered by failed uploads",
		},
	)
)

func init() {
	metrics.MustRegister(readingCounter)
	metrics.MustRegister(reconnectCounter)
}

// Connector is the view of the WiFi link the agent loop drives: a current
// connected flag, and the ability to attempt a (re)connect.
type Connector interface {
	Connected() bool
	Connect(ctx context.Context) bool
}

// Config carries the agent's collaborators and settings. All collaborators
// are injected so the loop can be driven deterministically in tests.
type Config struct {
	Bus       onewire.Bus
	Connector Connector
	Uploader  uploader.Uploader

	// Publisher is the optional MQTT mirror; nil disables mirroring.
	Publisher mqtt.Publisher

	// Indicator defaults to a no-op when nil.
	Indicator Indicator

	Clock clock.Clock

	// Interval between read cycles. Defaults to DefaultInterval.
	Interval time.Duration

	// DeviceID tags mirrored payloads. Defaults to the uploader's default.
	DeviceID string
}

// Agent is the top level control loop: per cycle it triggers a conversion,
// reads every discovered probe, uploads each reading while the link is up,
// and drives a reconnect after a failed upload. Single-threaded; every
// operation blocks the loop until complete.
type Agent struct {
	bus       onewire.Bus
	connector Connector
	uploader  uploader.Uploader
	publisher mqtt.Publisher
	indicator Indicator
	clock     clock.Clock
	interval  time.Duration
	deviceID  string
	logger    kitlog.Logger
}

// NewAgent returns an Agent ready to run.
func NewAgent(config *Config, logger kitlog.Logger) *Agent {
	logger = kitlog.With(logger, "module", "agent")

	interval := config.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	indicator := config.Indicator
	if indicator == nil {
		indicator = NewNoopIndicator()
	}

	deviceID := config.DeviceID
	if deviceID == "" {
		deviceID = uploader.DefaultDeviceID
	}

	logger.Log("interval", interval.String(), "msg", "creating agent")

	return &Agent{
		bus:       config.Bus,
		connector: config.Connector,
		uploader:  config.Uploader,
		publisher: config.Publisher,
		indicator: indicator,
		clock:     config.Clock,
		interval:  interval,
		deviceID:  deviceID,
		logger:    logger,
	}
}

// Run executes the monitoring loop until the context is cancelled. Probes are
// discovered once at startup; an empty bus is a warning, not an error, and
// the loop proceeds with nothing to read. The initial WiFi connect also
// happens here; later reconnects are driven only by failed uploads.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Log("run_id", uuid.New().String(), "msg", "starting temperature monitoring")

	addrs, err := a.bus.Scan()
	if err != nil {
		a.logger.Log("err", err, "msg", "probe scan failed")
	}

	if len(addrs) == 0 {
		a.logger.Log("msg", "no temperature probes found, check wiring")
	} else {
		a.logger.Log("found", len(addrs), "msg", "discovered probes")
	}

	a.connector.Connect(ctx)

	for {
		if ctx.Err() != nil {
			a.logger.Log("msg", "stopping agent")
			return nil
		}

		a.cycle(ctx, addrs)

		if err := a.clock.Sleep(ctx, a.interval); err != nil {
			a.logger.Log("msg", "stopping agent")
			return nil
		}
	}
}

// cycle performs one pass: indicator on, trigger a conversion, wait it out,
// read and ship every probe, indicator off.
func (a *Agent) cycle(ctx context.Context, addrs []onewire.Address) {
	if err := a.indicator.On(); err != nil {
		a.logger.Log("err", err, "msg", "failed to switch indicator on")
	}

	// switched off on every exit path so a cancelled cycle cannot leave the
	// signal latched on
	defer func() {
		if err := a.indicator.Off(); err != nil {
			a.logger.Log("err", err, "msg", "failed to switch indicator off")
		}
	}()

	if err := a.bus.TriggerConversion(); err != nil {
		a.logger.Log("err", err, "msg", "failed to trigger conversion")
	}

	if err := a.clock.Sleep(ctx, onewire.ConversionDelay); err != nil {
		return
	}

	for _, addr := range addrs {
		celsius, err := a.bus.Read(addr)
		if err != nil {
			a.logger.Log("addr", addr, "err", err, "msg", "failed to read probe")
			continue
		}

		readingCounter.Inc()

		a.logger.Log(
			"addr", addr,
			"celsius", fmt.Sprintf("%.1f", celsius),
			"fahrenheit", fmt.Sprintf("%.1f", Fahrenheit(celsius)),
			"msg", "temperature reading",
		)

		a.mirror(celsius)

		if a.connector.Connected() {
			if ok := a.uploader.Upload(ctx, celsius); !ok {
				a.logger.Log("addr", addr, "msg", "failed to send data, attempting reconnect")
				reconnectCounter.Inc()
				a.connector.Connect(ctx)
			}
		}
	}
}

// mirror publishes the reading to the MQTT sink when one is configured.
// Failures are logged and never influence the upload path.
func (a *Agent) mirror(celsius float64) {
	if a.publisher == nil {
		return
	}

	payload := uploader.NewPayload(celsius, a.clock.Now(), a.deviceID)

	b, err := json.Marshal(payload)
	if err != nil {
		a.logger.Log("err", err, "msg", "failed to marshal mirror payload")
		return
	}

	if err := a.publisher.Publish(b); err != nil {
		a.logger.Log("err", err, "msg", "failed to mirror payload")
	}
}
