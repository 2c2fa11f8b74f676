package wifi

import (
	"context"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/metrics"
)

// Link status values reported by a Radio. The scale follows the cyw43
// convention used on Pico-class boards: negative values are terminal
// failures, StatusGotIP and above means the link is usable, anything in
// between means association is still in progress.
const (
	StatusBadAuth     = -3
	StatusNoNet       = -2
	StatusConnectFail = -1
	StatusLinkDown    = 0
	StatusJoining     = 1
	StatusNoIP        = 2
	StatusGotIP       = 3
)

const (
	// pollInterval is how long we wait between link status polls while
	// waiting for an association to complete.
	pollInterval = time.Second

	// maxPolls bounds the association wait. The poll loop simply exhausts
	// this counter; there is no cancellation beyond the caller's context.
	maxPolls = 10
)

var (
	// connectCounter is a prometheus counter recording connection attempts,
	// labelled by outcome.
	connectCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "wifi",
			Name:      "connect_attempts",
			Help:      "Count of WiFi connection attempts by outcome",
		}, []string{"outcome"},
	)
)

func init() {
	metrics.MustRegister(connectCounter)
}

// Radio is the capability interface the connector drives. Implementations
// talk to the actual wireless hardware; tests supply a scripted fake.
type Radio interface {
	// Activate brings the radio interface up.
	Activate() error

	// Join issues an association request for the given network. Returns
	// without waiting for the association to complete.
	Join(ssid, password string) error

	// Status reports the current link status on the scale defined above.
	Status() int

	// IP returns the address assigned to the interface once associated.
	IP() (string, error)
}

// Config carries the credentials the connector joins with.
type Config struct {
	SSID     string
	Password string
}

// Connector owns the two-state (connected / not connected) view of the WiFi
// link. It deliberately carries no retry or backoff logic of its own; a
// reconnect happens only when the caller invokes Connect again.
type Connector struct {
	radio     Radio
	clock     clock.Clock
	logger    kitlog.Logger
	ssid      string
	password  string
	connected bool
}

// NewConnector returns a Connector ready for use. The radio and clock are
// injected so association sequences can be simulated in tests.
func NewConnector(config *Config, radio Radio, cl clock.Clock, logger kitlog.Logger) *Connector {
	logger = kitlog.With(logger, "module", "wifi")

	logger.Log("ssid", config.SSID, "msg", "creating connector")

	return &Connector{
		radio:    radio,
		clock:    cl,
		logger:   logger,
		ssid:     config.SSID,
		password: config.Password,
	}
}

// Connected reports whether the last Connect attempt left us with a usable
// link. Only re-evaluated by Connect.
func (c *Connector) Connected() bool {
	return c.connected
}

// Connect brings the link up if it is not already. If the connector is
// already in the connected state this is a no-op returning true. Otherwise
// the radio is activated, an association is requested and the link status is
// polled at one second intervals for at most ten iterations, exiting early
// once the status is terminal in either direction. Always returns a definite
// boolean; never blocks beyond the bounded poll.
func (c *Connector) Connect(ctx context.Context) bool {
	if c.connected {
		// verify against the radio, the link may have dropped since the flag
		// was last set
		if c.radio.Status() >= StatusGotIP {
			return true
		}
		c.connected = false
	}

	c.logger.Log("ssid", c.ssid, "msg", "connecting to wifi")

	if err := c.radio.Activate(); err != nil {
		c.logger.Log("err", err, "msg", "failed to activate radio")
		connectCounter.WithLabelValues("failure").Inc()
		return false
	}

	if err := c.radio.Join(c.ssid, c.password); err != nil {
		c.logger.Log("err", err, "msg", "failed to issue join request")
		connectCounter.WithLabelValues("failure").Inc()
		return false
	}

	var status int
	for i := 0; i < maxPolls; i++ {
		status = c.radio.Status()
		if status < 0 || status >= StatusGotIP {
			break
		}

		c.logger.Log("status", status, "msg", "waiting for connection")

		if err := c.clock.Sleep(ctx, pollInterval); err != nil {
			break
		}
	}

	// the link may have come up during the final poll sleep, so query the
	// radio once more before deciding
	if status < StatusGotIP {
		status = c.radio.Status()
	}

	if status >= StatusGotIP {
		c.connected = true

		ip, err := c.radio.IP()
		if err != nil {
			c.logger.Log("err", err, "msg", "connected but failed to read ip")
		} else {
			c.logger.Log("ip", ip, "msg", "wifi connected")
		}

		connectCounter.WithLabelValues("success").Inc()

		return true
	}

	c.logger.Log("msg", "wifi connection failed")
	connectCounter.WithLabelValues("failure").Inc()

	return false
}
