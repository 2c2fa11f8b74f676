package onewire

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/metrics"
)

const (
	// DefaultDevicesDir is where the Linux w1 subsystem exposes enumerated
	// bus slaves.
	DefaultDevicesDir = "/sys/bus/w1/devices"

	// familyPrefix is the directory prefix the kernel assigns to DS18B20
	// devices (family code 0x28).
	familyPrefix = "28-"

	// bulkReadFile is the w1_therm master attribute that starts a conversion
	// on all slaves at once when "trigger" is written to it.
	bulkReadFile = "w1_bus_master1/therm_bulk_read"
)

var (
	// readErrorCounter is a prometheus counter recording the number of failed
	// probe reads.
	readErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tempagent",
			Subsystem: "onewire",
			Name:      "read_errors",
			Help:      "Count of errors reading temperature probes",
		},
	)
)

func init() {
	metrics.MustRegister(readErrorCounter)
}

// sysfsBus is a Bus implementation backed by the Linux w1 sysfs interface.
type sysfsBus struct {
	devicesDir  string
	clock       clock.Clock
	logger      kitlog.Logger
	triggeredAt time.Time
}

// NewSysfsBus returns a Bus reading DS18B20 probes through the kernel's w1
// subsystem under the given devices directory. The clock is injected so the
// conversion-delay precondition can be checked deterministically in tests.
func NewSysfsBus(devicesDir string, cl clock.Clock, logger kitlog.Logger) Bus {
	logger = kitlog.With(logger, "module", "onewire")

	logger.Log("devicesDir", devicesDir, "msg", "creating sysfs bus")

	return &sysfsBus{
		devicesDir: devicesDir,
		clock:      cl,
		logger:     logger,
	}
}

// Scan lists the devices directory and returns every entry carrying the
// DS18B20 family prefix. A missing or empty directory yields an empty slice.
func (b *sysfsBus) Scan() ([]Address, error) {
	entries, err := os.ReadDir(b.devicesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list one-wire devices directory")
	}

	var addrs []Address
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), familyPrefix) {
			addrs = append(addrs, Address(entry.Name()))
		}
	}

	b.logger.Log("found", len(addrs), "msg", "scanned bus")

	return addrs, nil
}

// TriggerConversion starts a conversion on all probes via the w1_therm bulk
// read attribute, falling back to per-read conversion on kernels without it.
// Either way the trigger time is recorded so Read can enforce the delay.
func (b *sysfsBus) TriggerConversion() error {
	path := filepath.Join(b.devicesDir, bulkReadFile)

	err := os.WriteFile(path, []byte("trigger"), 0o644)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to trigger bulk conversion")
	}

	b.triggeredAt = b.clock.Now()

	return nil
}

// Read parses the kernel temperature attribute for the given probe. The value
// is exposed in milli-degrees Celsius.
func (b *sysfsBus) Read(addr Address) (float64, error) {
	if b.triggeredAt.IsZero() || b.clock.Now().Sub(b.triggeredAt) < ConversionDelay {
		return 0, ErrConversionPending
	}

	path := filepath.Join(b.devicesDir, string(addr), "temperature")

	raw, err := os.ReadFile(path)
	if err != nil {
		readErrorCounter.Inc()
		return 0, errors.Wrap(err, "failed to read probe temperature attribute")
	}

	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		readErrorCounter.Inc()
		return 0, errors.Wrap(err, "failed to parse probe temperature value")
	}

	return float64(milli) / 1000.0, nil
}
