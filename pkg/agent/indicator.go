package agent

import (
	"os"
	"path/filepath"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Indicator is the capability interface for the activity signal toggled at
// the start and end of every read cycle.
type Indicator interface {
	On() error
	Off() error
}

// ledIndicator drives a sysfs LED by writing its brightness attribute.
type ledIndicator struct {
	brightnessPath string
	logger         kitlog.Logger
}

// NewLEDIndicator returns an Indicator backed by the LED class device at the
// given sysfs directory (e.g. /sys/class/leds/ACT).
func NewLEDIndicator(ledDir string, logger kitlog.Logger) Indicator {
	logger = kitlog.With(logger, "module", "agent")

	logger.Log("led", ledDir, "msg", "creating led indicator")

	return &ledIndicator{
		brightnessPath: filepath.Join(ledDir, "brightness"),
		logger:         logger,
	}
}

func (l *ledIndicator) On() error {
	return errors.Wrap(l.write("1"), "failed to switch led on")
}

func (l *ledIndicator) Off() error {
	return errors.Wrap(l.write("0"), "failed to switch led off")
}

func (l *ledIndicator) write(value string) error {
	return os.WriteFile(l.brightnessPath, []byte(value), 0o644)
}

// noopIndicator is used when no LED has been configured.
type noopIndicator struct{}

// NewNoopIndicator returns an Indicator that does nothing.
func NewNoopIndicator() Indicator {
	return &noopIndicator{}
}

func (n *noopIndicator) On() error  { return nil }
func (n *noopIndicator) Off() error { return nil }
