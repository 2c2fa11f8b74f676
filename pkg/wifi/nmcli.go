package wifi

import (
	"os/exec"
	"strconv"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// commandRunner runs an external command and returns its combined output.
// Abstracted so radio behaviour can be scripted in tests without NetworkManager.
type commandRunner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// NMRadio is a Radio implementation driving a wireless interface through
// NetworkManager's nmcli tool, which is what Pi OS class images ship with.
type NMRadio struct {
	iface  string
	logger kitlog.Logger
	run    commandRunner
}

// NewNMRadio returns a Radio controlling the named wireless interface via
// nmcli.
func NewNMRadio(iface string, logger kitlog.Logger) *NMRadio {
	logger = kitlog.With(logger, "module", "wifi", "iface", iface)

	return &NMRadio{
		iface:  iface,
		logger: logger,
		run:    execRunner,
	}
}

// Activate switches the WiFi radio on.
func (r *NMRadio) Activate() error {
	out, err := r.run("nmcli", "radio", "wifi", "on")
	if err != nil {
		return errors.Wrapf(err, "failed to enable wifi radio: %s", strings.TrimSpace(string(out)))
	}

	return nil
}

// Join requests an association without waiting for it to complete; the
// connector polls Status to observe progress.
func (r *NMRadio) Join(ssid, password string) error {
	out, err := r.run("nmcli", "--wait", "0", "dev", "wifi", "connect", ssid,
		"password", password, "ifname", r.iface)
	if err != nil {
		return errors.Wrapf(err, "failed to request association: %s", strings.TrimSpace(string(out)))
	}

	return nil
}

// Status maps NetworkManager device states onto the connector's status scale.
func (r *NMRadio) Status() int {
	out, err := r.run("nmcli", "-t", "-f", "GENERAL.STATE", "dev", "show", r.iface)
	if err != nil {
		return StatusConnectFail
	}

	// output looks like "GENERAL.STATE:100 (connected)"
	line := strings.TrimSpace(string(out))
	line = strings.TrimPrefix(line, "GENERAL.STATE:")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return StatusConnectFail
	}

	state, err := strconv.Atoi(fields[0])
	if err != nil {
		return StatusConnectFail
	}

	switch {
	case state >= 100 && state < 110:
		return StatusGotIP
	case state == 120:
		return StatusConnectFail
	case state == 60:
		return StatusBadAuth
	case state >= 70 && state < 100:
		return StatusNoIP
	case state >= 40 && state < 70:
		return StatusJoining
	default:
		return StatusLinkDown
	}
}

// IP returns the IPv4 address NetworkManager reports for the interface.
func (r *NMRadio) IP() (string, error) {
	out, err := r.run("nmcli", "-t", "-f", "IP4.ADDRESS", "dev", "show", r.iface)
	if err != nil {
		return "", errors.Wrap(err, "failed to read interface address")
	}

	// output looks like "IP4.ADDRESS[1]:192.168.0.42/24"
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", errors.New("no address assigned")
	}

	addr := line[idx+1:]
	if slash := strings.Index(addr, "/"); slash >= 0 {
		addr = addr[:slash]
	}
	if addr == "" {
		return "", errors.New("no address assigned")
	}

	return addr, nil
}
