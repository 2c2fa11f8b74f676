package onewire

import (
	"time"

	"github.com/pkg/errors"
)

// ConversionDelay is the time a DS18B20 needs to complete a temperature
// conversion at full resolution. Reads issued before this has elapsed after a
// trigger are rejected.
const ConversionDelay = 750 * time.Millisecond

// ErrConversionPending is returned by Read when no conversion has been
// triggered, or when the conversion delay has not yet elapsed since the last
// trigger.
var ErrConversionPending = errors.New("onewire: conversion pending")

// Address is an opaque identifier for a single probe discovered on the bus.
// For the sysfs implementation this is the kernel's ROM id directory name
// (e.g. 28-00000a1b2c3d).
type Address string

// Bus abstracts a one-wire bus carrying one or more temperature probes. The
// two phase trigger/read split mirrors how the hardware actually works: a
// conversion is started on all probes at once, and individual probes are read
// out after the conversion delay.
type Bus interface {
	// Scan discovers the probes currently present on the bus. An empty result
	// is not an error; callers are expected to log a warning and carry on.
	Scan() ([]Address, error)

	// TriggerConversion instructs every probe on the bus to begin a
	// temperature conversion. Reads become valid ConversionDelay later.
	TriggerConversion() error

	// Read returns the temperature in degrees Celsius for the given probe.
	// Returns ErrConversionPending if called before a triggered conversion
	// has had ConversionDelay to complete.
	Read(addr Address) (float64, error)
}
