package agent_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/edgeflux/tempagent/pkg/agent"
	"github.com/edgeflux/tempagent/pkg/clock"
	"github.com/edgeflux/tempagent/pkg/mocks"
	"github.com/edgeflux/tempagent/pkg/onewire"
	"github.com/edgeflux/tempagent/pkg/uploader"
)

// cancellingClock wraps the mock clock and cancels the run context after a
// given number of sleeps, so the non-terminating loop can be run for an exact
// number of cycles under test. Each cycle sleeps twice: once for the
// conversion delay, once for the inter-cycle interval.
type cancellingClock struct {
	clock.Mock
	cancel    context.CancelFunc
	stopAfter int
	sleeps    int
}

func (c *cancellingClock) Sleep(ctx context.Context, d time.Duration) error {
	err := c.Mock.Sleep(ctx, d)

	c.sleeps++
	if c.sleeps >= c.stopAfter {
		c.cancel()
	}

	return err
}

func newTestClock(cancel context.CancelFunc, cycles int) *cancellingClock {
	return &cancellingClock{
		Mock:      clock.NewMock(time.Unix(1735689600, 0)),
		cancel:    cancel,
		stopAfter: cycles * 2,
	}
}

func TestAgentUploadsReading(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(23.456, nil)

	connector := &mocks.Connector{ConnectResult: true}
	up := &mocks.Uploader{}
	indicator := &mocks.Indicator{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: connector,
		Uploader:  up,
		Indicator: indicator,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Equal(t, []float64{23.456}, up.Uploaded)
	assert.Equal(t, 1, indicator.OnCalls)
	assert.Equal(t, 1, indicator.OffCalls)
	assert.Equal(t, []time.Duration{onewire.ConversionDelay, agent.DefaultInterval}, cl.Sleeps())

	bus.AssertExpectations(t)
}

func TestAgentMirrorsToPublisher(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(23.456, nil)

	publisher := mocks.NewPublisher(nil)

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{ConnectResult: true},
		Uploader:  &mocks.Uploader{},
		Publisher: publisher,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Len(t, publisher.Published, 1)

	var payload uploader.Payload
	err = json.Unmarshal(publisher.Published[0], &payload)
	assert.Nil(t, err)
	assert.Equal(t, 23.46, payload.Temperature)
	assert.Equal(t, uploader.DefaultDeviceID, payload.DeviceID)
}

func TestAgentPublisherFailureIsNonFatal(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(23.456, nil)

	publisher := mocks.NewPublisher(errors.New("broker down"))
	connector := &mocks.Connector{ConnectResult: true}
	up := &mocks.Uploader{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: connector,
		Uploader:  up,
		Publisher: publisher,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	// the upload still happens and no extra reconnect is driven
	assert.Equal(t, []float64{23.456}, up.Uploaded)
	assert.Equal(t, 1, connector.ConnectCalls)
}

func TestAgentEmptyScanProducesNoUploads(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 2)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{}, nil)
	bus.On("TriggerConversion").Return(nil)

	up := &mocks.Uploader{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{ConnectResult: true},
		Uploader:  up,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Len(t, up.Uploaded, 0)
	bus.AssertNotCalled(t, "Read")
}

func TestAgentScanErrorIsNonFatal(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{}, errors.New("bus fault"))
	bus.On("TriggerConversion").Return(nil)

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{ConnectResult: true},
		Uploader:  &mocks.Uploader{},
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)
}

func TestAgentUploadFailureTriggersSingleReconnect(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(21.0, nil)

	connector := &mocks.Connector{ConnectResult: true}
	up := &mocks.Uploader{Results: []bool{false}}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: connector,
		Uploader:  up,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	// one connect at startup, then exactly one reconnect for the failed upload
	assert.Equal(t, 2, connector.ConnectCalls)
}

func TestAgentSkipsUploadWhenDisconnected(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(21.0, nil)

	connector := &mocks.Connector{ConnectResult: false}
	up := &mocks.Uploader{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: connector,
		Uploader:  up,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Len(t, up.Uploaded, 0)
	assert.Equal(t, 1, connector.ConnectCalls)
}

func TestAgentReadErrorSkipsUpload(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d", "28-00000a1b2c3e"}, nil)
	bus.On("TriggerConversion").Return(nil)
	bus.On("Read", onewire.Address("28-00000a1b2c3d")).Return(0.0, onewire.ErrConversionPending)
	bus.On("Read", onewire.Address("28-00000a1b2c3e")).Return(19.5, nil)

	up := &mocks.Uploader{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{ConnectResult: true},
		Uploader:  up,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Equal(t, []float64{19.5}, up.Uploaded)
}

// abortClock cancels the run context on the first sleep, simulating a
// shutdown arriving mid-cycle during the conversion delay.
type abortClock struct {
	clock.Mock
	cancel context.CancelFunc
}

func (c *abortClock) Sleep(ctx context.Context, d time.Duration) error {
	c.cancel()
	return ctx.Err()
}

func TestAgentIndicatorOffOnMidCycleShutdown(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := &abortClock{
		Mock:   clock.NewMock(time.Unix(1735689600, 0)),
		cancel: cancel,
	}

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{"28-00000a1b2c3d"}, nil)
	bus.On("TriggerConversion").Return(nil)

	indicator := &mocks.Indicator{}

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{ConnectResult: true},
		Uploader:  &mocks.Uploader{},
		Indicator: indicator,
		Clock:     cl,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	// the cancelled conversion sleep must not leave the signal latched on
	assert.Equal(t, 1, indicator.OnCalls)
	assert.Equal(t, 1, indicator.OffCalls)
	bus.AssertNotCalled(t, "Read")
}

func TestAgentCustomInterval(t *testing.T) {
	logger := kitlog.NewNopLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cl := newTestClock(cancel, 1)

	bus := &mocks.Bus{}
	bus.On("Scan").Return([]onewire.Address{}, nil)
	bus.On("TriggerConversion").Return(nil)

	a := agent.NewAgent(&agent.Config{
		Bus:       bus,
		Connector: &mocks.Connector{},
		Uploader:  &mocks.Uploader{},
		Clock:     cl,
		Interval:  10 * time.Second,
	}, logger)

	err := a.Run(ctx)
	assert.Nil(t, err)

	assert.Equal(t, []time.Duration{onewire.ConversionDelay, 10 * time.Second}, cl.Sleeps())
}
