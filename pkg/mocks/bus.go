package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/edgeflux/tempagent/pkg/onewire"
)

// Bus is a mock implementation of the onewire.Bus interface.
type Bus struct {
	mock.Mock
}

func (b *Bus) Scan() ([]onewire.Address, error) {
	args := b.Called()
	return args.Get(0).([]onewire.Address), args.Error(1)
}

func (b *Bus) TriggerConversion() error {
	args := b.Called()
	return args.Error(0)
}

func (b *Bus) Read(addr onewire.Address) (float64, error) {
	args := b.Called(addr)
	return args.Get(0).(float64), args.Error(1)
}
