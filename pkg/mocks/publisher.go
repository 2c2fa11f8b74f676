package mocks

import "sync"

// Publisher is a mock type that implements our mqtt.Publisher interface.
// Internally it keeps track of payloads it has been asked to publish. These
// can be retrieved and checked in tests.
type Publisher struct {
	err error

	sync.Mutex
	Published [][]byte
}

// NewPublisher returns a new mock publisher. When a non-nil error is passed
// in every Publish call returns that error.
func NewPublisher(err error) *Publisher {
	return &Publisher{
		err: err,
	}
}

// Publish records the payload for later verification, or returns the
// configured error.
func (p *Publisher) Publish(payload []byte) error {
	if p.err != nil {
		return p.err
	}

	p.Lock()
	defer p.Unlock()

	p.Published = append(p.Published, payload)

	return nil
}
