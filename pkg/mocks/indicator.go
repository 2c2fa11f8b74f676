package mocks

// Indicator is a mock type implementing the agent's Indicator interface,
// recording how often the signal was toggled in each direction.
type Indicator struct {
	OnCalls  int
	OffCalls int
}

func (i *Indicator) On() error {
	i.OnCalls++
	return nil
}

func (i *Indicator) Off() error {
	i.OffCalls++
	return nil
}
