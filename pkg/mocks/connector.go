package mocks

import "context"

// Connector is a mock type implementing the agent's Connector interface. The
// connected flag and the result of Connect are set directly by tests, and
// Connect invocations are counted so reconnect behaviour can be verified.
type Connector struct {
	// ConnectedFlag is what Connected reports.
	ConnectedFlag bool

	// ConnectResult is what Connect returns; Connected is updated to match.
	ConnectResult bool

	ConnectCalls int
}

func (c *Connector) Connected() bool {
	return c.ConnectedFlag
}

func (c *Connector) Connect(ctx context.Context) bool {
	c.ConnectCalls++
	c.ConnectedFlag = c.ConnectResult
	return c.ConnectResult
}
