package mocks

// Radio is a mock type implementing the wifi.Radio interface. It plays back a
// scripted sequence of link statuses, with the final value repeating once the
// script is exhausted, and records the calls made against it so tests can
// verify association behaviour.
type Radio struct {
	// Statuses is the scripted sequence of values Status will return.
	Statuses []int

	// ActivateErr and JoinErr are returned from the respective calls when set.
	ActivateErr error
	JoinErr     error

	// Addr is the value IP returns once associated.
	Addr string

	ActivateCalls  int
	JoinCalls      int
	StatusCalls    int
	JoinedSSID     string
	JoinedPassword string

	idx int
}

func (r *Radio) Activate() error {
	r.ActivateCalls++
	return r.ActivateErr
}

func (r *Radio) Join(ssid, password string) error {
	r.JoinCalls++
	r.JoinedSSID = ssid
	r.JoinedPassword = password
	return r.JoinErr
}

func (r *Radio) Status() int {
	r.StatusCalls++

	if len(r.Statuses) == 0 {
		return 0
	}

	status := r.Statuses[r.idx]
	if r.idx < len(r.Statuses)-1 {
		r.idx++
	}

	return status
}

func (r *Radio) IP() (string, error) {
	return r.Addr, nil
}
