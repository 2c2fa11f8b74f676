package mocks

import (
	"context"
	"sync"
)

// Uploader is a mock type implementing the uploader.Uploader interface. It
// plays back a scripted sequence of results, with the final value repeating
// once the script is exhausted, and records every reading it was asked to
// upload.
type Uploader struct {
	// Results is the scripted sequence of values Upload will return. An empty
	// script means every upload succeeds.
	Results []bool

	sync.Mutex
	Uploaded []float64

	idx int
}

func (u *Uploader) Upload(ctx context.Context, celsius float64) bool {
	u.Lock()
	defer u.Unlock()

	u.Uploaded = append(u.Uploaded, celsius)

	if len(u.Results) == 0 {
		return true
	}

	result := u.Results[u.idx]
	if u.idx < len(u.Results)-1 {
		u.idx++
	}

	return result
}
