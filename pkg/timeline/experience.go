package timeline

import (
	"sync"

	"github.com/class1/graduate/pkg/shootingtime"
)

// LoadState is the per-experience load marker.
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unknown"
}

// Experience is one photo: where it lives, when it was shot and who is in it.
// The payload is filled in lazily by a background load.
type Experience struct {
	Path   string
	ShotAt shootingtime.ShootingTime
	With   []int

	mu      sync.Mutex
	state   LoadState
	payload []byte
	done    chan struct{}
}

func NewExperience(path string, shotAt shootingtime.ShootingTime, with []int) *Experience {
	return &Experience{Path: path, ShotAt: shotAt, With: with}
}

// Includes reports whether subject is co-present in the photo.
func (x *Experience) Includes(subject int) bool {
	for _, w := range x.With {
		if w == subject {
			return true
		}
	}
	return false
}

func (x *Experience) State() LoadState {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Payload returns the image bytes once loaded.
func (x *Experience) Payload() ([]byte, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.payload, x.state == Loaded
}

// Claim moves the slot from Unloaded to Loading and makes the caller the only
// loader. It returns false if a load is outstanding or already finished.
func (x *Experience) Claim() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != Unloaded {
		return false
	}
	x.state = Loading
	x.done = make(chan struct{})
	return true
}

// Complete ends the outstanding load. On error the slot returns to Unloaded so
// a later pass can retry it.
func (x *Experience) Complete(payload []byte, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != Loading {
		return
	}
	if err != nil {
		x.state = Unloaded
	} else {
		x.state = Loaded
		x.payload = payload
	}
	close(x.done)
	x.done = nil
}

// Done returns a channel closed when the outstanding load completes, or nil
// when no load is outstanding.
func (x *Experience) Done() <-chan struct{} {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.done
}
