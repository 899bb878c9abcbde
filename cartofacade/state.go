package cartofacade

import "sync/atomic"

// LifecycleState mirrors CartoFacadeState in
// original_source/.../carto_facade.h: an atomic state machine enforced
// before any lock is taken, so a caller in the wrong state fails fast
// instead of blocking on a mutex it has no business touching.
type LifecycleState int32

const (
	// Initialized is the state immediately after NewFacade: configuration
	// has been validated but IOInit has not run.
	Initialized LifecycleState = iota
	// IOInitialized follows a successful IOInit: the mode is derived, the
	// engine is configured, but no trajectory has started.
	IOInitialized
	// Started follows a successful Start: sensor readings may be ingested
	// and reads may return real data.
	Started
)

func (s LifecycleState) String() string {
	switch s {
	case Initialized:
		return "INITIALIZED"
	case IOInitialized:
		return "IO_INITIALIZED"
	case Started:
		return "STARTED"
	default:
		return "UNKNOWN"
	}
}

type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) load() LifecycleState {
	return LifecycleState(a.v.Load())
}

func (a *atomicState) store(s LifecycleState) {
	a.v.Store(int32(s))
}

// transition atomically moves from `from` to `to`, failing if the
// current state is not `from`.
func (a *atomicState) transition(from, to LifecycleState) bool {
	return a.v.CompareAndSwap(int32(from), int32(to))
}
