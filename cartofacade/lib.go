// Package cartofacade implements the facade spec.md §4.6 and the
// lifecycle/locking model of §5: a single-tenant SLAM session that
// ingests timed sensor readings and serves pose, point-cloud-map, and
// internal-state reads while an engine builds or localizes against a
// map in the background.
//
// Grounded on original_source/viam-cartographer/src/carto_facade/carto_facade.h
// (the CartoFacadeState enum, the mutex fields and their documented lock
// order, and the public method set) and on
// cartofacade/capi.go/carto_facade.go in the teacher repo for Go-side
// naming and error-wrapping idiom.
package cartofacade

import (
	"sync"

	"go.viam.com/rdk/logging"

	"github.com/viam-modules/cartofacade/cartoerror"
)

// Lib holds process-wide state shared by every Facade, mirroring
// viam_carto_lib in the original C API and CartoLib in
// cartofacade/capi.go. Each Lib value may be initialized at most once and
// must outlive every Facade built from it; the guard is kept per Lib
// value, so separate Lib values in one process are independent.
type Lib struct {
	mu          sync.Mutex
	initialized bool
	terminated  bool

	logger      logging.Logger
	minLogLevel int
	verbose     int
}

// NewLib constructs library-level state. It mirrors NewLib in
// cartofacade/capi.go, which calls viam_carto_lib_init. minLogLevel
// (0 = debug, as viam_cartographer.go's InitCartoLib selects when the RDK
// logger is at zapcore.DebugLevel) and verbose are recorded on the Lib;
// they do not change the level of logger or any other logging
// configuration.
func NewLib(logger logging.Logger, minLogLevel, verbose int) (*Lib, error) {
	if logger == nil {
		return nil, cartoerror.New(cartoerror.LibInvalid, "logger must not be nil")
	}
	return &Lib{
		logger:      logger,
		minLogLevel: minLogLevel,
		verbose:     verbose,
	}, nil
}

// Init marks the library initialized. Calling it twice returns
// LibAlreadyInitialized, matching VIAM_CARTO_LIB_ALREADY_INITIALIZED.
func (l *Lib) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return cartoerror.New(cartoerror.LibAlreadyInitialized, "library already initialized")
	}
	l.initialized = true
	return nil
}

// Terminate releases library-level state. It is idempotent-unsafe by
// design, matching the original: calling it on a library that was never
// initialized, or twice, returns LibNotInitialized.
func (l *Lib) Terminate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized || l.terminated {
		return cartoerror.New(cartoerror.LibNotInitialized, "library not initialized")
	}
	l.terminated = true
	return nil
}
