package cartofacade

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"

	"github.com/viam-modules/cartofacade/cartoconfig"
	"github.com/viam-modules/cartofacade/cartoerror"
	"github.com/viam-modules/cartofacade/mapbuilder"
	"github.com/viam-modules/cartofacade/paint"
	"github.com/viam-modules/cartofacade/sensors"
)

// optimizationCacheInterval is how often the background goroutine
// refreshes the cached point-cloud map while a trajectory is running,
// mirroring the periodic CacheLatestMap call the original CartoFacade
// makes outside the request path.
const optimizationCacheInterval = 2 * time.Second

// minLidarReadingsForPosition is how many lidar readings must be
// successfully ingested before GetPosition returns real data, rather
// than GetPositionNotInitialized. spec.md leaves the exact threshold an
// open question; two was chosen to match the two-or-more-readings
// end-to-end scenario in spec.md §8 (see DESIGN.md).
const minLidarReadingsForPosition = 2

// Facade is a single SLAM session: one engine, one configuration, one
// lifecycle. It is safe for concurrent use by multiple goroutines.
//
// Lock order, inherited unchanged from carto_facade.h: when both are
// held, optimizationMu must be acquired before mapBuilderMu.
// viamResponseMu is always acquired last: AddLidarReading takes it while
// holding mapBuilderMu, and RunFinalOptimization's cache refresh takes it
// while holding optimizationMu.
type Facade struct {
	lib    *Lib
	logger logging.Logger

	config     cartoconfig.Config
	algoConfig mapbuilder.AlgoConfig
	mode       cartoconfig.Mode

	state atomicState

	builder mapbuilder.MapBuilder

	// mapBuilderMu guards all access to builder. Sensor-ingest calls
	// try-lock it and fail fast with UnableToAcquireLock; everything
	// else blocks.
	mapBuilderMu sync.Mutex

	// optimizationMu is held shared (RLock) by Start, sensor ingest and
	// GetInternalState, and exclusively (Lock) only during
	// RunFinalOptimization, so a final optimization pass cannot interleave
	// with those calls. GetPosition and GetPointCloudMap do not take it.
	optimizationMu sync.RWMutex

	// viamResponseMu guards the cached pose and point-cloud map returned
	// by GetPosition and GetPointCloudMap. GetPosition never blocks on
	// mapBuilderMu; GetPointCloudMap does so only when the cache is empty
	// and it repaints.
	viamResponseMu      sync.Mutex
	latestGlobalPose    mapbuilder.Pose2D
	latestPointCloudMap []byte

	successfulLidarReads atomic.Int64

	cacheCancel context.CancelFunc
	cacheDone   chan struct{}
}

// NewFacade validates cfg and algoCfg, derives the SLAM mode, and
// constructs a Facade in the Initialized state. builder is the
// MapBuilder adapter the facade will drive; tests typically pass
// mapbuilder.NewEngine().
func NewFacade(lib *Lib, logger logging.Logger, cfg cartoconfig.Config, algoCfg mapbuilder.AlgoConfig, builder mapbuilder.MapBuilder) (*Facade, error) {
	if lib == nil {
		return nil, cartoerror.New(cartoerror.LibNotInitialized, "lib must not be nil")
	}
	if builder == nil {
		return nil, cartoerror.New(cartoerror.VCInvalid, "builder must not be nil")
	}
	if err := cartoconfig.Validate(cfg); err != nil {
		return nil, err
	}
	mode, err := cartoconfig.DeriveMode(cfg)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		lib:        lib,
		logger:     logger,
		config:     cfg,
		algoConfig: algoCfg,
		mode:       mode,
		builder:    builder,
	}
	f.state.store(Initialized)
	return f, nil
}

// Mode returns the SLAM mode derived at construction.
func (f *Facade) Mode() cartoconfig.Mode {
	return f.mode
}

// IOInit configures the engine for the derived mode, loading existing
// map data for LOCALIZING/UPDATING. It must be the first call made on a
// newly constructed Facade.
func (f *Facade) IOInit() (err error) {
	if !f.state.transition(Initialized, IOInitialized) {
		return cartoerror.New(cartoerror.NotInInitializedState, "IOInit requires the Initialized state")
	}
	defer func() {
		if err != nil {
			f.state.store(Initialized)
		}
	}()

	if _, err := cartoconfig.ConfigBasename(f.mode); err != nil {
		return err
	}

	f.mapBuilderMu.Lock()
	defer f.mapBuilderMu.Unlock()

	if err := f.builder.Configure(f.algoConfig); err != nil {
		return cartoerror.New(cartoerror.MapCreationError, err.Error())
	}

	if f.mode == cartoconfig.LocalizingMode || f.mode == cartoconfig.UpdatingMode {
		if err := f.builder.LoadState(f.config.ExistingMap); err != nil {
			return cartoerror.New(cartoerror.InternalStateFileSystemError, err.Error())
		}
	}

	return nil
}

// Start begins the trajectory and, for LOCALIZING mode, eagerly
// populates the cached point-cloud map so the first GetPointCloudMap
// call does not return an empty result while the engine warms up. It
// also launches the background cache-refresh goroutine.
func (f *Facade) Start(ctx context.Context) error {
	if !f.state.transition(IOInitialized, Started) {
		return cartoerror.New(cartoerror.NotInIOInitializedState, "Start requires the IO_INITIALIZED state")
	}

	f.optimizationMu.RLock()
	defer f.optimizationMu.RUnlock()

	f.mapBuilderMu.Lock()
	var initial *mapbuilder.Pose2D
	if f.algoConfig.InitialTrajectoryPose != nil {
		initial = f.algoConfig.InitialTrajectoryPose
	}
	err := f.builder.StartTrajectory(initial)
	f.mapBuilderMu.Unlock()
	if err != nil {
		return cartoerror.New(cartoerror.MapCreationError, err.Error())
	}

	if f.mode == cartoconfig.LocalizingMode {
		f.refreshPointCloudCache()
	}

	cacheCtx, cancel := context.WithCancel(context.Background())
	f.cacheCancel = cancel
	f.cacheDone = make(chan struct{})
	goutils.PanicCapturingGo(func() {
		defer close(f.cacheDone)
		f.runCacheLoop(cacheCtx)
	})

	return nil
}

// runCacheLoop never repaints in LOCALIZING mode: spec.md §4.6/P3
// requires the eager snapshot Start takes to be returned unmodified for
// the lifetime of the trajectory, since the adapter holds the map fixed
// while only the pose moves.
func (f *Facade) runCacheLoop(ctx context.Context) {
	for goutils.SelectContextOrWait(ctx, optimizationCacheInterval) {
		if f.state.load() != Started {
			return
		}
		if f.mode == cartoconfig.LocalizingMode {
			continue
		}
		f.refreshPointCloudCache()
	}
}

// refreshPointCloudCache takes a snapshot of the engine's submaps and
// paints it, caching the result under viamResponseMu. It blocks on
// mapBuilderMu and releases it before taking viamResponseMu. Callers
// that hold optimizationMu (Start shared, RunFinalOptimization
// exclusively) took it first, so the lock order is kept.
func (f *Facade) refreshPointCloudCache() {
	f.mapBuilderMu.Lock()
	submaps := f.builder.Submaps()
	f.mapBuilderMu.Unlock()

	painted, err := paint.Paint(submaps, paint.Options{})
	if err != nil {
		return
	}

	f.viamResponseMu.Lock()
	f.latestPointCloudMap = painted
	f.viamResponseMu.Unlock()
}

func (f *Facade) requireStarted() error {
	if f.state.load() != Started {
		return cartoerror.New(cartoerror.NotInStartedState, "operation requires the STARTED state")
	}
	return nil
}

// AddLidarReading ingests a lidar reading. Per spec.md §5, it try-locks
// map_builder_mutex and returns UnableToAcquireLock rather than
// blocking, so a slow scan-matcher pass never stalls the sensor
// pipeline.
func (f *Facade) AddLidarReading(ctx context.Context, reading sensors.TimedLidarReadingResponse) error {
	if err := f.requireStarted(); err != nil {
		return err
	}
	if reading.SensorName != f.config.Camera {
		return cartoerror.New(cartoerror.UnknownSensorName, "lidar reading sensor name does not match configured camera")
	}

	f.optimizationMu.RLock()
	defer f.optimizationMu.RUnlock()

	if !f.mapBuilderMu.TryLock() {
		return cartoerror.New(cartoerror.UnableToAcquireLock, "map builder busy")
	}
	defer f.mapBuilderMu.Unlock()

	if err := f.builder.AddLidarReading(ctx, reading); err != nil {
		return toSensorError(err)
	}

	f.successfulLidarReads.Add(1)
	if pose, ok := f.builder.GlobalPose(); ok {
		f.viamResponseMu.Lock()
		f.latestGlobalPose = pose
		f.viamResponseMu.Unlock()
	}

	return nil
}

// AddIMUReading ingests an IMU reading under the same try-lock
// discipline as AddLidarReading.
func (f *Facade) AddIMUReading(ctx context.Context, reading sensors.TimedIMUReadingResponse) error {
	if err := f.requireStarted(); err != nil {
		return err
	}
	if reading.SensorName != f.config.MovementSensor {
		return cartoerror.New(cartoerror.UnknownSensorName, "imu reading sensor name does not match configured movement sensor")
	}

	f.optimizationMu.RLock()
	defer f.optimizationMu.RUnlock()

	if !f.mapBuilderMu.TryLock() {
		return cartoerror.New(cartoerror.UnableToAcquireLock, "map builder busy")
	}
	defer f.mapBuilderMu.Unlock()

	if err := f.builder.AddIMUReading(ctx, reading); err != nil {
		return toSensorError(err)
	}
	return nil
}

// AddOdometerReading ingests an odometer reading under the same
// try-lock discipline as AddLidarReading.
func (f *Facade) AddOdometerReading(ctx context.Context, reading sensors.TimedOdometerReadingResponse) error {
	if err := f.requireStarted(); err != nil {
		return err
	}
	if reading.SensorName != f.config.MovementSensor {
		return cartoerror.New(cartoerror.UnknownSensorName, "odometer reading sensor name does not match configured movement sensor")
	}

	f.optimizationMu.RLock()
	defer f.optimizationMu.RUnlock()

	if !f.mapBuilderMu.TryLock() {
		return cartoerror.New(cartoerror.UnableToAcquireLock, "map builder busy")
	}
	defer f.mapBuilderMu.Unlock()

	if err := f.builder.AddOdometerReading(ctx, reading); err != nil {
		return toSensorError(err)
	}
	return nil
}

func toSensorError(err error) error {
	if cartoerror.Of(err) != cartoerror.Unknown {
		return err
	}
	return cartoerror.New(cartoerror.UnknownSensorName, err.Error())
}

// Position is the pose response spec.md §6.1/§3 describes: millimeters
// from the map origin plus an orientation quaternion.
type Position struct {
	X, Y, Z                float64
	Real, Imag, Jmag, Kmag float64
	ComponentReference     string
}

// GetPosition returns the cached latest pose. It returns
// GetPositionNotInitialized until at least minLidarReadingsForPosition
// lidar readings have been successfully ingested, matching spec.md §8's
// boundary behavior for a freshly started facade.
func (f *Facade) GetPosition() (Position, error) {
	if err := f.requireStarted(); err != nil {
		return Position{}, err
	}
	if f.successfulLidarReads.Load() < minLidarReadingsForPosition {
		return Position{}, cartoerror.New(cartoerror.GetPositionNotInitialized, "not enough lidar readings yet")
	}

	f.viamResponseMu.Lock()
	pose := f.latestGlobalPose
	f.viamResponseMu.Unlock()

	orientation := &spatialmath.Quaternion{
		Real: math.Cos(pose.ThetaRad / 2),
		Kmag: math.Sin(pose.ThetaRad / 2),
	}

	return Position{
		X:                  pose.X * 1000,
		Y:                  pose.Y * 1000,
		Real:               orientation.Real,
		Imag:               orientation.Imag,
		Jmag:               orientation.Jmag,
		Kmag:               orientation.Kmag,
		ComponentReference: f.config.ComponentReference,
	}, nil
}

// GetPointCloudMap returns the cached painted map. It fails with
// PointCloudMapEmpty if no refresh has produced a non-empty map yet. In
// LOCALIZING mode it never repaints from the adapter beyond the eager
// snapshot Start took, per spec.md §4.6/P3.
func (f *Facade) GetPointCloudMap() ([]byte, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}

	f.viamResponseMu.Lock()
	cached := f.latestPointCloudMap
	f.viamResponseMu.Unlock()

	if len(cached) == 0 && f.mode != cartoconfig.LocalizingMode {
		f.refreshPointCloudCache()
		f.viamResponseMu.Lock()
		cached = f.latestPointCloudMap
		f.viamResponseMu.Unlock()
	}
	if len(cached) == 0 {
		return nil, cartoerror.New(cartoerror.PointCloudMapEmpty, "no map data yet")
	}

	out := make([]byte, len(cached))
	copy(out, cached)
	return out, nil
}

// GetInternalState serializes the engine's current internal state. It
// blocks on map_builder_mutex rather than try-locking, since it is a
// read invoked out of band from the sensor-ingest path.
func (f *Facade) GetInternalState() ([]byte, error) {
	if err := f.requireStarted(); err != nil {
		return nil, err
	}

	f.optimizationMu.RLock()
	defer f.optimizationMu.RUnlock()

	f.mapBuilderMu.Lock()
	defer f.mapBuilderMu.Unlock()

	data, err := f.builder.SerializeToFile()
	if err != nil {
		return nil, cartoerror.New(cartoerror.GetInternalStateResponseInvalid, err.Error())
	}
	return data, nil
}

// RunFinalOptimization takes optimizationMu exclusively, blocking every
// sensor-ingest and GetInternalState call until the optimization pass
// completes, then refreshes the cached pose and, outside LOCALIZING
// mode, the cached map. GetPosition and GetPointCloudMap keep serving
// cached values meanwhile.
func (f *Facade) RunFinalOptimization(ctx context.Context) error {
	if err := f.requireStarted(); err != nil {
		return err
	}

	f.optimizationMu.Lock()
	defer f.optimizationMu.Unlock()

	f.mapBuilderMu.Lock()
	err := f.builder.RunFinalOptimization(ctx)
	pose, havePose := f.builder.GlobalPose()
	f.mapBuilderMu.Unlock()
	if err != nil {
		return cartoerror.New(cartoerror.MapCreationError, err.Error())
	}

	if havePose {
		f.viamResponseMu.Lock()
		f.latestGlobalPose = pose
		f.viamResponseMu.Unlock()
	}
	if f.mode != cartoconfig.LocalizingMode {
		f.refreshPointCloudCache()
	}
	return nil
}

// Stop halts the background cache goroutine and returns the facade to
// IO_INITIALIZED, from which Start can be called again.
func (f *Facade) Stop() error {
	if !f.state.transition(Started, IOInitialized) {
		return cartoerror.New(cartoerror.NotInStartedState, "Stop requires the STARTED state")
	}

	if f.cacheCancel != nil {
		f.cacheCancel()
		<-f.cacheDone
		f.cacheCancel = nil
		f.cacheDone = nil
	}

	return nil
}

// Terminate closes the underlying engine, giving it a chance to finish
// any trajectory safely (SPEC_FULL §12's MapBuilder destructor safety),
// and releases the facade. It is only valid from IO_INITIALIZED, i.e.
// after Stop if a trajectory was ever started.
func (f *Facade) Terminate() error {
	if !f.state.transition(IOInitialized, Initialized) {
		return cartoerror.New(cartoerror.NotInTerminatableState, "Terminate requires the IO_INITIALIZED state")
	}

	f.mapBuilderMu.Lock()
	closeErr := f.builder.Close()
	f.mapBuilderMu.Unlock()

	if closeErr != nil {
		return multierr.Combine(cartoerror.New(cartoerror.DestructorError, closeErr.Error()))
	}
	return nil
}
