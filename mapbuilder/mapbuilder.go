// Package mapbuilder defines the MapBuilder capability spec.md §4.4 and
// §6.4 describe — the boundary between the facade and the underlying
// SLAM engine — and ships Engine, a self-contained reference
// implementation. The real Cartographer scan-matcher is explicitly out
// of scope (spec.md §1); Engine exists so the rest of this module has a
// concrete, deterministic MapBuilder to drive and test against.
//
// Grounded on original_source/viam-cartographer/src/map_builder/map_builder.h
// and .cc: SetUp/BuildMapBuilder, LoadMapFromFile/SaveMapToFile,
// AddSensorData, StartLidarTrajectoryBuilder, GetLocalSlamResultCallback,
// GetGlobalPose, the Overwrite* hyperparameter setters, and the
// destructor's FinishTrajectory safety invariant.
package mapbuilder

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-modules/cartofacade/cartoerror"
	"github.com/viam-modules/cartofacade/paint"
	"github.com/viam-modules/cartofacade/pcd"
	"github.com/viam-modules/cartofacade/sensors"
)

// Pose2D is a planar pose: translation plus heading, the shape the
// original implementation's algo_config initial-trajectory-pose and
// GetGlobalPose use.
type Pose2D struct {
	X, Y, ThetaRad float64
}

// AlgoConfig carries the SLAM backend's hyperparameters, matching
// viam_carto_algo_config in original_source/.../carto_facade.h field for
// field, including the has_initial_trajectory_pose/x/y/theta triple
// (SPEC_FULL §12) folded into a single optional *Pose2D.
type AlgoConfig struct {
	OptimizeOnStart       bool
	OptimizeEveryNNodes   int
	NumRangeData          int
	MissingDataRayLength  float64
	MaxRange              float64
	MinRange              float64
	MaxSubmapsToKeep      int
	FreshSubmapsCount     int
	MinCoveredArea        float64
	MinAddedSubmapsCount  int
	OccupiedSpaceWeight   float64
	TranslationWeight     float64
	RotationWeight        float64
	InitialTrajectoryPose *Pose2D
}

// MapBuilder is the adapter contract a SLAM backend implements. Every
// method that touches shared engine state is called by the facade under
// map_builder_mutex (see package cartofacade); MapBuilder implementations
// are not required to be safe for concurrent use on their own.
type MapBuilder interface {
	// Configure applies static hyperparameters before the trajectory
	// starts; it is called once, from the IO_INITIALIZED state.
	Configure(cfg AlgoConfig) error

	// StartTrajectory begins (or resumes) trajectory building. initial,
	// if non-nil, seeds the engine's origin instead of identity.
	StartTrajectory(initial *Pose2D) error

	// LoadState restores a previously serialized map (an existing_map
	// payload for LOCALIZING/UPDATING mode). It must be called, if at
	// all, before StartTrajectory.
	LoadState(data []byte) error

	AddLidarReading(ctx context.Context, reading sensors.TimedLidarReadingResponse) error
	AddIMUReading(ctx context.Context, reading sensors.TimedIMUReadingResponse) error
	AddOdometerReading(ctx context.Context, reading sensors.TimedOdometerReadingResponse) error

	// GlobalPose returns the latest optimized pose and whether the
	// engine has produced at least one.
	GlobalPose() (Pose2D, bool)

	// Submaps returns a snapshot of the current submap textures for
	// package paint to composite.
	Submaps() []paint.Submap

	// SerializeToFile renders the engine's current internal state (for
	// GetInternalState) as a self-contained byte payload.
	SerializeToFile() ([]byte, error)

	// RunFinalOptimization performs the one-shot global optimization
	// pass the facade's RunFinalOptimization operation triggers.
	RunFinalOptimization(ctx context.Context) error

	// Closer.Close is the adapter's FinishTrajectory-on-destruction
	// safety net (SPEC_FULL §12): it must be safe to call even if no
	// trajectory was ever started, and safe to call twice.
	io.Closer
}

// Engine is a minimal, deterministic MapBuilder: it accumulates a pose
// by centroid-shift dead reckoning across lidar scans and rasterizes
// observed points into one growing occupancy submap. It is not a scan
// matcher; it exists to give the facade and its tests something real to
// drive end to end.
type Engine struct {
	mu sync.Mutex

	cfg     AlgoConfig
	started bool
	closed  bool

	pose     Pose2D
	havePose bool

	lidarReadings int

	// occupancy is a sparse log-odds-free hit counter keyed by
	// 0.05m grid cell, the same resolution package paint composites at.
	occupancy map[gridCell]*cellStats

	centroidX, centroidY float64
	haveCentroid         bool
}

type gridCell struct{ x, y int }

type cellStats struct {
	hits   int
	misses int
}

// NewEngine constructs an unconfigured Engine.
func NewEngine() *Engine {
	return &Engine{occupancy: map[gridCell]*cellStats{}}
}

func (e *Engine) Configure(cfg AlgoConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("cannot configure after trajectory has started")
	}
	e.cfg = cfg
	return nil
}

func (e *Engine) StartTrajectory(initial *Pose2D) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return cartoerror.New(cartoerror.NotInStartedState, "engine closed")
	}
	if initial != nil {
		e.pose = *initial
		e.havePose = true
	}
	e.started = true
	return nil
}

func (e *Engine) LoadState(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("cannot load state after trajectory has started")
	}
	if len(data) == 0 {
		return cartoerror.New(cartoerror.InternalStateFileSystemError, "empty state payload")
	}
	ok, cloud := pcd.Decode(data, 0)
	if !ok {
		return cartoerror.New(cartoerror.InternalStateFileSystemError, "malformed serialized map")
	}
	for _, p := range cloud.Points {
		e.markObserved(p.Position.X, p.Position.Y, p.Probability)
	}
	return nil
}

func (e *Engine) AddLidarReading(ctx context.Context, reading sensors.TimedLidarReadingResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return cartoerror.New(cartoerror.NotInStartedState, "trajectory not started")
	}

	ok, cloud := pcd.Decode(reading.Reading, reading.ReadingTime.UnixMilli())
	if !ok {
		if len(reading.Reading) == 0 {
			return cartoerror.New(cartoerror.LidarReadingEmpty, "empty lidar reading")
		}
		return cartoerror.New(cartoerror.LidarReadingInvalid, "malformed PCD payload")
	}
	if len(cloud.Points) == 0 {
		return cartoerror.New(cartoerror.LidarReadingEmpty, "lidar reading has zero points")
	}

	cx, cy := centroid(cloud.Points)
	if e.haveCentroid {
		dx := cx - e.centroidX
		dy := cy - e.centroidY
		e.pose.X += dx
		e.pose.Y += dy
		e.havePose = true
	} else if !e.havePose {
		e.havePose = true
	}
	e.centroidX, e.centroidY = cx, cy
	e.haveCentroid = true

	for _, p := range cloud.Points {
		wx := e.pose.X + p.Position.X
		wy := e.pose.Y + p.Position.Y
		e.markObserved(wx, wy, 100)
	}

	e.lidarReadings++
	if e.cfg.OptimizeEveryNNodes > 0 && e.lidarReadings%e.cfg.OptimizeEveryNNodes == 0 {
		e.optimizeLocked()
	}

	return nil
}

func (e *Engine) AddIMUReading(ctx context.Context, reading sensors.TimedIMUReadingResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return cartoerror.New(cartoerror.NotInStartedState, "trajectory not started")
	}
	// Angular velocity nudges heading; this is a dead-reckoning aid, not
	// a real IMU preintegration pipeline.
	e.pose.ThetaRad += reading.AngularVelocity.Z * 0.01
	return nil
}

func (e *Engine) AddOdometerReading(ctx context.Context, reading sensors.TimedOdometerReadingResponse) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return cartoerror.New(cartoerror.NotInStartedState, "trajectory not started")
	}
	if reading.Position == nil {
		return cartoerror.New(cartoerror.OdometerReadingInvalid, "nil position")
	}
	return nil
}

func (e *Engine) GlobalPose() (Pose2D, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pose, e.havePose
}

func (e *Engine) Submaps() []paint.Submap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return []paint.Submap{e.rasterizeLocked()}
}

func (e *Engine) SerializeToFile() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	points := make([]pcd.Point, 0, len(e.occupancy))
	for c, stats := range e.occupancy {
		points = append(points, pcd.Point{
			Position:    vec(float64(c.x)*paint.CellSizeMeters, float64(c.y)*paint.CellSizeMeters, 0),
			Probability: probabilityOf(stats),
			HasRGB:      true,
		})
	}
	if len(points) == 0 {
		return nil, cartoerror.New(cartoerror.GetInternalStateResponseInvalid, "no internal state to serialize")
	}
	return pcd.EncodeBinaryXYZRGB(points), nil
}

func (e *Engine) RunFinalOptimization(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.optimizeLocked()
	return nil
}

// optimizeLocked performs a no-op "global optimization" placeholder: the
// reference engine's pose estimate is already its best estimate, so
// there is nothing to revise. A real backend would re-solve the pose
// graph here.
func (e *Engine) optimizeLocked() {}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.started = false
	return nil
}

func (e *Engine) markObserved(worldX, worldY float64, probability int) {
	c := gridCell{
		x: int(math.Floor(worldX / paint.CellSizeMeters)),
		y: int(math.Floor(worldY / paint.CellSizeMeters)),
	}
	st, ok := e.occupancy[c]
	if !ok {
		st = &cellStats{}
		e.occupancy[c] = st
	}
	if probability > 50 {
		st.hits++
	} else {
		st.misses++
	}
}

func (e *Engine) rasterizeLocked() paint.Submap {
	if len(e.occupancy) == 0 {
		return paint.Submap{Width: 1, Height: 1, Resolution: paint.CellSizeMeters, Texture: make([]byte, 4)}
	}

	minX, minY := math.MaxInt32, math.MaxInt32
	maxX, maxY := -math.MaxInt32, -math.MaxInt32
	for c := range e.occupancy {
		if c.x < minX {
			minX = c.x
		}
		if c.x > maxX {
			maxX = c.x
		}
		if c.y < minY {
			minY = c.y
		}
		if c.y > maxY {
			maxY = c.y
		}
	}

	width := maxX - minX + 1
	height := maxY - minY + 1
	texture := make([]byte, width*height*4)

	for c, stats := range e.occupancy {
		col := c.x - minX
		row := maxY - c.y // image row grows downward, world y grows upward
		off := (row*width + col) * 4
		prob := probabilityOf(stats)
		r := byte(255 - prob*255/100)
		texture[off] = 0   // B
		texture[off+1] = 1 // G, non-zero marks this cell observed
		texture[off+2] = r // R
		texture[off+3] = 255
	}

	return paint.Submap{
		Texture:    texture,
		Width:      width,
		Height:     height,
		Resolution: paint.CellSizeMeters,
		Origin:     vec(float64(minX)*paint.CellSizeMeters, float64(maxY)*paint.CellSizeMeters, 0),
	}
}

func probabilityOf(s *cellStats) int {
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}
	return s.hits * 100 / total
}

func vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

func centroid(points []pcd.Point) (float64, float64) {
	var sx, sy float64
	for _, p := range points {
		sx += p.Position.X
		sy += p.Position.Y
	}
	n := float64(len(points))
	return sx / n, sy / n
}

var _ fmt.Stringer = Pose2D{}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f rad)", p.X, p.Y, p.ThetaRad)
}
