// Package sensors defines the tagged sensor reading variants that cross
// the cartofacade boundary: lidar, IMU, and odometer readings.
package sensors

import (
	"time"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"go.viam.com/rdk/spatialmath"
)

// TimedLidarReadingResponse is a single lidar scan: the sensor it came
// from, its raw PCD payload, and the time it was captured.
type TimedLidarReadingResponse struct {
	SensorName  string
	Reading     []byte
	ReadingTime time.Time
}

// TimedIMUReadingResponse is a single IMU sample.
type TimedIMUReadingResponse struct {
	SensorName         string
	LinearAcceleration r3.Vector
	AngularVelocity    spatialmath.AngularVelocity
	ReadingTime        time.Time
}

// TimedOdometerReadingResponse is a single odometer sample: a geographic
// position plus orientation, matching the shape the rdk movement sensor
// API reports.
type TimedOdometerReadingResponse struct {
	SensorName  string
	Position    *geo.Point
	Orientation spatialmath.Orientation
	ReadingTime time.Time
}
