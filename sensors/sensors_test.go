package sensors

import (
	"testing"
	"time"

	"github.com/golang/geo/r3"
	geo "github.com/kellydunn/golang-geo"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"
)

func TestTimedLidarReadingResponseFields(t *testing.T) {
	now := time.Now()
	r := TimedLidarReadingResponse{SensorName: "lidar1", Reading: []byte{1, 2, 3}, ReadingTime: now}
	test.That(t, r.SensorName, test.ShouldEqual, "lidar1")
	test.That(t, len(r.Reading), test.ShouldEqual, 3)
	test.That(t, r.ReadingTime, test.ShouldEqual, now)
}

func TestTimedIMUReadingResponseFields(t *testing.T) {
	r := TimedIMUReadingResponse{
		SensorName:         "imu1",
		LinearAcceleration: r3.Vector{X: 1, Y: 2, Z: 3},
		AngularVelocity:    spatialmath.AngularVelocity{Z: 0.5},
	}
	test.That(t, r.LinearAcceleration.X, test.ShouldEqual, 1.0)
	test.That(t, r.AngularVelocity.Z, test.ShouldEqual, 0.5)
}

func TestTimedOdometerReadingResponseFields(t *testing.T) {
	p := geo.NewPoint(37.77, -122.41)
	r := TimedOdometerReadingResponse{SensorName: "odo1", Position: p}
	test.That(t, r.Position.Lat(), test.ShouldEqual, 37.77)
	test.That(t, r.Position.Lng(), test.ShouldEqual, -122.41)
}
