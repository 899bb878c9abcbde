package pcd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func asciiHeader(points int, fields string, types string, sizes string) string {
	return fmt.Sprintf(
		"VERSION .7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT 1 1 1\nWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA ascii\n",
		fields, sizes, types, points, points,
	)
}

func TestDecodeASCIIXYZ(t *testing.T) {
	raw := asciiHeader(3, "x y z", "F F F", "4 4 4") + "0 0 0\n1 0 0\n2 0 0\n"
	ok, cloud := Decode([]byte(raw), 1000)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(cloud.Points), test.ShouldEqual, 3)
	test.That(t, cloud.Points[0].RelTimeSec, test.ShouldEqual, 0.0)
	test.That(t, cloud.Points[1].RelTimeSec, test.ShouldEqual, -intraScanTimeStep)
	test.That(t, cloud.Points[2].RelTimeSec, test.ShouldEqual, -2*intraScanTimeStep)
	test.That(t, cloud.Points[1].Position.X, test.ShouldEqual, 1.0)
}

func TestDecodeASCIIWithRGB(t *testing.T) {
	raw := asciiHeader(2, "x y z rgb", "F F F I", "4 4 4 4") + "0 0 0 50\n1 1 1 75\n"
	ok, cloud := Decode([]byte(raw), 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cloud.Points[0].Probability, test.ShouldEqual, 50)
	test.That(t, cloud.Points[1].Probability, test.ShouldEqual, 75)
}

func TestDecodeRejectsTooFewPoints(t *testing.T) {
	raw := asciiHeader(5, "x y z", "F F F", "4 4 4") + "0 0 0\n1 0 0\n"
	ok, _ := Decode([]byte(raw), 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDecodeAcceptsOverflowPoints(t *testing.T) {
	raw := asciiHeader(2, "x y z", "F F F", "4 4 4") + "0 0 0\n1 0 0\n2 0 0\n3 0 0\n"
	ok, cloud := Decode([]byte(raw), 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(cloud.Points), test.ShouldEqual, 2)
}

func TestDecodeRejectsCompressedBinary(t *testing.T) {
	raw := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"WIDTH 1\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 1\nDATA binary_compressed\n"
	ok, _ := Decode([]byte(raw), 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDecodeEmptyInput(t *testing.T) {
	ok, _ := Decode(nil, 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDecodeTruncatedHeader(t *testing.T) {
	ok, _ := Decode([]byte("VERSION .7\nFIELDS x y z\n"), 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func buildBinaryXYZ(points [][3]float32) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n")
	fmt.Fprintf(&buf, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA binary\n", len(points), len(points))
	var le [4]byte
	for _, p := range points {
		for _, v := range p {
			binary.LittleEndian.PutUint32(le[:], math.Float32bits(v))
			buf.Write(le[:])
		}
	}
	return buf.Bytes()
}

func TestDecodeBinaryXYZ(t *testing.T) {
	raw := buildBinaryXYZ([][3]float32{{1, 2, 3}, {4, 5, 6}})
	ok, cloud := Decode(raw, 42)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(cloud.Points), test.ShouldEqual, 2)
	test.That(t, cloud.Points[1].Position.Y, test.ShouldEqual, float64(float32(5)))
	test.That(t, cloud.TimestampUnixMSec, test.ShouldEqual, int64(42))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	points := []Point{
		{Position: r3.Vector{X: 1, Y: 2, Z: 0}, Probability: 60, HasRGB: true},
		{Position: r3.Vector{X: -1, Y: -2, Z: 0}, Probability: 10, HasRGB: true},
	}
	raw := EncodeBinaryXYZRGB(points)
	ok, cloud := Decode(raw, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(cloud.Points), test.ShouldEqual, 2)
	test.That(t, cloud.Points[0].Probability, test.ShouldEqual, 60)
	test.That(t, cloud.Points[1].Probability, test.ShouldEqual, 10)
}
