// Package pcd implements the point-cloud decoder contract from spec.md
// §4.2 and §6.2: parsing an uncompressed PCD payload (ASCII or
// little-endian binary) into a timed 3D point set, and encoding the
// inverse for the map-paint pipeline in package paint.
//
// Grounded on original_source/viam-cartographer/src/carto_facade/util.cc
// (read_pcd / carto_lidar_reading), reimplemented without PCL: this
// package owns its own minimal PCD header parser rather than shelling
// out to a point-cloud library, since none of the teacher's dependency
// set provides one.
package pcd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// intraScanTimeStep is the per-point decreasing relative time offset (in
// seconds) the adapter uses to model scan motion within a single reading,
// carried over unchanged from the original implementation's util.cc.
const intraScanTimeStep = 1e-4

// Point is a single decoded range point with its intra-scan relative
// time, a monotonically decreasing offset from the scan's nominal time.
type Point struct {
	Position   r3.Vector
	RelTimeSec float64
	// Probability is populated only for points decoded from a painted
	// map (the rgb/occupancy field); it is zero for raw lidar scans.
	Probability int
	HasRGB      bool
}

// TimedPointCloud is a decoded scan: every point plus the reading's
// nominal timestamp, expressed as milliseconds since the Unix epoch (the
// wire unit spec.md §3 specifies for sensor readings).
type TimedPointCloud struct {
	Points            []Point
	TimestampUnixMSec int64
}

type header struct {
	fields   []string
	typ      []byte
	size     []int
	points   int
	ascii    bool
	hasColor bool
}

// Decode parses raw as an uncompressed PCD file (ASCII or binary body)
// and returns the declared point count worth of points, stamping each
// with a decreasing intra-scan relative time. Decode never panics: any
// parse failure, including those from malformed or truncated input,
// surfaces as (false, TimedPointCloud{}).
func Decode(raw []byte, timestampUnixMSec int64) (ok bool, cloud TimedPointCloud) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			cloud = TimedPointCloud{}
		}
	}()

	if len(raw) == 0 {
		return false, TimedPointCloud{}
	}

	hdr, bodyOffset, err := parseHeader(raw)
	if err != nil {
		return false, TimedPointCloud{}
	}

	if hdr.points <= 0 {
		return false, TimedPointCloud{}
	}

	var points []Point
	if hdr.ascii {
		points, err = decodeASCIIBody(raw[bodyOffset:], hdr)
	} else {
		points, err = decodeBinaryBody(raw[bodyOffset:], hdr)
	}
	if err != nil {
		return false, TimedPointCloud{}
	}

	if len(points) < hdr.points {
		return false, TimedPointCloud{}
	}
	// Overflow tolerance: bodies with more points than declared are
	// accepted, but only the declared count is returned.
	points = points[:hdr.points]

	for i := range points {
		points[i].RelTimeSec = -float64(i) * intraScanTimeStep
	}

	return true, TimedPointCloud{Points: points, TimestampUnixMSec: timestampUnixMSec}
}

func parseHeader(raw []byte) (header, int, error) {
	wantLines := []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var hdr header
	offset := 0
	seen := map[string]bool{}

	for _, want := range wantLines {
		if !scanner.Scan() {
			return header{}, 0, errors.Errorf("truncated PCD header, expected %s line", want)
		}
		line := scanner.Text()
		offset += len(line) + 1 // account for the newline consumed by Scan
		fields := strings.Fields(line)
		if len(fields) == 0 || !strings.EqualFold(fields[0], want) {
			return header{}, 0, errors.Errorf("expected %s header line, got %q", want, line)
		}
		seen[want] = true

		switch want {
		case "FIELDS":
			hdr.fields = fields[1:]
			for _, f := range hdr.fields {
				if strings.EqualFold(f, "rgb") {
					hdr.hasColor = true
				}
			}
		case "SIZE":
			for _, s := range fields[1:] {
				n, err := strconv.Atoi(s)
				if err != nil {
					return header{}, 0, errors.Wrap(err, "invalid SIZE field")
				}
				hdr.size = append(hdr.size, n)
			}
		case "TYPE":
			for _, s := range fields[1:] {
				if len(s) != 1 {
					return header{}, 0, errors.Errorf("invalid TYPE token %q", s)
				}
				hdr.typ = append(hdr.typ, s[0])
			}
		case "POINTS":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return header{}, 0, errors.Wrap(err, "invalid POINTS field")
			}
			hdr.points = n
		case "DATA":
			switch strings.ToLower(fields[1]) {
			case "ascii":
				hdr.ascii = true
			case "binary":
				hdr.ascii = false
			case "binary_compressed":
				return header{}, 0, errors.New("compressed PCD is not supported")
			default:
				return header{}, 0, errors.Errorf("unknown DATA encoding %q", fields[1])
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return header{}, 0, err
	}

	hasXYZ := false
	for i := 0; i+2 < len(hdr.fields); i++ {
		if strings.EqualFold(hdr.fields[i], "x") &&
			strings.EqualFold(hdr.fields[i+1], "y") &&
			strings.EqualFold(hdr.fields[i+2], "z") {
			hasXYZ = true
			break
		}
	}
	if !hasXYZ {
		return header{}, 0, errors.New("PCD fields must declare x y z")
	}

	return hdr, offset, nil
}

func decodeASCIIBody(body []byte, hdr header) ([]Point, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var points []Point
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) < 3 {
			return nil, errors.Errorf("malformed ASCII PCD row: %q", line)
		}
		x, err := strconv.ParseFloat(tokens[0], 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(tokens[1], 64)
		if err != nil {
			return nil, err
		}
		z, err := strconv.ParseFloat(tokens[2], 64)
		if err != nil {
			return nil, err
		}
		p := Point{Position: r3.Vector{X: x, Y: y, Z: z}}
		if hdr.hasColor && len(tokens) >= 4 {
			rgb, err := strconv.ParseInt(tokens[3], 10, 64)
			if err != nil {
				return nil, err
			}
			p.Probability = int(rgb)
			p.HasRGB = true
		} else if hdr.hasColor {
			return nil, errors.New("header declares rgb field but row is missing it")
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func decodeBinaryBody(body []byte, hdr header) ([]Point, error) {
	pointSize := 12 // x,y,z float32
	if hdr.hasColor {
		pointSize += 4 // int32 rgb slot
	}
	if len(body) < pointSize {
		return nil, errors.New("binary PCD body smaller than one point")
	}

	n := len(body) / pointSize
	points := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		off := i * pointSize
		x := math.Float32frombits(binary.LittleEndian.Uint32(body[off:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(body[off+4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(body[off+8:]))
		p := Point{Position: r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}}
		if hdr.hasColor {
			p.Probability = int(int32(binary.LittleEndian.Uint32(body[off+12:])))
			p.HasRGB = true
		}
		points = append(points, p)
	}
	return points, nil
}

// EncodeBinaryXYZRGB writes a binary-bodied PCD file whose header
// declares fields "x y z rgb" (an int32 probability in the rgb slot),
// matching spec.md §4.3's output contract for painted maps.
func EncodeBinaryXYZRGB(points []Point) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "VERSION .7\n")
	fmt.Fprintf(&buf, "FIELDS x y z rgb\n")
	fmt.Fprintf(&buf, "SIZE 4 4 4 4\n")
	fmt.Fprintf(&buf, "TYPE F F F I\n")
	fmt.Fprintf(&buf, "COUNT 1 1 1 1\n")
	fmt.Fprintf(&buf, "WIDTH %d\n", len(points))
	fmt.Fprintf(&buf, "HEIGHT 1\n")
	fmt.Fprintf(&buf, "VIEWPOINT 0 0 0 1 0 0 0\n")
	fmt.Fprintf(&buf, "POINTS %d\n", len(points))
	fmt.Fprintf(&buf, "DATA binary\n")

	var le [4]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint32(le[:], math.Float32bits(float32(f)))
		buf.Write(le[:])
	}
	writeInt := func(v int) {
		binary.LittleEndian.PutUint32(le[:], uint32(int32(v)))
		buf.Write(le[:])
	}

	for _, p := range points {
		writeFloat(p.Position.X)
		writeFloat(p.Position.Y)
		writeFloat(p.Position.Z)
		writeInt(p.Probability)
	}

	return buf.Bytes()
}
