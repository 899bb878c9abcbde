// Package paint composites submap raster textures into a single
// occupancy-probability point cloud, per spec.md §4.3. It is grounded on
// original_source/viam-cartographer/src/io/submap_painter.h
// (PaintSubmapSlices, DrawPoseOnSurface) and io/color.h (the ARGB32
// channel layout and probability derivation), reimplemented in Go
// without the Cairo surface type the original used.
package paint

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-modules/cartofacade/cartoerror"
	"github.com/viam-modules/cartofacade/pcd"
)

// CellSizeMeters is the fixed resolution of the composited global raster,
// carried over unchanged from the original implementation's painter.
const CellSizeMeters = 0.05

// Submap is one textured tile of the map, positioned in the global frame.
// Texture holds width*height pixels encoded ARGB32, little-endian (so the
// in-memory byte order per pixel is B, G, R, A).
type Submap struct {
	Texture    []byte
	Width      int
	Height     int
	Resolution float64 // meters per texture pixel
	// Origin is the world-frame position, in meters, of the texture's
	// top-left pixel (row 0, column 0).
	Origin r3.Vector
}

// Options controls optional post-compositing steps layered on top of the
// probability raster spec.md §4.3 describes.
type Options struct {
	// DrawPose, when set, overlays PoseMarker as an extra high-probability
	// point after compositing, matching original_source's
	// DrawPoseOnSurface. Off by default: spec.md's PCD contract for a
	// painted map is plain occupancy, fields x y z rgb.
	DrawPose   bool
	PoseMarker r3.Vector
}

type cell struct {
	x, y int
}

// Paint composites submaps into a single occupancy PCD. It fails with
// cartoerror.PointCloudMapEmpty if no submap contributes a single
// observed, non-zero-probability cell — the "map empty" case spec.md
// §4.3 and §7 call out explicitly.
func Paint(submaps []Submap, opts Options) ([]byte, error) {
	if len(submaps) == 0 {
		return nil, cartoerror.New(cartoerror.PointCloudMapEmpty, "no submaps to paint")
	}

	grid := map[cell]int{}
	minX, minY := int(^uint(0)>>1), int(^uint(0)>>1)
	maxX, maxY := -minX-1, -minY-1

	for _, sm := range submaps {
		if sm.Width <= 0 || sm.Height <= 0 || sm.Resolution <= 0 {
			return nil, errors.New("submap has invalid dimensions")
		}
		wantLen := sm.Width * sm.Height * 4
		if len(sm.Texture) < wantLen {
			return nil, errors.Errorf("submap texture too short: want %d bytes, got %d", wantLen, len(sm.Texture))
		}

		for row := 0; row < sm.Height; row++ {
			for col := 0; col < sm.Width; col++ {
				off := (row*sm.Width + col) * 4
				b := sm.Texture[off]
				g := sm.Texture[off+1]
				r := sm.Texture[off+2]
				// alpha channel at off+3 is unused by the probability formula.

				if g == 0 {
					continue // unobserved
				}
				prob := (255 - int(r)) * 100 / 255
				if prob == 0 {
					continue
				}
				_ = b

				worldX := sm.Origin.X + float64(col)*sm.Resolution
				worldY := sm.Origin.Y - float64(row)*sm.Resolution // row grows downward, world y grows upward

				gx := int(worldX / CellSizeMeters)
				gy := int(worldY / CellSizeMeters)

				grid[cell{gx, gy}] = prob
				if gx < minX {
					minX = gx
				}
				if gx > maxX {
					maxX = gx
				}
				if gy < minY {
					minY = gy
				}
				if gy > maxY {
					maxY = gy
				}
			}
		}
	}

	if len(grid) == 0 {
		return nil, cartoerror.New(cartoerror.PointCloudMapEmpty, "no observed, non-zero-probability cells")
	}

	points := make([]pcd.Point, 0, len(grid)+1)
	for c, prob := range grid {
		points = append(points, pcd.Point{
			Position: r3.Vector{
				X: float64(c.x) * CellSizeMeters,
				Y: float64(c.y) * CellSizeMeters,
				Z: 0,
			},
			Probability: prob,
			HasRGB:      true,
		})
	}

	if opts.DrawPose {
		points = append(points, pcd.Point{
			Position:    opts.PoseMarker,
			Probability: 100,
			HasRGB:      true,
		})
	}

	return pcd.EncodeBinaryXYZRGB(points), nil
}
