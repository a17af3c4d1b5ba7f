package shapefile

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// minShellsForIndex is the number of shells from which holes are matched to
// shells with an R-tree instead of a linear scan.
const minShellsForIndex = 16

// A ring is a ring of a polygon record.
type ring struct {
	part       int
	flatCoords []float64
	bounds     *geom.Bounds
	holes      []*ring
}

// Bounds implements rtreego.Spatial. The rectangle is padded so that
// degenerate and touching envelopes are still found by intersection queries.
func (r *ring) Bounds() rtreego.Rect {
	minX, minY := r.bounds.Min(0), r.bounds.Min(1)
	maxX, maxY := r.bounds.Max(0), r.bounds.Max(1)
	pad := 1e-9 * max(1, math.Abs(minX), math.Abs(minY), math.Abs(maxX), math.Abs(maxY))
	point := rtreego.Point{minX - pad, minY - pad}
	lengths := []float64{maxX - minX + 2*pad, maxY - minY + 2*pad}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// firstCoord returns the first coordinate of r.
func (r *ring) firstCoord(stride int) geom.Coord {
	return geom.Coord(r.flatCoords[:stride])
}

// hasVertex returns if c is one of r's vertices.
func (r *ring) hasVertex(c geom.Coord, stride int) bool {
	for i := 0; i < len(r.flatCoords); i += stride {
		if r.flatCoords[i] == c[0] && r.flatCoords[i+1] == c[1] {
			return true
		}
	}
	return false
}

// contains returns if r's envelope contains hole's envelope and hole's first
// vertex is inside or on r.
func (r *ring) contains(layout geom.Layout, hole *ring) bool {
	if !boundsContain(r.bounds, hole.bounds) {
		return false
	}
	stride := layout.Stride()
	c := hole.firstCoord(stride)
	return xy.IsPointInRing(layout, c, r.flatCoords) || r.hasVertex(c, stride)
}

// isClosed returns if ring's first and last coordinates have the same X and Y.
// An empty ring is closed.
func isClosed(ring []float64, stride int) bool {
	if len(ring) < stride {
		return true
	}
	last := len(ring) - stride
	return ring[0] == ring[last] && ring[1] == ring[last+1]
}

func boundsContain(outer, inner *geom.Bounds) bool {
	return outer.Min(0) <= inner.Min(0) && inner.Max(0) <= outer.Max(0) &&
		outer.Min(1) <= inner.Min(1) && inner.Max(1) <= outer.Max(1)
}

func boundsArea(b *geom.Bounds) float64 {
	return (b.Max(0) - b.Min(0)) * (b.Max(1) - b.Min(1))
}

// resolveRings reconstructs polygons from the rings of a polygon record.
//
// Clockwise rings are shells and counter-clockwise rings are holes. Each hole
// is assigned to the shell with the smallest envelope that contains it. Holes
// that no shell contains are reported as orphaned and excluded, as are rings
// with fewer than four coordinates and rings that are not closed.
//
// It returns a *geom.Polygon if there is at most one shell and a
// *geom.MultiPolygon otherwise.
func resolveRings(layout geom.Layout, flatCoords []float64, ends []int, ws *warnings) geom.T {
	stride := layout.Stride()

	var shells, holes []*ring
	offset := 0
	for part, end := range ends {
		ringFlatCoords := flatCoords[offset:end]
		offset = end
		if n := len(ringFlatCoords) / stride; n < 4 {
			ws.add(WarningDegenerateRing, part, "ring has %d points, need at least 4", n)
			continue
		}
		if !isClosed(ringFlatCoords, stride) {
			ws.add(WarningDegenerateRing, part, "ring is not closed")
			continue
		}
		r := &ring{
			part:       part,
			flatCoords: ringFlatCoords,
			bounds:     geom.NewLinearRingFlat(layout, ringFlatCoords).Bounds(),
		}
		if isCounterClockwise(layout, ringFlatCoords) {
			holes = append(holes, r)
		} else {
			shells = append(shells, r)
		}
	}

	switch len(shells) {
	case 0:
		for _, hole := range holes {
			ws.add(WarningOrphanedHole, hole.part, "no shell contains hole")
		}
		return geom.NewPolygon(layout)
	case 1:
		shells[0].holes = holes
	default:
		findShell := newShellFinder(layout, shells)
		for _, hole := range holes {
			shell := findShell(hole)
			if shell == nil {
				ws.add(WarningOrphanedHole, hole.part, "no shell contains hole")
				continue
			}
			shell.holes = append(shell.holes, hole)
		}
	}

	newFlatCoords := make([]float64, 0, len(flatCoords))
	endss := make([][]int, 0, len(shells))
	for _, shell := range shells {
		newFlatCoords = append(newFlatCoords, shell.flatCoords...)
		ends := []int{len(newFlatCoords)}
		for _, hole := range shell.holes {
			newFlatCoords = append(newFlatCoords, hole.flatCoords...)
			ends = append(ends, len(newFlatCoords))
		}
		endss = append(endss, ends)
	}

	if len(endss) == 1 {
		return geom.NewPolygonFlat(layout, newFlatCoords, endss[0])
	}
	return geom.NewMultiPolygonFlat(layout, newFlatCoords, endss)
}

// newShellFinder returns a function that returns the tightest shell
// containing a hole, or nil if there is none. Ties are broken by file order.
func newShellFinder(layout geom.Layout, shells []*ring) func(*ring) *ring {
	candidates := func(*ring) []*ring { return shells }
	if len(shells) >= minShellsForIndex {
		rtree := rtreego.NewTree(2, 25, 50)
		for _, shell := range shells {
			rtree.Insert(shell)
		}
		candidates = func(hole *ring) []*ring {
			spatials := rtree.SearchIntersect(hole.Bounds())
			result := make([]*ring, 0, len(spatials))
			for _, spatial := range spatials {
				result = append(result, spatial.(*ring))
			}
			return result
		}
	}

	return func(hole *ring) *ring {
		var best *ring
		bestArea := math.Inf(1)
		for _, shell := range candidates(hole) {
			if !shell.contains(layout, hole) {
				continue
			}
			switch area := boundsArea(shell.bounds); {
			case area < bestArea, area == bestArea && best != nil && shell.part < best.part:
				best = shell
				bestArea = area
			}
		}
		return best
	}
}
