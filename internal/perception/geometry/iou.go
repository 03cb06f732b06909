package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// IoUBEV returns the bird's-eye-view intersection-over-union of two oriented
// boxes. Degenerate footprints yield 0.
func IoUBEV(a, b OrientedBoundingBox) float64 {
	if a.IsDegenerateBEV() || b.IsDegenerateBEV() {
		return 0
	}
	inter := IntersectionAreaBEV(a, b)
	union := a.Area() + b.Area() - inter
	if union <= extentEpsilon {
		return 0
	}
	return clamp01(inter / union)
}

// IoU3D returns the volumetric intersection-over-union of two oriented boxes
// that share a vertical axis. Degenerate boxes yield 0.
func IoU3D(a, b OrientedBoundingBox) float64 {
	if a.IsDegenerate() || b.IsDegenerate() {
		return 0
	}
	aMin, aMax := a.zRange()
	bMin, bMax := b.zRange()
	overlapZ := math.Min(aMax, bMax) - math.Max(aMin, bMin)
	if overlapZ <= 0 {
		return 0
	}
	inter := IntersectionAreaBEV(a, b) * overlapZ
	union := a.Volume() + b.Volume() - inter
	if union <= extentEpsilon {
		return 0
	}
	return clamp01(inter / union)
}

// IntersectionAreaBEV returns the area of the overlap of two box footprints.
func IntersectionAreaBEV(a, b OrientedBoundingBox) float64 {
	fa := a.Footprint()
	fb := b.Footprint()
	return polygonArea(clipConvex(fa[:], fb[:]))
}

// clipConvex clips the subject polygon against a convex, counter-clockwise
// clip polygon (Sutherland-Hodgman).
func clipConvex(subject, clip []r2.Vec) []r2.Vec {
	out := append([]r2.Vec(nil), subject...)
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		edgeStart := clip[i]
		edgeEnd := clip[(i+1)%len(clip)]

		in := out
		out = make([]r2.Vec, 0, len(in)+1)
		prev := in[len(in)-1]
		prevInside := inside(prev, edgeStart, edgeEnd)
		for _, cur := range in {
			curInside := inside(cur, edgeStart, edgeEnd)
			switch {
			case curInside && prevInside:
				out = append(out, cur)
			case curInside && !prevInside:
				out = append(out, intersect(prev, cur, edgeStart, edgeEnd), cur)
			case !curInside && prevInside:
				out = append(out, intersect(prev, cur, edgeStart, edgeEnd))
			}
			prev, prevInside = cur, curInside
		}
	}
	return out
}

// inside reports whether p lies on the left of (or on) the directed edge a->b.
func inside(p, a, b r2.Vec) bool {
	return r2.Cross(r2.Sub(b, a), r2.Sub(p, a)) >= 0
}

// intersect returns the intersection of segment p->q with the infinite line
// through a and b.
func intersect(p, q, a, b r2.Vec) r2.Vec {
	dir := r2.Sub(q, p)
	edge := r2.Sub(b, a)
	denom := r2.Cross(edge, dir)
	if math.Abs(denom) < extentEpsilon {
		return q
	}
	t := r2.Cross(edge, r2.Sub(a, p)) / denom
	return r2.Add(p, r2.Scale(t, dir))
}

// polygonArea returns the absolute shoelace area.
func polygonArea(poly []r2.Vec) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		sum += r2.Cross(p, q)
	}
	return math.Abs(sum) / 2
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
