package geometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// CenterDistance returns the 3D Euclidean distance between box centres.
func CenterDistance(a, b OrientedBoundingBox) float64 {
	return r3.Norm(r3.Sub(a.Center, b.Center))
}

// CenterDistanceBEV returns the Euclidean distance between box centres in
// the X-Y plane.
func CenterDistanceBEV(a, b OrientedBoundingBox) float64 {
	return r2.Norm(r2.Sub(r2.Vec{X: a.Center.X, Y: a.Center.Y}, r2.Vec{X: b.Center.X, Y: b.Center.Y}))
}

// PlaneDistance returns the RMS of the distances between the corresponding
// corners of the side of each box nearest to the ego origin. Comparing the
// nearest faces makes the score insensitive to length errors along the
// heading axis.
//
// Boxes with a zero-area footprint have no defined face; the raw centre
// distance is returned instead.
func PlaneDistance(estimated, groundTruth OrientedBoundingBox) float64 {
	if estimated.IsDegenerateBEV() || groundTruth.IsDegenerateBEV() {
		return CenterDistance(estimated, groundTruth)
	}

	estLeft, estRight := nearestFace(estimated)
	gtLeft, gtRight := nearestFace(groundTruth)

	dl := r3.Norm(r3.Sub(estLeft, gtLeft))
	dr := r3.Norm(r3.Sub(estRight, gtRight))
	return math.Sqrt((dl*dl + dr*dr) / 2)
}

// nearestFace returns the two footprint corners closest to the origin in BEV,
// ordered (left, right) as seen from the origin.
func nearestFace(b OrientedBoundingBox) (r3.Vec, r3.Vec) {
	corners := b.FootprintCorners3D()
	idx := []int{0, 1, 2, 3}
	sort.SliceStable(idx, func(i, j int) bool {
		return bevNorm2(corners[idx[i]]) < bevNorm2(corners[idx[j]])
	})
	return leftRight(corners[idx[0]], corners[idx[1]])
}

// leftRight orders two points by the sign of their 2D cross product.
func leftRight(p, q r3.Vec) (r3.Vec, r3.Vec) {
	cross := p.X*q.Y - p.Y*q.X
	if cross < 0 {
		return p, q
	}
	return q, p
}

func bevNorm2(p r3.Vec) float64 {
	return p.X*p.X + p.Y*p.Y
}
