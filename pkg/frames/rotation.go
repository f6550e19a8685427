package frames

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const parallelEpsilon = 1e-9

// AngleBetween returns the angle in radians between a and b
func AngleBetween(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := r3.Dot(a, b) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// shortestRotation returns the rotation taking unit vector a onto unit vector b
// along the shortest arc. When a and b are antiparallel the arc is not unique and
// the rotation is taken about hint (made perpendicular to a).
func shortestRotation(a, b, hint r3.Vec) r3.Rotation {
	angle := AngleBetween(a, b)
	if angle < parallelEpsilon {
		return r3.Rotation{Real: 1}
	}
	axis := r3.Cross(a, b)
	if r3.Norm(axis) < parallelEpsilon {
		axis = perpendicular(a, hint)
	}
	return r3.NewRotation(angle, axis)
}

// perpendicular returns a unit vector orthogonal to a, as close to hint as possible
func perpendicular(a, hint r3.Vec) r3.Vec {
	p := r3.Sub(hint, r3.Scale(r3.Dot(hint, a), a))
	if r3.Norm(p) > parallelEpsilon {
		return r3.Unit(p)
	}
	// hint is useless; pick the coordinate axis least aligned with a
	axis := r3.Vec{X: 1}
	if math.Abs(a.X) > math.Abs(a.Y) {
		axis = r3.Vec{Y: 1}
	}
	if math.Abs(a.Z) < math.Min(math.Abs(a.X), math.Abs(a.Y)) {
		axis = r3.Vec{Z: 1}
	}
	return r3.Unit(r3.Cross(a, axis))
}

// slerp spherically interpolates the rotation r by fraction f:
// (q)^f applied to the identity, following gonum's quaternion slerp formulation.
func slerp(r r3.Rotation, f float64) r3.Rotation {
	if f <= 0 {
		return r3.Rotation{Real: 1}
	}
	if f >= 1 {
		return r
	}
	q := quat.PowReal(quat.Number(r), f)
	if n := quat.Abs(q); n != 0 && n != 1 {
		q = quat.Scale(1/n, q)
	}
	return r3.Rotation(q)
}

// InterpolateRight rotates start toward end by fraction f of the shortest arc between them.
// hint resolves the antiparallel case and is normally the local curve tangent.
func InterpolateRight(start, end, hint r3.Vec, f float64) r3.Vec {
	a := r3.Unit(start)
	b := r3.Unit(end)
	return r3.Unit(slerp(shortestRotation(a, b, hint), f).Rotate(a))
}
