package types

import "github.com/chewxy/math32"

// AABB is an axis aligned bounding box. Both corners are stored as 4-wide
// vectors; the W lane is ignored.
type AABB struct {
	Min Vec4
	Max Vec4
}

// Create an empty box. An empty box is the identity element for Union and Grow.
func EmptyAABB() AABB {
	return AABB{
		Min: Vec4{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32, 0},
		Max: Vec4{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32, 0},
	}
}

// Create a box from two corners.
func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min.Vec4(0), Max: max.Vec4(0)}
}

// Create the tightest box enclosing a set of points.
func AABBFromPoints(points ...Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.GrowPoint(p.Vec4(0))
	}
	return box
}

// Returns true if the box does not enclose any point.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Union of two boxes.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: MinVec4(b.Min, o.Min), Max: MaxVec4(b.Max, o.Max)}
}

// Grow the box so it encloses p.
func (b AABB) GrowPoint(p Vec4) AABB {
	return AABB{Min: MinVec4(b.Min, p), Max: MaxVec4(b.Max, p)}
}

// Side lengths of the box.
func (b AABB) Extents() Vec4 {
	e := b.Max.Sub(b.Min)
	e[3] = 0
	return e
}

// Box center.
func (b AABB) Center() Vec4 {
	c := b.Min.Add(b.Max).Mul(0.5)
	c[3] = 0
	return c
}

// Surface area of the box: 2 * (xy + yz + zx). Empty boxes have zero area.
func (b AABB) SurfaceArea() float32 {
	if b.IsEmpty() {
		return 0
	}
	e := b.Extents()
	return 2 * e.MulVec(e.ShuffleYZX()).HSum3()
}

// Index of the axis with the largest extent. Ties resolve to the lowest axis.
func (b AABB) MaxExtentAxis() int {
	e := b.Extents()
	axis := 0
	if e[1] > e[axis] {
		axis = 1
	}
	if e[2] > e[axis] {
		axis = 2
	}
	return axis
}

// Returns true if o lies entirely inside b.
func (b AABB) Contains(o AABB) bool {
	for axis := 0; axis < 3; axis++ {
		if o.Min[axis] < b.Min[axis] || o.Max[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}

// Returns true if both boxes span the same space.
func (b AABB) Equal(o AABB) bool {
	return b.Min.Vec3() == o.Min.Vec3() && b.Max.Vec3() == o.Max.Vec3()
}

// Transform the box by m and return the box enclosing the transformed corners.
func (b AABB) Transform(m Mat4) AABB {
	out := EmptyAABB()
	for corner := 0; corner < 8; corner++ {
		p := Vec4{b.Min[0], b.Min[1], b.Min[2], 1}
		if corner&1 != 0 {
			p[0] = b.Max[0]
		}
		if corner&2 != 0 {
			p[1] = b.Max[1]
		}
		if corner&4 != 0 {
			p[2] = b.Max[2]
		}
		tp := m.Mul4x1(p)
		tp[3] = 0
		out = out.GrowPoint(tp)
	}
	return out
}
