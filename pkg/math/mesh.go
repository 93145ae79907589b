package math

// FlatNormals returns one normal per position for a triangle list. A
// position shared by several triangles keeps the normal of the last one.
func FlatNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	normals := make([][3]float32, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(max(i0, i1, i2)) >= len(positions) {
			continue
		}
		p0, p1, p2 := V3(positions[i0]), V3(positions[i1]), V3(positions[i2])
		n := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize().Array()
		normals[i0], normals[i1], normals[i2] = n, n, n
	}
	return normals
}

// Sequence returns the indices 0..n-1.
func Sequence(n int) []uint32 {
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return indices
}

// Bounds returns the componentwise minimum and maximum of positions.
// Both are zero for an empty slice.
func Bounds(positions [][3]float32) (lo, hi Vec3) {
	if len(positions) == 0 {
		return Vec3{}, Vec3{}
	}
	lo, hi = V3(positions[0]), V3(positions[0])
	for _, p := range positions[1:] {
		lo = lo.Min(V3(p))
		hi = hi.Max(V3(p))
	}
	return lo, hi
}
