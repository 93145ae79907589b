package formats

// TerrainMesh is the triangle mesh of an outdoor map's height grid.
//
// UVs are per index rather than per vertex: UVs[k] belongs to the corner
// Indices[k], so neighbouring cells can map to different atlas tiles.
type TerrainMesh struct {
	Positions [][3]float32
	Indices   []uint32
	UVs       [][2]float32
}

// NewTerrainMesh builds the terrain of m. Every grid point becomes a vertex
// centred on the map origin; every cell except those on the last row and
// column becomes two triangles textured with its tile's atlas cell.
func NewTerrainMesh(m *ODM, table *TileTable) *TerrainMesh {
	width, depth := m.Size()
	cells := (width - 1) * (depth - 1)
	mesh := &TerrainMesh{
		Positions: make([][3]float32, 0, width*depth),
		Indices:   make([]uint32, 0, cells*6),
		UVs:       make([][2]float32, 0, cells*6),
	}

	columns, rows := table.Size()
	halfW, halfD := float32(width)/2, float32(depth)/2
	w32 := uint32(width)

	for d := 0; d < depth; d++ {
		for w := 0; w < width; w++ {
			i := d*width + w
			mesh.Positions = append(mesh.Positions, [3]float32{
				(float32(w) - halfW) * TileScale,
				float32(m.HeightMap[i]) * HeightScale,
				(float32(d) - halfD) * TileScale,
			})
			if w >= width-1 || d >= depth-1 {
				continue
			}

			k := uint32(i)
			mesh.Indices = append(mesh.Indices,
				k, k+w32, k+1,
				k+1, k+w32, k+w32+1,
			)

			var ws, we, hs, he float32
			if columns > 0 && rows > 0 {
				c := table.Coordinate(m.TileMap[i])
				ws = float32(c.Column) / float32(columns)
				we = float32(c.Column+1) / float32(columns)
				hs = float32(c.Row) / float32(rows)
				he = float32(c.Row+1) / float32(rows)
			}
			mesh.UVs = append(mesh.UVs,
				[2]float32{ws, hs}, [2]float32{ws, he}, [2]float32{we, hs},
				[2]float32{we, hs}, [2]float32{ws, he}, [2]float32{we, he},
			)
		}
	}
	return mesh
}

// Unrolled expands the mesh so each index has its own vertex, matching the
// per-index UVs. The returned positions and UVs line up one to one and are
// drawn as a plain triangle list.
func (t *TerrainMesh) Unrolled() (positions [][3]float32, uvs [][2]float32) {
	positions = make([][3]float32, len(t.Indices))
	for k, i := range t.Indices {
		positions[k] = t.Positions[i]
	}
	return positions, append([][2]float32(nil), t.UVs...)
}
