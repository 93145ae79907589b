package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"github.com/Faultbox/mm-lod/pkg/lod"
)

// testModel describes a synthetic BSP model.
type testModel struct {
	name     string
	vertices [][3]int32
	faces    []Face
	textures []string
	nodes    []BSPNode // Written as stored; len must be 2*nodeCount
}

// writeModelHeader writes the 188-byte header of m.
func writeModelHeader(buf *bytes.Buffer, m testModel) {
	buf.Write(fixed(m.name, bspModelNameSize))
	buf.Write(fixed(m.name+"_alt", bspModelNameSize))
	le := func(v any) { binary.Write(buf, binary.LittleEndian, v) }
	le(int32(7))                      // attributes
	le(int32(len(m.vertices)))        // vertex count
	le(int32(0))                      // vertex pointer
	le(int32(len(m.faces)))           // face count
	le(int32(0))                      // unknown
	le(int32(0))                      // face pointer
	le(int32(0))                      // ordering pointer
	le(int32(len(m.nodes) / 2))       // node count
	le([4]int32{})                    // unknowns
	le([3]int32{100, 200, 300})       // origin
	le([6]int32{-1, -2, -3, 1, 2, 3}) // bounds
	le([6]int32{})                    // unknowns
	le([3]int32{4, 5, 6})             // second origin
	le(int32(0))                      // unknown
}

// writeModelBody writes the vertices, faces, names and nodes of m.
func writeModelBody(buf *bytes.Buffer, m testModel) {
	binary.Write(buf, binary.LittleEndian, m.vertices)
	binary.Write(buf, binary.LittleEndian, m.faces)
	buf.Write(make([]byte, 2*len(m.faces)))
	for _, name := range m.textures {
		buf.Write(fixed(name, bspTextureNameSize))
	}
	binary.Write(buf, binary.LittleEndian, m.nodes)
}

// writeModels writes the model count, every header, then every body.
func writeModels(buf *bytes.Buffer, models []testModel) {
	binary.Write(buf, binary.LittleEndian, uint32(len(models)))
	for _, m := range models {
		writeModelHeader(buf, m)
	}
	for _, m := range models {
		writeModelBody(buf, m)
	}
}

// polygon returns a face using vertex ids 0..n-1.
func polygon(n int, attributes FaceAttributes, kind PolygonType) Face {
	f := Face{Attributes: attributes, VertexCount: uint8(n), PolygonType: kind}
	for i := 0; i < n; i++ {
		f.VertexIDs[i] = uint16(i)
	}
	f.Bounds = FaceBounds{MinX: -10, MaxX: 10, MinY: -20, MaxY: 20, MinZ: 0, MaxZ: 5}
	return f
}

func houseModel() testModel {
	return testModel{
		name: "House",
		vertices: [][3]int32{
			{0, 0, 0}, {100, 0, 0}, {100, 50, 10}, {50, 80, 20}, {0, 50, 30},
		},
		faces: []Face{
			polygon(5, FacePortal|FaceFluid, PolygonFloor),
			polygon(3, FaceClickable, PolygonVerticalWall),
			polygon(2, 0, PolygonInvalid),
		},
		textures: []string{"floor1", "wall2", "x"},
	}
}

func TestFaceLayout(t *testing.T) {
	if size := binary.Size(Face{}); size != bspFaceSize {
		t.Errorf("face record is %d bytes, want %d", size, bspFaceSize)
	}
	if size := binary.Size(bspHeaderRecord{}); size != bspHeaderSize {
		t.Errorf("header record is %d bytes, want %d", size, bspHeaderSize)
	}
	if size := binary.Size(BSPNode{}); size != bspNodeSize {
		t.Errorf("node record is %d bytes, want %d", size, bspNodeSize)
	}
}

func TestReadBSPModels(t *testing.T) {
	buf := new(bytes.Buffer)
	house := houseModel()
	tower := testModel{
		name:     "tower",
		vertices: [][3]int32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}},
		faces:    []Face{polygon(3, 0, PolygonCeiling)},
		textures: []string{"roof"},
		nodes:    []BSPNode{{Front: 1, Back: -1, FaceOffset: 0, FaceCount: 1}, {Front: -1, Back: -1}},
	}
	writeModels(buf, []testModel{house, tower})

	// Skip the model count
	r := bytes.NewReader(buf.Bytes()[4:])
	models, err := readBSPModels(r, 2)
	if err != nil {
		t.Fatalf("readBSPModels failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected all bytes consumed, %d left", r.Len())
	}

	h := models[0].Header
	if h.Name != "House" || h.AltName != "House_alt" {
		t.Errorf("unexpected names: %q %q", h.Name, h.AltName)
	}
	if h.Attributes != 7 || h.VertexCount != 5 || h.FaceCount != 3 || h.NodeCount != 0 {
		t.Errorf("unexpected header: %+v", h)
	}
	if h.Origin != [3]int32{100, 200, 300} || h.Origin2 != [3]int32{4, 5, 6} {
		t.Errorf("unexpected origins: %v %v", h.Origin, h.Origin2)
	}
	if h.Bounds != (BoundingBox{MinX: -1, MinY: -2, MinZ: -3, MaxX: 1, MaxY: 2, MaxZ: 3}) {
		t.Errorf("unexpected bounds: %+v", h.Bounds)
	}

	// (x, y, z) becomes (x, z, -y)
	if v := models[0].Vertices[3]; v != [3]float32{50, 20, -80} {
		t.Errorf("unexpected vertex 3: %v", v)
	}

	face := models[0].Faces[0]
	if !face.Attributes.IsPortal() || !face.Attributes.IsFluid() || face.Attributes.IsLava() {
		t.Errorf("unexpected face attributes: %#x", face.Attributes)
	}
	if face.PolygonType != PolygonFloor || face.PolygonType.String() != "Floor" {
		t.Errorf("unexpected polygon type: %v", face.PolygonType)
	}
	if face.Bounds.MaxY != 20 || face.Bounds.MinX != -10 {
		t.Errorf("unexpected face bounds: %+v", face.Bounds)
	}

	if !slices.Equal(models[0].TextureNames, []string{"floor1", "wall2", "x"}) {
		t.Errorf("unexpected textures: %v", models[0].TextureNames)
	}
	if len(models[0].FaceData) != 6 {
		t.Errorf("expected 6 opaque bytes, got %d", len(models[0].FaceData))
	}

	tw := models[1]
	if tw.Header.NodeCount != 1 || len(tw.Nodes) != 2 {
		t.Fatalf("expected 2 stored nodes, got %d", len(tw.Nodes))
	}
	if tw.Nodes[0].Front != 1 || tw.Nodes[0].Back != -1 || tw.Nodes[0].FaceCount != 1 {
		t.Errorf("unexpected node: %+v", tw.Nodes[0])
	}
}

func TestBSPModel_Indices(t *testing.T) {
	house := houseModel()
	m := &BSPModel{Faces: house.faces}

	// Pentagon: 3 triangles, triangle: 1, two vertices: none
	want := []uint32{
		0, 1, 2,
		0, 2, 3,
		0, 3, 4,
		0, 1, 2,
	}
	if got := m.Indices(); !slices.Equal(got, want) {
		t.Errorf("Indices() = %v, want %v", got, want)
	}

	if got := m.FaceIndices(0); len(got) != 9 {
		t.Errorf("expected 3 triangles for a 5-vertex face, got %d indices", len(got))
	}
	if got := m.FaceIndices(2); got != nil {
		t.Errorf("expected no triangles for a 2-vertex face, got %v", got)
	}
}

func TestReadBSPModels_Truncated(t *testing.T) {
	buf := new(bytes.Buffer)
	writeModels(buf, []testModel{houseModel()})
	data := buf.Bytes()[4:]

	tests := []struct {
		name string
		data []byte
	}{
		{"header", data[:100]},
		{"vertices", data[:bspHeaderSize+10]},
		{"faces", data[:bspHeaderSize+60+bspFaceSize]},
		{"texture names", data[:len(data)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readBSPModels(bytes.NewReader(tt.data), 1)
			if !errors.Is(err, lod.ErrTruncated) {
				t.Errorf("expected ErrTruncated, got %v", err)
			}
		})
	}
}

func TestPolygonType_String(t *testing.T) {
	tests := []struct {
		p    PolygonType
		want string
	}{
		{PolygonInvalid, "Invalid"},
		{PolygonVerticalWall, "VerticalWall"},
		{PolygonInBetweenCeilingAndWall, "InBetweenCeilingAndWall"},
		{PolygonType(42), "PolygonType(42)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
