package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/encoding"
	"github.com/Faultbox/mm-lod/pkg/lod"
)

const (
	bspModelNameSize   = 32
	bspTextureNameSize = 10
	bspHeaderSize      = 188
	bspFaceSize        = 308
	bspNodeSize        = 12

	// MaxFaceVertices is the number of vertex slots in a face record.
	MaxFaceVertices = 20
)

// BoundingBox is an axis-aligned box in map units.
type BoundingBox struct {
	MinX, MinY, MinZ int32
	MaxX, MaxY, MaxZ int32
}

// FaceBounds is the 16-bit bounding box stored with each face, in
// min/max pairs per axis.
type FaceBounds struct {
	MinX, MaxX int16
	MinY, MaxY int16
	MinZ, MaxZ int16
}

// BSPModelHeader is the fixed 188-byte header of a BSP model.
type BSPModelHeader struct {
	Name        string
	AltName     string
	Attributes  int32
	VertexCount int32
	FaceCount   int32
	NodeCount   int32
	Origin      [3]int32
	Bounds      BoundingBox
	Origin2     [3]int32

	// Fields with unknown meaning, kept as read
	Unknown02  int32
	Unknown03a int32
	Unknown03b int32
	Unknown03  [2]int32
	Unknown04  [6]int32
	Unknown05  int32
}

// bspHeaderRecord is the on-disk layout of BSPModelHeader.
type bspHeaderRecord struct {
	Name        [bspModelNameSize]byte
	AltName     [bspModelNameSize]byte
	Attributes  int32
	VertexCount int32
	_           int32 // vertex pointer
	FaceCount   int32
	Unknown02   int32
	_           int32 // face pointer
	_           int32 // ordering pointer
	NodeCount   int32
	Unknown03a  int32
	Unknown03b  int32
	Unknown03   [2]int32
	Origin      [3]int32
	Bounds      BoundingBox
	Unknown04   [6]int32
	Origin2     [3]int32
	Unknown05   int32
}

// Plane is a face plane: normal·p + Dist = 0, in 16.16 fixed point.
type Plane struct {
	Normal [3]int32
	Dist   int32
}

// PolygonType classifies a face by its orientation.
type PolygonType uint8

// Polygon types.
const (
	PolygonInvalid PolygonType = iota
	PolygonVerticalWall
	PolygonUnknown
	PolygonFloor
	PolygonInBetweenFloorAndWall
	PolygonCeiling
	PolygonInBetweenCeilingAndWall
)

var polygonTypeNames = [...]string{
	"Invalid",
	"VerticalWall",
	"Unknown",
	"Floor",
	"InBetweenFloorAndWall",
	"Ceiling",
	"InBetweenCeilingAndWall",
}

// String returns the polygon type name.
func (p PolygonType) String() string {
	if int(p) < len(polygonTypeNames) {
		return polygonTypeNames[p]
	}
	return fmt.Sprintf("PolygonType(%d)", uint8(p))
}

// FaceAttributes holds the attribute bits of a face.
type FaceAttributes uint32

// Face attribute bits.
const (
	FacePortal           FaceAttributes = 0x00000001
	FaceSecret           FaceAttributes = 0x00000002
	FaceFlowDown         FaceAttributes = 0x00000004
	FaceFluid            FaceAttributes = 0x00000010
	FaceFlowUp           FaceAttributes = 0x00000020
	FaceFlowLeft         FaceAttributes = 0x00000040
	FaceFlowRight        FaceAttributes = 0x00000800
	FaceInvisible        FaceAttributes = 0x00002000
	FaceAnimated         FaceAttributes = 0x00004000
	FaceMovedByDoor      FaceAttributes = 0x00040000
	FaceHasEvent         FaceAttributes = 0x00100000
	FaceSky              FaceAttributes = 0x00400000
	FaceClickable        FaceAttributes = 0x02000000
	FacePressurePlate    FaceAttributes = 0x04000000
	FaceTriggerByMonster FaceAttributes = 0x10000000
	FaceTriggerByObject  FaceAttributes = 0x20000000
	FaceEthereal         FaceAttributes = 0x40000000
	FaceLava             FaceAttributes = 0x80000000
)

// Has reports whether all bits of flag are set.
func (a FaceAttributes) Has(flag FaceAttributes) bool { return a&flag == flag }

// IsPortal reports whether the face is a portal between sectors.
func (a FaceAttributes) IsPortal() bool { return a.Has(FacePortal) }

// IsFluid reports whether the face is water.
func (a FaceAttributes) IsFluid() bool { return a.Has(FaceFluid) }

// IsInvisible reports whether the face is not drawn.
func (a FaceAttributes) IsInvisible() bool { return a.Has(FaceInvisible) }

// IsSky reports whether the face shows the sky texture.
func (a FaceAttributes) IsSky() bool { return a.Has(FaceSky) }

// IsClickable reports whether clicking the face triggers its event.
func (a FaceAttributes) IsClickable() bool { return a.Has(FaceClickable) }

// IsLava reports whether the face is lava.
func (a FaceAttributes) IsLava() bool { return a.Has(FaceLava) }

// Face is a 308-byte polygon record of a BSP model.
type Face struct {
	Plane            Plane
	ZCalc            [6]int16
	Attributes       FaceAttributes
	VertexIDs        [MaxFaceVertices]uint16
	TextureU         [MaxFaceVertices]int16
	TextureV         [MaxFaceVertices]int16
	NormalX          [MaxFaceVertices]int16
	NormalY          [MaxFaceVertices]int16
	NormalZ          [MaxFaceVertices]int16
	Unknown          int16
	TextureDeltaX    int16
	TextureDeltaY    int16
	Bounds           FaceBounds
	CogNumber        uint16
	CogTriggerID     uint16
	CogTriggerType   uint16
	Reserved         uint16
	GradientVertices [4]uint8
	VertexCount      uint8
	PolygonType      PolygonType
	Shade            uint8
	Visible          uint8
	Padding          [2]uint8
}

// Vertices returns the used vertex ids of the face.
func (f *Face) Vertices() []uint16 {
	return f.VertexIDs[:min(int(f.VertexCount), MaxFaceVertices)]
}

// BSPNode is a node of a model's BSP tree.
type BSPNode struct {
	Front      int32
	Back       int32
	FaceOffset int16
	FaceCount  int16
}

// BSPModel is a static model placed on an outdoor map.
type BSPModel struct {
	Header       BSPModelHeader
	Vertices     [][3]float32 // Converted to (x, z, -y)
	Faces        []Face
	FaceData     []byte // Two opaque bytes per face
	TextureNames []string
	Nodes        []BSPNode
}

// readBSPModels reads count models: all headers first, then the bodies in
// the same order.
func readBSPModels(r *bytes.Reader, count int) ([]BSPModel, error) {
	if int64(count)*bspHeaderSize > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d model headers in %d bytes", lod.ErrTruncated, count, r.Len())
	}

	headers := make([]BSPModelHeader, count)
	for i := range headers {
		h, err := readBSPModelHeader(r)
		if err != nil {
			return nil, fmt.Errorf("model header %d: %w", i, err)
		}
		headers[i] = h
	}

	models := make([]BSPModel, count)
	for i, h := range headers {
		if err := readBSPModelBody(r, h, &models[i]); err != nil {
			return nil, fmt.Errorf("model %d (%s): %w", i, h.Name, err)
		}
	}
	return models, nil
}

func readBSPModelHeader(r io.Reader) (BSPModelHeader, error) {
	var rec bspHeaderRecord
	if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
		return BSPModelHeader{}, fmt.Errorf("%w: %v", lod.ErrTruncated, err)
	}
	if rec.VertexCount < 0 || rec.FaceCount < 0 {
		return BSPModelHeader{}, fmt.Errorf("%w: negative counts %d/%d", lod.ErrTruncated, rec.VertexCount, rec.FaceCount)
	}
	return BSPModelHeader{
		Name:        encoding.FixedString(rec.Name[:]),
		AltName:     encoding.FixedString(rec.AltName[:]),
		Attributes:  rec.Attributes,
		VertexCount: rec.VertexCount,
		FaceCount:   rec.FaceCount,
		NodeCount:   rec.NodeCount,
		Origin:      rec.Origin,
		Bounds:      rec.Bounds,
		Origin2:     rec.Origin2,
		Unknown02:   rec.Unknown02,
		Unknown03a:  rec.Unknown03a,
		Unknown03b:  rec.Unknown03b,
		Unknown03:   rec.Unknown03,
		Unknown04:   rec.Unknown04,
		Unknown05:   rec.Unknown05,
	}, nil
}

func readBSPModelBody(r *bytes.Reader, h BSPModelHeader, m *BSPModel) error {
	m.Header = h

	need := int64(h.VertexCount)*12 + int64(h.FaceCount)*(bspFaceSize+2+bspTextureNameSize)
	if h.NodeCount > 0 {
		need += int64(h.NodeCount) * 2 * bspNodeSize
	}
	if need > int64(r.Len()) {
		return fmt.Errorf("%w: model body needs %d bytes, %d left", lod.ErrTruncated, need, r.Len())
	}

	raw := make([][3]int32, h.VertexCount)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return fmt.Errorf("%w: vertices: %v", lod.ErrTruncated, err)
	}
	m.Vertices = make([][3]float32, len(raw))
	for i, v := range raw {
		m.Vertices[i] = [3]float32{float32(v[0]), float32(v[2]), -float32(v[1])}
	}

	m.Faces = make([]Face, h.FaceCount)
	if err := binary.Read(r, binary.LittleEndian, m.Faces); err != nil {
		return fmt.Errorf("%w: faces: %v", lod.ErrTruncated, err)
	}

	m.FaceData = make([]byte, int(h.FaceCount)*2)
	if _, err := io.ReadFull(r, m.FaceData); err != nil {
		return fmt.Errorf("%w: face data: %v", lod.ErrTruncated, err)
	}

	names := make([]byte, int(h.FaceCount)*bspTextureNameSize)
	if _, err := io.ReadFull(r, names); err != nil {
		return fmt.Errorf("%w: texture names: %v", lod.ErrTruncated, err)
	}
	m.TextureNames = make([]string, h.FaceCount)
	for i := range m.TextureNames {
		m.TextureNames[i] = encoding.FixedString(names[i*bspTextureNameSize : (i+1)*bspTextureNameSize])
	}

	if h.NodeCount > 0 {
		log.Debug("reading bsp nodes", zap.String("model", h.Name), zap.Int32("count", h.NodeCount))
		m.Nodes = make([]BSPNode, int(h.NodeCount)*2)
		if err := binary.Read(r, binary.LittleEndian, m.Nodes); err != nil {
			return fmt.Errorf("%w: nodes: %v", lod.ErrTruncated, err)
		}
	}
	return nil
}

// Indices returns the triangle list of the model, built as a fan from the
// first vertex of each face.
func (m *BSPModel) Indices() []uint32 {
	var indices []uint32
	for i := range m.Faces {
		indices = append(indices, m.FaceIndices(i)...)
	}
	return indices
}

// FaceIndices returns the fan triangles of face i: (v0, v[j+1], v[j+2]) for
// every j below VertexCount-2. Faces with fewer than three vertices have none.
func (m *BSPModel) FaceIndices(i int) []uint32 {
	v := m.Faces[i].Vertices()
	if len(v) < 3 {
		return nil
	}
	indices := make([]uint32, 0, (len(v)-2)*3)
	for j := 0; j+2 < len(v); j++ {
		indices = append(indices, uint32(v[0]), uint32(v[j+1]), uint32(v[j+2]))
	}
	return indices
}
