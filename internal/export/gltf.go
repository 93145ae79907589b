package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/formats"
	mmath "github.com/Faultbox/mm-lod/pkg/math"
)

const generator = "mm-lod"

// Scene accumulates meshes into a single glTF document.
type Scene struct {
	doc *gltf.Document
	log *zap.Logger

	modelMaterial *int
}

// NewScene creates an empty scene. A nil logger discards output.
func NewScene(log *zap.Logger) *Scene {
	if log == nil {
		log = zap.NewNop()
	}
	doc := gltf.NewDocument()
	doc.Asset.Generator = generator
	return &Scene{doc: doc, log: log}
}

// Document returns the underlying glTF document.
func (s *Scene) Document() *gltf.Document {
	return s.doc
}

// AddTerrain adds the terrain mesh. When atlas is not nil it is embedded as
// a PNG and used as the base color texture.
func (s *Scene) AddTerrain(mesh *formats.TerrainMesh, atlas image.Image) error {
	positions, uvs := mesh.Unrolled()
	if len(positions) == 0 {
		return fmt.Errorf("terrain has no triangles")
	}
	indices := mmath.Sequence(len(positions))
	normals := mmath.FlatNormals(positions, indices)

	material := &gltf.Material{
		Name: "terrain",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if atlas != nil {
		texture, err := s.addTexture("terrain-atlas", atlas)
		if err != nil {
			return err
		}
		material.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: texture}
	}
	s.doc.Materials = append(s.doc.Materials, material)
	materialIndex := len(s.doc.Materials) - 1

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION:   modeler.WritePosition(s.doc, positions),
			gltf.NORMAL:     modeler.WriteNormal(s.doc, normals),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(s.doc, uvs),
		},
		Indices:  gltf.Index(modeler.WriteIndices(s.doc, indices)),
		Material: gltf.Index(materialIndex),
	}
	s.addMesh("terrain", prim)
	return nil
}

func (s *Scene) addTexture(name string, img image.Image) (int, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return 0, fmt.Errorf("encoding %s: %w", name, err)
	}
	source, err := modeler.WriteImage(s.doc, name, "image/png", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", name, err)
	}

	s.doc.Samplers = append(s.doc.Samplers, &gltf.Sampler{
		WrapS: gltf.WrapClampToEdge,
		WrapT: gltf.WrapClampToEdge,
	})
	s.doc.Textures = append(s.doc.Textures, &gltf.Texture{
		Name:    name,
		Sampler: gltf.Index(len(s.doc.Samplers) - 1),
		Source:  gltf.Index(source),
	})
	return len(s.doc.Textures) - 1, nil
}

// AddModel adds a BSP model. Triangles that reference missing vertices are
// dropped. It reports whether the model produced any geometry.
func (s *Scene) AddModel(m *formats.BSPModel) bool {
	indices := validTriangles(m.Indices(), len(m.Vertices))
	if dropped := len(m.Indices()) - len(indices); dropped > 0 {
		s.log.Warn("dropped triangles with missing vertices",
			zap.String("model", m.Header.Name), zap.Int("indices", dropped))
	}
	if len(indices) == 0 {
		return false
	}

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: modeler.WritePosition(s.doc, m.Vertices),
			gltf.NORMAL:   modeler.WriteNormal(s.doc, mmath.FlatNormals(m.Vertices, indices)),
		},
		Indices:  gltf.Index(modeler.WriteIndices(s.doc, indices)),
		Material: gltf.Index(s.modelMaterialIndex()),
	}
	s.addMesh(m.Header.Name, prim)
	return true
}

func validTriangles(indices []uint32, vertexCount int) []uint32 {
	out := make([]uint32, 0, len(indices))
	for i := 0; i+2 < len(indices); i += 3 {
		tri := indices[i : i+3]
		if int(max(tri[0], tri[1], tri[2])) >= vertexCount {
			continue
		}
		out = append(out, tri...)
	}
	return out
}

func (s *Scene) modelMaterialIndex() int {
	if s.modelMaterial == nil {
		s.doc.Materials = append(s.doc.Materials, &gltf.Material{
			Name: "model",
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float64{0.8, 0.8, 0.8, 1},
				MetallicFactor:  gltf.Float(0),
				RoughnessFactor: gltf.Float(1),
			},
			AlphaMode:   gltf.AlphaOpaque,
			DoubleSided: true,
		})
		s.modelMaterial = gltf.Index(len(s.doc.Materials) - 1)
	}
	return *s.modelMaterial
}

func (s *Scene) addMesh(name string, prim *gltf.Primitive) {
	s.doc.Meshes = append(s.doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	s.doc.Nodes = append(s.doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(len(s.doc.Meshes) - 1)})
	s.doc.Scenes[0].Nodes = append(s.doc.Scenes[0].Nodes, len(s.doc.Nodes)-1)
}

// Encode writes the scene as binary glTF.
func (s *Scene) Encode(w io.Writer) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(s.doc)
}

// Save writes the scene as a .glb file.
func (s *Scene) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := gltf.SaveBinary(s.doc, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
