// Package glb writes ready chunk meshes to binary glTF.
package glb

import (
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"voxelmesh.ai/internal/frame"
	"voxelmesh.ai/internal/mesh"
)

var ErrNoGeometry = errors.New("glb: no geometry to export")

// Build returns a document with one mesh node per non-empty chunk. Positions are
// already volume-local, so nodes carry no transform.
func Build(chunks []frame.ReadyChunk, generator string) *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = generator

	pbr := &gltf.PBRMetallicRoughness{
		BaseColorFactor: &[4]float64{1, 1, 1, 1},
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}

	for _, c := range chunks {
		if c.Buffers == nil || c.Buffers.Empty() {
			continue
		}
		prim := primitive(doc, c.Buffers)
		prim.Material = gltf.Index(0)
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name:       fmt.Sprintf("chunk_%d_%d_%d", c.Key.CX, c.Key.CY, c.Key.CZ),
			Primitives: []*gltf.Primitive{prim},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: fmt.Sprintf("chunk_%d_%d_%d", c.Key.CX, c.Key.CY, c.Key.CZ),
			Mesh: gltf.Index(len(doc.Meshes) - 1),
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	}
	return doc
}

func primitive(doc *gltf.Document, b *mesh.Buffers) *gltf.Primitive {
	positions := make([][3]float32, len(b.Positions))
	for i, p := range b.Positions {
		positions[i] = p
	}
	uvs := make([][2]float32, len(b.UVs))
	for i, uv := range b.UVs {
		uvs[i] = uv
	}
	colors := make([][4]float32, len(b.Colors))
	for i, c := range b.Colors {
		colors[i] = [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
	}

	// Extractors never share vertices between faces, so a flat normal per triangle
	// is exact.
	normals := make([][3]float32, len(positions))
	for i := 0; i+2 < len(b.Indices); i += 3 {
		v0, v1, v2 := b.Indices[i], b.Indices[i+1], b.Indices[i+2]
		p0, p1, p2 := b.Positions[v0], b.Positions[v1], b.Positions[v2]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		if n.Len() > 0 {
			n = n.Normalize()
		}
		normals[v0], normals[v1], normals[v2] = n, n, n
	}

	indices := make([]uint32, len(b.Indices))
	copy(indices, b.Indices)

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	uvAccessor := modeler.WriteTextureCoord(doc, uvs)
	colorAccessor := modeler.WriteColor(doc, colors)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	return &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION:   posAccessor,
			gltf.NORMAL:     normalAccessor,
			gltf.TEXCOORD_0: uvAccessor,
			gltf.COLOR_0:    colorAccessor,
		},
		Indices: gltf.Index(indicesAccessor),
	}
}

// Save builds a document from chunks and writes it as a .glb file.
func Save(path string, chunks []frame.ReadyChunk, generator string) error {
	doc := Build(chunks, generator)
	if len(doc.Meshes) == 0 {
		return ErrNoGeometry
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
