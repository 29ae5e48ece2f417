package model

import (
	"github.com/Faultbox/objmesh/pkg/formats"
)

// noMaterialName stands in for the material name of faces without one.
const noMaterialName = "nomaterial"

// meshBuilder appends shapes to a shared index buffer, one Mesh per material.
type meshBuilder struct {
	vertices  *vertexResolver
	materials []formats.Material
	indices   []uint32
}

func (b *meshBuilder) materialName(id int) string {
	if id < 0 || id >= len(b.materials) {
		return noMaterialName
	}
	return b.materials[id].Name
}

// splitShape emits a shape's faces grouped into one Mesh per distinct material
// id, in order of each material's first face. Faces keep their relative order
// within a material.
//
// Each pass scans from the first face of the current material. Faces of the
// current material are emitted; faces of finished materials are skipped; the
// first face of any other material becomes the start of the next pass.
func (b *meshBuilder) splitShape(shape *formats.Shape) ([]Mesh, error) {
	faces := shape.FaceCount()
	if faces == 0 {
		return nil, nil
	}

	var meshes []Mesh
	finished := make(map[int]bool)
	current, start := shape.MaterialIDs[0], 0

	for {
		mesh := Mesh{
			Name:        shape.Name + "_" + b.materialName(current),
			MaterialIdx: current,
			StartIndex:  uint32(len(b.indices)),
		}
		if current < 0 || current >= len(b.materials) {
			mesh.MaterialIdx = NoMaterial
		}

		next, nextStart, found := 0, 0, false
		for f := start; f < faces; f++ {
			id := shape.MaterialIDs[f]
			switch {
			case id == current:
				for _, ref := range shape.Indices[f*3 : f*3+3] {
					idx, err := b.vertices.resolve(ref)
					if err != nil {
						return nil, err
					}
					b.indices = append(b.indices, idx)
				}
			case found || finished[id]:
			default:
				next, nextStart, found = id, f, true
			}
		}

		mesh.IndexCount = uint32(len(b.indices)) - mesh.StartIndex
		meshes = append(meshes, mesh)
		finished[current] = true

		if !found {
			break
		}
		current, start = next, nextStart
	}

	if len(meshes) == 1 {
		meshes[0].Name = shape.Name
	}
	return meshes, nil
}
