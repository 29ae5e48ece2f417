package model

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
)

// Compare reports every difference in content between two models: vertex
// buffers bit for bit, the index buffer, meshes and material parameters.
// Names, paths, texture images and GPU state are ignored.
func Compare(a, b *Model) error {
	var err error
	err = multierr.Append(err, compareVec3("position", a.Positions, b.Positions))
	err = multierr.Append(err, compareVec3("normal", a.Normals, b.Normals))

	if len(a.TexCoords) != len(b.TexCoords) {
		err = multierr.Append(err, fmt.Errorf("texcoord count %d != %d", len(a.TexCoords), len(b.TexCoords)))
	} else {
		for i := range a.TexCoords {
			if !sameBits(a.TexCoords[i][:], b.TexCoords[i][:]) {
				err = multierr.Append(err, fmt.Errorf("texcoord %d: %v != %v", i, a.TexCoords[i], b.TexCoords[i]))
				break
			}
		}
	}

	if len(a.Indices) != len(b.Indices) {
		err = multierr.Append(err, fmt.Errorf("index count %d != %d", len(a.Indices), len(b.Indices)))
	} else {
		for i := range a.Indices {
			if a.Indices[i] != b.Indices[i] {
				err = multierr.Append(err, fmt.Errorf("index %d: %d != %d", i, a.Indices[i], b.Indices[i]))
				break
			}
		}
	}

	if len(a.Meshes) != len(b.Meshes) {
		err = multierr.Append(err, fmt.Errorf("mesh count %d != %d", len(a.Meshes), len(b.Meshes)))
	} else {
		for i := range a.Meshes {
			ma, mb := a.Meshes[i], b.Meshes[i]
			if ma.MaterialIdx != mb.MaterialIdx || ma.StartIndex != mb.StartIndex || ma.IndexCount != mb.IndexCount {
				err = multierr.Append(err, fmt.Errorf("mesh %d: %+v != %+v", i, ma, mb))
			}
		}
	}

	if len(a.Materials) != len(b.Materials) {
		err = multierr.Append(err, fmt.Errorf("material count %d != %d", len(a.Materials), len(b.Materials)))
	} else {
		for i := range a.Materials {
			err = multierr.Append(err, compareMaterial(i, &a.Materials[i], &b.Materials[i]))
		}
	}
	return err
}

func compareVec3(what string, a, b []mgl32.Vec3) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s count %d != %d", what, len(a), len(b))
	}
	for i := range a {
		if !sameBits(a[i][:], b[i][:]) {
			return fmt.Errorf("%s %d: %v != %v", what, i, a[i], b[i])
		}
	}
	return nil
}

func compareMaterial(i int, a, b *Material) error {
	if a.Name != b.Name {
		return fmt.Errorf("material %d: name %q != %q", i, a.Name, b.Name)
	}
	sa := []float32{a.Color[0], a.Color[1], a.Color[2], a.Reflectivity, a.Metalness, a.Fresnel, a.Shininess, a.Emission, a.Transparency}
	sb := []float32{b.Color[0], b.Color[1], b.Color[2], b.Reflectivity, b.Metalness, b.Fresnel, b.Shininess, b.Emission, b.Transparency}
	if !sameBits(sa, sb) {
		return fmt.Errorf("material %q: parameters %v != %v", a.Name, sa, sb)
	}
	for s := TextureSlot(0); s < TextureSlotCount; s++ {
		ta, tb := a.Textures[s], b.Textures[s]
		if (ta == nil) != (tb == nil) || (ta != nil && ta.Filename != tb.Filename) {
			return fmt.Errorf("material %q: %s texture differs", a.Name, s)
		}
	}
	return nil
}

func sameBits(a, b []float32) bool {
	for i := range a {
		if math.Float32bits(a[i]) != math.Float32bits(b[i]) {
			return false
		}
	}
	return true
}
