package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/objmesh/pkg/formats"
)

// GeneratedNormals holds one averaged face normal per position, used for
// face corners that carry no explicit normal.
type GeneratedNormals struct {
	normals []mgl32.Vec3
	weights []float32
}

// GenerateNormals averages the face normals adjacent to every position across
// all shapes. Each face contributes cross(normalize(v1-v0), normalize(v2-v0))
// with weight 1; the normal is not renormalized after averaging.
func GenerateNormals(obj *formats.OBJ) *GeneratedNormals {
	sums := make([]mgl32.Vec4, len(obj.Positions))

	for s := range obj.Shapes {
		refs := obj.Shapes[s].Indices
		for f := 0; f+2 < len(refs); f += 3 {
			p0, p1, p2 := refs[f].Position, refs[f+1].Position, refs[f+2].Position
			v0 := obj.Positions[p0]
			e0 := normalize(obj.Positions[p1].Sub(v0))
			e1 := normalize(obj.Positions[p2].Sub(v0))
			n := e0.Cross(e1).Vec4(1)

			sums[p0] = sums[p0].Add(n)
			sums[p1] = sums[p1].Add(n)
			sums[p2] = sums[p2].Add(n)
		}
	}

	g := &GeneratedNormals{
		normals: make([]mgl32.Vec3, len(sums)),
		weights: make([]float32, len(sums)),
	}
	for i, sum := range sums {
		g.weights[i] = sum.W()
		if sum.W() > 0 {
			g.normals[i] = sum.Mul(1 / sum.W()).Vec3()
		}
	}
	return g
}

// At returns the generated normal for a position. A position no face refers
// to has nothing to average and yields ErrDegenerateNormal.
func (g *GeneratedNormals) At(position int) (mgl32.Vec3, error) {
	if position < 0 || position >= len(g.normals) || g.weights[position] == 0 {
		return mgl32.Vec3{}, fmt.Errorf("%w: position %d", ErrDegenerateNormal, position)
	}
	return g.normals[position], nil
}

// Len returns the number of positions covered.
func (g *GeneratedNormals) Len() int {
	return len(g.normals)
}

// normalize is mgl32's Normalize without the NaN for zero-length edges.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return mgl32.Vec3{}
	}
	return v.Normalize()
}
