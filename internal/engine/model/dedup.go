package model

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/objmesh/pkg/formats"
)

// vertexKey is the bit pattern of a (position, normal, texcoord) triple.
// Vertices merge only when every component is bit-for-bit identical.
type vertexKey [8]uint32

func makeVertexKey(p, n mgl32.Vec3, t mgl32.Vec2) vertexKey {
	return vertexKey{
		math.Float32bits(p[0]), math.Float32bits(p[1]), math.Float32bits(p[2]),
		math.Float32bits(n[0]), math.Float32bits(n[1]), math.Float32bits(n[2]),
		math.Float32bits(t[0]), math.Float32bits(t[1]),
	}
}

// Deduplicator assigns sequential indices to unique vertices in first-seen
// order and builds the parallel vertex buffers.
type Deduplicator struct {
	index     map[vertexKey]uint32
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{index: make(map[vertexKey]uint32)}
}

// Add returns the index of the vertex, appending it to the buffers if it has
// not been seen before.
func (d *Deduplicator) Add(p, n mgl32.Vec3, t mgl32.Vec2) uint32 {
	key := makeVertexKey(p, n, t)
	if idx, ok := d.index[key]; ok {
		return idx
	}

	idx := uint32(len(d.Positions))
	d.index[key] = idx
	d.Positions = append(d.Positions, p)
	d.Normals = append(d.Normals, n)
	d.TexCoords = append(d.TexCoords, t)
	return idx
}

// Len returns the number of unique vertices.
func (d *Deduplicator) Len() int {
	return len(d.Positions)
}

// vertexResolver turns face corner references into deduplicated vertex indices.
type vertexResolver struct {
	obj     *formats.OBJ
	normals *GeneratedNormals
	dedup   *Deduplicator
}

// resolve builds the canonical vertex for a face corner: missing normals come
// from the generated normals, missing texcoords are (0, 0).
func (r *vertexResolver) resolve(ref formats.FaceVertexRef) (uint32, error) {
	p := r.obj.Positions[ref.Position]

	var n mgl32.Vec3
	if ref.Normal >= 0 {
		n = r.obj.Normals[ref.Normal]
	} else {
		var err error
		if n, err = r.normals.At(ref.Position); err != nil {
			return 0, err
		}
	}

	var t mgl32.Vec2
	if ref.TexCoord >= 0 {
		t = r.obj.TexCoords[ref.TexCoord]
	}

	return r.dedup.Add(p, n, t), nil
}
