package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
)

// Destroy releases every texture and buffer the model owns. It is safe to
// call more than once.
func (m *Model) Destroy() {
	for i := range m.Materials {
		for _, tex := range m.Materials[i].Textures {
			if tex == nil {
				continue
			}
			if tex.Handle != 0 && m.gpu != nil {
				m.gpu.DeleteTexture(tex.Handle)
			}
			tex.Handle = 0
			tex.Image = nil
		}
	}

	if m.buffers != nil && m.gpu != nil {
		m.gpu.DeleteBuffers(*m.buffers)
	}
	m.buffers = nil
}

// SetPositions replaces the position buffer in bulk, for effects that
// perturb vertices. The vertex count cannot change.
func (m *Model) SetPositions(positions []mgl32.Vec3) error {
	if len(positions) != len(m.Positions) {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidPositions, len(positions), len(m.Positions))
	}
	copy(m.Positions, positions)

	if m.buffers != nil && m.gpu != nil {
		if err := m.gpu.UpdatePositions(*m.buffers, m.Positions); err != nil {
			return fmt.Errorf("updating positions: %w", err)
		}
	}
	return nil
}

// Validate checks the structural invariants of the model: parallel vertex
// buffers, whole triangles, in-range indices and mesh ranges that tile the
// index buffer in order.
func (m *Model) Validate() error {
	var err error

	if len(m.Normals) != len(m.Positions) || len(m.TexCoords) != len(m.Positions) {
		err = multierr.Append(err, fmt.Errorf("vertex buffers differ in length: %d positions, %d normals, %d texcoords",
			len(m.Positions), len(m.Normals), len(m.TexCoords)))
	}
	if len(m.Indices)%3 != 0 {
		err = multierr.Append(err, fmt.Errorf("index count %d is not a multiple of 3", len(m.Indices)))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Positions) {
			err = multierr.Append(err, fmt.Errorf("index %d: vertex %d out of range (have %d)", i, idx, len(m.Positions)))
			break
		}
	}

	var next uint32
	for _, mesh := range m.Meshes {
		if mesh.StartIndex != next || mesh.IndexCount%3 != 0 {
			err = multierr.Append(err, fmt.Errorf("%w: mesh %q covers [%d,%d), expected start %d",
				ErrInvalidIndexRange, mesh.Name, mesh.StartIndex, mesh.StartIndex+mesh.IndexCount, next))
		}
		if mesh.MaterialIdx != NoMaterial && (mesh.MaterialIdx < 0 || mesh.MaterialIdx >= len(m.Materials)) {
			err = multierr.Append(err, fmt.Errorf("mesh %q: material %d out of range", mesh.Name, mesh.MaterialIdx))
		}
		next = mesh.StartIndex + mesh.IndexCount
	}
	if int(next) != len(m.Indices) {
		err = multierr.Append(err, fmt.Errorf("%w: meshes end at %d, index buffer has %d",
			ErrInvalidIndexRange, next, len(m.Indices)))
	}
	return err
}
