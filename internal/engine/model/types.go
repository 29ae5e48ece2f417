// Package model builds render-ready indexed meshes from parsed OBJ data and
// writes them back out as OBJ/MTL.
package model

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/objmesh/internal/engine/texture"
)

// NoMaterial is the material index of meshes whose faces have no material.
const NoMaterial = -1

// Mesh is a contiguous index range of a Model drawn with one material.
type Mesh struct {
	Name        string
	MaterialIdx int    // Index into Model.Materials, or NoMaterial
	StartIndex  uint32 // Offset into Model.Indices, multiple of 3
	IndexCount  uint32 // Multiple of 3
}

// TextureSlot identifies one of a material's texture maps.
type TextureSlot int

// Texture slots in MTL order.
const (
	SlotColor TextureSlot = iota
	SlotReflectivity
	SlotMetalness
	SlotFresnel
	SlotShininess
	SlotEmission
	TextureSlotCount
)

var slotInfo = [TextureSlotCount]struct {
	name     string
	key      string
	channels int
}{
	SlotColor:        {"color", "map_Kd", 4},
	SlotReflectivity: {"reflectivity", "map_Ks", 1},
	SlotMetalness:    {"metalness", "map_Pm", 1},
	SlotFresnel:      {"fresnel", "map_Ps", 1},
	SlotShininess:    {"shininess", "map_Pr", 1},
	SlotEmission:     {"emission", "map_Ke", 4},
}

// String returns the slot name.
func (s TextureSlot) String() string {
	if s < 0 || s >= TextureSlotCount {
		return "unknown"
	}
	return slotInfo[s].name
}

// Key returns the MTL keyword for the slot's texture map.
func (s TextureSlot) Key() string {
	return slotInfo[s].key
}

// Channels returns the channel count textures in this slot are loaded with.
func (s TextureSlot) Channels() int {
	return slotInfo[s].channels
}

// Texture is a loaded texture map owned by a Material.
type Texture struct {
	Filename string
	Image    *texture.Image // Decoded pixels, nil after Destroy
	Handle   uint32         // GPU texture, 0 if not uploaded
}

// Material holds scalar shading parameters and optional texture maps.
type Material struct {
	Name         string
	Color        mgl32.Vec3
	Reflectivity float32
	Metalness    float32
	Fresnel      float32
	Shininess    float32
	Emission     float32
	Transparency float32

	Textures [TextureSlotCount]*Texture // nil when the slot has no map
}

// Texture returns the texture in slot s, or nil.
func (m *Material) Texture(s TextureSlot) *Texture {
	return m.Textures[s]
}

// Buffers holds the GPU objects of an uploaded model.
type Buffers struct {
	VAO       uint32
	Positions uint32
	Normals   uint32
	TexCoords uint32
	Indices   uint32
}

// GPU creates and releases device resources for models.
type GPU interface {
	CreateTexture(img *texture.Image) (uint32, error)
	DeleteTexture(id uint32)
	CreateBuffers(m *Model) (Buffers, error)
	UpdatePositions(b Buffers, positions []mgl32.Vec3) error
	DeleteBuffers(b Buffers)
}

// Model is an indexed triangle mesh split into per-material draw ranges.
// Positions, Normals and TexCoords are parallel: index i describes one vertex.
type Model struct {
	Name string // Base file name without extension
	Path string // Source path

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
	Indices   []uint32

	Meshes    []Mesh
	Materials []Material

	gpu     GPU
	buffers *Buffers
}

// VertexCount returns the number of unique vertices.
func (m *Model) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles in the index buffer.
func (m *Model) TriangleCount() int {
	return len(m.Indices) / 3
}

// GPUBuffers returns the uploaded buffers, or false if the model is not on the GPU.
func (m *Model) GPUBuffers() (Buffers, bool) {
	if m.buffers == nil {
		return Buffers{}, false
	}
	return *m.buffers, true
}

// MaterialName returns the name of material idx, or "" for NoMaterial.
func (m *Model) MaterialName(idx int) string {
	if idx < 0 || idx >= len(m.Materials) {
		return ""
	}
	return m.Materials[idx].Name
}
