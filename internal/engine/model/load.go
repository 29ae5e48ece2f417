package model

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/objmesh/internal/engine/texture"
	"github.com/Faultbox/objmesh/internal/logger"
	"github.com/Faultbox/objmesh/pkg/formats"
)

// LoadOptions configures model ingestion. The zero value loads textures from
// disk, keeps the model on the CPU and logs through the global logger.
type LoadOptions struct {
	Textures     texture.Loader // Defaults to texture.FileLoader
	SkipTextures bool           // Keep texture filenames without loading images
	GPU          GPU            // Upload textures and buffers when set
	Logger       *zap.Logger    // Defaults to logger.Log
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.Textures == nil {
		o.Textures = texture.FileLoader{}
	}
	if o.Logger == nil {
		o.Logger = logger.Log
	}
	return o
}

// LoadOBJ ingests an OBJ file and its material library into a Model.
// Either a complete Model is returned or every resource acquired on the way
// has been released.
func LoadOBJ(path string, opts LoadOptions) (*Model, error) {
	opts = opts.withDefaults()

	dir, name, _, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("loading model", zap.String("path", path))

	obj, err := formats.LoadOBJ(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	for _, w := range obj.Warnings {
		opts.Logger.Warn("obj warning", zap.String("path", path), zap.String("warning", w))
	}

	m, err := Build(obj, name, path, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	opts.Logger.Info("model loaded",
		zap.String("name", m.Name),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()),
		zap.Int("meshes", len(m.Meshes)),
		zap.Int("materials", len(m.Materials)))
	return m, nil
}

// Build assembles a Model from parsed OBJ data. Textures are resolved
// relative to dir. Deduplication is global across all shapes.
func Build(obj *formats.OBJ, name, path, dir string, opts LoadOptions) (*Model, error) {
	opts = opts.withDefaults()

	m := &Model{Name: name, Path: path, gpu: opts.GPU}
	ok := false
	defer func() {
		if !ok {
			m.Destroy()
		}
	}()

	m.Materials = make([]Material, len(obj.Materials))
	for i := range obj.Materials {
		if err := m.translateMaterial(&m.Materials[i], &obj.Materials[i], dir, opts); err != nil {
			return nil, err
		}
	}

	b := &meshBuilder{
		vertices: &vertexResolver{
			obj:     obj,
			normals: GenerateNormals(obj),
			dedup:   NewDeduplicator(),
		},
		materials: obj.Materials,
	}
	for s := range obj.Shapes {
		meshes, err := b.splitShape(&obj.Shapes[s])
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", obj.Shapes[s].Name, err)
		}
		m.Meshes = append(m.Meshes, meshes...)
	}
	uniqueMeshNames(m.Meshes)

	d := b.vertices.dedup
	m.Positions, m.Normals, m.TexCoords = d.Positions, d.Normals, d.TexCoords
	m.Indices = b.indices

	if m.gpu != nil {
		buffers, err := m.gpu.CreateBuffers(m)
		if err != nil {
			return nil, fmt.Errorf("uploading buffers: %w", err)
		}
		m.buffers = &buffers
	}

	ok = true
	return m, nil
}

// translateMaterial copies the scalar parameters of src and loads its textures.
func (m *Model) translateMaterial(dst *Material, src *formats.Material, dir string, opts LoadOptions) error {
	*dst = Material{
		Name:         src.Name,
		Color:        src.Diffuse,
		Reflectivity: src.Specular[0],
		Metalness:    src.Metallic,
		Fresnel:      src.Sheen,
		Shininess:    src.Roughness,
		Emission:     src.Emission[0],
		Transparency: src.Transmittance[0],
	}

	files := [TextureSlotCount]string{
		SlotColor:        src.DiffuseTexture,
		SlotReflectivity: src.SpecularTexture,
		SlotMetalness:    src.MetallicTexture,
		SlotFresnel:      src.SheenTexture,
		SlotShininess:    src.RoughnessTexture,
		SlotEmission:     src.EmissiveTexture,
	}
	for slot, file := range files {
		if file == "" {
			continue
		}
		tex := &Texture{Filename: file}
		dst.Textures[slot] = tex
		if opts.SkipTextures {
			continue
		}

		s := TextureSlot(slot)
		img, err := opts.Textures.Load(dir, file, s.Channels())
		if err != nil {
			return fmt.Errorf("material %q %s texture: %w", src.Name, s, err)
		}
		tex.Image = img
		opts.Logger.Debug("texture loaded",
			zap.String("material", src.Name),
			zap.Stringer("slot", s),
			zap.String("file", file),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height))

		if m.gpu != nil {
			if tex.Handle, err = m.gpu.CreateTexture(img); err != nil {
				return fmt.Errorf("material %q %s texture: %w", src.Name, s, err)
			}
		}
	}
	return nil
}

// uniqueMeshNames suffixes repeated mesh names with _1, _2, ...
func uniqueMeshNames(meshes []Mesh) {
	seen := make(map[string]bool, len(meshes))
	for i := range meshes {
		name := meshes[i].Name
		for n := 1; seen[name]; n++ {
			name = meshes[i].Name + "_" + strconv.Itoa(n)
		}
		seen[name] = true
		meshes[i].Name = name
	}
}
