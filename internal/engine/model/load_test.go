package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/objmesh/internal/engine/texture"
	"github.com/Faultbox/objmesh/pkg/formats"
)

// fakeLoader returns a 1x1 image for every file except those in fail.
type fakeLoader struct {
	fail     map[string]bool
	channels map[string]int
}

func (l *fakeLoader) Load(directory, filename string, channels int) (*texture.Image, error) {
	if l.channels == nil {
		l.channels = make(map[string]int)
	}
	l.channels[filename] = channels
	if l.fail[filename] {
		return nil, fmt.Errorf("%w: %s", texture.ErrMissingTexture, filename)
	}
	return &texture.Image{
		Directory: directory,
		Filename:  filename,
		Width:     1,
		Height:    1,
		Channels:  channels,
		Pixels:    make([]byte, channels),
	}, nil
}

// fakeGPU hands out sequential handles and tracks which are still live.
type fakeGPU struct {
	next         uint32
	textures     map[uint32]bool
	buffers      map[uint32]bool
	failBuffers  bool
	failTextures bool
	updated      []mgl32.Vec3
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{textures: make(map[uint32]bool), buffers: make(map[uint32]bool)}
}

func (g *fakeGPU) CreateTexture(img *texture.Image) (uint32, error) {
	if g.failTextures {
		return 0, errors.New("out of texture memory")
	}
	g.next++
	g.textures[g.next] = true
	return g.next, nil
}

func (g *fakeGPU) DeleteTexture(id uint32) {
	if !g.textures[id] {
		panic(fmt.Sprintf("texture %d deleted twice", id))
	}
	delete(g.textures, id)
}

func (g *fakeGPU) CreateBuffers(m *Model) (Buffers, error) {
	if g.failBuffers {
		return Buffers{}, errors.New("out of buffer memory")
	}
	g.next++
	g.buffers[g.next] = true
	return Buffers{VAO: g.next}, nil
}

func (g *fakeGPU) UpdatePositions(b Buffers, positions []mgl32.Vec3) error {
	g.updated = append([]mgl32.Vec3(nil), positions...)
	return nil
}

func (g *fakeGPU) DeleteBuffers(b Buffers) {
	if !g.buffers[b.VAO] {
		panic(fmt.Sprintf("buffers %d deleted twice", b.VAO))
	}
	delete(g.buffers, b.VAO)
}

const quadOBJ = `mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
o quad
usemtl red
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`

const texturedMTL = `newmtl red
Kd 1 0 0
Ks 0.5
Pm 0.25
Ps 0.04
Pr 0.75
Ke 2 2 2
Tf 0.1
map_Kd red.png
map_Ks spec.png
map_Ke glow.png

newmtl blue
Kd 0 0 1
map_Kd blue.png
map_Pr rough.png
`

// parseQuad parses quadOBJ with mtl served as its material library.
func parseQuad(t *testing.T, mtl string) *formats.OBJ {
	t.Helper()
	open := func(name string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(mtl)), nil
	}
	obj, err := formats.ParseOBJ(strings.NewReader(quadOBJ), open)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	return obj
}

// writeFiles writes name -> content pairs into a fresh directory and returns it.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadOBJ_LogsWarnings(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"warn.obj": "v 0 0 0\nv 1 0 0\nv 0 1 0\nvp 0.5 0.5\nusemtl ghost\nf 1 2 3\n",
	})
	path := filepath.Join(dir, "warn.obj")

	core, logs := observer.New(zapcore.DebugLevel)
	m, err := LoadOBJ(path, LoadOptions{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	if m.Meshes[0].MaterialIdx != NoMaterial {
		t.Errorf("expected undefined material to map to NoMaterial, got %d", m.Meshes[0].MaterialIdx)
	}

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
	wantSubstrings := []string{`"vp"`, `"ghost"`}
	for i, entry := range warnings {
		fields := entry.ContextMap()
		if fields["path"] != path {
			t.Errorf("warning %d: path = %v, want %s", i, fields["path"], path)
		}
		msg, _ := fields["warning"].(string)
		if !strings.Contains(msg, wantSubstrings[i]) {
			t.Errorf("warning %d = %q, want it to mention %s", i, msg, wantSubstrings[i])
		}
	}
	if logs.FilterMessage("model loaded").Len() != 1 {
		t.Error("expected the model loaded entry")
	}
}

func TestLoadOBJ_Quad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"quad.obj": quadOBJ,
		"quad.mtl": "newmtl red\nKd 1 0 0\n",
	})

	m, err := LoadOBJ(filepath.Join(dir, "quad.obj"), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	checkInvariants(t, m)

	if m.Name != "quad" {
		t.Errorf("expected name 'quad', got %q", m.Name)
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected 4 vertices, got %d", m.VertexCount())
	}
	if len(m.Indices) != 6 {
		t.Errorf("expected 6 indices, got %d", len(m.Indices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i := range want {
		if i < len(m.Indices) && m.Indices[i] != want[i] {
			t.Errorf("index %d = %d, want %d", i, m.Indices[i], want[i])
		}
	}
	if len(m.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(m.Meshes))
	}
	if got := m.Meshes[0]; got != (Mesh{Name: "quad", MaterialIdx: 0, StartIndex: 0, IndexCount: 6}) {
		t.Errorf("mesh = %+v", got)
	}
	if len(m.Materials) != 1 || m.Materials[0].Name != "red" {
		t.Errorf("materials = %+v", m.Materials)
	}
	if _, ok := m.GPUBuffers(); ok {
		t.Error("model without GPU should have no buffers")
	}
}

func TestLoadOBJ_GeneratedNormals(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"tri.obj": "v 0 0 0\nv 2 0 0\nv 0 3 0\nf 1 2 3\n",
	})

	m, err := LoadOBJ(filepath.Join(dir, "tri.obj"), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadOBJ failed: %v", err)
	}
	checkInvariants(t, m)

	for i, n := range m.Normals {
		if n != (mgl32.Vec3{0, 0, 1}) {
			t.Errorf("normal %d = %v, want (0,0,1)", i, n)
		}
	}
	for i, tc := range m.TexCoords {
		if tc != (mgl32.Vec2{}) {
			t.Errorf("texcoord %d = %v, want (0,0)", i, tc)
		}
	}
	if len(m.Meshes) != 1 || m.Meshes[0].MaterialIdx != NoMaterial || m.Meshes[0].Name != "default" {
		t.Errorf("meshes = %+v", m.Meshes)
	}
}

func TestLoadOBJ_Errors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"bad.obj":    "v 0 0 0\nf 1 2 3\n",
		"noext":      "v 0 0 0\n",
		"badlib.obj": "mtllib badlib.mtl\n",
		"badlib.mtl": "Kd 1 1 1\n",
	})

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing extension", filepath.Join(dir, "noext"), ErrMissingExtension},
		{"missing file", filepath.Join(dir, "nothing.obj"), ErrMalformedInput},
		{"index out of range", filepath.Join(dir, "bad.obj"), formats.ErrIndexOutOfRange},
		{"bad library", filepath.Join(dir, "badlib.obj"), formats.ErrMalformedMTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := LoadOBJ(tt.path, LoadOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if m != nil {
				t.Error("expected no model on error")
			}
		})
	}
}

func TestBuild_Materials(t *testing.T) {
	obj := parseQuad(t, texturedMTL)

	loader := &fakeLoader{}
	gpu := newFakeGPU()
	m, err := Build(obj, "quad", "assets/quad.obj", "assets/", LoadOptions{Textures: loader, GPU: gpu})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	red := m.Materials[0]
	if red.Color != (mgl32.Vec3{1, 0, 0}) || red.Reflectivity != 0.5 || red.Metalness != 0.25 ||
		red.Fresnel != 0.04 || red.Shininess != 0.75 || red.Emission != 2 || red.Transparency != 0.1 {
		t.Errorf("red material = %+v", red)
	}

	wantChannels := map[string]int{"red.png": 4, "spec.png": 1, "glow.png": 4, "blue.png": 4, "rough.png": 1}
	for file, want := range wantChannels {
		if got := loader.channels[file]; got != want {
			t.Errorf("%s loaded with %d channels, want %d", file, got, want)
		}
	}

	if tex := red.Texture(SlotReflectivity); tex == nil || tex.Filename != "spec.png" || tex.Image == nil || tex.Handle == 0 {
		t.Errorf("reflectivity texture = %+v", tex)
	}
	if tex := red.Texture(SlotMetalness); tex != nil {
		t.Errorf("unexpected metalness texture %+v", tex)
	}
	if tex := m.Materials[1].Texture(SlotShininess); tex == nil || tex.Image.Directory != "assets/" {
		t.Errorf("shininess texture = %+v", tex)
	}
	if len(gpu.textures) != 5 {
		t.Errorf("expected 5 live textures, got %d", len(gpu.textures))
	}
	if _, ok := m.GPUBuffers(); !ok {
		t.Error("expected uploaded buffers")
	}

	m.Destroy()
	if len(gpu.textures) != 0 || len(gpu.buffers) != 0 {
		t.Errorf("leaked %d textures, %d buffers", len(gpu.textures), len(gpu.buffers))
	}
	if red.Textures[SlotColor].Image != nil {
		t.Error("expected images released")
	}
	m.Destroy()
}

func TestBuild_SkipTextures(t *testing.T) {
	obj := parseQuad(t, texturedMTL)

	loader := &fakeLoader{}
	m, err := Build(obj, "quad", "quad.obj", "./", LoadOptions{Textures: loader, SkipTextures: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(loader.channels) != 0 {
		t.Errorf("expected no texture loads, got %v", loader.channels)
	}
	if tex := m.Materials[0].Texture(SlotColor); tex == nil || tex.Filename != "red.png" || tex.Image != nil {
		t.Errorf("color texture = %+v", tex)
	}
}

func TestBuild_ReleasesOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		loader *fakeLoader
		setup  func(g *fakeGPU)
		want   error
	}{
		{
			name:   "missing texture",
			loader: &fakeLoader{fail: map[string]bool{"rough.png": true}},
			want:   texture.ErrMissingTexture,
		},
		{
			name:   "texture upload",
			loader: &fakeLoader{},
			setup:  func(g *fakeGPU) { g.failTextures = true },
		},
		{
			name:   "buffer upload",
			loader: &fakeLoader{},
			setup:  func(g *fakeGPU) { g.failBuffers = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := parseQuad(t, texturedMTL)

			gpu := newFakeGPU()
			if tt.setup != nil {
				tt.setup(gpu)
			}

			m, err := Build(obj, "quad", "quad.obj", "./", LoadOptions{Textures: tt.loader, GPU: gpu})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if m != nil {
				t.Error("expected no model on error")
			}
			if len(gpu.textures) != 0 || len(gpu.buffers) != 0 {
				t.Errorf("leaked %d textures, %d buffers", len(gpu.textures), len(gpu.buffers))
			}
		})
	}
}

func TestModel_SetPositions(t *testing.T) {
	obj := parseQuad(t, "newmtl red\n")
	gpu := newFakeGPU()
	m, err := Build(obj, "quad", "quad.obj", "./", LoadOptions{GPU: gpu})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Destroy()

	if err := m.SetPositions(make([]mgl32.Vec3, 3)); !errors.Is(err, ErrInvalidPositions) {
		t.Errorf("expected ErrInvalidPositions, got %v", err)
	}

	moved := []mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}
	if err := m.SetPositions(moved); err != nil {
		t.Fatalf("SetPositions failed: %v", err)
	}
	if m.Positions[2] != moved[2] {
		t.Errorf("position 2 = %v, want %v", m.Positions[2], moved[2])
	}
	if len(gpu.updated) != 4 || gpu.updated[3] != moved[3] {
		t.Errorf("GPU positions = %v", gpu.updated)
	}
}

func TestModel_Validate(t *testing.T) {
	obj := parseQuad(t, "newmtl red\n")
	m, err := Build(obj, "quad", "quad.obj", "./", LoadOptions{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m.Meshes[0].IndexCount = 3
	if err := m.Validate(); !errors.Is(err, ErrInvalidIndexRange) {
		t.Errorf("expected ErrInvalidIndexRange, got %v", err)
	}

	m.Meshes[0].IndexCount = 6
	m.Indices[4] = 9
	if err := m.Validate(); err == nil {
		t.Error("expected out of range index error")
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path      string
		dir, base string
		ext       string
		wantErr   bool
	}{
		{path: "models/cube.obj", dir: "models/", base: "cube", ext: ".obj"},
		{path: `C:\scenes\ship.v2.obj`, dir: `C:\scenes\`, base: "ship.v2", ext: ".obj"},
		{path: "cube.obj", dir: "./", base: "cube", ext: ".obj"},
		{path: "/abs/dir.d/cube", wantErr: true},
		{path: "cube", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dir, base, ext, err := splitPath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingExtension) {
					t.Errorf("expected ErrMissingExtension, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dir != tt.dir || base != tt.base || ext != tt.ext {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", dir, base, ext, tt.dir, tt.base, tt.ext)
			}
		})
	}
}
