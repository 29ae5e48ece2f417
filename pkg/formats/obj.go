// OBJ (Wavefront object) format parser for triangle meshes.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// OBJ format errors.
var (
	ErrMalformedOBJ    = errors.New("malformed OBJ data")
	ErrIndexOutOfRange = errors.New("OBJ index out of range")
)

// NoMaterial marks a face without an assigned material.
const NoMaterial = -1

// DefaultShapeName names faces that appear before any "o" or "g" line.
const DefaultShapeName = "default"

// FaceVertexRef references one corner of a face. Normal and TexCoord are -1 when absent.
type FaceVertexRef struct {
	Position int // Index into OBJ.Positions
	Normal   int // Index into OBJ.Normals or -1
	TexCoord int // Index into OBJ.TexCoords or -1
}

// Shape is a named group of triangles.
type Shape struct {
	Name        string          // Shape name from "o"/"g"
	Indices     []FaceVertexRef // Three refs per face
	MaterialIDs []int           // One material id per face, NoMaterial if none
}

// FaceCount returns the number of triangles in the shape.
func (s *Shape) FaceCount() int {
	return len(s.MaterialIDs)
}

// OBJ represents a parsed OBJ file together with its material library.
type OBJ struct {
	Positions []mgl32.Vec3 // Vertex positions ("v")
	Normals   []mgl32.Vec3 // Vertex normals ("vn")
	TexCoords []mgl32.Vec2 // Texture coordinates ("vt")
	Shapes    []Shape      // Shapes in file order
	Materials []Material   // Materials from all referenced libraries
	Warnings  []string     // Non-fatal diagnostics
}

// Opener opens a file referenced from an OBJ (material libraries).
type Opener func(name string) (io.ReadCloser, error)

// LoadOBJ opens and parses an OBJ file. Material libraries are resolved relative
// to the file's directory. When the file names no library, a sibling .mtl with
// the same base name is used if it exists.
func LoadOBJ(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	open := func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, name))
	}

	sibling := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".mtl"
	if _, err := os.Stat(filepath.Join(dir, sibling)); err != nil {
		sibling = ""
	}
	return parseOBJ(f, open, sibling)
}

// objParser holds the state of a single OBJ parse.
type objParser struct {
	obj     *OBJ
	open    Opener
	current int // Index into obj.Shapes of the shape receiving faces, -1 if none
	pending string

	// Faces record indices into usedNames until the libraries are known.
	usedNames  []string
	nameSlot   int
	hasLibrary bool
}

// ParseOBJ parses OBJ data. open resolves "mtllib" references; it may be nil,
// in which case libraries are reported as warnings and skipped.
func ParseOBJ(r io.Reader, open Opener) (*OBJ, error) {
	return parseOBJ(r, open, "")
}

// parseOBJ parses OBJ data. sibling names a library to load when the data
// references none.
func parseOBJ(r io.Reader, open Opener, sibling string) (*OBJ, error) {
	p := &objParser{
		obj:      &OBJ{},
		open:     open,
		current:  -1,
		pending:  DefaultShapeName,
		nameSlot: NoMaterial,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}
		if err := p.parseLine(tokens); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedOBJ, lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOBJ, err)
	}

	if !p.hasLibrary && sibling != "" {
		if err := p.obj.loadLibrary(sibling, open); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedOBJ, err)
		}
	}
	p.resolveMaterials()

	return p.obj, nil
}

// resolveMaterials maps the "usemtl" names recorded on faces to material indices.
func (p *objParser) resolveMaterials() {
	ids := make([]int, len(p.usedNames))
	for i, name := range p.usedNames {
		ids[i] = p.obj.materialIndex(name)
		if ids[i] == NoMaterial {
			p.obj.warnf("material %q not found", name)
		}
	}
	for s := range p.obj.Shapes {
		matIDs := p.obj.Shapes[s].MaterialIDs
		for f, slot := range matIDs {
			if slot != NoMaterial {
				matIDs[f] = ids[slot]
			}
		}
	}
}

func (p *objParser) parseLine(tokens []string) error {
	switch tokens[0] {
	case "v":
		v, err := parseVec3(tokens)
		if err != nil {
			return err
		}
		p.obj.Positions = append(p.obj.Positions, v)
	case "vn":
		v, err := parseVec3(tokens)
		if err != nil {
			return err
		}
		p.obj.Normals = append(p.obj.Normals, v)
	case "vt":
		v, err := parseVec2(tokens)
		if err != nil {
			return err
		}
		p.obj.TexCoords = append(p.obj.TexCoords, v)
	case "o", "g":
		name := DefaultShapeName
		if len(tokens) > 1 {
			name = strings.Join(tokens[1:], " ")
		}
		p.startShape(name)
	case "usemtl":
		if len(tokens) < 2 {
			return fmt.Errorf(`"usemtl" expects a material name`)
		}
		p.useMaterial(strings.Join(tokens[1:], " "))
	case "mtllib":
		if len(tokens) < 2 {
			return fmt.Errorf(`"mtllib" expects a file name`)
		}
		p.hasLibrary = true
		// A single library whose name contains spaces takes precedence over
		// a list of libraries.
		if len(tokens) > 2 {
			found, err := p.obj.tryLibrary(strings.Join(tokens[1:], " "), p.open)
			if found || err != nil {
				return err
			}
		}
		for _, name := range tokens[1:] {
			if err := p.obj.loadLibrary(name, p.open); err != nil {
				return err
			}
		}
	case "f":
		return p.parseFace(tokens)
	case "s":
		// Smoothing groups do not affect generated normals.
	default:
		p.obj.warnf("unsupported keyword %q", tokens[0])
	}
	return nil
}

// useMaterial selects the material for subsequent faces.
func (p *objParser) useMaterial(name string) {
	for i, n := range p.usedNames {
		if n == name {
			p.nameSlot = i
			return
		}
	}
	p.usedNames = append(p.usedNames, name)
	p.nameSlot = len(p.usedNames) - 1
}

// startShape begins a new shape, or renames the current one if it has no faces yet.
func (p *objParser) startShape(name string) {
	if p.current >= 0 && p.obj.Shapes[p.current].FaceCount() == 0 {
		p.obj.Shapes[p.current].Name = name
		return
	}
	p.current = -1
	p.pending = name
}

// shape returns the shape currently receiving faces, creating it on first use.
func (p *objParser) shape() *Shape {
	if p.current < 0 {
		p.obj.Shapes = append(p.obj.Shapes, Shape{Name: p.pending})
		p.current = len(p.obj.Shapes) - 1
	}
	return &p.obj.Shapes[p.current]
}

// parseFace parses an "f" line and fan-triangulates polygons with more than
// three corners.
func (p *objParser) parseFace(tokens []string) error {
	if len(tokens) < 4 {
		return fmt.Errorf("face needs at least 3 vertices, got %d", len(tokens)-1)
	}

	refs := make([]FaceVertexRef, 0, len(tokens)-1)
	arity := 0
	for i, tok := range tokens[1:] {
		parts := strings.Split(tok, "/")
		if i == 0 {
			arity = len(parts)
		} else if len(parts) != arity {
			return fmt.Errorf("face vertex %d has %d indices, expected %d", i, len(parts), arity)
		}
		if len(parts) > 3 || parts[0] == "" {
			return fmt.Errorf("invalid face vertex %q", tok)
		}

		ref := FaceVertexRef{Normal: -1, TexCoord: -1}
		var err error
		if ref.Position, err = resolveIndex(parts[0], len(p.obj.Positions)); err != nil {
			return fmt.Errorf("position of %q: %w", tok, err)
		}
		if len(parts) > 1 && parts[1] != "" {
			if ref.TexCoord, err = resolveIndex(parts[1], len(p.obj.TexCoords)); err != nil {
				return fmt.Errorf("texcoord of %q: %w", tok, err)
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if ref.Normal, err = resolveIndex(parts[2], len(p.obj.Normals)); err != nil {
				return fmt.Errorf("normal of %q: %w", tok, err)
			}
		}
		refs = append(refs, ref)
	}

	s := p.shape()
	for i := 1; i+1 < len(refs); i++ {
		s.Indices = append(s.Indices, refs[0], refs[i], refs[i+1])
		s.MaterialIDs = append(s.MaterialIDs, p.nameSlot)
	}
	return nil
}

// resolveIndex converts a 1-based (or negative, relative) OBJ index to a 0-based one.
func resolveIndex(tok string, count int) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, err
	}
	idx := n - 1
	if n < 0 {
		idx = count + n
	}
	if n == 0 || idx < 0 || idx >= count {
		return 0, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, n, count)
	}
	return idx, nil
}

func (o *OBJ) materialIndex(name string) int {
	for i := range o.Materials {
		if o.Materials[i].Name == name {
			return i
		}
	}
	return NoMaterial
}

// loadLibrary parses a material library and appends its materials. A library
// that cannot be opened is a warning, not an error.
func (o *OBJ) loadLibrary(name string, open Opener) error {
	if open == nil {
		o.warnf("material library %q not loaded", name)
		return nil
	}
	rc, err := open(name)
	if err != nil {
		o.warnf("material library %q not found: %v", name, err)
		return nil
	}
	return o.readLibrary(name, rc)
}

// tryLibrary loads the library if it can be opened and reports whether it was.
func (o *OBJ) tryLibrary(name string, open Opener) (bool, error) {
	if open == nil {
		return false, nil
	}
	rc, err := open(name)
	if err != nil {
		return false, nil
	}
	return true, o.readLibrary(name, rc)
}

func (o *OBJ) readLibrary(name string, rc io.ReadCloser) error {
	defer rc.Close()

	mats, warnings, err := ParseMTL(rc)
	if err != nil {
		return fmt.Errorf("material library %s: %w", name, err)
	}
	for _, w := range warnings {
		o.warnf("%s: %s", name, w)
	}
	for _, m := range mats {
		if o.materialIndex(m.Name) != NoMaterial {
			o.warnf("material %q redefined in %s, keeping first", m.Name, name)
			continue
		}
		o.Materials = append(o.Materials, m)
	}
	return nil
}

func (o *OBJ) warnf(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

func parseFloat32(tok string) (float32, error) {
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseVec3(tokens []string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	if len(tokens) < 4 {
		return v, fmt.Errorf("%q expects 3 values, got %d", tokens[0], len(tokens)-1)
	}
	for i := 0; i < 3; i++ {
		f, err := parseFloat32(tokens[i+1])
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// parseVec2 reads a texture coordinate. A missing v defaults to 0.
func parseVec2(tokens []string) (mgl32.Vec2, error) {
	var v mgl32.Vec2
	if len(tokens) < 2 {
		return v, fmt.Errorf("%q expects at least 1 value", tokens[0])
	}
	for i := 0; i < 2 && i+1 < len(tokens); i++ {
		f, err := parseFloat32(tokens[i+1])
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
