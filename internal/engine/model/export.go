package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"
)

// DefaultExportHeader is the default first line of exported files.
const DefaultExportHeader = "# Exported by objtool"

// ExportOptions configures Export.
type ExportOptions struct {
	Header    string // First line of both files, omitted if empty
	OutputDir string // Defaults to the directory of Model.Path
}

// Export writes the model to <dir>/<name>.obj and <dir>/<name>.mtl and
// returns both paths. Both files are closed before returning; a failure
// may leave one of them written.
func Export(m *Model, opts ExportOptions) (objPath, mtlPath string, err error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(m.Path)
	}

	mtlName := m.Name + ".mtl"
	mtlPath = filepath.Join(dir, mtlName)
	objPath = filepath.Join(dir, m.Name+".obj")

	if err := writeFile(mtlPath, func(w io.Writer) error {
		return WriteMTL(w, m, opts.Header)
	}); err != nil {
		return "", "", err
	}
	if err := writeFile(objPath, func(w io.Writer) error {
		return WriteOBJ(w, m, mtlName, opts.Header)
	}); err != nil {
		return "", "", err
	}
	return objPath, mtlPath, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableOutput, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteMTL writes one material block per material.
func WriteMTL(w io.Writer, m *Model, header string) error {
	bw := bufio.NewWriter(w)
	if header != "" {
		fmt.Fprintln(bw, header)
	}

	for i := range m.Materials {
		mat := &m.Materials[i]
		fmt.Fprintf(bw, "\nnewmtl %s\n", mat.Name)
		fmt.Fprintf(bw, "Kd %s %s %s\n", ftoa(mat.Color[0]), ftoa(mat.Color[1]), ftoa(mat.Color[2]))
		writeScalar3(bw, "Ks", mat.Reflectivity)
		fmt.Fprintf(bw, "Pm %s\n", ftoa(mat.Metalness))
		fmt.Fprintf(bw, "Ps %s\n", ftoa(mat.Fresnel))
		fmt.Fprintf(bw, "Pr %s\n", ftoa(mat.Shininess))
		writeScalar3(bw, "Ke", mat.Emission)
		writeScalar3(bw, "Tf", mat.Transparency)

		for s := TextureSlot(0); s < TextureSlotCount; s++ {
			if tex := mat.Textures[s]; tex != nil {
				fmt.Fprintf(bw, "%s %s\n", s.Key(), tex.Filename)
			}
		}
	}
	return bw.Flush()
}

// WriteOBJ writes every unique position, normal and texcoord once, then one
// group per mesh whose faces use the same 1-based index for all three slots.
func WriteOBJ(w io.Writer, m *Model, mtlName, header string) error {
	bw := bufio.NewWriter(w)
	if header != "" {
		fmt.Fprintln(bw, header)
	}
	if mtlName != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtlName)
	}

	for _, p := range m.Positions {
		fmt.Fprintf(bw, "v %s %s %s\n", ftoa(p[0]), ftoa(p[1]), ftoa(p[2]))
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %s %s %s\n", ftoa(n[0]), ftoa(n[1]), ftoa(n[2]))
	}
	for _, t := range m.TexCoords {
		fmt.Fprintf(bw, "vt %s %s\n", ftoa(t[0]), ftoa(t[1]))
	}

	// Material selection carries over between groups in OBJ, so meshes
	// without a material select one that is not defined.
	unbound := unboundMaterialName(m)
	for _, mesh := range m.Meshes {
		fmt.Fprintf(bw, "\no %s\ng %s\n", mesh.Name, mesh.Name)
		name := m.MaterialName(mesh.MaterialIdx)
		if name == "" {
			name = unbound
		}
		fmt.Fprintf(bw, "usemtl %s\n", name)

		tris := m.Indices[mesh.StartIndex : mesh.StartIndex+mesh.IndexCount]
		for f := 0; f+2 < len(tris); f += 3 {
			a, b, c := tris[f]+1, tris[f+1]+1, tris[f+2]+1
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
	}
	return bw.Flush()
}

// unboundMaterialName returns a material name not used by any of m's materials.
func unboundMaterialName(m *Model) string {
	name := noMaterialName
	for i := 0; i < len(m.Materials); i++ {
		if m.Materials[i].Name == name {
			name += "_"
			i = -1
		}
	}
	return name
}

func writeScalar3(w io.Writer, key string, v float32) {
	s := ftoa(v)
	fmt.Fprintf(w, "%s %s %s %s\n", key, s, s, s)
}

// ftoa formats f with the fewest digits that parse back to the same float32.
func ftoa(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
