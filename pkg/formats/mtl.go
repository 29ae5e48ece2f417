// MTL (Wavefront material library) format parser.
package formats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrMalformedMTL is returned for material libraries that cannot be parsed.
var ErrMalformedMTL = errors.New("malformed MTL data")

// Material is a material record from an MTL file.
type Material struct {
	Name string

	Ambient       mgl32.Vec3 // Ka
	Diffuse       mgl32.Vec3 // Kd
	Specular      mgl32.Vec3 // Ks
	Emission      mgl32.Vec3 // Ke
	Transmittance mgl32.Vec3 // Tf
	Shininess     float32    // Ns
	IOR           float32    // Ni
	Dissolve      float32    // d
	Metallic      float32    // Pm
	Sheen         float32    // Ps
	Roughness     float32    // Pr

	DiffuseTexture   string // map_Kd
	SpecularTexture  string // map_Ks
	MetallicTexture  string // map_Pm
	SheenTexture     string // map_Ps
	RoughnessTexture string // map_Pr
	EmissiveTexture  string // map_Ke
}

// ParseMTL parses an MTL material library. Unknown keywords are returned as warnings.
func ParseMTL(r io.Reader) ([]Material, []string, error) {
	var (
		mats     []Material
		warnings []string
		cur      *Material
	)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}

		if tokens[0] == "newmtl" {
			if len(tokens) < 2 {
				return nil, warnings, fmt.Errorf("%w: line %d: \"newmtl\" expects a name", ErrMalformedMTL, lineNum)
			}
			mats = append(mats, Material{Name: strings.Join(tokens[1:], " "), Dissolve: 1})
			cur = &mats[len(mats)-1]
			continue
		}
		if cur == nil {
			return nil, warnings, fmt.Errorf("%w: line %d: %q before \"newmtl\"", ErrMalformedMTL, lineNum, tokens[0])
		}

		var err error
		switch tokens[0] {
		case "Ka":
			cur.Ambient, err = parseColor(tokens)
		case "Kd":
			cur.Diffuse, err = parseColor(tokens)
		case "Ks":
			cur.Specular, err = parseColor(tokens)
		case "Ke":
			cur.Emission, err = parseColor(tokens)
		case "Tf":
			cur.Transmittance, err = parseColor(tokens)
		case "Ns", "Ni", "d", "Pm", "Ps", "Pr":
			var target *float32
			switch tokens[0] {
			case "Ns":
				target = &cur.Shininess
			case "Ni":
				target = &cur.IOR
			case "d":
				target = &cur.Dissolve
			case "Pm":
				target = &cur.Metallic
			case "Ps":
				target = &cur.Sheen
			case "Pr":
				target = &cur.Roughness
			}
			if len(tokens) < 2 {
				err = fmt.Errorf("%q expects a value", tokens[0])
				break
			}
			*target, err = parseFloat32(tokens[1])
		case "map_Kd", "map_Ks", "map_Pm", "map_Ps", "map_Pr", "map_Ke":
			var target *string
			switch tokens[0] {
			case "map_Kd":
				target = &cur.DiffuseTexture
			case "map_Ks":
				target = &cur.SpecularTexture
			case "map_Pm":
				target = &cur.MetallicTexture
			case "map_Ps":
				target = &cur.SheenTexture
			case "map_Pr":
				target = &cur.RoughnessTexture
			case "map_Ke":
				target = &cur.EmissiveTexture
			}
			*target, err = textureFile(tokens)
		case "illum":
		default:
			warnings = append(warnings, fmt.Sprintf("line %d: unsupported keyword %q", lineNum, tokens[0]))
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("%w: line %d: %v", ErrMalformedMTL, lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("%w: %v", ErrMalformedMTL, err)
	}

	return mats, warnings, nil
}

// parseColor reads an RGB triple. A single value is replicated to all channels.
func parseColor(tokens []string) (mgl32.Vec3, error) {
	if len(tokens) == 2 {
		f, err := parseFloat32(tokens[1])
		if err != nil {
			return mgl32.Vec3{}, err
		}
		return mgl32.Vec3{f, f, f}, nil
	}
	return parseVec3(tokens)
}

// textureOptionArgs is the maximum number of arguments of each texture map
// option. Options marked variadic take up to that many numbers.
var textureOptionArgs = map[string]struct {
	n        int
	variadic bool
}{
	"-blendu":  {1, false},
	"-blendv":  {1, false},
	"-bm":      {1, false},
	"-boost":   {1, false},
	"-cc":      {1, false},
	"-clamp":   {1, false},
	"-imfchan": {1, false},
	"-texres":  {1, false},
	"-type":    {1, false},
	"-mm":      {2, false},
	"-o":       {3, true},
	"-s":       {3, true},
	"-t":       {3, true},
}

// textureFile returns the file name of a map_* statement. Options such as
// "-bm 1" or "-s 1 1 1" precede it; the name itself may contain spaces.
func textureFile(tokens []string) (string, error) {
	rest := tokens[1:]
	for len(rest) > 0 {
		opt, ok := textureOptionArgs[rest[0]]
		if !ok {
			break
		}
		rest = rest[1:]
		for i := 0; i < opt.n && len(rest) > 0; i++ {
			if opt.variadic && i > 0 {
				if _, err := parseFloat32(rest[0]); err != nil {
					break
				}
			}
			rest = rest[1:]
		}
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("%q expects a file name", tokens[0])
	}
	return strings.Join(rest, " "), nil
}
