// objtool is a CLI utility for ingesting and re-exporting Wavefront OBJ models.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/objmesh/internal/config"
	"github.com/Faultbox/objmesh/internal/engine/gpu"
	"github.com/Faultbox/objmesh/internal/engine/model"
	"github.com/Faultbox/objmesh/internal/engine/window"
	"github.com/Faultbox/objmesh/internal/logger"
)

// errUsage is returned by commands that already printed their usage line.
var errUsage = errors.New("invalid usage")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("file", config.ConfigPath()),
		zap.Bool("load_textures", cfg.Ingest.LoadTextures),
		zap.Bool("upload", cfg.Ingest.Upload),
		zap.String("output_dir", cfg.Export.OutputDir))

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		exit(1)
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		err = cmdInfo(cfg, args)
	case "export":
		err = cmdExport(cfg, args)
	case "roundtrip", "rt":
		err = cmdRoundTrip(cfg, args)
	case "upload":
		err = cmdUpload(cfg, args)
	case "config":
		err = cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		exit(1)
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		exit(1)
	}
	logger.Sync()
}

func printUsage() {
	fmt.Println(`objtool - Wavefront OBJ/MTL model utility

Usage:
  objtool [flags] <command> [options]

Commands:
  info <file.obj>                 Show vertex, index, mesh and material counts
  export <file.obj>               Re-export the ingested model as OBJ/MTL
  roundtrip <file.obj>            Export, re-ingest and compare with the original
  upload <file.obj>               Upload the model to an offscreen GL context
  config                          Print the effective configuration

Roundtrip options:
  -keep                           Keep the exported files

Config options:
  -save <path>                    Write the effective configuration to path
  -user                           Write it to the user config directory

Flags:
  -config <path>   Config file (default ./objtool.yaml)
  -debug           Enable debug logging
  -no-textures     Do not load texture images
  -out <dir>       Output directory for exported files
  -log <path>      Write logs to a rotating file

Examples:
  objtool info assets/sponza.obj
  objtool -out build export assets/sponza.obj
  objtool -no-textures roundtrip assets/sponza.obj
  objtool -debug config -user`)
}

// exit flushes the logger before terminating, which deferred calls would not.
func exit(code int) {
	logger.Sync()
	os.Exit(code)
}

func usage(line string) error {
	fmt.Fprintln(os.Stderr, "Usage: "+line)
	return errUsage
}

func loadOptions(cfg *config.Config) model.LoadOptions {
	return model.LoadOptions{
		SkipTextures: !cfg.Ingest.LoadTextures,
		Logger:       logger.Named("model"),
	}
}

// loadModel ingests path, uploading it to an offscreen GL context when
// upload is set. The returned func releases the model and the context.
func loadModel(cfg *config.Config, path string, upload bool) (*model.Model, func(), error) {
	opts := loadOptions(cfg)
	closeContext := func() {}

	if upload {
		win, err := window.New(window.Config{
			Title:  "objtool",
			Width:  cfg.GPU.Width,
			Height: cfg.GPU.Height,
			Hidden: true,
		})
		if err != nil {
			return nil, nil, err
		}
		w, h := win.Size()
		logger.Debug("offscreen context ready", zap.Int("width", w), zap.Int("height", h))

		device, err := gpu.New(gpu.Config{Anisotropy: cfg.GPU.Anisotropy})
		if err != nil {
			win.Close()
			return nil, nil, err
		}
		opts.GPU = device
		closeContext = win.Close
	}

	m, err := model.LoadOBJ(path, opts)
	if err != nil {
		closeContext()
		return nil, nil, err
	}
	return m, func() {
		m.Destroy()
		closeContext()
	}, nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("objtool info <file.obj>")
	}

	m, release, err := loadModel(cfg, args[0], cfg.Ingest.Upload)
	if err != nil {
		return err
	}
	defer release()

	fmt.Printf("Model:     %s\n", m.Name)
	fmt.Printf("Vertices:  %d\n", m.VertexCount())
	fmt.Printf("Indices:   %d (%d triangles)\n", len(m.Indices), m.TriangleCount())
	fmt.Printf("Meshes:    %d\n", len(m.Meshes))
	fmt.Printf("Materials: %d\n", len(m.Materials))
	fmt.Println()

	fmt.Println("Meshes:")
	for _, mesh := range m.Meshes {
		material := m.MaterialName(mesh.MaterialIdx)
		if material == "" {
			material = "(none)"
		}
		fmt.Printf("  %-24s [%d, %d)  %d tris  %s\n", mesh.Name,
			mesh.StartIndex, mesh.StartIndex+mesh.IndexCount, mesh.IndexCount/3, material)
	}

	if len(m.Materials) > 0 {
		fmt.Println()
		fmt.Println("Materials:")
	}
	for _, mat := range m.Materials {
		fmt.Printf("  %s\n", mat.Name)
		for s := model.TextureSlot(0); s < model.TextureSlotCount; s++ {
			if tex := mat.Texture(s); tex != nil {
				size := "not loaded"
				if tex.Image != nil {
					size = fmt.Sprintf("%dx%d", tex.Image.Width, tex.Image.Height)
				}
				fmt.Printf("    %-12s %s (%s)\n", s, tex.Filename, size)
			}
		}
	}

	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	return nil
}

func cmdExport(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("objtool export <file.obj>")
	}

	m, release, err := loadModel(cfg, args[0], cfg.Ingest.Upload)
	if err != nil {
		return err
	}
	defer release()

	dir := cfg.Export.OutputDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	} else {
		dir = filepath.Dir(m.Path)
	}
	if filepath.Join(dir, m.Name+".obj") == filepath.Clean(m.Path) {
		logger.Warn("export overwrites the source model", zap.String("path", m.Path))
	}

	objPath, mtlPath, err := model.Export(m, model.ExportOptions{
		Header:    cfg.Export.Header,
		OutputDir: dir,
	})
	if err != nil {
		return err
	}
	logger.Info("model exported", zap.String("obj", objPath), zap.String("mtl", mtlPath))
	fmt.Printf("Wrote %s\n", objPath)
	fmt.Printf("Wrote %s\n", mtlPath)
	return nil
}

func cmdRoundTrip(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("roundtrip", flag.ExitOnError)
	keep := fs.Bool("keep", false, "Keep the exported files")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return usage("objtool roundtrip [-keep] <file.obj>")
	}

	opts := loadOptions(cfg)
	original, err := model.LoadOBJ(fs.Arg(0), opts)
	if err != nil {
		return err
	}
	defer original.Destroy()

	dir := cfg.Export.OutputDir
	if dir == "" {
		if dir, err = os.MkdirTemp("", "objtool-roundtrip-"); err != nil {
			return err
		}
		if !*keep {
			defer os.RemoveAll(dir)
		}
	}

	// Textures are not copied next to the export.
	opts.SkipTextures = true
	objPath, _, err := model.Export(original, model.ExportOptions{Header: cfg.Export.Header, OutputDir: dir})
	if err != nil {
		return err
	}

	reloaded, err := model.LoadOBJ(objPath, opts)
	if err != nil {
		return err
	}
	defer reloaded.Destroy()

	if err := model.Compare(original, reloaded); err != nil {
		logger.Error("round trip mismatch", zap.String("path", fs.Arg(0)), zap.Error(err))
		return fmt.Errorf("round trip failed: %w", err)
	}
	fmt.Printf("Round trip OK: %d vertices, %d indices, %d meshes, %d materials\n",
		original.VertexCount(), len(original.Indices), len(original.Meshes), len(original.Materials))
	if *keep || cfg.Export.OutputDir != "" {
		fmt.Printf("Exported to %s\n", objPath)
	}
	return nil
}

func cmdUpload(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return usage("objtool upload <file.obj>")
	}

	m, release, err := loadModel(cfg, args[0], true)
	if err != nil {
		return err
	}
	defer release()

	// Rewrite the positions in place to exercise the dynamic buffer.
	if err := m.SetPositions(m.Positions); err != nil {
		return err
	}

	b, _ := m.GPUBuffers()
	fmt.Printf("Uploaded %s: VAO %d, %d vertices, %d indices\n", m.Name, b.VAO, m.VertexCount(), len(m.Indices))
	textures := 0
	for _, mat := range m.Materials {
		for _, tex := range mat.Textures {
			if tex != nil && tex.Handle != 0 {
				textures++
			}
		}
	}
	fmt.Printf("Textures:  %d\n", textures)
	return nil
}

func cmdConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.String("save", "", "Write the effective config to this path")
	user := fs.Bool("user", false, "Write the effective config to the user config directory")
	fs.Parse(args)

	switch {
	case *save != "":
		if err := cfg.SaveTo(*save); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", *save)
	case *user:
		path, err := cfg.Save()
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
	default:
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	}
	return nil
}
