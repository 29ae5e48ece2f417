// Package config handles objtool configuration loading and management.
package config

import "github.com/Faultbox/objmesh/internal/engine/model"

// Config holds all objtool settings.
type Config struct {
	Ingest  IngestConfig  `yaml:"ingest"`
	Export  ExportConfig  `yaml:"export"`
	GPU     GPUConfig     `yaml:"gpu"`
	Logging LoggingConfig `yaml:"logging"`
}

// IngestConfig controls how models are loaded.
type IngestConfig struct {
	LoadTextures bool `yaml:"load_textures"` // Decode referenced texture images
	Upload       bool `yaml:"upload"`        // Upload models to the GPU after loading
}

// ExportConfig controls OBJ/MTL export.
type ExportConfig struct {
	Header    string `yaml:"header"`     // Comment line at the top of exported files, "" for none
	OutputDir string `yaml:"output_dir"` // Empty means next to the source file
}

// GPUConfig holds settings of the offscreen GL context used for uploads.
type GPUConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Anisotropy float32 `yaml:"anisotropy"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			LoadTextures: true,
			Upload:       false,
		},
		Export: ExportConfig{
			Header: model.DefaultExportHeader,
		},
		GPU: GPUConfig{
			Width:      640,
			Height:     480,
			Anisotropy: 8,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
