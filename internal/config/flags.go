package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagNoTextures = flag.Bool("no-textures", false, "Do not load texture images")
	flagOut        = flag.String("out", "", "Output directory for exported files")
	flagLog        = flag.String("log", "", "Write logs to this file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagNoTextures {
		cfg.Ingest.LoadTextures = false
	}
	if *flagOut != "" {
		cfg.Export.OutputDir = *flagOut
	}
	if *flagLog != "" {
		cfg.Logging.LogFile = *flagLog
	}
}
