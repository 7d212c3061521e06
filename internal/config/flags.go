package config

import "flag"

// Flags binds command-line overrides to a FlagSet.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string

	scale        float64
	frameRate    float64
	rotateX      bool
	rootPolicy   string
	implicitBone string
	unlit        bool
	texFormat    string
	texScale     float64
	texMaxRes    int
	recompress   bool
	interactive  bool
	outputDir    string
	outputFormat string
	logLevel     string
	logFile      string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "Config file (.yaml, .yml, .toml)")
	fs.Float64Var(&f.scale, "scale", 0, "Scale applied to positions and translations")
	fs.Float64Var(&f.frameRate, "fps", 0, "Animation frame rate (0: frame numbers as seconds)")
	fs.BoolVar(&f.rotateX, "rotx", false, "Rotate the mesh -90 degrees about X")
	fs.StringVar(&f.rootPolicy, "root", "", "Root bone policy: first-with-children, first, strict")
	fs.StringVar(&f.implicitBone, "implicit", "", "Name of the implicit bone to remove (- keeps it)")
	fs.BoolVar(&f.unlit, "unlit", false, "Use KHR_materials_unlit")
	fs.StringVar(&f.texFormat, "texformat", "", "Texture format: png, webp")
	fs.Float64Var(&f.texScale, "texscale", 0, "Texture scale")
	fs.IntVar(&f.texMaxRes, "texlimit", 0, "Texture resolution limit")
	fs.BoolVar(&f.recompress, "texrecompress", false, "Re-encode textures")
	fs.BoolVar(&f.interactive, "interactive", false, "Ask for missing textures and input directory")
	fs.StringVar(&f.outputDir, "outdir", "", "Output directory")
	fs.StringVar(&f.outputFormat, "outformat", "", "Output format: glb, gltf")
	fs.StringVar(&f.logLevel, "loglevel", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFile, "logfile", "", "Log file")
	return f
}

// Apply copies every flag that was set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "scale":
			cfg.Convert.Scale = float32(f.scale)
		case "fps":
			cfg.Convert.FrameRate = float32(f.frameRate)
		case "rotx":
			cfg.Convert.RotateX = f.rotateX
		case "root":
			cfg.Convert.RootPolicy = f.rootPolicy
		case "implicit":
			cfg.Convert.ImplicitBone = f.implicitBone
		case "unlit":
			cfg.Convert.Unlit = f.unlit
		case "texformat":
			cfg.Textures.Format = f.texFormat
		case "texscale":
			cfg.Textures.Scale = float32(f.texScale)
		case "texlimit":
			cfg.Textures.MaxResolution = f.texMaxRes
		case "texrecompress":
			cfg.Textures.ReCompress = f.recompress
		case "interactive":
			cfg.Textures.Interactive = f.interactive
		case "outdir":
			cfg.Output.Dir = f.outputDir
		case "outformat":
			cfg.Output.Format = f.outputFormat
		case "loglevel":
			cfg.Logging.Level = f.logLevel
		case "logfile":
			cfg.Logging.File = f.logFile
		}
	})
}
