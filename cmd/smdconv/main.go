package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Waterpicker/JglTF/converter"
	"github.com/Waterpicker/JglTF/internal/config"
	"github.com/Waterpicker/JglTF/internal/logger"
	"github.com/Waterpicker/JglTF/skeleton"
	"github.com/Waterpicker/JglTF/smd"
	"go.uber.org/zap"
)

func buildOptions(cfg *config.Config, selector converter.Selector) (converter.SMDToGLTFOption, error) {
	policy, err := skeleton.ParseRootPolicy(cfg.Convert.RootPolicy)
	if err != nil {
		return converter.SMDToGLTFOption{}, err
	}
	return converter.SMDToGLTFOption{
		Scale:        cfg.Convert.Scale,
		FrameRate:    cfg.Convert.FrameRate,
		RotateX:      cfg.Convert.RotateX,
		RootPolicy:   policy,
		ImplicitBone: cfg.Convert.ImplicitBone,
		ForceUnlit:   cfg.Convert.Unlit,
		TextureOptions: converter.TextureOption{
			Format:        cfg.Textures.Format,
			Scale:         cfg.Textures.Scale,
			MaxResolution: cfg.Textures.MaxResolution,
			ReCompress:    cfg.Textures.ReCompress,
			Interactive:   cfg.Textures.Interactive,
		},
		Selector: selector,
		Log:      logger.Log,
	}, nil
}

func main() {
	fs := flag.CommandLine
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input.pqc|input.smd|dir ...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s -o output.bmd input.smd\n", os.Args[0])
		fs.PrintDefaults()
	}
	flags := config.RegisterFlags(fs)
	output := fs.String("o", "", "Output file (single input). .smd/.smdx/.bmd re-encodes the model")
	watch := fs.Bool("watch", false, "Convert again when inputs change")
	flag.Parse()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()
	os.Exit(run(cfg, flag.Args(), *output, *watch))
}

func run(cfg *config.Config, inputs []string, output string, watch bool) int {
	log := logger.Log
	var selector converter.Selector
	if cfg.Textures.Interactive || len(inputs) == 0 {
		selector = dialogSelector{}
	}
	if len(inputs) == 0 {
		dir, err := selector.SelectDirectory()
		if err != nil {
			log.Error("no input", zap.Error(err))
			return 2
		}
		inputs = []string{dir}
	}

	if output != "" {
		if len(inputs) != 1 {
			log.Error("-o needs exactly one input")
			return 2
		}
		if smd.FormatOf(output) != smd.FormatUnknown {
			if err := convertModel(inputs[0], output, cfg.Convert.ImplicitBone); err != nil {
				log.Error("failed", zap.String("file", inputs[0]), zap.Error(err))
				return 1
			}
			log.Info("converted", zap.String("file", inputs[0]), zap.String("output", output))
			return 0
		}
	}

	options, err := buildOptions(cfg, selector)
	if err != nil {
		log.Error("invalid options", zap.Error(err))
		return 2
	}
	batch := converter.NewBatch(options, log)
	batch.OutputDir = cfg.Output.Dir
	batch.OutputExt = "." + cfg.Output.Format
	if output != "" && !watch {
		r := batch.ConvertTo(inputs[0], output)
		if !r.Success {
			log.Error("failed", zap.String("file", r.Input), zap.Error(r.Error))
			return 1
		}
		log.Info("converted", zap.String("file", r.Input), zap.String("output", r.Output))
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := batch.Run(ctx, inputs)
	if err != nil {
		log.Error("batch aborted", zap.Error(err))
		return 1
	}
	if watch {
		if err := watchInputs(ctx, batch, inputs); err != nil && ctx.Err() == nil {
			log.Error("watch", zap.Error(err))
			return 1
		}
		return 0
	}
	if converter.Failed(results) > 0 {
		return 1
	}
	return 0
}
