// Package logger sets up the process-wide zap logger.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process logger. It is a no-op until Init is called.
var Log = zap.NewNop()

var Sugar = Log.Sugar()

// FileConfig controls the rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// Init logs to stderr and, if logFile is set, to a rotating file.
func Init(level string, logFile string) error {
	var fileCfg FileConfig
	if logFile != "" {
		fileCfg = DefaultFileConfig(logFile)
	}
	return InitWithFileConfig(level, fileCfg, os.Stderr)
}

// InitWithFileConfig builds the logger from explicit outputs. A nil console disables console output.
func InitWithFileConfig(level string, fileCfg FileConfig, console io.Writer) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var cores []zapcore.Core
	if console != nil {
		enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			LevelKey:         "level",
			MessageKey:       "msg",
			EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			ConsoleSeparator: " ",
		})
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(console), lvl))
	}
	if fileCfg.Path != "" {
		w := &lumberjack.Logger{
			Filename:   fileCfg.Path,
			MaxSize:    fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAge:     fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
			LocalTime:  true,
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
	}

	Log = zap.New(zapcore.NewTee(cores...))
	Sugar = Log.Sugar()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
