package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithFileConfig("warn", FileConfig{}, &buf); err != nil {
		t.Fatal(err)
	}
	Log.Info("hidden")
	Log.Warn("shown", zap.String("file", "a.pqc"))
	Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "a.pqc") {
		t.Error("missing warn entry: ", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smdconv.log")
	cfg := DefaultFileConfig(path)
	cfg.Compress = false
	if err := InitWithFileConfig("bogus", cfg, nil); err != nil {
		t.Fatal(err)
	}
	Sugar.Infow("converted", "file", "hero.pqc")
	Log.Debug("below default level")
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"file":"hero.pqc"`) {
		t.Error("file entry: ", string(data))
	}
	if strings.Contains(string(data), "below default level") {
		t.Error("unknown level should fall back to info")
	}
}
