package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Waterpicker/JglTF/converter"
	"github.com/Waterpicker/JglTF/manifest"
	"github.com/Waterpicker/JglTF/smd"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const settleDelay = 300 * time.Millisecond

// watchInputs re-runs the batch whenever a manifest or model below inputs changes.
func watchInputs(ctx context.Context, batch *converter.Batch, inputs []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, in := range inputs {
		if err := watchRecursive(w, in); err != nil {
			return err
		}
	}
	log := batch.Log
	log.Info("watching", zap.Strings("inputs", inputs))

	// Editors emit several events per save; convert once things settle.
	timer := time.NewTimer(settleDelay)
	timer.Stop()
	pending := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = watchRecursive(w, ev.Name)
				}
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if manifest.IsManifest(ev.Name) || smd.FormatOf(ev.Name) != smd.FormatUnknown {
				log.Debug("changed", zap.String("file", ev.Name))
				pending = true
				timer.Reset(settleDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if _, err := batch.Run(ctx, inputs); err != nil {
				return err
			}
		}
	}
}

func watchRecursive(w *fsnotify.Watcher, root string) error {
	st, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return w.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
