// Package output writes generated artifacts to disk.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sghaida/odispatch/internal/gen"
)

// Report lists what a Write did, or would do in a dry run.
type Report struct {
	Written   []string
	Unchanged []string
	Pruned    []string
}

// Writer puts artifacts on disk.
type Writer struct {
	// DryRun reports without touching the filesystem.
	DryRun bool
	// Prune removes generated files in the scanned directories that the
	// run no longer produces.
	Prune bool
	// Suffix identifies generated files when pruning.
	Suffix string
	Log    *zap.Logger
}

// Write writes every artifact whose content changed, then prunes dirs when
// enabled. It stops at the first failure.
func (w *Writer) Write(ctx context.Context, artifacts []gen.Artifact, dirs []string) (Report, error) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}

	var rep Report
	produced := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		path := a.Path()
		produced[path] = true

		old, err := os.ReadFile(path)
		switch {
		case err == nil && bytes.Equal(old, a.Source):
			rep.Unchanged = append(rep.Unchanged, path)
			continue
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return rep, fmt.Errorf("output: read %s: %w", path, err)
		}

		if !w.DryRun {
			if err := writeFileAtomic(path, a.Source, 0o644); err != nil {
				return rep, fmt.Errorf("output: write %s: %w", path, err)
			}
		}
		rep.Written = append(rep.Written, path)
		log.Debug("artifact written", zap.String("key", a.Key), zap.String("path", path), zap.Bool("dry_run", w.DryRun))
	}

	if !w.Prune {
		return rep, nil
	}
	for _, dir := range dirs {
		stale, err := w.stale(dir, produced)
		if err != nil {
			return rep, err
		}
		for _, path := range stale {
			if !w.DryRun {
				if err := removeFile(path); err != nil {
					return rep, fmt.Errorf("output: prune %s: %w", path, err)
				}
			}
			rep.Pruned = append(rep.Pruned, path)
			log.Info("stale artifact pruned", zap.String("path", path), zap.Bool("dry_run", w.DryRun))
		}
	}
	return rep, nil
}

// stale lists generated files in dir that are not in produced. Only files
// carrying the generator header are considered.
func (w *Writer) stale(dir string, produced map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("output: prune %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), w.Suffix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if produced[path] {
			continue
		}
		ok, err := IsGenerated(path)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out, nil
}

// IsGenerated reports whether the file at path starts with the generator
// header.
func IsGenerated(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(gen.Header))
	n, _ := f.Read(buf)
	return string(buf[:n]) == gen.Header, nil
}

// tempFile abstracts an os.File for testability.
type tempFile interface {
	Name() string
	Write([]byte) (int, error)
	Close() error
}

// File operation hooks, overridden in tests.
var (
	createTempFile = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	chmodFile      = os.Chmod
	renameFile     = os.Rename
	removeFile     = os.Remove
)

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over targetPath, so readers never observe partial writes.
func writeFileAtomic(targetPath string, data []byte, perm os.FileMode) (err error) {
	tmpFile, err := createTempFile(filepath.Dir(targetPath), "."+filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if err != nil {
			_ = removeFile(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = chmodFile(tmpPath, perm); err != nil {
		return err
	}
	return renameFile(tmpPath, targetPath)
}
