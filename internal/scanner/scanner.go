package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Scanner discovers files matching the configured policies.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// Scan walks the root directory and streams matching files on the returned
// channel. The channel is closed when scanning completes. A root with zero
// matches is not an error; the channel simply yields nothing.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excluded[name] = struct{}{}
	}

	results := make(chan Result, 64)

	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, excluded, maxFileSize, results)
	}()

	return results, nil
}

func (s *Scanner) scan(ctx context.Context, absRoot string, opts Options, excluded map[string]struct{}, maxFileSize int64, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if _, ok := excluded[name]; ok {
				return filepath.SkipDir
			}
			if !opts.IncludeHidden && isHidden(name) {
				return filepath.SkipDir
			}
			return nil
		}

		// Plain files only; symlinks are not followed.
		if !d.Type().IsRegular() {
			return nil
		}

		if !opts.IncludeHidden && isHidden(name) {
			return nil
		}

		if !matchesExtension(name, opts.Extensions) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}

		if isBinaryFile(path) {
			return nil
		}

		select {
		case results <- Result{File: &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Error: err}:
		case <-ctx.Done():
		}
	}
}

// matchesExtension reports whether the file name ends in any of the
// requested suffixes. Matching is exact and case-sensitive.
func matchesExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}

// isHidden reports whether a path component is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// isBinaryFile checks for null bytes in the first 512 bytes.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}

	return bytes.Contains(buf[:n], []byte{0})
}
