// Package scanner discovers indexable files under a root directory.
// It applies the extension, excluded-directory, and hidden-file policies
// configured for an indexing run.
package scanner

// FileInfo describes a discovered file.
type FileInfo struct {
	Path    string // Relative to the scan root
	AbsPath string // Absolute path
	Size    int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	// RootDir is the directory to scan. Defaults to ".".
	RootDir string

	// Extensions are the file suffixes to include, without the leading dot
	// (e.g. "py", "go"). Matching is case-sensitive against the literal
	// suffix. Empty means no files match.
	Extensions []string

	// ExcludeDirs are directory names excluded wherever they appear as a
	// path component (e.g. "venv", "node_modules").
	ExcludeDirs []string

	// IncludeHidden includes dot-prefixed files and directories.
	IncludeHidden bool

	// MaxFileSize is the maximum file size in bytes (0 = 10MB default).
	MaxFileSize int64
}

// Result is streamed from the scanner channel.
type Result struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024
