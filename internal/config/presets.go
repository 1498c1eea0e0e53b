package config

import (
	"slices"
	"sort"
)

// presets maps symbolic preset names to file extension suffixes
// (without the leading dot). The mapping is static; presets are expanded
// and merged into one extension set at configuration-build time, not
// resolved during traversal.
var presets = map[string][]string{
	"python": {"py", "pyi"},
	"web":    {"js", "jsx", "ts", "tsx", "html", "css"},
	"go":     {"go"},
	"docs":   {"md", "rst", "txt"},
	"config": {"yaml", "yml", "toml", "json", "xml"},
}

// PresetNames returns the recognized preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveExtensions expands preset names and merges the extra explicit
// extensions into one deduplicated, sorted extension set. Unrecognized
// preset names are returned separately; callers log a warning per name
// and continue with whatever resolved.
func ResolveExtensions(presetNames, extra []string) (exts []string, unknown []string) {
	seen := make(map[string]struct{})

	for _, name := range presetNames {
		suffixes, ok := presets[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		for _, s := range suffixes {
			seen[s] = struct{}{}
		}
	}

	for _, s := range extra {
		if s != "" {
			seen[s] = struct{}{}
		}
	}

	exts = make([]string, 0, len(seen))
	for s := range seen {
		exts = append(exts, s)
	}
	slices.Sort(exts)
	return exts, unknown
}
