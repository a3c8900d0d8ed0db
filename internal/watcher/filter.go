package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Change is the kind of a settled file change.
type Change int

const (
	// Changed means the file was created or written and stopped changing.
	Changed Change = iota
	// Removed means the file was deleted or renamed away.
	Removed
)

func (c Change) String() string {
	if c == Removed {
		return "removed"
	}
	return "changed"
}

// Event is a settled change of one file.
type Event struct {
	ModTime time.Time
	Path    string
	Size    int64
	Change  Change
}

var defaultExcludes = []string{".DS_Store", "*.swp", "*~", "*.tmp", "*.map"}

// Options configures which files under a watched tree are reported.
type Options struct {
	// Exclude holds filepath.Match patterns tested against base names. Nil
	// selects the editor and build leftovers of defaultExcludes and also
	// turns on SkipHidden; an empty slice excludes nothing.
	Exclude []string
	// Extensions, when set, is the allow-list of reported file extensions,
	// compared case-insensitively and including the dot.
	Extensions []string
	// SettleDelay is how long a file must stay unchanged before it is reported.
	SettleDelay time.Duration
	// SkipHidden ignores dot files and whole dot directories.
	SkipHidden bool
}

func (o *Options) normalize() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.Exclude == nil {
		o.Exclude = defaultExcludes
		o.SkipHidden = true
	}
	for i, ext := range o.Extensions {
		o.Extensions[i] = strings.ToLower(ext)
	}
}

// excluded reports whether path, file or directory, is outside the watch.
func (o *Options) excluded(path string) bool {
	if o.SkipHidden {
		for part := range strings.SplitSeq(filepath.Clean(path), string(filepath.Separator)) {
			if len(part) > 1 && part[0] == '.' && part != ".." {
				return true
			}
		}
	}
	base := filepath.Base(path)
	return slices.ContainsFunc(o.Exclude, func(pattern string) bool {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	})
}

// wanted reports whether changes of the file at path are reported.
func (o *Options) wanted(path string) bool {
	if o.excluded(path) {
		return false
	}
	return len(o.Extensions) == 0 || slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
