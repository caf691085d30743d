// Package source enumerates the local documents an ingestion run processes.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/catalog-ingest/pkg/ingest"
)

// Options configures a Lister
type Options struct {
	// Dir is the directory to scan (required)
	Dir string

	// Extensions are matched case-insensitively against file names (default: .pdf)
	Extensions []string

	// Recursive descends into subdirectories
	Recursive bool

	// Exclude lists base names to ignore, case-insensitively (e.g. License.pdf)
	Exclude []string
}

// Lister is a filesystem ingest.Source
type Lister struct {
	dir        string
	extensions []string
	recursive  bool
	exclude    map[string]struct{}
}

// New validates opts and returns a Lister
func New(opts Options) (*Lister, error) {
	if opts.Dir == "" {
		return nil, errors.New("source directory is required")
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}

	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		exclude[strings.ToLower(name)] = struct{}{}
	}

	return &Lister{
		dir:        opts.Dir,
		extensions: normalized,
		recursive:  opts.Recursive,
		exclude:    exclude,
	}, nil
}

// List returns matching regular files. Directory entries are visited in
// lexical order, so the result order is stable between runs.
func (l *Lister) List(ctx context.Context) ([]ingest.SourceFile, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", l.dir)
	}

	var files []ingest.SourceFile
	err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != l.dir && !l.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.Match(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		files = append(files, ingest.SourceFile{Path: path, Name: d.Name(), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.dir, err)
	}
	return files, nil
}

// Match reports whether a base name passes the extension and exclude filters
func (l *Lister) Match(name string) bool {
	lower := strings.ToLower(name)
	if _, skip := l.exclude[lower]; skip {
		return false
	}
	for _, ext := range l.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Open opens file for reading
func (l *Lister) Open(file ingest.SourceFile) (io.ReadCloser, error) {
	return os.Open(file.Path)
}

var _ ingest.Source = (*Lister)(nil)
