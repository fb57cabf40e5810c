// Package collect turns a mixture of flat files and directory handles
// into a flat, deduplicated list of input items.
package collect

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermarker/internal/model"
)

// DefaultExtensions are the raster formats picked up while walking
// directories. Flat files are never filtered.
var DefaultExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// Options tunes directory traversal.
type Options struct {
	Extensions    map[string]bool // nil means DefaultExtensions
	IncludeHidden bool            // descend into and keep dot-entries
	NoRecurse     bool            // only list the top level of directory inputs
}

func (o Options) accepts(name string) bool {
	if !o.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	exts := o.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	return exts[strings.ToLower(path.Ext(name))]
}

func (o Options) descends(name string) bool {
	if o.NoRecurse {
		return false
	}
	return o.IncludeHidden || !strings.HasPrefix(name, ".")
}

// Result is the outcome of a collection.
type Result struct {
	Items []model.InputItem

	// Duplicates lists logical paths that were seen more than once. Only
	// the first occurrence is kept in Items; the last write does NOT win.
	Duplicates []string

	// Failures lists directories that could not be read. Each is
	// retryable; the rest of the input is still collected.
	Failures []model.Failure
}

type walkResult struct {
	items    []model.InputItem
	failures []model.Failure
}

// Collect walks inputs in arrival order and returns the deduplicated
// item list. Directory subtrees are enumerated concurrently, one goroutine
// per child directory, but the flattened order always follows input order
// and directory listing order. The returned error is non-nil only when ctx
// is cancelled.
func Collect(ctx context.Context, inputs []Entry, opts Options) (*Result, error) {
	slots := make([]walkResult, len(inputs))

	var wg sync.WaitGroup
	for i, in := range inputs {
		switch {
		case in.File != nil:
			p, err := flatPath(in.File)
			if err != nil {
				zlog.Logger.Warn().Err(err).Str("name", in.File.Name()).Msg("rejecting input path")
				slots[i].failures = []model.Failure{{Path: rawPath(in.File), Reason: err.Error(), Err: err}}
				continue
			}
			slots[i].items = []model.InputItem{{Source: in.File, Path: p}}
		case in.Dir != nil:
			wg.Add(1)
			go func() {
				defer wg.Done()
				slots[i] = walkDir(ctx, in.Dir, in.Dir.Name(), opts)
			}()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, model.NewError(model.ErrCancelled, "", err)
	}

	var all []model.InputItem
	res := &Result{}
	for _, s := range slots {
		all = append(all, s.items...)
		res.Failures = append(res.Failures, s.failures...)
	}

	res.Items, res.Duplicates = Dedup(all)

	if len(res.Duplicates) > 0 {
		zlog.Logger.Warn().
			Int("duplicates", len(res.Duplicates)).
			Msg("duplicate logical paths dropped, first occurrence kept")
	}

	return res, nil
}

// Dedup keeps the first item for each logical path, preserving order,
// and returns the paths of the dropped duplicates.
func Dedup(items []model.InputItem) ([]model.InputItem, []string) {
	seen := make(map[string]struct{}, len(items))
	kept := make([]model.InputItem, 0, len(items))
	var dropped []string

	for _, it := range items {
		if _, ok := seen[it.Path]; ok {
			dropped = append(dropped, it.Path)
			continue
		}
		seen[it.Path] = struct{}{}
		kept = append(kept, it)
	}

	return kept, dropped
}

func walkDir(ctx context.Context, dir Directory, prefix string, opts Options) walkResult {
	if ctx.Err() != nil {
		return walkResult{}
	}

	entries, err := dir.Entries(ctx)
	if err != nil {
		p := logicalPath(prefix)
		zlog.Logger.Warn().Err(err).Str("path", p).Msg("failed to read directory, skipping")
		e := model.NewError(model.ErrCollection, p, err)
		e.Retryable = true
		return walkResult{failures: []model.Failure{{Path: p, Reason: err.Error(), Err: e}}}
	}

	slots := make([]walkResult, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		switch {
		case e.File != nil:
			if !opts.accepts(e.File.Name()) {
				continue
			}
			slots[i].items = []model.InputItem{{
				Source: e.File,
				Path:   logicalPath(path.Join(prefix, e.File.Name())),
			}}
		case e.Dir != nil:
			if !opts.descends(e.Dir.Name()) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				slots[i] = walkDir(ctx, e.Dir, path.Join(prefix, e.Dir.Name()), opts)
			}()
		}
	}
	wg.Wait()

	var res walkResult
	for _, s := range slots {
		res.items = append(res.items, s.items...)
		res.failures = append(res.failures, s.failures...)
	}
	return res
}

var errEscapingPath = errors.New("path escapes the archive root")

// flatPath is the relative-path hint of f if present, else its bare name.
// Hints that climb out of the archive root with ".." are rejected.
func flatPath(f File) (string, error) {
	name := rawPath(f)
	p := logicalPath(name)
	switch {
	case p == "" || p == ".":
		return "", model.NewError(model.ErrCollection, name, errors.New("empty file name"))
	case p == ".." || strings.HasPrefix(p, "../"):
		return "", model.NewError(model.ErrCollection, name, errEscapingPath)
	}
	return p, nil
}

func rawPath(f File) string {
	if hint := f.RelativePath(); hint != "" {
		return hint
	}
	return f.Name()
}

// logicalPath converts p to a clean slash-separated path relative to the
// archive root. A leading ".." survives cleaning; flatPath rejects it.
func logicalPath(p string) string {
	p = strings.TrimLeft(filepath.ToSlash(p), "/")
	if p == "" {
		return ""
	}
	return strings.TrimLeft(path.Clean(p), "/")
}
