package collect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aliskhannn/watermarker/internal/model"
)

// File is a flat input: a byte source with a name and an optional
// relative-path hint supplied by whoever selected it.
type File interface {
	model.Source
	Name() string
	RelativePath() string
}

// Directory is an input whose children are enumerated on demand.
type Directory interface {
	Name() string
	Entries(ctx context.Context) ([]Entry, error)
}

// Entry is one child of a Directory, or one top-level input.
// Exactly one of File and Dir is set.
type Entry struct {
	File File
	Dir  Directory
}

// FileEntry wraps f as an Entry.
func FileEntry(f File) Entry { return Entry{File: f} }

// DirEntry wraps d as an Entry.
func DirEntry(d Directory) Entry { return Entry{Dir: d} }

// FSFile is a file inside an fs.FS.
type FSFile struct {
	FS   fs.FS
	Path string // slash-separated path inside FS
	Hint string // optional relative-path hint
}

func (f FSFile) Name() string         { return path.Base(f.Path) }
func (f FSFile) RelativePath() string { return f.Hint }

func (f FSFile) Open(_ context.Context) (io.ReadCloser, error) {
	return f.FS.Open(f.Path)
}

// FSDir is a directory inside an fs.FS.
type FSDir struct {
	FS  fs.FS
	Dir string // slash-separated path inside FS
}

func (d FSDir) Name() string {
	if d.Dir == "." {
		return ""
	}
	return path.Base(d.Dir)
}

// Entries lists the children of d. Symlinks to directories are skipped
// so that traversal always terminates.
func (d FSDir) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := fs.ReadDir(d.FS, d.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		p := path.Join(d.Dir, de.Name())

		switch {
		case de.IsDir():
			entries = append(entries, DirEntry(FSDir{FS: d.FS, Dir: p}))
		case de.Type()&fs.ModeSymlink != 0:
			info, err := fs.Stat(d.FS, p)
			if err != nil || info.IsDir() {
				continue
			}
			entries = append(entries, FileEntry(FSFile{FS: d.FS, Path: p}))
		case de.Type().IsRegular():
			entries = append(entries, FileEntry(FSFile{FS: d.FS, Path: p}))
		}
	}

	return entries, nil
}

// LocalFile returns a handle for a file on disk. The logical path of a
// flat file is its bare name unless hint is set.
func LocalFile(name, hint string) (FSFile, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return FSFile{}, fmt.Errorf("failed to resolve path: %w", err)
	}
	return FSFile{
		FS:   os.DirFS(filepath.Dir(abs)),
		Path: filepath.Base(abs),
		Hint: hint,
	}, nil
}

// LocalDir returns a handle for a directory on disk. Logical paths of
// its files start with the directory's own name.
func LocalDir(name string) (FSDir, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return FSDir{}, fmt.Errorf("failed to resolve path: %w", err)
	}
	parent, base := filepath.Dir(abs), filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		return FSDir{FS: os.DirFS(abs), Dir: "."}, nil
	}
	return FSDir{FS: os.DirFS(parent), Dir: base}, nil
}

// BytesFile is an in-memory file.
type BytesFile struct {
	Filename string
	Hint     string
	Data     []byte
}

func (b BytesFile) Name() string         { return b.Filename }
func (b BytesFile) RelativePath() string { return b.Hint }

func (b BytesFile) Open(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
