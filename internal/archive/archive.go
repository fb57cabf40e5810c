// Package archive packs watermarked images into a single zip archive.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/aliskhannn/watermarker/internal/model"
)

const (
	// DefaultRoot is the directory every entry is stored under.
	DefaultRoot = "watermarked"
	// DefaultLevel is a moderate deflate level, not the maximum.
	DefaultLevel = 6
	// Ext is the extension of generated archive names.
	Ext = "zip"
)

var (
	ErrFinalized   = errors.New("archive already finalized")
	ErrDiscarded   = errors.New("archive discarded")
	ErrOutsideRoot = errors.New("entry path outside archive root")
)

// Archive accumulates encoded results into an in-memory zip. Entries are
// written in the order Add is called. An Archive is not safe for
// concurrent use; callers serialize insertion.
type Archive struct {
	root    string
	buf     *bytes.Buffer
	zw      *zip.Writer
	names   []string
	modTime time.Time
	done    bool
	err     error
}

// Option configures an Archive.
type Option func(*options)

type options struct {
	root    string
	level   int
	modTime time.Time
}

// WithRoot sets the root prefix of every entry.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithLevel sets the deflate compression level (1-9).
func WithLevel(level int) Option {
	return func(o *options) { o.level = level }
}

// WithModTime sets the modification time recorded on every entry.
func WithModTime(t time.Time) Option {
	return func(o *options) { o.modTime = t }
}

// New creates an empty Archive.
func New(opts ...Option) *Archive {
	o := options{root: DefaultRoot, level: DefaultLevel, modTime: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.root = strings.Trim(path.Clean("/"+o.root), "/"); o.root == "." {
		o.root = ""
	}
	if o.level < flate.BestSpeed || o.level > flate.BestCompression {
		o.level = DefaultLevel
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	level := o.level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	return &Archive{root: o.root, buf: buf, zw: zw, modTime: o.modTime}
}

// Add stores res under <root>/<res.Path>.
func (a *Archive) Add(res model.EncodedResult) error {
	if err := a.check(); err != nil {
		return model.NewError(model.ErrArchive, res.Path, err)
	}

	name, err := a.entryName(res.Path)
	if err != nil {
		return model.NewError(model.ErrArchive, res.Path, err)
	}

	header := &zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	}
	header.Modified = a.modTime

	w, err := a.zw.CreateHeader(header)
	if err != nil {
		a.err = err
		return model.NewError(model.ErrArchive, res.Path, fmt.Errorf("failed to create zip entry: %w", err))
	}

	if _, err := w.Write(res.Data); err != nil {
		a.err = err
		return model.NewError(model.ErrArchive, res.Path, fmt.Errorf("failed to write zip entry: %w", err))
	}

	a.names = append(a.names, name)
	return nil
}

// entryName places p under the root. Paths that would land outside the
// root once cleaned are refused.
func (a *Archive) entryName(p string) (string, error) {
	name := path.Join(a.root, p)

	inside := strings.HasPrefix(name, a.root+"/")
	if a.root == "" {
		inside = name != "." && name != ".." && !strings.HasPrefix(name, "../") && !strings.HasPrefix(name, "/")
	}
	if !inside {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, p)
	}

	return name, nil
}

// Names returns the entry names added so far, in order.
func (a *Archive) Names() []string {
	return append([]string(nil), a.names...)
}

// Len returns the number of entries added so far.
func (a *Archive) Len() int { return len(a.names) }

// Finalize closes the archive and returns its bytes. It may be called
// only once.
func (a *Archive) Finalize() ([]byte, error) {
	if err := a.check(); err != nil {
		return nil, model.NewError(model.ErrArchive, "", err)
	}
	a.done = true

	if err := a.zw.Close(); err != nil {
		return nil, model.NewError(model.ErrArchive, "", fmt.Errorf("failed to close zip writer: %w", err))
	}

	return a.buf.Bytes(), nil
}

// Discard drops everything written so far. The archive cannot be used
// afterwards.
func (a *Archive) Discard() {
	if a.done {
		return
	}
	a.done = true
	a.err = ErrDiscarded
	a.buf = nil
	a.names = nil
}

func (a *Archive) check() error {
	switch {
	case a.err != nil:
		return a.err
	case a.done:
		return ErrFinalized
	}
	return nil
}

// Filename returns the download name of an archive created at t, e.g.
// "watermarked-20240131-154501.zip".
func Filename(t time.Time) string {
	return fmt.Sprintf("%s-%s.%s", DefaultRoot, t.Format("20060102-150405"), Ext)
}
