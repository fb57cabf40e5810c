package collect

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/aliskhannn/watermarker/internal/model"
)

func paths(items []model.InputItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	return out
}

func photos() fstest.MapFS {
	return fstest.MapFS{
		"b/c.jpg":             {Data: []byte("c")},
		"b/a.png":             {Data: []byte("a")},
		"b/notes.txt":         {Data: []byte("skip me")},
		"b/.hidden.png":       {Data: []byte("hidden")},
		"b/.cache/x.png":      {Data: []byte("hidden dir")},
		"b/sub/d.WEBP":        {Data: []byte("d")},
		"b/sub/deeper/e.tiff": {Data: []byte("e")},
		"b/z.gif":             {Data: []byte("z")},
	}
}

func TestCollect_Directory(t *testing.T) {
	dir := FSDir{FS: photos(), Dir: "b"}

	res, err := Collect(context.Background(), []Entry{DirEntry(dir)}, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"b/a.png", "b/c.jpg", "b/sub/d.WEBP", "b/sub/deeper/e.tiff", "b/z.gif"}
	if diff := cmp.Diff(want, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if len(res.Failures) != 0 || len(res.Duplicates) != 0 {
		t.Errorf("unexpected failures %v / duplicates %v", res.Failures, res.Duplicates)
	}
}

func TestCollect_IncludeHiddenAndExtensions(t *testing.T) {
	dir := FSDir{FS: photos(), Dir: "b"}
	opts := Options{IncludeHidden: true, Extensions: map[string]bool{".png": true}}

	res, err := Collect(context.Background(), []Entry{DirEntry(dir)}, opts)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"b/.cache/x.png", "b/.hidden.png", "b/a.png"}
	if diff := cmp.Diff(want, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_RootDirectoryHasNoPrefix(t *testing.T) {
	dir := FSDir{FS: fstest.MapFS{"a.png": {}, "s/b.png": {}}, Dir: "."}

	res, err := Collect(context.Background(), []Entry{DirEntry(dir)}, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if diff := cmp.Diff([]string{"a.png", "s/b.png"}, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_FlatFilesAndDedup(t *testing.T) {
	fsys := photos()
	inputs := []Entry{
		FileEntry(BytesFile{Filename: "a.png", Data: []byte("first")}),
		FileEntry(BytesFile{Filename: "c.jpg", Hint: "b/c.jpg", Data: []byte("hinted")}),
		FileEntry(BytesFile{Filename: "readme.txt", Data: []byte("flat files are not filtered")}),
		FileEntry(BytesFile{Filename: "a.png", Data: []byte("second")}),
		DirEntry(FSDir{FS: fsys, Dir: "b"}),
	}

	res, err := Collect(context.Background(), inputs, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"a.png", "b/c.jpg", "readme.txt", "b/a.png", "b/sub/d.WEBP", "b/sub/deeper/e.tiff", "b/z.gif"}
	if diff := cmp.Diff(want, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.png", "b/c.jpg"}, res.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}

	// The first occurrence wins.
	for _, it := range res.Items {
		if it.Path != "a.png" && it.Path != "b/c.jpg" {
			continue
		}
		rc, err := it.Source.Open(context.Background())
		if err != nil {
			t.Fatalf("open %s: %v", it.Path, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if s := string(data); s != "first" && s != "hinted" {
			t.Errorf("%s kept %q, want the first occurrence", it.Path, s)
		}
	}
}

func TestDedup(t *testing.T) {
	items := []model.InputItem{{Path: "x"}, {Path: "y"}, {Path: "x"}, {Path: "z"}, {Path: "y"}}

	kept, dropped := Dedup(items)
	if diff := cmp.Diff([]string{"x", "y", "z"}, paths(kept)); diff != "" {
		t.Errorf("kept mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y"}, dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
}

type brokenDir struct{ name string }

func (d brokenDir) Name() string { return d.name }

func (d brokenDir) Entries(context.Context) ([]Entry, error) {
	return nil, errors.New("permission denied")
}

type staticDir struct {
	name    string
	entries []Entry
}

func (d staticDir) Name() string { return d.name }

func (d staticDir) Entries(context.Context) ([]Entry, error) { return d.entries, nil }

func TestCollect_UnreadableDirectoryIsSkipped(t *testing.T) {
	root := staticDir{name: "root", entries: []Entry{
		FileEntry(BytesFile{Filename: "a.png"}),
		DirEntry(brokenDir{name: "locked"}),
		FileEntry(BytesFile{Filename: "b.png"}),
	}}

	res, err := Collect(context.Background(), []Entry{DirEntry(root)}, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if diff := cmp.Diff([]string{"root/a.png", "root/b.png"}, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if len(res.Failures) != 1 || res.Failures[0].Path != "root/locked" {
		t.Fatalf("failures = %+v, want one for root/locked", res.Failures)
	}

	var pe *model.Error
	if !errors.As(res.Failures[0].Err, &pe) || !pe.Retryable || !errors.Is(pe, model.ErrCollection) {
		t.Errorf("failure error = %v, want retryable collection error", res.Failures[0].Err)
	}
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, []Entry{DirEntry(FSDir{FS: photos(), Dir: "b"})}, Options{})
	if !errors.Is(err, model.ErrCancelled) {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestWalk_MatchesCollect(t *testing.T) {
	dir := FSDir{FS: photos(), Dir: "b"}
	ctx := context.Background()

	res, err := Collect(ctx, []Entry{DirEntry(dir)}, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var walked []string
	for item, err := range Walk(ctx, dir, Options{}) {
		if err != nil {
			t.Fatalf("Walk: %v", err)
		}
		walked = append(walked, item.Path)
	}

	if diff := cmp.Diff(paths(res.Items), walked); diff != "" {
		t.Errorf("walk order differs from Collect (-collect +walk):\n%s", diff)
	}
}

func TestWalk_ErrorsAndEarlyStop(t *testing.T) {
	root := staticDir{name: "r", entries: []Entry{
		DirEntry(brokenDir{name: "bad"}),
		FileEntry(BytesFile{Filename: "a.png"}),
		FileEntry(BytesFile{Filename: "b.png"}),
	}}

	var got []string
	var errs int
	for item, err := range Walk(context.Background(), root, Options{}) {
		if err != nil {
			errs++
			continue
		}
		got = append(got, item.Path)
		break
	}

	if errs != 1 {
		t.Errorf("errors = %d, want 1", errs)
	}
	if diff := cmp.Diff([]string{"r/a.png"}, got); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_HintsStayInsideRoot(t *testing.T) {
	inputs := []Entry{
		FileEntry(BytesFile{Filename: "x.png", Hint: "../../etc/x.png"}),
		FileEntry(BytesFile{Filename: "y.png", Hint: "a/../../y.png"}),
		FileEntry(BytesFile{Filename: "z.png", Hint: "a/./b/../z.png"}),
		FileEntry(BytesFile{Filename: "w.png", Hint: `sub\w.png`}),
		FileEntry(BytesFile{Filename: "ok.png"}),
	}

	res, err := Collect(context.Background(), inputs, Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"a/z.png", filepath.ToSlash(`sub\w.png`), "ok.png"}
	if diff := cmp.Diff(want, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	var rejected []string
	for _, f := range res.Failures {
		rejected = append(rejected, f.Path)
		if !errors.Is(f.Err, model.ErrCollection) || !errors.Is(f.Err, errEscapingPath) {
			t.Errorf("%s: err = %v, want escaping-path collection error", f.Path, f.Err)
		}
	}
	if diff := cmp.Diff([]string{"../../etc/x.png", "a/../../y.png"}, rejected); diff != "" {
		t.Errorf("rejected mismatch (-want +got):\n%s", diff)
	}
}

func TestCollect_NoRecurse(t *testing.T) {
	dir := FSDir{FS: photos(), Dir: "b"}
	opts := Options{NoRecurse: true}

	res, err := Collect(context.Background(), []Entry{DirEntry(dir)}, opts)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"b/a.png", "b/c.jpg", "b/z.gif"}
	if diff := cmp.Diff(want, paths(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	var walked []string
	for item, err := range Walk(context.Background(), dir, opts) {
		if err != nil {
			t.Fatalf("Walk: %v", err)
		}
		walked = append(walked, item.Path)
	}
	if diff := cmp.Diff(want, walked); diff != "" {
		t.Errorf("walk mismatch (-want +got):\n%s", diff)
	}
}
