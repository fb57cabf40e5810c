package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aliskhannn/watermarker/internal/batch"
	"github.com/aliskhannn/watermarker/internal/collect"
)

func TestLocalInputs(t *testing.T) {
	root := t.TempDir()
	photos := filepath.Join(root, "photos")
	if err := os.MkdirAll(filepath.Join(photos, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"photos/a.png", "photos/sub/b.jpg", "photos/readme.md", "single.gif"} {
		if err := os.WriteFile(filepath.Join(root, p), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	inputs, err := localInputs([]string{filepath.Join(root, "single.gif"), photos})
	if err != nil {
		t.Fatalf("localInputs: %v", err)
	}

	res, err := collect.Collect(context.Background(), inputs, collect.Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var got []string
	for _, it := range res.Items {
		got = append(got, it.Path)
	}
	want := []string{"single.gif", "photos/a.png", "photos/sub/b.jpg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	if _, err := localInputs([]string{filepath.Join(root, "missing.png")}); err == nil {
		t.Error("localInputs: want error for a missing path")
	}
}

func TestWriteArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	result := &batch.Result{Filename: "watermarked-20240131-154501.zip", Archive: []byte("PK")}

	dst, err := writeArchive(dir, result)
	if err != nil {
		t.Fatalf("writeArchive: %v", err)
	}
	if dst != filepath.Join(dir, result.Filename) {
		t.Errorf("dst = %q", dst)
	}

	data, err := os.ReadFile(dst)
	if err != nil || !bytes.Equal(data, result.Archive) {
		t.Errorf("archive on disk = %q, %v", data, err)
	}
}
