package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOSFileSystem_WriteFileReplaces(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "model.agc")

	if err := fsys.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.WriteFile(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("got %q, want %q", data, "second")
	}
	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no temporary files left behind, got %d entries", len(entries))
	}
}

func TestOSFileSystem_WriteFileMissingDir(t *testing.T) {
	fsys := OSFileSystem{}
	err := fsys.WriteFile(filepath.Join(t.TempDir(), "missing", "x.vox"), []byte("x"), 0o644)
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestOSFileSystem_ExistsAndGlob(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()
	for _, name := range []string{"b.vox", "a.vox", "c.asc"} {
		if err := fsys.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if !fsys.Exists(filepath.Join(dir, "a.vox")) {
		t.Error("expected a.vox to exist")
	}
	if fsys.Exists(filepath.Join(dir, "nope.vox")) {
		t.Error("expected nope.vox to not exist")
	}

	got, err := fsys.Glob(filepath.Join(dir, "*.vox"))
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.vox"), filepath.Join(dir, "b.vox")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	payload := []byte("hello, grid")
	if err := mfs.WriteFile("/out/../test.vox", payload, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	payload[0] = 'X'

	data, err := mfs.ReadFile("/test.vox")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, grid" {
		t.Errorf("got %q, want the data as written", data)
	}

	data[0] = 'Y'
	again, _ := mfs.ReadFile("/test.vox")
	if string(again) != "hello, grid" {
		t.Error("ReadFile should return a copy")
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_, err := mfs.ReadFile("/missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
	_, err = mfs.Stat("/missing")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("/a/b/model.agc", []byte("12345"), 0o640); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/a/b/model.agc")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "model.agc" || info.Size() != 5 || info.IsDir() || info.Mode() != 0o640 {
		t.Errorf("unexpected file info: name=%s size=%d dir=%v mode=%v", info.Name(), info.Size(), info.IsDir(), info.Mode())
	}
	if !info.ModTime().IsZero() || info.Sys() != nil {
		t.Error("expected zero mod time and nil Sys")
	}

	dirInfo, err := mfs.Stat("/a")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !dirInfo.IsDir() {
		t.Error("expected /a to be a directory")
	}
}

func TestMemoryFileSystem_MkdirAllConflicts(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/data", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.MkdirAll("/data/out", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("MkdirAll over a file: got %v, want fs.ErrExist", err)
	}

	if err := mfs.MkdirAll("/dir", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("/dir", []byte("x"), 0o644); !errors.Is(err, fs.ErrExist) {
		t.Errorf("WriteFile over a dir: got %v, want fs.ErrExist", err)
	}
	if !mfs.Exists("/dir") || !mfs.Exists("/data") || mfs.Exists("/other") {
		t.Error("Exists mismatch")
	}
}

func TestMemoryFileSystem_Glob(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/in/z.vox", "/in/a.vox", "/in/p.asc", "/in/sub/q.vox"} {
		if err := mfs.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := mfs.Glob("/in/*.vox")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if diff := cmp.Diff([]string{"/in/a.vox", "/in/z.vox"}, got); diff != "" {
		t.Errorf("Glob mismatch (-want +got):\n%s", diff)
	}

	if _, err := mfs.Glob("/in/[.vox"); !errors.Is(err, filepath.ErrBadPattern) {
		t.Errorf("expected ErrBadPattern, got %v", err)
	}
}
