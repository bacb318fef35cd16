package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateIsAtomic(t *testing.T) {
	fs := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.ply")

	w, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, "ply\n"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if fs.Exists(path) {
		t.Fatal("target visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "ply\n" {
		t.Errorf("expected %q, got %q", "ply\n", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestOSFileSystem_CreateMissingDir(t *testing.T) {
	fs := OSFileSystem{}
	if _, err := fs.Create(filepath.Join(t.TempDir(), "missing", "a.ply")); err == nil {
		t.Error("expected error creating in a missing directory")
	}
}

func TestOSFileSystem_MkdirAllAndStat(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	info, err := fs.Stat(dir)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

func TestMemoryFileSystem_CreateAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	w, err := mfs.Create("/out/base.ply")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if mfs.Exists("/out/base.ply") {
		t.Error("file visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := mfs.ReadFile("/out/base.ply")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected 'hello', got %q", data)
	}

	f, err := mfs.Open("/out/base.ply")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected 'hello', got %q", got)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 || info.Name() != "base.ply" {
		t.Errorf("unexpected file info: %s %d", info.Name(), info.Size())
	}
}

func TestMemoryFileSystem_CreateNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if _, err := mfs.Create("/missing/a.ply"); err == nil {
		t.Error("expected error creating in a missing directory")
	}
	if _, err := mfs.Create("top.ply"); err != nil {
		t.Errorf("relative top-level create failed: %v", err)
	}
}

func TestMemoryFileSystem_NotExist(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/nope"); !os.IsNotExist(err) {
		t.Errorf("Open: expected not-exist error, got %v", err)
	}
	if _, err := mfs.ReadFile("/nope"); !os.IsNotExist(err) {
		t.Errorf("ReadFile: expected not-exist error, got %v", err)
	}
	if _, err := mfs.Stat("/nope"); !os.IsNotExist(err) {
		t.Errorf("Stat: expected not-exist error, got %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllParents(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected %s to exist", dir)
		}
		info, err := mfs.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected %s to be a directory, err=%v", dir, err)
		}
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	data := []byte("original")
	mfs.WriteFile("/f", data)
	data[0] = 'X'

	got, _ := mfs.ReadFile("/f")
	if string(got) != "original" {
		t.Errorf("stored data aliased caller slice: %q", got)
	}
	got[0] = 'Y'
	again, _ := mfs.ReadFile("/f")
	if string(again) != "original" {
		t.Errorf("returned data aliased stored slice: %q", again)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/out/lod_100.ply", nil)
	mfs.WriteFile("/out/base.ply", nil)
	mfs.WriteFile("/other/x.ply", nil)
	mfs.WriteFile("/outside.ply", nil)

	got := mfs.Files("/out/")
	want := []string{"/out/base.ply", "/out/lod_100.ply"}
	if len(got) != len(want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDiscard(t *testing.T) {
	t.Run("os", func(t *testing.T) {
		fs := OSFileSystem{}
		dir := t.TempDir()
		path := filepath.Join(dir, "partial.ply")
		w, err := fs.Create(path)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		io.WriteString(w, "half")
		Discard(w)

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty directory after Discard, found %d entries", len(entries))
		}
		if err := w.Close(); err != nil {
			t.Errorf("Close after Discard returned %v", err)
		}
		if fs.Exists(path) {
			t.Error("Close after Discard published the file")
		}
	})

	t.Run("memory", func(t *testing.T) {
		mfs := NewMemoryFileSystem()
		w, err := mfs.Create("partial.ply")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		w.Write([]byte("half"))
		Discard(w)
		w.Close()
		if mfs.Exists("partial.ply") {
			t.Error("discarded file was published")
		}
	})
}
