package worldfolder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegionWriteReadDelete(t *testing.T) {
	p := filepath.Join(t.TempDir(), "r.0.0.mca")
	r, err := OpenRegionFile(p, false, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if r.ChunkExists(3, 4) {
		t.Fatalf("fresh region should be empty")
	}
	want := bytes.Repeat([]byte("chunk"), 100)
	if err := r.WriteChunk(3, 4, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := r.ReadChunkBytes(3, 4)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload mismatch: got %d bytes want %d", len(got), len(want))
	}

	if err := r.DeleteChunk(3, 4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.ReadChunkBytes(3, 4); !errors.Is(err, ErrNoChunk) {
		t.Fatalf("read after delete: err=%v want ErrNoChunk", err)
	}
}

func TestRegionGrowsAndSurvivesReopen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "r.0.0.mca")
	r, err := OpenRegionFile(p, false, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	small := []byte("small")
	if err := r.WriteChunk(0, 0, small); err != nil {
		t.Fatalf("write small: %v", err)
	}
	if err := r.WriteChunk(1, 0, []byte("neighbour")); err != nil {
		t.Fatalf("write neighbour: %v", err)
	}

	// Incompressible payload larger than one sector forces a move.
	large := make([]byte, 3*regionSectorSize)
	seed := uint32(1)
	for i := range large {
		seed = seed*1664525 + 1013904223
		large[i] = byte(seed >> 24)
	}
	if err := r.WriteChunk(0, 0, large); err != nil {
		t.Fatalf("write large: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err = OpenRegionFile(p, true, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()
	if got, err := r.ReadChunkBytes(0, 0); err != nil || !bytes.Equal(got, large) {
		t.Fatalf("large chunk mismatch: err=%v len=%d", err, len(got))
	}
	if got, err := r.ReadChunkBytes(1, 0); err != nil || string(got) != "neighbour" {
		t.Fatalf("neighbour chunk mismatch: err=%v got=%q", err, got)
	}
	if n := r.ChunkCount(); n != 2 {
		t.Fatalf("ChunkCount=%d want 2", n)
	}
	if err := r.WriteChunk(2, 2, small); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("write on read-only region: err=%v want ErrReadOnly", err)
	}
}

func TestFolderChunksAcrossRegionsAndDimensions(t *testing.T) {
	f, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	writes := []struct {
		cx, cz int
		dim    string
	}{
		{0, 0, ""},
		{-1, 5, ""},
		{40, -33, ""},
		{2, 2, "DIM-1"},
	}
	for _, w := range writes {
		if err := f.WriteChunkBytes(w.cx, w.cz, w.dim, []byte{byte(w.cx), byte(w.cz)}); err != nil {
			t.Fatalf("write %d,%d %q: %v", w.cx, w.cz, w.dim, err)
		}
	}

	got, err := f.ChunkPositions("")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	want := []ChunkCoord{{X: -1, Z: 5}, {X: 0, Z: 0}, {X: 40, Z: -33}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("overworld positions mismatch (-want +got):\n%s", diff)
	}

	dims, err := f.ListDimensions()
	if err != nil {
		t.Fatalf("dims: %v", err)
	}
	if diff := cmp.Diff([]string{"", "DIM-1"}, dims); diff != "" {
		t.Fatalf("dimensions mismatch (-want +got):\n%s", diff)
	}

	data, err := f.ReadChunkBytes(40, -33, "")
	if err != nil || !bytes.Equal(data, []byte{40, byte(-33 & 0xff)}) {
		t.Fatalf("read 40,-33: err=%v data=%v", err, data)
	}
	if _, err := f.ReadChunkBytes(7, 7, "DIM1"); !errors.Is(err, ErrChunkNotPresent) {
		t.Fatalf("missing dimension: err=%v want ErrChunkNotPresent", err)
	}
	if ok, _ := f.ContainsChunk(2, 2, "DIM-1"); !ok {
		t.Fatalf("expected chunk in DIM-1")
	}
	if err := f.DeleteChunk(2, 2, "DIM-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := f.ChunkCount("DIM-1"); n != 0 {
		t.Fatalf("DIM-1 count=%d want 0", n)
	}
}

func TestFolderFiles(t *testing.T) {
	root := t.TempDir()
	f, err := Open(root, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := f.WriteFile("playerdata/a.dat", []byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, _ := f.ContainsFile("playerdata/a.dat"); !ok {
		t.Fatalf("expected file to exist")
	}
	names, err := f.ListFolder("playerdata")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{"playerdata/a.dat"}, names); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.ReadFile("missing.dat"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("missing file: err=%v want ErrFileNotFound", err)
	}

	ro, err := Open(root, true)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	if err := ro.WriteFile("level.dat", nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("write read-only: err=%v want ErrReadOnly", err)
	}
	if _, err := os.Stat(filepath.Join(root, "level.dat")); err == nil {
		t.Fatalf("read-only folder created a file")
	}
}

func TestEmptyRegionFileHoldsNoChunks(t *testing.T) {
	for _, readOnly := range []bool{true, false} {
		root := t.TempDir()
		p := filepath.Join(root, "region", "r.0.0.mca")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("write region: %v", err)
		}

		f, err := Open(root, readOnly)
		if err != nil {
			t.Fatalf("open readOnly=%v: %v", readOnly, err)
		}
		if n, err := f.ChunkCount(""); err != nil || n != 0 {
			t.Fatalf("readOnly=%v: count=%d err=%v", readOnly, n, err)
		}
		if ok, err := f.ContainsChunk(1, 1, ""); err != nil || ok {
			t.Fatalf("readOnly=%v: contains=%v err=%v", readOnly, ok, err)
		}
		if _, err := f.ReadChunkBytes(1, 1, ""); !errors.Is(err, ErrChunkNotPresent) {
			t.Fatalf("readOnly=%v: read err=%v want ErrChunkNotPresent", readOnly, err)
		}
		if info, err := os.Stat(p); err != nil || info.Size() != 0 {
			t.Fatalf("readOnly=%v: region file touched by reads", readOnly)
		}

		if !readOnly {
			if err := f.WriteChunkBytes(1, 1, "", []byte("payload")); err != nil {
				t.Fatalf("write: %v", err)
			}
			if got, err := f.ReadChunkBytes(1, 1, ""); err != nil || string(got) != "payload" {
				t.Fatalf("read back: err=%v got=%q", err, got)
			}
			if info, _ := os.Stat(p); info.Size() < 3*regionSectorSize {
				t.Fatalf("region size %d after first write", info.Size())
			}
		}
		f.Close()
	}
}

func TestShortRegionHeaderNamesFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "r.0.0.mca")
	if err := os.WriteFile(p, make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write region: %v", err)
	}
	_, err := OpenRegionFile(p, true, false)
	if err == nil || !strings.Contains(err.Error(), p) {
		t.Fatalf("err=%v should name %s", err, p)
	}
}
