package worldfolder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var ErrReadOnly = errors.New("worldfolder: folder is opened read only")
var ErrChunkNotPresent = errors.New("worldfolder: chunk not present")
var ErrFileNotFound = errors.New("worldfolder: file not found")

type ChunkCoord struct {
	X int
	Z int
}

type regionCoord struct {
	dim  string
	x, z int
}

// Folder gives single-revision access to a world directory: plain files by
// slash-separated relative path, and chunks through the region files of each
// dimension. The folder is not safe for concurrent use.
type Folder struct {
	root     string
	readOnly bool
	regions  map[regionCoord]*RegionFile
}

func Open(root string, readOnly bool) (*Folder, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("worldfolder: %s is not a directory", root)
	}
	return &Folder{
		root:     root,
		readOnly: readOnly,
		regions:  make(map[regionCoord]*RegionFile),
	}, nil
}

func (f *Folder) Root() string   { return f.root }
func (f *Folder) ReadOnly() bool { return f.readOnly }

func (f *Folder) FilePath(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

func (f *Folder) ContainsFile(name string) (bool, error) {
	fi, err := os.Stat(f.FilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !fi.IsDir(), nil
}

func (f *Folder) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(f.FilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, err
}

func (f *Folder) WriteFile(name string, data []byte) error {
	if f.readOnly {
		return ErrReadOnly
	}
	p := f.FilePath(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (f *Folder) DeleteFile(name string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	err := os.Remove(f.FilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ListFolder lists the regular files directly inside dir as slash paths
// relative to the world root. A missing dir lists nothing.
func (f *Folder) ListFolder(dir string) ([]string, error) {
	entries, err := os.ReadDir(f.FilePath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, path.Join(dir, e.Name()))
	}
	return names, nil
}

// ListDimensions returns "" for the overworld followed by every top-level
// folder that holds a region directory.
func (f *Folder) ListDimensions() ([]string, error) {
	dims := []string{""}
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "region" {
			continue
		}
		fi, err := os.Stat(filepath.Join(f.root, e.Name(), "region"))
		if err == nil && fi.IsDir() {
			dims = append(dims, e.Name())
		}
	}
	sort.Strings(dims[1:])
	return dims, nil
}

func (f *Folder) regionDir(dim string) string {
	if dim == "" {
		return filepath.Join(f.root, "region")
	}
	return filepath.Join(f.root, filepath.FromSlash(dim), "region")
}

func (f *Folder) region(dim string, rx, rz int, create bool) (*RegionFile, error) {
	key := regionCoord{dim: dim, x: rx, z: rz}
	if r, ok := f.regions[key]; ok {
		return r, nil
	}

	p := filepath.Join(f.regionDir(dim), fmt.Sprintf("r.%d.%d.mca", rx, rz))
	if create {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
	}
	r, err := OpenRegionFile(p, f.readOnly, create)
	if err != nil {
		return nil, err
	}
	f.regions[key] = r
	return r, nil
}

func (f *Folder) ReadChunkBytes(cx, cz int, dim string) ([]byte, error) {
	r, err := f.region(dim, cx>>5, cz>>5, false)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrChunkNotPresent
	}
	if err != nil {
		return nil, err
	}
	data, err := r.ReadChunkBytes(cx&31, cz&31)
	if errors.Is(err, ErrNoChunk) {
		return nil, ErrChunkNotPresent
	}
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d in %s: %w", cx, cz, r.Name, err)
	}
	return data, nil
}

func (f *Folder) WriteChunkBytes(cx, cz int, dim string, data []byte) error {
	if f.readOnly {
		return ErrReadOnly
	}
	r, err := f.region(dim, cx>>5, cz>>5, true)
	if err != nil {
		return err
	}
	return r.WriteChunk(cx&31, cz&31, data)
}

func (f *Folder) DeleteChunk(cx, cz int, dim string) error {
	if f.readOnly {
		return ErrReadOnly
	}
	r, err := f.region(dim, cx>>5, cz>>5, false)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.DeleteChunk(cx&31, cz&31)
}

func (f *Folder) ContainsChunk(cx, cz int, dim string) (bool, error) {
	r, err := f.region(dim, cx>>5, cz>>5, false)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.ChunkExists(cx&31, cz&31), nil
}

// ChunkPositions scans every region file of dim and returns the chunks they
// hold, sorted by X then Z.
func (f *Folder) ChunkPositions(dim string) ([]ChunkCoord, error) {
	entries, err := os.ReadDir(f.regionDir(dim))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var positions []ChunkCoord
	for _, e := range entries {
		rx, rz, ok := parseRegionName(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		r, err := f.region(dim, rx, rz, false)
		if err != nil {
			return nil, err
		}
		for z := 0; z < 32; z++ {
			for x := 0; x < 32; x++ {
				if r.ChunkExists(x, z) {
					positions = append(positions, ChunkCoord{X: rx<<5 + x, Z: rz<<5 + z})
				}
			}
		}
	}
	SortCoords(positions)
	return positions, nil
}

func (f *Folder) ChunkCount(dim string) (int, error) {
	positions, err := f.ChunkPositions(dim)
	return len(positions), err
}

func (f *Folder) Close() error {
	var firstErr error
	for key, r := range f.regions {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.regions, key)
	}
	return firstErr
}

func parseRegionName(name string) (rx, rz int, ok bool) {
	if !strings.HasPrefix(name, "r.") || !strings.HasSuffix(name, ".mca") {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(name, "r.%d.%d.mca", &rx, &rz); err != nil {
		return 0, 0, false
	}
	return rx, rz, true
}

func SortCoords(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
}
