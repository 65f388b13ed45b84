package revision

import (
	"sort"

	"github.com/astei/anvilworld/worldfolder"
)

// Changes is the set of keys that differ between two positions of a history.
type Changes struct {
	Chunks map[string]map[worldfolder.ChunkCoord]struct{}
	Files  map[string]struct{}
}

func newChanges() *Changes {
	return &Changes{
		Chunks: make(map[string]map[worldfolder.ChunkCoord]struct{}),
		Files:  make(map[string]struct{}),
	}
}

func (c *Changes) addChunk(dim string, pos worldfolder.ChunkCoord) {
	set, ok := c.Chunks[dim]
	if !ok {
		set = make(map[worldfolder.ChunkCoord]struct{})
		c.Chunks[dim] = set
	}
	set[pos] = struct{}{}
}

func (c *Changes) Empty() bool {
	return len(c.Chunks) == 0 && len(c.Files) == 0
}

func (c *Changes) ChunkCount() int {
	n := 0
	for _, set := range c.Chunks {
		n += len(set)
	}
	return n
}

func (c *Changes) Dimensions() []string {
	dims := make([]string, 0, len(c.Chunks))
	for d := range c.Chunks {
		dims = append(dims, d)
	}
	sort.Strings(dims)
	return dims
}

func (c *Changes) ChunkPositions(dim string) []worldfolder.ChunkCoord {
	positions := make([]worldfolder.ChunkCoord, 0, len(c.Chunks[dim]))
	for pos := range c.Chunks[dim] {
		positions = append(positions, pos)
	}
	worldfolder.SortCoords(positions)
	return positions
}

func (c *Changes) FilePaths() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
