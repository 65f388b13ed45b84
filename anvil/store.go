package anvil

import (
	"github.com/astei/anvilworld/revision"
	"github.com/astei/anvilworld/worldfolder"
)

// Store is the chunk and file contract shared by the flat folder and by a
// revision of the history.
type Store interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	DeleteFile(name string) error
	ContainsFile(name string) (bool, error)
	ListFolder(dir string) ([]string, error)

	ReadChunkBytes(cx, cz int, dim string) ([]byte, error)
	WriteChunkBytes(cx, cz int, dim string, data []byte) error
	DeleteChunk(cx, cz int, dim string) error
	ContainsChunk(cx, cz int, dim string) (bool, error)
	ChunkPositions(dim string) ([]worldfolder.ChunkCoord, error)
	ChunkCount(dim string) (int, error)
	ListDimensions() ([]string, error)
}

var (
	_ Store = (*worldfolder.Folder)(nil)
	_ Store = (*revision.Revision)(nil)
)
