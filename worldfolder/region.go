package worldfolder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const regionMaxOffsets = 1024
const regionSectorSize = 4096
const regionMaxSectors = 255

var ErrNoChunk = errors.New("region: chunk not found")
var ErrInvalidChunkLength = errors.New("region: invalid chunk length")
var ErrInvalidCompression = errors.New("region: invalid compression format")
var ErrChunkTooLarge = errors.New("region: chunk exceeds 255 sectors")

type CompressionType byte

const (
	CompressionGzip CompressionType = 1
	CompressionZlib CompressionType = 2
	CompressionNone CompressionType = 3
)

// RegionFile reads and writes one Anvil region (.mca) file holding 32x32
// chunks. Coordinates passed to its methods are relative to the region.
type RegionFile struct {
	source     io.ReadWriteSeeker
	offsets    []int32
	timestamps []int32
	sectors    int32
	readOnly   bool
	// the source is empty and gets its header with the first write
	headerPending bool
	Name          string
}

// OpenRegionFile opens the region at path. A missing file is created with an
// empty header only when create is set.
func OpenRegionFile(path string, readOnly, create bool) (*RegionFile, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	} else if create {
		flag |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	region, err := newRegionFile(file, path, readOnly)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return region, nil
}

// NewRegionFile wraps source. The ownership of the source is transferred to
// the region. An empty source holds no chunks; nothing is written to it
// before the first WriteChunk.
func NewRegionFile(source io.ReadWriteSeeker, readOnly bool) (*RegionFile, error) {
	return newRegionFile(source, "", readOnly)
}

func newRegionFile(source io.ReadWriteSeeker, name string, readOnly bool) (*RegionFile, error) {
	region := &RegionFile{
		source:     source,
		offsets:    make([]int32, regionMaxOffsets),
		timestamps: make([]int32, regionMaxOffsets),
		readOnly:   readOnly,
		Name:       name,
	}

	size, err := source.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		region.headerPending = true
		region.sectors = 2
		return region, nil
	}
	region.sectors = int32((size + regionSectorSize - 1) / regionSectorSize)

	if err := region.readSectorTable(); err != nil {
		return nil, err
	}
	return region, nil
}

func (r *RegionFile) writeEmptyHeader() error {
	if _, err := r.source.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := r.source.Write(make([]byte, 2*regionSectorSize)); err != nil {
		return err
	}
	r.headerPending = false
	return nil
}

func (r *RegionFile) readSectorTable() (err error) {
	if _, err = r.source.Seek(0, io.SeekStart); err != nil {
		return err
	}

	rawSectorData := make([]byte, 2*regionSectorSize)
	if _, err = io.ReadFull(r.source, rawSectorData); err != nil {
		return fmt.Errorf("%s: read header: %w", r.Name, err)
	}

	rawSectorIn := bytes.NewReader(rawSectorData)
	if err = binary.Read(rawSectorIn, binary.BigEndian, r.offsets); err != nil {
		return err
	}
	return binary.Read(rawSectorIn, binary.BigEndian, r.timestamps)
}

// ReadChunk returns a decompressing reader over the chunk's NBT payload.
func (r *RegionFile) ReadChunk(x, z int) (chunk io.Reader, err error) {
	offset := r.offsets[x+z*32]

	sectorNumber := offset >> 8
	occupiedSectors := offset & 0xff
	if sectorNumber == 0 {
		err = ErrNoChunk
		return
	}

	if _, err = r.source.Seek(int64(sectorNumber)*regionSectorSize, io.SeekStart); err != nil {
		return
	}

	sectorData := make([]byte, occupiedSectors*regionSectorSize)
	if _, err = io.ReadFull(r.source, sectorData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChunkLength, err)
	}

	sectorReader := bytes.NewReader(sectorData)
	var sectorHeader struct {
		Length      int32
		Compression CompressionType
	}
	if err = binary.Read(sectorReader, binary.BigEndian, &sectorHeader); err != nil {
		return
	}

	if sectorHeader.Length < 1 || sectorHeader.Length > int32(len(sectorData)-4) {
		return nil, ErrInvalidChunkLength
	}

	chunkStream := io.LimitReader(sectorReader, int64(sectorHeader.Length-1))
	switch sectorHeader.Compression {
	case CompressionGzip:
		return gzip.NewReader(chunkStream)
	case CompressionZlib:
		return zlib.NewReader(chunkStream)
	case CompressionNone:
		return chunkStream, nil
	default:
		return nil, ErrInvalidCompression
	}
}

// ReadChunkBytes reads and fully decompresses a chunk. Stream errors are
// reported as ErrInvalidCompression.
func (r *RegionFile) ReadChunkBytes(x, z int) ([]byte, error) {
	chunk, err := r.ReadChunk(x, z)
	if err != nil {
		if errors.Is(err, ErrNoChunk) || errors.Is(err, ErrInvalidChunkLength) || errors.Is(err, ErrInvalidCompression) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompression, err)
	}
	if closer, ok := chunk.(io.Closer); ok {
		defer closer.Close()
	}
	data, err := io.ReadAll(chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCompression, err)
	}
	return data, nil
}

// WriteChunk zlib-compresses data and stores it at (x, z). The chunk keeps its
// sectors when the new payload fits, otherwise it moves to the end of the file.
func (r *RegionFile) WriteChunk(x, z int, data []byte) error {
	if r.readOnly {
		return ErrReadOnly
	}
	if r.headerPending {
		if err := r.writeEmptyHeader(); err != nil {
			return err
		}
	}

	var payload bytes.Buffer
	var header [5]byte
	payload.Write(header[:])
	zw := zlib.NewWriter(&payload)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	raw := payload.Bytes()
	binary.BigEndian.PutUint32(raw[0:4], uint32(len(raw)-4))
	raw[4] = byte(CompressionZlib)

	needed := int32((len(raw) + regionSectorSize - 1) / regionSectorSize)
	if needed > regionMaxSectors {
		return ErrChunkTooLarge
	}
	padded := make([]byte, int(needed)*regionSectorSize)
	copy(padded, raw)

	idx := x + z*32
	sectorNumber := r.offsets[idx] >> 8
	occupied := r.offsets[idx] & 0xff
	if sectorNumber == 0 || needed > occupied {
		sectorNumber = r.sectors
		if sectorNumber < 2 {
			sectorNumber = 2
		}
		r.sectors = sectorNumber + needed
	}

	if _, err := r.source.Seek(int64(sectorNumber)*regionSectorSize, io.SeekStart); err != nil {
		return err
	}
	if _, err := r.source.Write(padded); err != nil {
		return err
	}

	r.offsets[idx] = sectorNumber<<8 | needed
	r.timestamps[idx] = int32(time.Now().Unix())
	return r.writeTableEntry(idx)
}

// DeleteChunk clears the chunk's table entry. Its sectors are left in place.
func (r *RegionFile) DeleteChunk(x, z int) error {
	if r.readOnly {
		return ErrReadOnly
	}
	idx := x + z*32
	if r.offsets[idx] == 0 {
		return nil
	}
	r.offsets[idx] = 0
	r.timestamps[idx] = 0
	return r.writeTableEntry(idx)
}

func (r *RegionFile) writeTableEntry(idx int) error {
	var entry [4]byte
	binary.BigEndian.PutUint32(entry[:], uint32(r.offsets[idx]))
	if _, err := r.source.Seek(int64(idx*4), io.SeekStart); err != nil {
		return err
	}
	if _, err := r.source.Write(entry[:]); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(entry[:], uint32(r.timestamps[idx]))
	if _, err := r.source.Seek(int64(regionSectorSize+idx*4), io.SeekStart); err != nil {
		return err
	}
	_, err := r.source.Write(entry[:])
	return err
}

func (r *RegionFile) ChunkExists(x, z int) bool {
	return r.offsets[x+z*32] != 0
}

// ChunkCount returns the number of chunks present in the region.
func (r *RegionFile) ChunkCount() int {
	n := 0
	for _, o := range r.offsets {
		if o != 0 {
			n++
		}
	}
	return n
}

func (r *RegionFile) Close() error {
	if closer, ok := r.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
