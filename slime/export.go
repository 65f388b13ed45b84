// Package slime writes chunks in the Slime world format (version 3).
package slime

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/willf/bitset"

	"github.com/astei/anvilworld/anvil"
	"github.com/astei/anvilworld/nbt"
	"github.com/astei/anvilworld/worldfolder"
)

const slimeHeader = 0xB10B
const slimeLatestVersion = 3

// Slime stores one bit per section in a 16-bit mask.
const maxSections = 16

var ErrNoChunks = errors.New("slime: no chunks to export")
var ErrDuplicateChunk = errors.New("slime: chunk given twice")

type Options struct {
	// Level is the zstd level of every compressed block. Zero means
	// zstd.SpeedDefault.
	Level  zstd.EncoderLevel
	Logger *logrus.Entry
}

// Export writes chunks as one Slime world. Sections the chunk record would
// elide are left out here too. Block IDs are stored in their low eight
// bits.
func Export(writer io.Writer, chunks []*anvil.ChunkData, opts Options) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}
	if opts.Level == 0 {
		opts.Level = zstd.SpeedDefault
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	w := &slimeWriter{writer: writer, opts: opts, chunks: make(map[worldfolder.ChunkCoord]*anvil.ChunkData, len(chunks))}
	for _, c := range chunks {
		coord := worldfolder.ChunkCoord{X: c.CX, Z: c.CZ}
		if _, dup := w.chunks[coord]; dup {
			return fmt.Errorf("%w: %d,%d", ErrDuplicateChunk, c.CX, c.CZ)
		}
		w.chunks[coord] = c
	}
	return w.writeWorld()
}

type slimeWriter struct {
	writer io.Writer
	opts   Options
	chunks map[worldfolder.ChunkCoord]*anvil.ChunkData

	min          worldfolder.ChunkCoord
	width, depth int
}

func (w *slimeWriter) writeWorld() (err error) {
	w.determineChunkBounds()

	if err = w.writeHeader(); err != nil {
		return
	}
	if err = w.writeChunks(); err != nil {
		return
	}
	if err = w.writeTileEntities(); err != nil {
		return
	}
	if err = w.writeEntities(); err != nil {
		return
	}
	return w.writeExtra()
}

func (w *slimeWriter) determineChunkBounds() {
	first := true
	var maxX, maxZ int
	for coord := range w.chunks {
		if first {
			w.min, maxX, maxZ = coord, coord.X, coord.Z
			first = false
			continue
		}
		if coord.X < w.min.X {
			w.min.X = coord.X
		}
		if coord.Z < w.min.Z {
			w.min.Z = coord.Z
		}
		if coord.X > maxX {
			maxX = coord.X
		}
		if coord.Z > maxZ {
			maxZ = coord.Z
		}
	}
	w.width = maxX - w.min.X + 1
	w.depth = maxZ - w.min.Z + 1
}

// slimeIndex is the chunk's bit in the populated-chunk mask, which is also
// the order chunks are written in.
func (w *slimeWriter) slimeIndex(c worldfolder.ChunkCoord) int {
	return (c.Z-w.min.Z)*w.width + (c.X - w.min.X)
}

func (w *slimeWriter) writeHeader() (err error) {
	used := bitset.New(uint(w.width * w.depth))
	for coord := range w.chunks {
		used.Set(uint(w.slimeIndex(coord)))
	}

	var header struct {
		Magic   uint16
		Version uint8
		MinX    int16
		MinZ    int16
		Width   uint16
		Depth   uint16
	}
	header.Magic = slimeHeader
	header.Version = slimeLatestVersion
	header.MinX = int16(w.min.X)
	header.MinZ = int16(w.min.Z)
	header.Width = uint16(w.width)
	header.Depth = uint16(w.depth)

	if err = binary.Write(w.writer, binary.BigEndian, header); err != nil {
		return
	}
	_, err = w.writer.Write(maskBytes(used, w.width*w.depth))
	return
}

// maskBytes lays the set out the way java.util.BitSet.toByteArray does,
// little-endian, padded to hold size bits.
func maskBytes(set *bitset.BitSet, size int) []byte {
	out := make([]byte, (size+7)/8)
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		out[i/8] |= 1 << (i % 8)
	}
	return out
}

func (w *slimeWriter) sortedChunks() []*anvil.ChunkData {
	sorted := make([]*anvil.ChunkData, 0, len(w.chunks))
	for _, c := range w.chunks {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(one, two int) bool {
		return w.slimeIndex(worldfolder.ChunkCoord{X: sorted[one].CX, Z: sorted[one].CZ}) <
			w.slimeIndex(worldfolder.ChunkCoord{X: sorted[two].CX, Z: sorted[two].CZ})
	})
	return sorted
}

func (w *slimeWriter) writeChunks() error {
	var out bytes.Buffer
	for _, chunk := range w.sortedChunks() {
		sections, err := exportedSections(chunk)
		if err != nil {
			return err
		}
		if err = writeChunkHeader(&out, chunk, sections); err != nil {
			return err
		}
		for _, section := range sections {
			if err = writeChunkSection(&out, section); err != nil {
				return err
			}
		}
		w.opts.Logger.WithFields(logrus.Fields{"cx": chunk.CX, "cz": chunk.CZ, "sections": len(sections)}).Debug("Chunk exported")
	}
	return w.writeZstdCompressed(out.Bytes())
}

func exportedSections(chunk *anvil.ChunkData) ([]*anvil.Section, error) {
	var sections []*anvil.Section
	for _, y := range chunk.SectionPositions() {
		s, _ := chunk.Section(y, false)
		if s == nil || s.Trivial() {
			continue
		}
		if y < 0 || y >= maxSections {
			return nil, fmt.Errorf("slime: chunk %d,%d has section %d outside 0..%d", chunk.CX, chunk.CZ, y, maxSections-1)
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func writeChunkHeader(out *bytes.Buffer, chunk *anvil.ChunkData, sections []*anvil.Section) error {
	if err := binary.Write(out, binary.BigEndian, chunk.HeightMap[:]); err != nil {
		return err
	}
	for _, b := range chunk.Biomes {
		out.WriteByte(byte(b))
	}

	var populated uint16
	for _, s := range sections {
		populated |= 1 << uint(s.Y)
	}
	return binary.Write(out, binary.BigEndian, populated)
}

func writeChunkSection(out *bytes.Buffer, section *anvil.Section) error {
	blockLight, _ := anvil.Pack(section.BlockLight[:])
	data, _ := anvil.Pack(section.Data[:])
	skyLight, _ := anvil.Pack(section.SkyLight[:])
	blocks := make([]byte, anvil.SectionVolume)
	for i, id := range section.Blocks {
		blocks[i] = byte(id)
	}

	out.Write(blockLight)
	out.Write(blocks)
	out.Write(data)
	out.Write(skyLight)
	// no HypixelBlocks3 data
	return binary.Write(out, binary.BigEndian, uint16(0))
}

func (w *slimeWriter) writeZstdCompressed(raw []byte) (err error) {
	var compressed bytes.Buffer
	zstdWriter, err := zstd.NewWriter(&compressed, zstd.WithEncoderLevel(w.opts.Level), zstd.WithZeroFrames(true))
	if err != nil {
		return
	}
	if _, err = zstdWriter.Write(raw); err != nil {
		zstdWriter.Close()
		return
	}
	if err = zstdWriter.Close(); err != nil {
		return
	}

	w.opts.Logger.WithFields(logrus.Fields{"compressed": compressed.Len(), "uncompressed": len(raw)}).Debug("Slime block written")

	if err = binary.Write(w.writer, binary.BigEndian, uint32(compressed.Len())); err != nil {
		return
	}
	if err = binary.Write(w.writer, binary.BigEndian, uint32(len(raw))); err != nil {
		return
	}
	_, err = compressed.WriteTo(w.writer)
	return
}

func (w *slimeWriter) collect(refs func(*anvil.ChunkData) []anvil.EntityRef) []nbt.Compound {
	tags := []nbt.Compound{}
	for _, chunk := range w.sortedChunks() {
		for _, ref := range refs(chunk) {
			tags = append(tags, ref.Tag)
		}
	}
	return tags
}

func (w *slimeWriter) writeTileEntities() error {
	tiles := w.collect(func(c *anvil.ChunkData) []anvil.EntityRef { return c.TileEntities })
	var buf bytes.Buffer
	if err := nbt.Marshal(&buf, nbt.Compound{"tiles": tiles}); err != nil {
		return err
	}
	return w.writeZstdCompressed(buf.Bytes())
}

func (w *slimeWriter) writeEntities() error {
	entities := w.collect(func(c *anvil.ChunkData) []anvil.EntityRef { return c.Entities })
	var buf bytes.Buffer
	if err := nbt.Marshal(&buf, nbt.Compound{"entities": entities}); err != nil {
		return err
	}

	if _, err := w.writer.Write([]byte{1}); err != nil {
		return err
	}
	return w.writeZstdCompressed(buf.Bytes())
}

// writeExtra writes an empty zstd stream for the extra data block.
func (w *slimeWriter) writeExtra() error {
	return w.writeZstdCompressed(nil)
}
