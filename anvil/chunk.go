package anvil

import (
	"fmt"
	"sort"

	"github.com/astei/anvilworld/nbt"
)

const columnArea = SectionSize * SectionSize

// Bounds is the vertical extent of a world in blocks, Min inclusive and Max
// exclusive.
type Bounds struct {
	Min int
	Max int
}

var DefaultBounds = Bounds{Min: 0, Max: 256}

// ContainsSection reports whether slab cy starts inside the bounds.
func (b Bounds) ContainsSection(cy int) bool {
	y := cy << 4
	return y >= b.Min && y < b.Max
}

type BlockPos struct {
	X, Y, Z int
}

// EntityRef is an entity or tile entity record carried through a chunk
// unchanged.
type EntityRef struct {
	Tag nbt.Compound
}

func (e EntityRef) ID() string {
	id, _ := e.Tag.String("id")
	return id
}

// ChunkData is the decoded form of one chunk record. It is owned by the
// caller of the adapter that produced it until written back or dropped.
type ChunkData struct {
	CX, CZ int
	Dim    string

	Biomes           [columnArea]int8
	HeightMap        [columnArea]uint32
	TerrainPopulated bool
	LastUpdate       int64

	Entities     []EntityRef
	TileEntities []EntityRef

	Dirty bool

	bounds   Bounds
	sections map[int]*Section
	// root and Level keys this model does not interpret
	root  nbt.Compound
	level nbt.Compound
}

// NewChunkData returns an empty chunk with default column data.
func NewChunkData(cx, cz int, dim string, bounds Bounds) *ChunkData {
	c := &ChunkData{
		CX:               cx,
		CZ:               cz,
		Dim:              dim,
		TerrainPopulated: true,
		Entities:         []EntityRef{},
		TileEntities:     []EntityRef{},
		Dirty:            true,
		bounds:           bounds,
		sections:         make(map[int]*Section),
		root:             nbt.Compound{},
		level:            nbt.Compound{},
	}
	c.resetBiomes()
	return c
}

// LoadChunkData decodes a stored chunk record. A record without Sections is
// an empty chunk; a record without Biomes gets the unset fill.
func LoadChunkData(cx, cz int, dim string, bounds Bounds, root nbt.Compound) (*ChunkData, error) {
	level, ok := root.Compound("Level")
	if !ok {
		return nil, formatErrorf("missing Level compound")
	}

	c := &ChunkData{
		CX:       cx,
		CZ:       cz,
		Dim:      dim,
		bounds:   bounds,
		sections: make(map[int]*Section),
		root:     root.Copy(),
	}
	c.level, _ = c.root.Compound("Level")
	delete(c.root, "Level")

	if level.Has("Sections") {
		sections, ok := level.Compounds("Sections")
		if !ok {
			return nil, formatErrorf("Sections is not a list of compounds")
		}
		for _, tag := range sections {
			s, err := LoadSection(tag)
			if err != nil {
				return nil, err
			}
			c.sections[s.Y] = s
		}
	}

	if biomes, ok := level.ByteArray("Biomes"); ok {
		if len(biomes) != columnArea {
			return nil, formatErrorf("Biomes must hold %d entries, got %d", columnArea, len(biomes))
		}
		for i, b := range biomes {
			c.Biomes[i] = int8(b)
		}
	} else {
		c.resetBiomes()
	}

	heights, ok := level.IntArray("HeightMap")
	if !ok {
		return nil, formatErrorf("missing HeightMap")
	}
	if len(heights) != columnArea {
		return nil, formatErrorf("HeightMap must hold %d entries, got %d", columnArea, len(heights))
	}
	for i, h := range heights {
		c.HeightMap[i] = uint32(h)
	}

	populated, _ := level.Int("TerrainPopulated")
	c.TerrainPopulated = populated != 0
	c.LastUpdate, _ = level.Int("LastUpdate")

	var err error
	if c.Entities, err = loadRefs(level, "Entities"); err != nil {
		return nil, err
	}
	if c.TileEntities, err = loadRefs(level, "TileEntities"); err != nil {
		return nil, err
	}

	for _, key := range []string{"Sections", "Biomes", "HeightMap", "TerrainPopulated", "LastUpdate",
		"Entities", "TileEntities", "xPos", "zPos"} {
		delete(c.level, key)
	}
	return c, nil
}

func loadRefs(level nbt.Compound, key string) ([]EntityRef, error) {
	if !level.Has(key) {
		return []EntityRef{}, nil
	}
	tags, ok := level.Compounds(key)
	if !ok {
		return nil, formatErrorf("%s is not a list of compounds", key)
	}
	refs := make([]EntityRef, len(tags))
	for i, tag := range tags {
		refs[i] = EntityRef{Tag: tag}
	}
	return refs, nil
}

func (c *ChunkData) resetBiomes() {
	for i := range c.Biomes {
		c.Biomes[i] = -1
	}
}

// Section returns the section at slab cy. When create is false a missing or
// out-of-range section yields nil; when create is true a missing section is
// allocated zero-filled, and an out-of-range slab is ErrSectionOutOfRange.
func (c *ChunkData) Section(cy int, create bool) (*Section, error) {
	if !c.bounds.ContainsSection(cy) {
		if create {
			return nil, fmt.Errorf("%w: section %d", ErrSectionOutOfRange, cy)
		}
		return nil, nil
	}

	s, ok := c.sections[cy]
	if !ok {
		if !create {
			return nil, nil
		}
		s = NewSection(cy)
		c.sections[cy] = s
		c.Dirty = true
	}
	return s, nil
}

// SectionPositions lists the held sections in ascending order.
func (c *ChunkData) SectionPositions() []int {
	ys := make([]int, 0, len(c.sections))
	for y := range c.sections {
		ys = append(ys, y)
	}
	sort.Ints(ys)
	return ys
}

func (c *ChunkData) SetTerrainPopulated(v bool) {
	c.TerrainPopulated = v
	c.Dirty = true
}

func (c *ChunkData) HeightAt(x, z int) uint32 {
	return c.HeightMap[(z&15)<<4|(x&15)]
}

func (c *ChunkData) BiomeAt(x, z int) int8 {
	return c.Biomes[(z&15)<<4|(x&15)]
}

// BoundingBox returns the block-space box covered by the chunk, Max exclusive.
func (c *ChunkData) BoundingBox() (min, max BlockPos) {
	min = BlockPos{X: c.CX << 4, Y: c.bounds.Min, Z: c.CZ << 4}
	max = BlockPos{X: min.X + SectionSize, Y: c.bounds.Max, Z: min.Z + SectionSize}
	return min, max
}

// Record encodes the chunk. Sections are written in ascending order and
// trivial sections are left out. Light and height data are not recomputed.
func (c *ChunkData) Record() nbt.Compound {
	root := c.root.Copy()
	level := c.level.Copy()

	sections := make([]nbt.Compound, 0, len(c.sections))
	for _, y := range c.SectionPositions() {
		s := c.sections[y]
		if s.Trivial() {
			continue
		}
		sections = append(sections, s.Record())
	}

	heights := make([]int32, columnArea)
	for i, h := range c.HeightMap {
		heights[i] = int32(h)
	}
	biomes := make([]byte, columnArea)
	for i, b := range c.Biomes {
		biomes[i] = byte(b)
	}

	var populated int8
	if c.TerrainPopulated {
		populated = 1
	}

	level["xPos"] = int32(c.CX)
	level["zPos"] = int32(c.CZ)
	level["LastUpdate"] = c.LastUpdate
	level["TerrainPopulated"] = populated
	level["HeightMap"] = heights
	level["Biomes"] = biomes
	level["Sections"] = sections
	level["Entities"] = refTags(c.Entities)
	level["TileEntities"] = refTags(c.TileEntities)
	root["Level"] = level
	return root
}

func refTags(refs []EntityRef) []nbt.Compound {
	tags := make([]nbt.Compound, len(refs))
	for i, ref := range refs {
		tags[i] = ref.Tag
	}
	return tags
}
