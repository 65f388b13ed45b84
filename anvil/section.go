package anvil

import (
	"github.com/astei/anvilworld/nbt"
)

const (
	SectionSize   = 16
	SectionVolume = SectionSize * SectionSize * SectionSize
	MaxBlockID    = 4095
	MaxNibble     = 15

	nibbleArrayLen = SectionVolume / 2
)

// Section is one 16x16x16 slab of a chunk. Cells are indexed YZX, see
// SectionIndex. Blocks holds the widened 12-bit IDs.
type Section struct {
	Y          int
	Blocks     [SectionVolume]uint16
	Data       [SectionVolume]uint8
	BlockLight [SectionVolume]uint8
	SkyLight   [SectionVolume]uint8

	// keys of the stored record this model does not interpret
	extra nbt.Compound
}

func SectionIndex(x, y, z int) int {
	return (y&15)<<8 | (z&15)<<4 | (x & 15)
}

// NewSection returns a zero-filled section at slab y.
func NewSection(y int) *Section {
	return &Section{Y: y, extra: nbt.Compound{}}
}

// LoadSection decodes a stored section compound. The optional Add array is
// merged into the high bits of Blocks.
func LoadSection(tag nbt.Compound) (*Section, error) {
	y, ok := tag.Int("Y")
	if !ok {
		return nil, formatErrorf("section is missing Y")
	}
	s := &Section{Y: int(y), extra: tag.Copy()}

	blocks, ok := tag.ByteArray("Blocks")
	if !ok || len(blocks) != SectionVolume {
		return nil, formatErrorf("section %d: Blocks must hold %d entries, got %d", y, SectionVolume, len(blocks))
	}
	for i, b := range blocks {
		s.Blocks[i] = uint16(b)
	}

	nibbles := []struct {
		key string
		dst *[SectionVolume]uint8
	}{
		{"Data", &s.Data},
		{"SkyLight", &s.SkyLight},
		{"BlockLight", &s.BlockLight},
	}
	for _, n := range nibbles {
		packed, ok := tag.ByteArray(n.key)
		if !ok || len(packed) != nibbleArrayLen {
			return nil, formatErrorf("section %d: %s must hold %d entries, got %d", y, n.key, nibbleArrayLen, len(packed))
		}
		unpackInto(n.dst, packed)
	}

	if add, ok := tag.ByteArray("Add"); ok {
		if len(add) != nibbleArrayLen {
			return nil, formatErrorf("section %d: Add must hold %d entries, got %d", y, nibbleArrayLen, len(add))
		}
		for i, a := range Unpack(add) {
			s.Blocks[i] |= uint16(a) << 8
		}
	}

	for _, key := range []string{"Y", "Blocks", "Data", "SkyLight", "BlockLight", "Add"} {
		delete(s.extra, key)
	}
	return s, nil
}

// Record encodes the section for storage. Add is emitted only when some block
// ID does not fit in eight bits.
func (s *Section) Record() nbt.Compound {
	tag := s.extra.Copy()

	base := make([]byte, SectionVolume)
	var add [SectionVolume]uint8
	hasAdd := false
	for i, id := range s.Blocks {
		base[i] = byte(id)
		add[i] = uint8(id>>8) & 0xf
		if add[i] != 0 {
			hasAdd = true
		}
	}
	if hasAdd {
		tag["Add"] = packCells(&add)
	}

	tag["Blocks"] = base
	tag["Data"] = packCells(&s.Data)
	tag["BlockLight"] = packCells(&s.BlockLight)
	tag["SkyLight"] = packCells(&s.SkyLight)
	tag["Y"] = int8(s.Y)
	return tag
}

// Trivial reports whether the section carries no information worth storing:
// no blocks, no block light and full sky light everywhere.
func (s *Section) Trivial() bool {
	for i := 0; i < SectionVolume; i++ {
		if s.Blocks[i] != 0 || s.BlockLight[i] != 0 || s.SkyLight[i] != MaxNibble {
			return false
		}
	}
	return true
}

func (s *Section) Block(x, y, z int) uint16 {
	return s.Blocks[SectionIndex(x, y, z)]
}

func (s *Section) SetBlock(x, y, z int, id uint16) {
	s.Blocks[SectionIndex(x, y, z)] = id & MaxBlockID
}

func (s *Section) BlockData(x, y, z int) uint8 {
	return s.Data[SectionIndex(x, y, z)]
}

func (s *Section) SetBlockData(x, y, z int, v uint8) {
	s.Data[SectionIndex(x, y, z)] = v & MaxNibble
}

func (s *Section) BlockLightAt(x, y, z int) uint8 {
	return s.BlockLight[SectionIndex(x, y, z)]
}

func (s *Section) SetBlockLight(x, y, z int, v uint8) {
	s.BlockLight[SectionIndex(x, y, z)] = v & MaxNibble
}

func (s *Section) SkyLightAt(x, y, z int) uint8 {
	return s.SkyLight[SectionIndex(x, y, z)]
}

func (s *Section) SetSkyLight(x, y, z int, v uint8) {
	s.SkyLight[SectionIndex(x, y, z)] = v & MaxNibble
}

// FillSkyLight sets every sky light cell to v.
func (s *Section) FillSkyLight(v uint8) {
	for i := range s.SkyLight {
		s.SkyLight[i] = v & MaxNibble
	}
}
