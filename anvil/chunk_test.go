package anvil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/astei/anvilworld/nbt"
)

// reload pushes a chunk through the encoder and decoder.
func reload(t *testing.T, c *ChunkData) *ChunkData {
	t.Helper()
	buf, err := nbt.Save(c.Record(), false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	root, err := nbt.Load(buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := LoadChunkData(c.CX, c.CZ, c.Dim, DefaultBounds, root)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return got
}

func TestNewChunkDefaults(t *testing.T) {
	c := NewChunkData(2, -3, "", DefaultBounds)
	if !c.TerrainPopulated || !c.Dirty || c.LastUpdate != 0 {
		t.Fatalf("unexpected defaults: populated=%v dirty=%v lastUpdate=%d", c.TerrainPopulated, c.Dirty, c.LastUpdate)
	}
	if c.BiomeAt(5, 5) != -1 || c.HeightAt(5, 5) != 0 {
		t.Fatalf("biome=%d height=%d want -1 and 0", c.BiomeAt(5, 5), c.HeightAt(5, 5))
	}
	if len(c.Entities) != 0 || len(c.TileEntities) != 0 || len(c.SectionPositions()) != 0 {
		t.Fatalf("fresh chunk should hold nothing")
	}
	min, max := c.BoundingBox()
	if min != (BlockPos{X: 32, Y: 0, Z: -48}) || max != (BlockPos{X: 48, Y: 256, Z: -32}) {
		t.Fatalf("bounding box %v..%v", min, max)
	}
}

func TestSectionRange(t *testing.T) {
	c := NewChunkData(0, 0, "", DefaultBounds)
	if s, err := c.Section(16, true); !errors.Is(err, ErrSectionOutOfRange) || s != nil {
		t.Fatalf("create above max: s=%v err=%v", s, err)
	}
	if s, err := c.Section(16, false); err != nil || s != nil {
		t.Fatalf("lookup above max: s=%v err=%v", s, err)
	}
	if _, err := c.Section(-1, true); !errors.Is(err, ErrSectionOutOfRange) {
		t.Fatalf("create below min: err=%v", err)
	}
	s, err := c.Section(15, true)
	if err != nil || s == nil || s.Y != 15 {
		t.Fatalf("create top slab: s=%v err=%v", s, err)
	}
	again, _ := c.Section(15, false)
	if again != s {
		t.Fatalf("second lookup returned a different section")
	}
}

func TestChunkRecordRoundTrip(t *testing.T) {
	c := NewChunkData(7, 9, "DIM-1", DefaultBounds)
	c.LastUpdate = 1234
	c.SetTerrainPopulated(false)
	c.HeightMap[17] = 70
	c.Biomes[3] = 4
	c.Entities = []EntityRef{{Tag: nbt.Compound{"id": "Pig"}}}
	c.TileEntities = []EntityRef{{Tag: nbt.Compound{"id": "Chest", "x": int32(112)}}}

	for _, y := range []int{5, 1, 9} {
		s, err := c.Section(y, true)
		if err != nil {
			t.Fatalf("section %d: %v", y, err)
		}
		s.FillSkyLight(MaxNibble)
		s.SetBlock(0, 0, 0, uint16(300+y))
	}
	// Section 3 is trivial and must be elided.
	trivial, _ := c.Section(3, true)
	trivial.FillSkyLight(MaxNibble)

	ys := []int{}
	sections, _ := c.Record()["Level"].(nbt.Compound).Compounds("Sections")
	for _, s := range sections {
		y, _ := s.Int("Y")
		ys = append(ys, int(y))
	}
	if diff := cmp.Diff([]int{1, 5, 9}, ys); diff != "" {
		t.Fatalf("encoded section order mismatch (-want +got):\n%s", diff)
	}

	got := reload(t, c)
	if diff := cmp.Diff([]int{1, 5, 9}, got.SectionPositions()); diff != "" {
		t.Fatalf("reloaded sections mismatch (-want +got):\n%s", diff)
	}
	if s, _ := got.Section(3, false); s != nil {
		t.Fatalf("elided section came back")
	}
	s, _ := got.Section(9, false)
	if s.Block(0, 0, 0) != 309 {
		t.Fatalf("block=%d want 309", s.Block(0, 0, 0))
	}
	if got.LastUpdate != 1234 || got.TerrainPopulated || got.HeightMap[17] != 70 || got.Biomes[3] != 4 {
		t.Fatalf("column data lost: %+v", got.HeightMap[17])
	}
	if len(got.Entities) != 1 || got.Entities[0].ID() != "Pig" {
		t.Fatalf("entities=%v", got.Entities)
	}
	if len(got.TileEntities) != 1 || got.TileEntities[0].ID() != "Chest" {
		t.Fatalf("tile entities=%v", got.TileEntities)
	}
	if got.Dirty {
		t.Fatalf("loaded chunk should start clean")
	}
}

func TestLoadChunkTolerance(t *testing.T) {
	level := nbt.Compound{
		"xPos":      int32(0),
		"zPos":      int32(0),
		"HeightMap": make([]int32, columnArea),
		"Custom":    "kept",
	}
	c, err := LoadChunkData(0, 0, "", DefaultBounds, nbt.Compound{"Level": level, "DataVersion": int32(1)})
	if err != nil {
		t.Fatalf("load without sections or biomes: %v", err)
	}
	if len(c.SectionPositions()) != 0 || c.BiomeAt(0, 0) != -1 {
		t.Fatalf("sections=%v biome=%d", c.SectionPositions(), c.BiomeAt(0, 0))
	}

	rec := c.Record()
	if v, _ := rec.Int("DataVersion"); v != 1 {
		t.Fatalf("root key lost")
	}
	if v, _ := rec["Level"].(nbt.Compound).String("Custom"); v != "kept" {
		t.Fatalf("level key lost")
	}
}

func TestLoadChunkFormatErrors(t *testing.T) {
	heights := make([]int32, columnArea)
	cases := map[string]nbt.Compound{
		"no level":        {},
		"no heightmap":    {"Level": nbt.Compound{}},
		"short heightmap": {"Level": nbt.Compound{"HeightMap": make([]int32, 10)}},
		"short biomes":    {"Level": nbt.Compound{"HeightMap": heights, "Biomes": make([]byte, 5)}},
		"bad section":     {"Level": nbt.Compound{"HeightMap": heights, "Sections": []nbt.Compound{{"Y": int8(0)}}}},
		"bad entities":    {"Level": nbt.Compound{"HeightMap": heights, "Entities": "pig"}},
	}
	for name, root := range cases {
		if _, err := LoadChunkData(0, 0, "", DefaultBounds, root); !errors.Is(err, ErrChunkFormat) {
			t.Errorf("%s: err=%v want ErrChunkFormat", name, err)
		}
	}
}
