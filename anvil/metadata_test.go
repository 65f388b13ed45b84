package anvil

import (
	"errors"
	"testing"

	"github.com/astei/anvilworld/nbt"
)

func TestLookupTablesAreInverse(t *testing.T) {
	if err := checkInverse(GameTypeNames, GameTypeCodes); err != nil {
		t.Fatalf("game types: %v", err)
	}
	if err := checkInverse(DimNames, DimNumbers); err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	broken := map[string]int{"survival": 0, "creative": 2}
	if err := checkInverse(map[int]string{0: "survival", 1: "creative"}, broken); err == nil {
		t.Fatalf("mismatched tables passed the check")
	}
}

func TestFieldDefaultsAndWireTypes(t *testing.T) {
	c := nbt.Compound{}
	f := Field{Name: "Fire", Key: "Fire", Kind: KindShort, Default: int16(-20)}
	if got := f.Int(c); got != -20 {
		t.Fatalf("default=%d want -20", got)
	}
	if c.Has("Fire") {
		t.Fatalf("reading a default must not store it")
	}
	f.Set(c, 7)
	if _, ok := c["Fire"].(int16); !ok {
		t.Fatalf("stored %T want int16", c["Fire"])
	}

	fl := Field{Name: "FallDistance", Key: "FallDistance", Kind: KindFloat, Default: float32(0)}
	fl.Set(c, 1.5)
	if _, ok := c["FallDistance"].(float32); !ok || fl.Float(c) != 1.5 {
		t.Fatalf("stored %T %v", c["FallDistance"], fl.Float(c))
	}

	PlayerFields.ApplyDefaults(c)
	if v, _ := c.Int("Air"); v != 300 {
		t.Fatalf("Air=%d want 300", v)
	}
	if v, _ := c.Int("Fire"); v != 7 {
		t.Fatalf("ApplyDefaults overwrote Fire: %d", v)
	}
}

func TestMetadataEncodeParse(t *testing.T) {
	m := NewMetadata()
	m.SetLevelName("test world")
	m.SetRandomSeed(-99)
	m.SetSpawnPosition(BlockPos{X: 10, Y: 64, Z: -10})
	m.SetGameType(GameTypeCreative)
	if !m.Dirty {
		t.Fatalf("setters must mark metadata dirty")
	}

	buf, err := m.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if buf[0] != 0x1f || buf[1] != 0x8b {
		t.Fatalf("level.dat must be gzip compressed")
	}
	got, err := ParseMetadata(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Dirty {
		t.Fatalf("parsed metadata should be clean")
	}
	if got.LevelName() != "test world" || got.RandomSeed() != -99 || got.GameType() != GameTypeCreative {
		t.Fatalf("fields lost: name=%q seed=%d gametype=%d", got.LevelName(), got.RandomSeed(), got.GameType())
	}
	if got.SpawnPosition() != (BlockPos{X: 10, Y: 64, Z: -10}) {
		t.Fatalf("spawn=%v", got.SpawnPosition())
	}
	if got.Version() != VersionAnvil || !got.MapFeatures() {
		t.Fatalf("version=%d mapFeatures=%v", got.Version(), got.MapFeatures())
	}
	if v, _ := got.Tag()["version"].(int32); v != VersionAnvil {
		t.Fatalf("version must be stored under its wire key")
	}
}

func TestParseMetadataErrors(t *testing.T) {
	if _, err := ParseMetadata([]byte("garbage")); !errors.Is(err, ErrMetadataFormat) {
		t.Fatalf("garbage: err=%v want ErrMetadataFormat", err)
	}
	buf, _ := nbt.Save(nbt.Compound{"NotData": nbt.Compound{}}, true)
	if _, err := ParseMetadata(buf); !errors.Is(err, ErrMetadataFormat) {
		t.Fatalf("missing Data: err=%v want ErrMetadataFormat", err)
	}
}
