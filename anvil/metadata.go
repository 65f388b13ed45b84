package anvil

import (
	"fmt"
	"time"

	"github.com/astei/anvilworld/nbt"
)

var MetadataFields = FieldTable{
	{Name: "SizeOnDisk", Key: "SizeOnDisk", Kind: KindLong, Default: int64(0)},
	{Name: "RandomSeed", Key: "RandomSeed", Kind: KindLong, Default: int64(0)},
	{Name: "Time", Key: "Time", Kind: KindLong, Default: int64(0)},
	{Name: "LastPlayed", Key: "LastPlayed", Kind: KindLong, DefaultFunc: func() interface{} {
		return time.Now().UnixMilli()
	}},
	{Name: "LevelName", Key: "LevelName", Kind: KindString, Default: "Untitled World"},
	{Name: "MapFeatures", Key: "MapFeatures", Kind: KindByte, Default: int8(1)},
	{Name: "GameType", Key: "GameType", Kind: KindInt, Default: int32(GameTypeSurvival)},
	{Name: "Version", Key: "version", Kind: KindInt, Default: int32(VersionAnvil)},
}

func metadataField(name string) Field {
	f, ok := MetadataFields.Lookup(name)
	if !ok {
		panic("anvil: unknown metadata field " + name)
	}
	return f
}

// WorldMetadata is the typed view over level.dat. Setters mark it dirty; the
// owning adapter persists it on SyncToDisk.
type WorldMetadata struct {
	root  nbt.Compound
	data  nbt.Compound
	Dirty bool
}

// ParseMetadata decodes a level.dat record, compressed or not.
func ParseMetadata(buf []byte) (*WorldMetadata, error) {
	root, err := nbt.Load(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataFormat, err)
	}
	data, ok := root.Compound("Data")
	if !ok {
		return nil, fmt.Errorf("%w: missing Data compound", ErrMetadataFormat)
	}
	return &WorldMetadata{root: root, data: data}, nil
}

// NewMetadata returns metadata carrying every field default. The caller fills
// in the per-world values.
func NewMetadata() *WorldMetadata {
	data := nbt.Compound{}
	MetadataFields.ApplyDefaults(data)
	m := &WorldMetadata{root: nbt.Compound{"Data": data}, data: data, Dirty: true}
	m.SetSpawnPosition(BlockPos{X: 0, Y: 2, Z: 0})
	return m
}

// Encode returns the gzip-compressed level.dat record.
func (m *WorldMetadata) Encode() ([]byte, error) {
	m.root["Data"] = m.data
	return nbt.Save(m.root, true)
}

func (m *WorldMetadata) Tag() nbt.Compound { return m.data }

func (m *WorldMetadata) intField(name string) int64 {
	return metadataField(name).Int(m.data)
}

func (m *WorldMetadata) set(name string, v interface{}) {
	metadataField(name).Set(m.data, v)
	m.Dirty = true
}

func (m *WorldMetadata) SizeOnDisk() int64        { return m.intField("SizeOnDisk") }
func (m *WorldMetadata) SetSizeOnDisk(v int64)    { m.set("SizeOnDisk", v) }
func (m *WorldMetadata) RandomSeed() int64        { return m.intField("RandomSeed") }
func (m *WorldMetadata) SetRandomSeed(v int64)    { m.set("RandomSeed", v) }
func (m *WorldMetadata) Time() int64              { return m.intField("Time") }
func (m *WorldMetadata) SetTime(v int64)          { m.set("Time", v) }
func (m *WorldMetadata) LastPlayed() int64        { return m.intField("LastPlayed") }
func (m *WorldMetadata) SetLastPlayed(v int64)    { m.set("LastPlayed", v) }
func (m *WorldMetadata) GameType() int            { return int(m.intField("GameType")) }
func (m *WorldMetadata) SetGameType(v int)        { m.set("GameType", v) }
func (m *WorldMetadata) Version() int             { return int(m.intField("Version")) }
func (m *WorldMetadata) SetVersion(v int)         { m.set("Version", v) }
func (m *WorldMetadata) MapFeatures() bool        { return metadataField("MapFeatures").Bool(m.data) }
func (m *WorldMetadata) LevelName() string        { return metadataField("LevelName").String(m.data) }
func (m *WorldMetadata) SetLevelName(name string) { m.set("LevelName", name) }

func (m *WorldMetadata) SetMapFeatures(v bool) {
	var b int8
	if v {
		b = 1
	}
	m.set("MapFeatures", b)
}

func (m *WorldMetadata) SpawnPosition() BlockPos {
	x, _ := m.data.Int("SpawnX")
	y, _ := m.data.Int("SpawnY")
	z, _ := m.data.Int("SpawnZ")
	return BlockPos{X: int(x), Y: int(y), Z: int(z)}
}

func (m *WorldMetadata) SetSpawnPosition(p BlockPos) {
	m.data["SpawnX"] = int32(p.X)
	m.data["SpawnY"] = int32(p.Y)
	m.data["SpawnZ"] = int32(p.Z)
	m.Dirty = true
}

// HasPlayer reports whether the world embeds a single-player record.
func (m *WorldMetadata) HasPlayer() bool {
	_, ok := m.data.Compound("Player")
	return ok
}

func (m *WorldMetadata) PlayerTag() (nbt.Compound, bool) {
	return m.data.Compound("Player")
}

func (m *WorldMetadata) setPlayerTag(tag nbt.Compound) {
	m.data["Player"] = tag
	m.Dirty = true
}
