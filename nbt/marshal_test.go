package nbt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveLoadCompressedAndRaw(t *testing.T) {
	root := Compound{
		"Data": Compound{
			"LevelName":  "world",
			"version":    int32(19133),
			"RandomSeed": int64(-42),
		},
	}

	for _, compressed := range []bool{false, true} {
		buf, err := Save(root, compressed)
		if err != nil {
			t.Fatalf("save(compressed=%v): %v", compressed, err)
		}
		if compressed && (buf[0] != 0x1f || buf[1] != 0x8b) {
			t.Fatalf("expected gzip magic, got % x", buf[:2])
		}

		got, err := Load(buf)
		if err != nil {
			t.Fatalf("load(compressed=%v): %v", compressed, err)
		}
		data, ok := got.Compound("Data")
		if !ok {
			t.Fatalf("missing Data compound")
		}
		if name, _ := data.String("LevelName"); name != "world" {
			t.Fatalf("LevelName=%q want world", name)
		}
		if v, _ := data.Int("version"); v != 19133 {
			t.Fatalf("version=%d want 19133", v)
		}
		if seed, _ := data.Int("RandomSeed"); seed != -42 {
			t.Fatalf("RandomSeed=%d want -42", seed)
		}
	}
}

func TestArraysAndListsSurviveRoundTrip(t *testing.T) {
	root := Compound{
		"Bytes":  []byte{0, 1, 0xff},
		"Ints":   []int32{1, -2, 3},
		"Pos":    []float64{1.5, 64, -3.25},
		"Flag":   int8(1),
		"Empty":  []Compound{},
		"Things": []Compound{{"id": "a"}, {"id": "b"}},
	}
	buf, err := Save(root, false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if b, ok := got.ByteArray("Bytes"); !ok || !cmp.Equal(b, []byte{0, 1, 0xff}) {
		t.Fatalf("Bytes=%v ok=%v", b, ok)
	}
	if ints, ok := got.IntArray("Ints"); !ok || !cmp.Equal(ints, []int32{1, -2, 3}) {
		t.Fatalf("Ints=%v ok=%v", ints, ok)
	}
	if pos, ok := got.Floats("Pos"); !ok || !cmp.Equal(pos, []float64{1.5, 64, -3.25}) {
		t.Fatalf("Pos=%v ok=%v", pos, ok)
	}
	if flag, ok := got.Int("Flag"); !ok || flag != 1 {
		t.Fatalf("Flag=%d ok=%v", flag, ok)
	}
	if empty, ok := got.Compounds("Empty"); !ok || len(empty) != 0 {
		t.Fatalf("Empty=%v ok=%v", empty, ok)
	}
	things, ok := got.Compounds("Things")
	if !ok || len(things) != 2 {
		t.Fatalf("Things=%v ok=%v", things, ok)
	}
	if id, _ := things[1].String("id"); id != "b" {
		t.Fatalf("things[1].id=%q want b", id)
	}
}

func TestLoadRejectsNonCompound(t *testing.T) {
	if _, err := Load([]byte{8, 0, 0}); err != ErrNotCompound {
		t.Fatalf("err=%v want ErrNotCompound", err)
	}
	if _, err := Load([]byte{0x1f, 0x8b, 0, 0}); err == nil {
		t.Fatalf("expected error for truncated gzip stream")
	}
}

func TestCopyIsDeep(t *testing.T) {
	orig := Compound{"Level": Compound{"xPos": int32(1)}}
	cp := orig.Copy()
	lvl, _ := cp.Compound("Level")
	lvl["xPos"] = int32(2)

	origLvl, _ := orig.Compound("Level")
	if v, _ := origLvl.Int("xPos"); v != 1 {
		t.Fatalf("copy mutated original: xPos=%d", v)
	}
}
