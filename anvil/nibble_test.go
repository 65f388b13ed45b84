package anvil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNibbleOrder(t *testing.T) {
	got := Unpack([]byte{0x21, 0xf0})
	if diff := cmp.Diff([]byte{1, 2, 0, 15}, got); diff != "" {
		t.Fatalf("unpack mismatch (-want +got):\n%s", diff)
	}
	packed, err := Pack([]byte{1, 2, 0, 15})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if diff := cmp.Diff([]byte{0x21, 0xf0}, packed); diff != "" {
		t.Fatalf("pack mismatch (-want +got):\n%s", diff)
	}
}

func TestNibbleRoundTrip(t *testing.T) {
	packed := make([]byte, nibbleArrayLen)
	for i := range packed {
		packed[i] = byte(i * 37)
	}
	repacked, err := Pack(Unpack(packed))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if diff := cmp.Diff(packed, repacked); diff != "" {
		t.Fatalf("pack(unpack(g)) mismatch (-want +got):\n%s", diff)
	}

	cells := make([]byte, SectionVolume)
	for i := range cells {
		cells[i] = byte(i % 16)
	}
	p, _ := Pack(cells)
	if diff := cmp.Diff(cells, Unpack(p)); diff != "" {
		t.Fatalf("unpack(pack(u)) mismatch (-want +got):\n%s", diff)
	}
}

func TestPackRejectsOddLength(t *testing.T) {
	if _, err := Pack([]byte{1, 2, 3}); !errors.Is(err, ErrOddNibbleLength) {
		t.Fatalf("err=%v want ErrOddNibbleLength", err)
	}
}
