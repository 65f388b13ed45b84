package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	gonbt "github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

var ErrNotCompound = errors.New("nbt: root tag is not a compound")

// Load decodes a root compound from buf. Gzip and zlib streams are detected by
// their magic bytes and inflated first; anything else is read as a raw tree.
func Load(buf []byte) (Compound, error) {
	raw, err := inflate(buf)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || raw[0] != gonbt.TagCompound {
		return nil, ErrNotCompound
	}

	var root map[string]interface{}
	if err := gonbt.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("nbt: decode: %w", err)
	}
	return Compound(root), nil
}

// Save encodes root as an unnamed root compound. When compressed is true the
// result is gzip-wrapped, the way level.dat and player files are stored.
func Save(root Compound, compressed bool) ([]byte, error) {
	var buf bytes.Buffer
	if !compressed {
		if err := Marshal(&buf, root); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	zw := gzip.NewWriter(&buf)
	if err := Marshal(zw, root); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Marshal(w io.Writer, v interface{}) error {
	if err := gonbt.NewEncoder(w).Encode(v, ""); err != nil {
		return fmt.Errorf("nbt: encode: %w", err)
	}
	return nil
}

func inflate(buf []byte) ([]byte, error) {
	switch {
	case len(buf) >= 2 && buf[0] == 0x1f && buf[1] == 0x8b:
		zr, err := gzip.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("nbt: gzip: %w", err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("nbt: gzip: %w", err)
		}
		return raw, nil

	case len(buf) >= 2 && buf[0] == 0x78 && (uint16(buf[0])<<8|uint16(buf[1]))%31 == 0:
		zr, err := zlib.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("nbt: zlib: %w", err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("nbt: zlib: %w", err)
		}
		return raw, nil
	}
	return buf, nil
}
