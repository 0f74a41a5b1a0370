package schematic

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/maxsupermanhd/WebSchem/primitives"
)

// MaxSize bounds the decompressed size of a schematic.
const MaxSize = 512 << 20

// MaxVolume bounds Width*Height*Length, with or without block data.
const MaxVolume = 1 << 26

// MaxPalette bounds palette indices, the palette is allocated up to the largest one.
const MaxPalette = 1 << 20

type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	}
	return "none"
}

// DetectCompression looks at the magic bytes of a file.
func DetectCompression(d []byte) Compression {
	switch {
	case len(d) >= 2 && d[0] == 0x1f && d[1] == 0x8b:
		return CompressionGzip
	case len(d) >= 4 && d[0] == 0x28 && d[1] == 0xb5 && d[2] == 0x2f && d[3] == 0xfd:
		return CompressionZstd
	case len(d) >= 2 && d[0] == 0x78 && (uint16(d[0])<<8|uint16(d[1]))%31 == 0:
		return CompressionZlib
	}
	return CompressionNone
}

func decompress(d []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch DetectCompression(d) {
	case CompressionNone:
		return d, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxSize))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(d, nil)
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(d))
	case CompressionZlib:
		r, err = zlib.NewReader(bytes.NewReader(d))
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ret, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(ret) > MaxSize {
		return nil, fmt.Errorf("%w: decompressed size over %d bytes", ErrFormat, MaxSize)
	}
	return ret, nil
}

type metadata struct {
	Name string `nbt:"Name"`
}

type blockContainer struct {
	Palette map[string]int32 `nbt:"Palette"`
	Data    []byte           `nbt:"Data"`
}

type spongeV3 struct {
	Version     int32          `nbt:"Version"`
	DataVersion int32          `nbt:"DataVersion"`
	Metadata    metadata       `nbt:"Metadata"`
	Width       int16          `nbt:"Width"`
	Height      int16          `nbt:"Height"`
	Length      int16          `nbt:"Length"`
	Blocks      blockContainer `nbt:"Blocks"`
}

// spongeRoot covers both layouts: v1 and v2 keep everything at the root,
// v3 nests it under a Schematic compound.
type spongeRoot struct {
	Version     int32            `nbt:"Version"`
	DataVersion int32            `nbt:"DataVersion"`
	Metadata    metadata         `nbt:"Metadata"`
	Width       int16            `nbt:"Width"`
	Height      int16            `nbt:"Height"`
	Length      int16            `nbt:"Length"`
	Palette     map[string]int32 `nbt:"Palette"`
	BlockData   []byte           `nbt:"BlockData"`
	Schematic   spongeV3         `nbt:"Schematic"`
}

func Open(path string) (*Schematic, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(d)
}

func Read(r io.Reader) (*Schematic, error) {
	d, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(d) > MaxSize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrFormat, MaxSize)
	}
	return Decode(d)
}

// Decode reads a Sponge schematic (versions 1 to 3), plain or compressed.
func Decode(d []byte) (*Schematic, error) {
	d, err := decompress(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	var root spongeRoot
	if err := nbt.Unmarshal(d, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if root.Schematic.Version != 0 {
		v3 := root.Schematic
		if v3.Version != 3 {
			return nil, fmt.Errorf("%w: %d", ErrVersion, v3.Version)
		}
		return build(int(v3.Version), int(v3.DataVersion), v3.Metadata.Name, v3.Width, v3.Height, v3.Length, v3.Blocks.Palette, v3.Blocks.Data)
	}
	if root.Version > 2 {
		return nil, fmt.Errorf("%w: %d", ErrVersion, root.Version)
	}
	return build(int(root.Version), int(root.DataVersion), root.Metadata.Name, root.Width, root.Height, root.Length, root.Palette, root.BlockData)
}

// dimension reads a TAG_Short as the unsigned value schematics mean by it.
func dimension(v int16) int {
	return int(uint16(v))
}

func build(version, dataVersion int, name string, w, h, l int16, palette map[string]int32, data []byte) (*Schematic, error) {
	s := &Schematic{
		Name:        name,
		Version:     version,
		DataVersion: dataVersion,
		Width:       dimension(w),
		Height:      dimension(h),
		Length:      dimension(l),
	}
	if s.Volume() > MaxVolume {
		return nil, fmt.Errorf("%w: %dx%dx%d is over %d blocks", ErrFormat, s.Width, s.Height, s.Length, MaxVolume)
	}
	maxIndex := int32(-1)
	for _, v := range palette {
		if v < 0 {
			return nil, fmt.Errorf("%w: negative palette index %d", ErrFormat, v)
		}
		if v > maxIndex {
			maxIndex = v
		}
	}
	if maxIndex >= MaxPalette {
		return nil, fmt.Errorf("%w: palette index %d over %d", ErrFormat, maxIndex, MaxPalette)
	}
	s.Palette = make([]primitives.Block, maxIndex+1)
	for i := range s.Palette {
		s.Palette[i] = air
	}
	for k, v := range palette {
		b, err := primitives.ParseBlock(k)
		if err != nil {
			return nil, fmt.Errorf("%w: palette entry %q: %s", ErrFormat, k, err)
		}
		s.Palette[v] = b
	}
	if len(data) == 0 {
		return s, nil
	}
	volume := s.Volume()
	// every varint takes at least a byte
	s.Data = make([]int32, 0, min(volume, len(data)))
	for i := 0; i < len(data); {
		v, next, err := readVarint(data, i)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrFormat, len(s.Data), err)
		}
		i = next
		if v < 0 || int(v) >= len(s.Palette) {
			return nil, fmt.Errorf("%w: block %d uses palette index %d out of %d", ErrFormat, len(s.Data), v, len(s.Palette))
		}
		if len(s.Data) == volume {
			return nil, fmt.Errorf("%w: more than %d blocks of data", ErrFormat, volume)
		}
		s.Data = append(s.Data, v)
	}
	if len(s.Data) != volume {
		return nil, fmt.Errorf("%w: %d blocks of data for a volume of %d", ErrFormat, len(s.Data), volume)
	}
	return s, nil
}
