package schematic

import (
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

type spongeV2 struct {
	Version     int32            `nbt:"Version"`
	DataVersion int32            `nbt:"DataVersion"`
	Metadata    metadata         `nbt:"Metadata"`
	Width       int16            `nbt:"Width"`
	Height      int16            `nbt:"Height"`
	Length      int16            `nbt:"Length"`
	PaletteMax  int32            `nbt:"PaletteMax"`
	Palette     map[string]int32 `nbt:"Palette"`
	BlockData   []byte           `nbt:"BlockData"`
}

// Encode writes the schematic as a gzip compressed Sponge v2 file.
func (s *Schematic) Encode(w io.Writer) error {
	if s.Width > 0xffff || s.Height > 0xffff || s.Length > 0xffff {
		return fmt.Errorf("%w: %dx%dx%d does not fit a schematic", ErrFormat, s.Width, s.Height, s.Length)
	}
	if len(s.Data) != 0 && len(s.Data) != s.Volume() {
		return fmt.Errorf("%w: %d blocks of data for a volume of %d", ErrFormat, len(s.Data), s.Volume())
	}
	out := spongeV2{
		Version:     2,
		DataVersion: int32(s.DataVersion),
		Metadata:    metadata{Name: s.Name},
		Width:       int16(uint16(s.Width)),
		Height:      int16(uint16(s.Height)),
		Length:      int16(uint16(s.Length)),
		PaletteMax:  int32(len(s.Palette)),
		Palette:     map[string]int32{},
		BlockData:   make([]byte, 0, s.Volume()),
	}
	if len(s.Data) == 0 {
		out.Palette["minecraft:air"] = 0
		out.PaletteMax = 1
		for i := 0; i < s.Volume(); i++ {
			out.BlockData = appendVarint(out.BlockData, 0)
		}
	} else {
		for i, b := range s.Palette {
			out.Palette["minecraft:"+b.Key()] = int32(i)
		}
		for _, v := range s.Data {
			out.BlockData = appendVarint(out.BlockData, v)
		}
	}
	zw := gzip.NewWriter(w)
	if err := nbt.NewEncoder(zw).Encode(out, "Schematic"); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
