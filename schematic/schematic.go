package schematic

import (
	"errors"
	"sort"

	"github.com/maxsupermanhd/WebSchem/primitives"
)

var (
	ErrFormat  = errors.New("malformed schematic")
	ErrVarint  = errors.New("varint too long")
	ErrVersion = errors.New("unsupported schematic version")
)

var air = primitives.Block{ID: "air", Properties: map[string]string{}}

// Schematic is a decoded Sponge schematic, a box of palette indices.
type Schematic struct {
	Name                  string
	Version               int
	DataVersion           int
	Width, Height, Length int
	Palette               []primitives.Block
	// Data holds one palette index per cell in y, z, x order.
	Data []int32
}

func (s *Schematic) Size() (int, int, int) {
	return s.Width, s.Height, s.Length
}

func (s *Schematic) Volume() int {
	return s.Width * s.Height * s.Length
}

func (s *Schematic) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < s.Width && y < s.Height && z < s.Length
}

func (s *Schematic) Index(x, y, z int) int {
	return y*s.Width*s.Length + z*s.Width + x
}

// BlockAt reports false outside the schematic. Cells without data are air.
func (s *Schematic) BlockAt(x, y, z int) (primitives.Block, bool) {
	if !s.Contains(x, y, z) {
		return primitives.Block{}, false
	}
	if len(s.Data) == 0 {
		return air, true
	}
	p := s.Data[s.Index(x, y, z)]
	if p < 0 || int(p) >= len(s.Palette) {
		return air, true
	}
	return s.Palette[p], true
}

type BlockCount struct {
	Block string `json:"block"`
	Count int    `json:"count"`
}

// Counts tallies palette entries by block id, most common first.
func (s *Schematic) Counts() []BlockCount {
	byID := map[string]int{}
	for _, p := range s.Data {
		if p >= 0 && int(p) < len(s.Palette) {
			byID[s.Palette[p].ID]++
		}
	}
	ret := make([]BlockCount, 0, len(byID))
	for id, c := range byID {
		ret = append(ret, BlockCount{Block: id, Count: c})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Count != ret[j].Count {
			return ret[i].Count > ret[j].Count
		}
		return ret[i].Block < ret[j].Block
	})
	return ret
}
