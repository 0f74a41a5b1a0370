package geometry

import (
	"context"
	"fmt"
	"strings"

	"github.com/maxsupermanhd/WebSchem/primitives"
)

// OcclusionOracle answers whether the neighbour at the given offset fully covers
// the face looking at it. Positions outside the grid never occlude.
type OcclusionOracle interface {
	IsOccludingNeighbor(dx, dy, dz int) bool
}

type OracleFunc func(dx, dy, dz int) bool

func (f OracleFunc) IsOccludingNeighbor(dx, dy, dz int) bool {
	return f(dx, dy, dz)
}

// Isolated is the oracle of a block with no neighbours at all.
var Isolated = OracleFunc(func(int, int, int) bool { return false })

// Enclosed is the oracle of a block buried on every side.
var Enclosed = OracleFunc(func(int, int, int) bool { return true })

// OcclusionMask is one bit per face direction, set when that side is covered.
type OcclusionMask uint8

func MaskOf(o OcclusionOracle) OcclusionMask {
	var m OcclusionMask
	for _, f := range primitives.AllFaces {
		if o.IsOccludingNeighbor(f.Offset()) {
			m |= 1 << f
		}
	}
	return m
}

func (m OcclusionMask) Covered(f primitives.Face) bool {
	return m&(1<<f) != 0
}

func (m OcclusionMask) Full() bool {
	return m == 0b111111
}

// IsOccludingNeighbor lets a mask stand in for the oracle it was taken from.
func (m OcclusionMask) IsOccludingNeighbor(dx, dy, dz int) bool {
	for _, f := range primitives.AllFaces {
		fx, fy, fz := f.Offset()
		if fx == dx && fy == dy && fz == dz {
			return m.Covered(f)
		}
	}
	return false
}

type Tint uint32

const (
	TintNone    Tint = 0
	TintFoliage Tint = 0x91bd59
	TintWater   Tint = 0x2439d6
	TintLava    Tint = 0xe85917
)

func (t Tint) RGB() (r, g, b uint8) {
	if t == TintNone {
		return 0xff, 0xff, 0xff
	}
	return uint8(t >> 16), uint8(t >> 8), uint8(t)
}

func (t Tint) String() string {
	if t == TintNone {
		return "none"
	}
	return fmt.Sprintf("#%06x", uint32(t))
}

// TintFor classifies a face by its tint group and resolved texture name.
func TintFor(texture string, tintIndex *int) Tint {
	switch {
	case tintIndex != nil:
		return TintFoliage
	case strings.HasPrefix(texture, "block/water_"):
		return TintWater
	case strings.HasPrefix(texture, "block/lava_"):
		return TintLava
	}
	return TintNone
}

// IsTransparentFace is true for faces of see-through blocks and for overlay textures.
func IsTransparentFace(blockID, texture string) bool {
	return primitives.IsTransparent(blockID) || strings.Contains(texture, "overlay")
}

// UV is a texture rectangle in 0-16 texel space.
type UV [4]float64

var FullUV = UV{0, 0, 16, 16}

type MaterialKey struct {
	Texture     string
	Rotation    int
	UV          UV
	Transparent bool
	Tint        Tint
}

// NewMaterialKey folds the equivalent spellings of a face into one key:
// unset and zero rotation, unset and full UV.
func NewMaterialKey(texture string, rotation int, uv *[4]float64, transparent bool, tint Tint) MaterialKey {
	k := MaterialKey{
		Texture:     texture,
		Rotation:    ((rotation % 360) + 360) % 360,
		UV:          FullUV,
		Transparent: transparent,
		Tint:        tint,
	}
	if uv != nil {
		k.UV = UV(*uv)
	}
	return k
}

func (k MaterialKey) String() string {
	return fmt.Sprintf("%s_rot=%d_uv=%v_transparent=%v_tint=%s", k.Texture, k.Rotation, k.UV, k.Transparent, k.Tint)
}

// Material is a cached face appearance. Handle carries whatever the material
// source attached to it (an atlas region, a GPU texture) and is opaque here.
type Material struct {
	Key    MaterialKey
	Handle any
}

type MaterialSource interface {
	Material(ctx context.Context, key MaterialKey) (*Material, error)
}

type MaterialFunc func(ctx context.Context, key MaterialKey) (*Material, error)

func (f MaterialFunc) Material(ctx context.Context, key MaterialKey) (*Material, error) {
	return f(ctx, key)
}
