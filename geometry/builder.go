package geometry

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/maxsupermanhd/WebSchem/blockModel"
	"github.com/maxsupermanhd/WebSchem/primitives"
)

// MinThickness keeps flat elements (cross plants, rails, carpets) renderable.
const MinThickness = 1.0 / 1024

func normalize(v float64) float64 {
	return v/16 - 0.5
}

type Builder struct {
	logger         *log.Logger
	maxTextureHops int
}

func NewBuilder(logger *log.Logger, maxTextureHops int) *Builder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxTextureHops <= 0 {
		maxTextureHops = blockModel.DefaultMaxTextureHops
	}
	return &Builder{logger: logger, maxTextureHops: maxTextureHops}
}

// Build turns the elements of a flattened model into cuboid meshes in the
// block-local frame, centred on the origin with a side of 1.
func (b *Builder) Build(ctx context.Context, m *blockModel.Model, h blockModel.ModelHolder, blk primitives.Block, oracle OcclusionOracle, materials MaterialSource) ([]Mesh, error) {
	if oracle == nil {
		oracle = Isolated
	}
	holder := holderTransform(h)
	ret := []Mesh{}
	for i := range m.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &m.Elements[i]
		if len(e.Faces) == 0 {
			continue
		}
		mesh := Mesh{Element: i, Rotated: e.Rotation != nil}
		for a := 0; a < 3; a++ {
			lo, hi := normalize(e.From[a]), normalize(e.To[a])
			if lo > hi {
				lo, hi = hi, lo
			}
			mesh.Size[a] = math.Max(hi-lo, MinThickness)
			mesh.Center[a] = (lo + hi) / 2
		}
		visible := 0
		for _, f := range primitives.AllFaces {
			fd := e.Faces[f]
			if fd == nil {
				continue
			}
			if fd.Texture == "" {
				b.logger.Printf("Face %s of element %d in %s has no texture", f, i, m.Name)
				continue
			}
			if b.culled(e, f, fd, h, oracle) {
				continue
			}
			tex, err := m.ResolveTexture(fd.Texture, b.maxTextureHops)
			if err != nil {
				return nil, err
			}
			key := NewMaterialKey(tex, fd.Rotation, fd.UV, IsTransparentFace(blk.ID, tex), TintFor(tex, fd.TintIndex))
			mat, err := materials.Material(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("material %s of %s: %w", key, m.Name, err)
			}
			mesh.Materials[f] = mat
			visible++
		}
		if visible == 0 {
			continue
		}
		if visible == len(primitives.AllFaces) {
			mesh.collapse()
		}
		mesh.Transform = holder.Mul4(elementTransform(e.Rotation)).Mul4(mgl64.Translate3D(mesh.Center[0], mesh.Center[1], mesh.Center[2]))
		ret = append(ret, mesh)
	}
	return ret, nil
}

// culled decides whether the neighbour hides the face. Rotated elements are
// always drawn. Holder rotations come in quarter turns, so the cull direction
// is turned with the model and checked where it ends up. A face without a
// cullface is only culled when it lies on the cell boundary, so interior faces
// stay drawn even when the neighbour would hide them.
func (b *Builder) culled(e *blockModel.Element, f primitives.Face, fd *blockModel.FaceDef, h blockModel.ModelHolder, oracle OcclusionOracle) bool {
	if e.Rotation != nil {
		return false
	}
	if fd.CullFace == nil && !onBoundary(e, f) {
		return false
	}
	dir := fd.CullDirection(f).RotateX(h.X).RotateY(h.Y)
	return oracle.IsOccludingNeighbor(dir.Offset())
}

// onBoundary reports whether the face lies on the side of the block cell it looks at.
func onBoundary(e *blockModel.Element, f primitives.Face) bool {
	lo := func(a int) float64 { return math.Min(e.From[a], e.To[a]) }
	hi := func(a int) float64 { return math.Max(e.From[a], e.To[a]) }
	switch f {
	case primitives.FaceSouth:
		return hi(2) >= 16
	case primitives.FaceNorth:
		return lo(2) <= 0
	case primitives.FaceEast:
		return hi(0) >= 16
	case primitives.FaceWest:
		return lo(0) <= 0
	case primitives.FaceUp:
		return hi(1) >= 16
	case primitives.FaceDown:
		return lo(1) <= 0
	}
	return false
}

// holderTransform rotates around X first, then Y. The pack format measures
// angles the other way round from the right-handed frame used here.
func holderTransform(h blockModel.ModelHolder) mgl64.Mat4 {
	ret := mgl64.Ident4()
	if h.X%360 != 0 {
		ret = mgl64.HomogRotate3DX(mgl64.DegToRad(-float64(h.X))).Mul4(ret)
	}
	if h.Y%360 != 0 {
		ret = mgl64.HomogRotate3DY(mgl64.DegToRad(-float64(h.Y))).Mul4(ret)
	}
	return ret
}

func elementTransform(r *blockModel.ElementRotation) mgl64.Mat4 {
	if r == nil || r.Angle == 0 {
		return mgl64.Ident4()
	}
	angle := mgl64.DegToRad(-r.Angle)
	var rot, scale mgl64.Mat4
	s := 1.0
	if r.Rescale {
		s = 1 / math.Cos(mgl64.DegToRad(r.Angle))
	}
	switch r.Axis {
	case "x":
		rot = mgl64.HomogRotate3DX(angle)
		scale = mgl64.Scale3D(1, s, s)
	case "y":
		rot = mgl64.HomogRotate3DY(angle)
		scale = mgl64.Scale3D(s, 1, s)
	default:
		rot = mgl64.HomogRotate3DZ(angle)
		scale = mgl64.Scale3D(s, s, 1)
	}
	ox, oy, oz := normalize(r.Origin[0]), normalize(r.Origin[1]), normalize(r.Origin[2])
	return mgl64.Translate3D(ox, oy, oz).Mul4(rot).Mul4(scale).Mul4(mgl64.Translate3D(-ox, -oy, -oz))
}
