package geometry

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/maxsupermanhd/WebSchem/primitives"
)

// Mesh is one cuboid element. Vertices are produced around the origin with the
// given Size and then moved by Transform into the block-local frame.
type Mesh struct {
	Element   int
	Rotated   bool
	Size      mgl64.Vec3
	Center    mgl64.Vec3
	Transform mgl64.Mat4
	// Materials is indexed by face, nil for faces that are not drawn.
	// When all six faces share one material it is kept in Shared instead.
	Materials [6]*Material
	Shared    *Material
}

func (m *Mesh) collapse() {
	first := m.Materials[0]
	for _, mat := range m.Materials[1:] {
		if mat != first {
			return
		}
	}
	m.Shared = first
	m.Materials = [6]*Material{}
}

// Material returns the material drawn on the face or nil when the face is hidden.
func (m *Mesh) Material(f primitives.Face) *Material {
	if m.Shared != nil {
		return m.Shared
	}
	return m.Materials[f]
}

func (m *Mesh) VisibleFaces() []primitives.Face {
	ret := []primitives.Face{}
	for _, f := range primitives.AllFaces {
		if m.Material(f) != nil {
			ret = append(ret, f)
		}
	}
	return ret
}

type Quad struct {
	Face     primitives.Face
	Material *Material
	Normal   mgl64.Vec3
	// Vertices go counter-clockwise seen from outside, starting at the
	// top-left corner of the texture.
	Vertices [4]mgl64.Vec3
	UVs      [4]mgl64.Vec2
}

// corner signs per face in top-left, bottom-left, bottom-right, top-right order
var faceCorners = [6][4][3]float64{
	primitives.FaceSouth: {{-1, 1, 1}, {-1, -1, 1}, {1, -1, 1}, {1, 1, 1}},
	primitives.FaceNorth: {{1, 1, -1}, {1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}},
	primitives.FaceEast:  {{1, 1, 1}, {1, -1, 1}, {1, -1, -1}, {1, 1, -1}},
	primitives.FaceWest:  {{-1, 1, -1}, {-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}},
	primitives.FaceUp:    {{-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, -1}},
	primitives.FaceDown:  {{-1, -1, 1}, {-1, -1, -1}, {1, -1, -1}, {1, -1, 1}},
}

// Quads expands the visible faces into transformed quads. An additional
// transform (the world placement) is applied after the mesh's own.
func (m *Mesh) Quads(world mgl64.Mat4) []Quad {
	t := world.Mul4(m.Transform)
	half := m.Size.Mul(0.5)
	ret := []Quad{}
	for _, f := range primitives.AllFaces {
		mat := m.Material(f)
		if mat == nil {
			continue
		}
		q := Quad{Face: f, Material: mat}
		for i, c := range faceCorners[f] {
			local := mgl64.Vec3{c[0] * half[0], c[1] * half[1], c[2] * half[2]}
			q.Vertices[i] = mgl64.TransformCoordinate(local, t)
		}
		dx, dy, dz := f.Offset()
		q.Normal = mgl64.TransformNormal(mgl64.Vec3{float64(dx), float64(dy), float64(dz)}, t).Normalize()
		q.UVs = faceUVs(mat.Key)
		ret = append(ret, q)
	}
	return ret
}

// faceUVs maps the key's texel rectangle to 0-1 coordinates, turning the
// assignment by the face rotation in quarter steps.
func faceUVs(k MaterialKey) [4]mgl64.Vec2 {
	u0, v0, u1, v1 := k.UV[0]/16, k.UV[1]/16, k.UV[2]/16, k.UV[3]/16
	corners := [4]mgl64.Vec2{{u0, v0}, {u0, v1}, {u1, v1}, {u1, v0}}
	shift := (k.Rotation / 90) % 4
	var ret [4]mgl64.Vec2
	for i := range ret {
		ret[i] = corners[(i+shift)%4]
	}
	return ret
}
