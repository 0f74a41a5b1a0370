package geometry

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/maxsupermanhd/WebSchem/blockModel"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMaterials struct {
	lock  sync.Mutex
	cache map[MaterialKey]*Material
}

func newTestMaterials() *testMaterials {
	return &testMaterials{cache: map[MaterialKey]*Material{}}
}

func (t *testMaterials) Material(_ context.Context, k MaterialKey) (*Material, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if m, ok := t.cache[k]; ok {
		return m, nil
	}
	m := &Material{Key: k}
	t.cache[k] = m
	return m, nil
}

func model(t *testing.T, js string) *blockModel.Model {
	m, err := blockModel.ParseModel("test", []byte(js))
	require.NoError(t, err)
	return m
}

const cubeJSON = `{"textures":{"all":"block/stone","particle":"#all"},"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{
	"down":{"texture":"#all","cullface":"down"},
	"up":{"texture":"#all","cullface":"up"},
	"north":{"texture":"#all","cullface":"north"},
	"south":{"texture":"#all","cullface":"south"},
	"west":{"texture":"#all","cullface":"west"},
	"east":{"texture":"#all","cullface":"east"}}}]}`

func stone() primitives.Block {
	return primitives.Block{ID: "stone", Properties: map[string]string{}}
}

func onlyFrom(faces ...primitives.Face) OcclusionOracle {
	return OracleFunc(func(dx, dy, dz int) bool {
		for _, f := range faces {
			fx, fy, fz := f.Offset()
			if fx == dx && fy == dy && fz == dz {
				return true
			}
		}
		return false
	})
}

func TestCubeCulling(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, cubeJSON)
	ctx := context.Background()

	meshes, err := b.Build(ctx, m, blockModel.ModelHolder{Model: "cube"}, stone(), Isolated, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Len(t, meshes[0].VisibleFaces(), 6)
	assert.Len(t, meshes[0].Quads(mgl64.Ident4()), 6)

	meshes, err = b.Build(ctx, m, blockModel.ModelHolder{Model: "cube"}, stone(), Enclosed, newTestMaterials())
	require.NoError(t, err)
	assert.Empty(t, meshes)

	meshes, err = b.Build(ctx, m, blockModel.ModelHolder{Model: "cube"}, stone(), onlyFrom(primitives.FaceUp, primitives.FaceWest), newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.ElementsMatch(t, []primitives.Face{primitives.FaceSouth, primitives.FaceNorth, primitives.FaceEast, primitives.FaceDown}, meshes[0].VisibleFaces())
}

func TestSharedMaterialCollapse(t *testing.T) {
	b := NewBuilder(nil, 0)
	meshes, err := b.Build(context.Background(), model(t, cubeJSON), blockModel.ModelHolder{}, stone(), Isolated, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	require.NotNil(t, meshes[0].Shared)
	assert.Equal(t, "block/stone", meshes[0].Shared.Key.Texture)
	assert.Equal(t, [6]*Material{}, meshes[0].Materials)

	distinct := model(t, `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{
		"down":{"texture":"block/a"},"up":{"texture":"block/b"},"north":{"texture":"block/a"},
		"south":{"texture":"block/a"},"west":{"texture":"block/a"},"east":{"texture":"block/a"}}}]}`)
	meshes, err = b.Build(context.Background(), distinct, blockModel.ModelHolder{}, stone(), Isolated, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Nil(t, meshes[0].Shared)
	assert.Equal(t, "block/b", meshes[0].Material(primitives.FaceUp).Key.Texture)
	assert.Same(t, meshes[0].Material(primitives.FaceDown), meshes[0].Material(primitives.FaceNorth))
}

func TestFlatElement(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, `{"elements":[{"from":[0,0,0],"to":[16,0,16],"faces":{"up":{"texture":"block/rail"},"down":{"texture":"block/rail"}}}]}`)
	meshes, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, primitives.Block{ID: "rail"}, Isolated, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Greater(t, meshes[0].Size[1], 0.0)
	for _, q := range meshes[0].Quads(mgl64.Ident4()) {
		area := q.Vertices[1].Sub(q.Vertices[0]).Cross(q.Vertices[2].Sub(q.Vertices[1])).Len()
		assert.Greater(t, area, 0.5, q.Face.String())
		for _, v := range q.Vertices {
			assert.False(t, math.IsNaN(v[0]) || math.IsNaN(v[1]) || math.IsNaN(v[2]))
		}
	}
}

func TestElementWithoutFacesDropped(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{}},{"from":[0,0,0],"to":[8,8,8],"faces":{"up":{"texture":"block/a"}}}]}`)
	meshes, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, stone(), Isolated, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, 1, meshes[0].Element)
	assert.InDeltaSlice(t, []float64{-0.25, -0.25, -0.25}, meshes[0].Center[:], 1e-9)
	for _, q := range meshes[0].Quads(mgl64.Ident4()) {
		for _, v := range q.Vertices {
			for a := 0; a < 3; a++ {
				assert.GreaterOrEqual(t, v[a], -0.5-1e-9)
				assert.LessOrEqual(t, v[a], 1e-9)
			}
		}
	}
}

func TestInteriorFacesNeedExplicitCullface(t *testing.T) {
	b := NewBuilder(nil, 0)
	slab := model(t, `{"elements":[{"from":[0,0,0],"to":[16,8,16],"faces":{
		"down":{"texture":"block/s"},"up":{"texture":"block/s"},"north":{"texture":"block/s"},
		"south":{"texture":"block/s"},"west":{"texture":"block/s"},"east":{"texture":"block/s"}}}]}`)
	meshes, err := b.Build(context.Background(), slab, blockModel.ModelHolder{}, primitives.Block{ID: "stone_slab"}, Enclosed, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.Equal(t, []primitives.Face{primitives.FaceUp}, meshes[0].VisibleFaces())
}

func TestHolderRotationTurnsCulling(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"north":{"texture":"block/front","cullface":"north"}}}]}`)
	h := blockModel.ModelHolder{Model: "x", Y: 90}
	ctx := context.Background()

	meshes, err := b.Build(ctx, m, h, stone(), onlyFrom(primitives.FaceNorth), newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	quads := meshes[0].Quads(mgl64.Ident4())
	require.Len(t, quads, 1)
	assert.InDeltaSlice(t, []float64{1, 0, 0}, quads[0].Normal[:], 1e-9)

	meshes, err = b.Build(ctx, m, h, stone(), onlyFrom(primitives.FaceEast), newTestMaterials())
	require.NoError(t, err)
	assert.Empty(t, meshes)

	up := model(t, `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"up":{"texture":"block/top","cullface":"up"}}}]}`)
	hx := blockModel.ModelHolder{Model: "x", X: 90}
	meshes, err = b.Build(ctx, up, hx, stone(), onlyFrom(primitives.FaceUp), newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	quads = meshes[0].Quads(mgl64.Ident4())
	assert.InDeltaSlice(t, []float64{0, 0, -1}, quads[0].Normal[:], 1e-9)
	meshes, err = b.Build(ctx, up, hx, stone(), onlyFrom(primitives.FaceNorth), newTestMaterials())
	require.NoError(t, err)
	assert.Empty(t, meshes)
}

func TestRotatedElementsAreNeverCulled(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, `{"elements":[{"from":[0.8,0,8],"to":[15.2,16,8],"rotation":{"origin":[8,8,8],"axis":"y","angle":45,"rescale":true},
		"faces":{"north":{"texture":"block/fern","cullface":"north"},"south":{"texture":"block/fern","cullface":"south"}}}]}`)
	meshes, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, primitives.Block{ID: "fern"}, Enclosed, newTestMaterials())
	require.NoError(t, err)
	require.Len(t, meshes, 1)
	assert.True(t, meshes[0].Rotated)
	assert.Len(t, meshes[0].VisibleFaces(), 2)
}

func maxHorizontal(quads []Quad) float64 {
	ret := 0.0
	for _, q := range quads {
		for _, v := range q.Vertices {
			ret = math.Max(ret, math.Max(math.Abs(v[0]), math.Abs(v[2])))
		}
	}
	return ret
}

func TestElementRotationRescale(t *testing.T) {
	b := NewBuilder(nil, 0)
	build := func(rescale bool) []Quad {
		r := blockModel.ElementRotation{Origin: [3]float64{8, 8, 8}, Axis: "y", Angle: 45, Rescale: rescale}
		rj, err := json.Marshal(r)
		require.NoError(t, err)
		m := model(t, `{"elements":[{"from":[0,0,0],"to":[16,16,16],"rotation":`+string(rj)+`,"faces":{"up":{"texture":"block/a"}}}]}`)
		meshes, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, stone(), Isolated, newTestMaterials())
		require.NoError(t, err)
		require.Len(t, meshes, 1)
		return meshes[0].Quads(mgl64.Ident4())
	}
	assert.InDelta(t, math.Sqrt2/2, maxHorizontal(build(false)), 1e-9)
	assert.InDelta(t, 1.0, maxHorizontal(build(true)), 1e-9)
}

func TestMaterialKeys(t *testing.T) {
	full := [4]float64{0, 0, 16, 16}
	half := [4]float64{0, 8, 16, 16}
	assert.Equal(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 0, &full, false, TintNone))
	assert.Equal(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 360, nil, false, TintNone))
	assert.NotEqual(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 0, &half, false, TintNone))
	assert.NotEqual(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 90, nil, false, TintNone))
	assert.NotEqual(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 0, nil, true, TintNone))
	assert.NotEqual(t, NewMaterialKey("block/a", 0, nil, false, TintNone), NewMaterialKey("block/a", 0, nil, false, TintFoliage))
	assert.Equal(t, 270, NewMaterialKey("block/a", -90, nil, false, TintNone).Rotation)
}

func TestFaceClassification(t *testing.T) {
	zero := 0
	assert.Equal(t, TintFoliage, TintFor("block/grass_block_top", &zero))
	assert.Equal(t, TintWater, TintFor("block/water_still", nil))
	assert.Equal(t, TintLava, TintFor("block/lava_flow", nil))
	assert.Equal(t, TintNone, TintFor("block/stone", nil))

	assert.True(t, IsTransparentFace("glass", "block/glass"))
	assert.True(t, IsTransparentFace("grass_block", "block/grass_block_side_overlay"))
	assert.False(t, IsTransparentFace("grass_block", "block/grass_block_side"))

	r, g, bl := TintFoliage.RGB()
	assert.Equal(t, [3]uint8{0x91, 0xbd, 0x59}, [3]uint8{r, g, bl})
}

func TestOverlayGetsOwnMaterial(t *testing.T) {
	b := NewBuilder(nil, 0)
	m := model(t, `{"textures":{"side":"block/grass_block_side","overlay":"block/grass_block_side_overlay"},"elements":[
		{"from":[0,0,0],"to":[16,16,16],"faces":{"north":{"texture":"#side"}}},
		{"from":[0,0,0],"to":[16,16,16],"faces":{"north":{"texture":"#overlay","tintindex":0}}}]}`)
	mats := newTestMaterials()
	meshes, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, primitives.Block{ID: "grass_block"}, Isolated, mats)
	require.NoError(t, err)
	require.Len(t, meshes, 2)
	base, overlay := meshes[0].Material(primitives.FaceNorth), meshes[1].Material(primitives.FaceNorth)
	assert.Equal(t, TintNone, base.Key.Tint)
	assert.False(t, base.Key.Transparent)
	assert.Equal(t, TintFoliage, overlay.Key.Tint)
	assert.True(t, overlay.Key.Transparent)
	assert.Len(t, mats.cache, 2)
}

func TestUnresolvableTextureIsMalformed(t *testing.T) {
	b := NewBuilder(nil, 4)
	m := model(t, `{"textures":{"a":"#b"},"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"up":{"texture":"#a"}}}]}`)
	_, err := b.Build(context.Background(), m, blockModel.ModelHolder{}, stone(), Isolated, newTestMaterials())
	assert.ErrorIs(t, err, blockModel.ErrMalformed)
}

func TestFaceUVRotation(t *testing.T) {
	k := NewMaterialKey("block/a", 90, &[4]float64{0, 0, 8, 16}, false, TintNone)
	uvs := faceUVs(k)
	assert.Equal(t, mgl64.Vec2{0, 1}, uvs[0])
	assert.Equal(t, mgl64.Vec2{0.5, 1}, uvs[1])
	assert.Equal(t, mgl64.Vec2{0.5, 0}, uvs[2])
	assert.Equal(t, mgl64.Vec2{0, 0}, uvs[3])
}

func TestOcclusionMask(t *testing.T) {
	assert.True(t, MaskOf(Enclosed).Full())
	assert.Equal(t, OcclusionMask(0), MaskOf(Isolated))
	m := MaskOf(onlyFrom(primitives.FaceUp, primitives.FaceEast))
	assert.True(t, m.Covered(primitives.FaceUp))
	assert.True(t, m.Covered(primitives.FaceEast))
	assert.False(t, m.Covered(primitives.FaceDown))
	assert.True(t, m.IsOccludingNeighbor(0, 1, 0))
	assert.False(t, m.IsOccludingNeighbor(0, -1, 0))
	assert.False(t, m.IsOccludingNeighbor(2, 0, 0))
}
