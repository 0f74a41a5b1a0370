package blockModel

import (
	"context"
	"fmt"
	"testing"

	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(id string, props ...string) primitives.Block {
	b := primitives.Block{ID: id, Properties: map[string]string{}}
	for i := 0; i+1 < len(props); i += 2 {
		b.Properties[props[i]] = props[i+1]
	}
	return b
}

func models(groups []HolderSet) [][]string {
	ret := [][]string{}
	for _, g := range groups {
		names := []string{}
		for _, o := range g.Options() {
			names = append(names, o.Model)
		}
		ret = append(ret, names)
	}
	return ret
}

func TestVariantsEmptyKey(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"blockstates/stone.json": `{"variants":{"":{"model":"block/stone"}}}`,
	})
	r := NewStateResolver(l, nil)
	for _, b := range []primitives.Block{
		block("minecraft:stone"),
		block("stone", "axis", "y"),
		block("stone", "facing", "north", "lit", "true"),
	} {
		res, err := r.Resolve(context.Background(), b)
		require.NoError(t, err)
		assert.Equal(t, ResolvedVariant, res.Kind)
		assert.Equal(t, [][]string{{"block/stone"}}, models(res.Groups))
		assert.Equal(t, "stone#", res.Key)
	}
}

func TestVariantsByProperty(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"blockstates/furnace.json": `{"variants":{
			"facing=north": {"model":"A"},
			"facing=south": {"model":"B", "y": 180}
		}}`,
	})
	r := NewStateResolver(l, nil)
	res, err := r.Resolve(context.Background(), block("furnace", "facing", "south"))
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	opts := res.Groups[0].Options()
	require.Len(t, opts, 1)
	assert.Equal(t, "B", opts[0].Model)
	assert.Equal(t, 180, opts[0].Y)
	assert.Equal(t, "furnace#facing=south", res.Key)

	// properties outside the key schema do not take part
	res, err = r.Resolve(context.Background(), block("furnace", "facing", "north", "lit", "true"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A"}}, models(res.Groups))
	assert.Equal(t, "furnace#facing=north", res.Key)

	res, err = r.Resolve(context.Background(), block("furnace", "facing", "up"))
	require.NoError(t, err)
	assert.Equal(t, ResolvedNothing, res.Kind)
	assert.Empty(t, res.Groups)
}

func TestVariantKeyUsesFirstKeySchema(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"blockstates/log.json": `{"variants":{
			"half=top,facing=east": {"model":"first"},
			"facing=east,half=bottom": {"model":"second"},
			"facing=east,half=top": {"model":"canonical"}
		}}`,
	})
	r := NewStateResolver(l, nil)
	res, err := r.Resolve(context.Background(), block("log", "half", "top", "facing", "east", "waterlogged", "false"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"canonical"}}, models(res.Groups))
}

func TestMultipart(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"blockstates/fence.json": `{"multipart":[
			{"apply":{"model":"post"}},
			{"when":{"north":"true"},"apply":{"model":"side","uvlock":true}},
			{"when":{"OR":[{"a":"1"},{"a":"2"}]},"apply":{"model":"or"}},
			{"when":{"AND":[{"east":"true"},{"west":"true"}]},"apply":{"model":"and"}},
			{"when":{"facing":"north|south","powered":true},"apply":[{"model":"alt1"},{"model":"alt2","weight":3}]}
		]}`,
	})
	r := NewStateResolver(l, nil)
	ctx := context.Background()
	for _, tc := range []struct {
		props []string
		want  [][]string
		key   string
	}{
		{nil, [][]string{{"post"}}, "fence#parts=0"},
		{[]string{"north", "false"}, [][]string{{"post"}}, "fence#parts=0"},
		{[]string{"north", "true"}, [][]string{{"post"}, {"side"}}, "fence#parts=0,1"},
		{[]string{"a", "1"}, [][]string{{"post"}, {"or"}}, "fence#parts=0,2"},
		{[]string{"a", "2"}, [][]string{{"post"}, {"or"}}, "fence#parts=0,2"},
		{[]string{"a", "3"}, [][]string{{"post"}}, "fence#parts=0"},
		{[]string{"east", "true"}, [][]string{{"post"}}, "fence#parts=0"},
		{[]string{"east", "true", "west", "true"}, [][]string{{"post"}, {"and"}}, "fence#parts=0,3"},
		{[]string{"facing", "south", "powered", "true"}, [][]string{{"post"}, {"alt1", "alt2"}}, "fence#parts=0,4"},
		{[]string{"facing", "east", "powered", "true"}, [][]string{{"post"}}, "fence#parts=0"},
		{[]string{"facing", "north", "powered", "false"}, [][]string{{"post"}}, "fence#parts=0"},
	} {
		res, err := r.Resolve(ctx, block("fence", tc.props...))
		require.NoError(t, err)
		assert.Equal(t, ResolvedMultipart, res.Kind)
		assert.Equal(t, tc.want, models(res.Groups), "%v", tc.props)
		assert.Equal(t, tc.key, res.Key, "%v", tc.props)
	}
	def, err := r.Definition(ctx, "fence")
	require.NoError(t, err)
	w, ok := def.(Multipart)[4].Apply.(WeightedHolders)
	require.True(t, ok)
	assert.Equal(t, 4, w.TotalWeight())
}

func TestMalformedDefinitions(t *testing.T) {
	for name, body := range map[string]string{
		"neither":   `{}`,
		"both":      `{"variants":{"":{"model":"a"}},"multipart":[]}`,
		"notjson":   `{"variants":`,
		"nomodel":   `{"variants":{"":{"x":90}}}`,
		"emptylist": `{"variants":{"":[]}}`,
		"badwhen":   `{"multipart":[{"when":{"a":{"b":"c"}},"apply":{"model":"x"}}]}`,
		"scalar":    `{"variants":{"":"block/stone"}}`,
	} {
		l := resource.NewMapLoader(map[string]string{"blockstates/" + name + ".json": body})
		_, err := NewStateResolver(l, nil).Resolve(context.Background(), block(name))
		assert.ErrorIs(t, err, ErrMalformed, name)
		assert.NotErrorIs(t, err, resource.ErrNotFound, name)
	}
}

func TestMissingDefinitionIsSoft(t *testing.T) {
	l := resource.NewMapLoader(nil)
	r := NewStateResolver(l, nil)
	res, err := r.Resolve(context.Background(), block("mystery"))
	require.NoError(t, err)
	assert.Equal(t, ResolvedNothing, res.Kind)
	assert.Empty(t, res.Groups)
	_, err = r.Definition(context.Background(), "mystery")
	assert.ErrorIs(t, err, resource.ErrNotFound)
	assert.Equal(t, int64(1), l.Reads())
}

func TestModelWithoutParent(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/plain.json": `{"textures":{"all":"block/plain"},"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"up":{"texture":"#all"}}}]}`,
	})
	m, err := NewModelResolver(l, nil, 0, 0).Resolve(context.Background(), "minecraft:block/plain")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"all": "block/plain"}, m.Textures)
	require.Len(t, m.Elements, 1)
	assert.Equal(t, [3]float64{16, 16, 16}, m.Elements[0].To)
	require.Contains(t, m.Elements[0].Faces, primitives.FaceUp)
	assert.Equal(t, "#all", m.Elements[0].Faces[primitives.FaceUp].Texture)
	assert.Empty(t, m.Parent)
}

func TestModelChainMerge(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/root.json":   `{"textures":{"a":"root_a","shared":"root"},"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"down":{"texture":"#a"}}}]}`,
		"models/block/middle.json": `{"parent":"block/root","textures":{"b":"middle_b","shared":"middle"}}`,
		"models/block/leaf.json":   `{"parent":"minecraft:block/middle","textures":{"c":"leaf_c"}}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	m, err := r.Resolve(context.Background(), "block/leaf")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a":      "root_a",
		"b":      "middle_b",
		"c":      "leaf_c",
		"shared": "middle",
	}, m.Textures)
	assert.Len(t, m.Elements, 1)
	assert.Empty(t, m.Parent)

	// the cached parent is left as it was
	root, err := r.Resolve(context.Background(), "block/root")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "root_a", "shared": "root"}, root.Textures)
}

func TestChildElementsReplaceParent(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/parent.json": `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"up":{"texture":"#x"}}},{"from":[0,0,0],"to":[1,1,1],"faces":{"up":{"texture":"#x"}}}]}`,
		"models/block/child.json":  `{"parent":"block/parent","elements":[{"from":[0,0,0],"to":[16,8,16],"faces":{"up":{"texture":"#x"}}}]}`,
	})
	m, err := NewModelResolver(l, nil, 0, 0).Resolve(context.Background(), "block/child")
	require.NoError(t, err)
	require.Len(t, m.Elements, 1)
	assert.Equal(t, [3]float64{16, 8, 16}, m.Elements[0].To)
}

func TestGrassBlockLikeModel(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/cube_bottom_top.json": `{"textures":{"particle":"#side","top":"block/parent_top","side":"block/grass_side","bottom":"block/dirt"}}`,
		"models/block/grass_block.json":     `{"parent":"block/cube_bottom_top","textures":{"top":"block/grass_block_top"}}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	m, err := r.Resolve(context.Background(), "block/grass_block")
	require.NoError(t, err)
	assert.Len(t, m.Textures, 4)
	assert.Equal(t, "block/grass_block_top", m.Textures["top"])
	assert.Equal(t, "block/grass_side", m.Textures["side"])
	assert.Equal(t, "block/dirt", m.Textures["bottom"])
	p, err := r.Texture(m, "#particle")
	require.NoError(t, err)
	assert.Equal(t, "block/grass_side", p)
}

func TestParentCycle(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/a.json": `{"parent":"b"}`,
		"models/b.json": `{"parent":"c"}`,
		"models/c.json": `{"parent":"a"}`,
	})
	_, err := NewModelResolver(l, nil, 0, 0).Resolve(context.Background(), "a")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrParentCycle)
}

func TestParentDepth(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("models/m%d.json", i)] = fmt.Sprintf(`{"parent":"m%d","textures":{"t%d":"x"}}`, i+1, i)
	}
	files["models/m40.json"] = `{}`
	l := resource.NewMapLoader(files)

	_, err := NewModelResolver(l, nil, 32, 0).Resolve(context.Background(), "m0")
	assert.ErrorIs(t, err, ErrParentDepth)

	m, err := NewModelResolver(l, nil, 40, 0).Resolve(context.Background(), "m0")
	require.NoError(t, err)
	assert.Len(t, m.Textures, 40)
}

func TestMissingModelsAreSoft(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/orphan.json": `{"parent":"block/gone","textures":{"a":"x"}}`,
		"models/block/builtin.json": `{"parent":"builtin/entity","textures":{"particle":"block/oak_planks"}}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	m, err := r.Resolve(context.Background(), "block/nothing")
	require.NoError(t, err)
	assert.Empty(t, m.Elements)

	m, err = r.Resolve(context.Background(), "block/orphan")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "x"}, m.Textures)

	m, err = r.Resolve(context.Background(), "block/builtin")
	require.NoError(t, err)
	assert.Empty(t, m.Parent)
	assert.Equal(t, "block/oak_planks", m.Textures["particle"])
}

func TestMalformedModel(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/broken.json":  `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"sideways":{"texture":"#a"}}}]}`,
		"models/badaxis.json": `{"elements":[{"from":[0,0,0],"to":[16,16,16],"rotation":{"axis":"w","angle":45,"origin":[8,8,8]},"faces":{"up":{"texture":"#a"}}}]}`,
		"models/child.json":   `{"parent":"broken"}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	for _, ref := range []string{"broken", "badaxis", "child"} {
		_, err := r.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrMalformed, ref)
	}
}

func TestResolveTexture(t *testing.T) {
	m := &Model{Name: "test", Textures: map[string]string{
		"a":     "#b",
		"b":     "minecraft:block/stone",
		"loop1": "#loop2",
		"loop2": "#loop1",
		"dang":  "#nowhere",
	}}
	tex, err := m.ResolveTexture("#a", DefaultMaxTextureHops)
	require.NoError(t, err)
	assert.Equal(t, "block/stone", tex)

	tex, err = m.ResolveTexture("block/dirt", DefaultMaxTextureHops)
	require.NoError(t, err)
	assert.Equal(t, "block/dirt", tex)

	_, err = m.ResolveTexture("#loop1", DefaultMaxTextureHops)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrTextureCycle)

	_, err = m.ResolveTexture("#dang", DefaultMaxTextureHops)
	assert.ErrorIs(t, err, ErrTextureUnbound)

	_, err = m.ResolveTexture("#a", 1)
	assert.ErrorIs(t, err, ErrTextureChain)
}

func TestResolveTextureLongChain(t *testing.T) {
	m := &Model{Name: "long", Textures: map[string]string{}}
	for i := 0; i < 20; i++ {
		m.Textures[fmt.Sprintf("t%d", i)] = fmt.Sprintf("#t%d", i+1)
	}
	m.Textures["t20"] = "block/end"
	_, err := m.ResolveTexture("#t0", 16)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrTextureChain)

	tex, err := m.ResolveTexture("#t0", 21)
	require.NoError(t, err)
	assert.Equal(t, "block/end", tex)
}

func TestFluidModel(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/water.json":    `{"textures":{"particle":"block/water_still"}}`,
		"models/block/cube_all.json": `{"parent":"block/cube","textures":{"particle":"#all"}}`,
		"models/block/cube.json":     `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"down":{"texture":"#down","cullface":"down"},"up":{"texture":"#up","cullface":"up"}}}],"textures":{"up":"#all","down":"#all"}}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	m, err := r.ResolveFor(context.Background(), block("water", "level", "0"), "block/water")
	require.NoError(t, err)
	require.Len(t, m.Elements, 1)
	tex, err := r.Texture(m, m.Elements[0].Faces[primitives.FaceUp].Texture)
	require.NoError(t, err)
	assert.Equal(t, "block/water_still", tex)

	m, err = r.ResolveFor(context.Background(), block("stone"), "block/water")
	require.NoError(t, err)
	assert.Empty(t, m.Elements)
}

func TestModelsLoadOnce(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/block/base.json": `{"textures":{"a":"x"}}`,
		"models/block/one.json":  `{"parent":"block/base"}`,
		"models/block/two.json":  `{"parent":"block/base"}`,
	})
	r := NewModelResolver(l, nil, 0, 0)
	for i := 0; i < 3; i++ {
		for _, ref := range []string{"block/one", "block/two", "block/base"} {
			_, err := r.Resolve(context.Background(), ref)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, int64(3), l.Reads())
}

func TestFaceDefCullDirection(t *testing.T) {
	l := resource.NewMapLoader(map[string]string{
		"models/x.json": `{"elements":[{"from":[0,0,0],"to":[16,16,16],"faces":{"bottom":{"texture":"#a","cullface":"bottom"},"north":{"texture":"#a"}}}]}`,
	})
	m, err := NewModelResolver(l, nil, 0, 0).Resolve(context.Background(), "x")
	require.NoError(t, err)
	faces := m.Elements[0].Faces
	require.Contains(t, faces, primitives.FaceDown)
	assert.Equal(t, primitives.FaceDown, faces[primitives.FaceDown].CullDirection(primitives.FaceDown))
	assert.Equal(t, primitives.FaceNorth, faces[primitives.FaceNorth].CullDirection(primitives.FaceNorth))
}
