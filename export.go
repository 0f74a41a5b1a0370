package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/maxsupermanhd/WebSchem/geometry"
	"github.com/maxsupermanhd/WebSchem/renderSession"
	"github.com/maxsupermanhd/WebSchem/textureAtlas"
)

type exportedQuad struct {
	Face        string               `json:"face"`
	Texture     string               `json:"texture"`
	Tint        string               `json:"tint"`
	Transparent bool                 `json:"transparent"`
	Normal      [3]float64           `json:"normal"`
	Vertices    [4][3]float64        `json:"vertices"`
	UVs         [4][2]float64        `json:"uvs"`
	Region      *textureAtlas.Region `json:"region,omitempty"`
}

type exportedTemplate struct {
	Block  string         `json:"block"`
	Models []string       `json:"models"`
	Quads  []exportedQuad `json:"quads"`
}

type exportedPlacement struct {
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Z        int        `json:"z"`
	Offset   [3]float64 `json:"offset"`
	Template int        `json:"template"`
}

type exportedScene struct {
	Name       string                   `json:"name"`
	Width      int                      `json:"width"`
	Height     int                      `json:"height"`
	Length     int                      `json:"length"`
	AtlasSize  int                      `json:"atlas_size"`
	Templates  []exportedTemplate       `json:"templates"`
	Placements []exportedPlacement      `json:"placements"`
	Skipped    int                      `json:"skipped"`
	Failed     int                      `json:"failed"`
	Stats      renderSession.CacheStats `json:"stats"`
}

func exportQuad(q geometry.Quad, sheet *textureAtlas.Sheet) exportedQuad {
	ret := exportedQuad{
		Face:        q.Face.String(),
		Texture:     q.Material.Key.Texture,
		Tint:        q.Material.Key.Tint.String(),
		Transparent: q.Material.Key.Transparent,
		Normal:      [3]float64(q.Normal),
	}
	for i := range q.Vertices {
		ret.Vertices[i] = [3]float64(q.Vertices[i])
		ret.UVs[i] = [2]float64(q.UVs[i])
	}
	if sheet != nil {
		if r, ok := sheet.Region(q.Material); ok {
			ret.Region = &r
		}
	}
	return ret
}

// exportScene turns a render into the JSON document served by the API. Every
// distinct geometry template is written once and placements refer to it.
func exportScene(res *renderResult) exportedScene {
	ret := exportedScene{
		Width:      res.Scene.Width,
		Height:     res.Scene.Height,
		Length:     res.Scene.Length,
		Templates:  []exportedTemplate{},
		Placements: make([]exportedPlacement, 0, len(res.Scene.Placements)),
		Skipped:    res.Scene.Skipped,
		Failed:     res.Scene.Failed,
		Stats:      res.Stats,
	}
	if res.Schematic != nil {
		ret.Name = res.Schematic.Name
	}
	if res.Sheet != nil {
		ret.AtlasSize = res.Sheet.Size
	}
	index := map[*renderSession.Geometry]int{}
	for _, p := range res.Scene.Placements {
		t, ok := index[p.Geometry]
		if !ok {
			t = len(ret.Templates)
			index[p.Geometry] = t
			ret.Templates = append(ret.Templates, exportTemplate(p.Geometry, res.Sheet))
		}
		ret.Placements = append(ret.Placements, exportedPlacement{
			X:        p.Pos.X,
			Y:        p.Pos.Y,
			Z:        p.Pos.Z,
			Offset:   [3]float64(p.Offset),
			Template: t,
		})
	}
	return ret
}

func exportTemplate(g *renderSession.Geometry, sheet *textureAtlas.Sheet) exportedTemplate {
	t := exportedTemplate{Block: g.Block.Key(), Models: []string{}, Quads: []exportedQuad{}}
	for _, h := range g.Selection {
		t.Models = append(t.Models, h.Model)
	}
	for i := range g.Meshes {
		for _, q := range g.Meshes[i].Quads(mgl64.Ident4()) {
			t.Quads = append(t.Quads, exportQuad(q, sheet))
		}
	}
	return t
}

func tintMaterialName(t geometry.Tint) string {
	if t == geometry.TintNone {
		return "atlas"
	}
	return fmt.Sprintf("atlas_%06x", uint32(t))
}

// writeOBJ writes every placed quad in world space. Texture coordinates point
// into the atlas sheet, one material per tint colour.
func writeOBJ(w io.Writer, res *renderResult, mtllib string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %dx%dx%d, %d placements\n", res.Scene.Width, res.Scene.Height, res.Scene.Length, len(res.Scene.Placements))
	if mtllib != "" {
		fmt.Fprintf(bw, "mtllib %s\n", mtllib)
	}
	vertex := 1
	current := ""
	for _, p := range res.Scene.Placements {
		world := p.World()
		for i := range p.Geometry.Meshes {
			for _, q := range p.Geometry.Meshes[i].Quads(world) {
				if m := tintMaterialName(q.Material.Key.Tint); m != current {
					fmt.Fprintf(bw, "usemtl %s\n", m)
					current = m
				}
				region := textureAtlas.Region{U0: 0, V0: 0, U1: 1, V1: 1}
				if res.Sheet != nil {
					if r, ok := res.Sheet.Regions[q.Material.Key.Texture]; ok {
						region = r
					}
				}
				for _, v := range q.Vertices {
					fmt.Fprintf(bw, "v %.5f %.5f %.5f\n", v[0], v[1], v[2])
				}
				for _, uv := range q.UVs {
					u, v := region.Map(uv[0], uv[1])
					fmt.Fprintf(bw, "vt %.6f %.6f\n", u, 1-v)
				}
				fmt.Fprintf(bw, "vn %.4f %.4f %.4f\n", q.Normal[0], q.Normal[1], q.Normal[2])
				n := (vertex-1)/4 + 1
				fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d %d/%d/%d\n",
					vertex, vertex, n, vertex+1, vertex+1, n, vertex+2, vertex+2, n, vertex+3, vertex+3, n)
				vertex += 4
			}
		}
	}
	return bw.Flush()
}

// writeMTL lists the tint materials used by writeOBJ, all sampling the atlas image.
func writeMTL(w io.Writer, res *renderResult, atlasImage string) error {
	tints := map[geometry.Tint]bool{geometry.TintNone: true}
	for _, p := range res.Scene.Placements {
		for i := range p.Geometry.Meshes {
			m := &p.Geometry.Meshes[i]
			for _, f := range m.VisibleFaces() {
				tints[m.Material(f).Key.Tint] = true
			}
		}
	}
	sorted := make([]geometry.Tint, 0, len(tints))
	for t := range tints {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	bw := bufio.NewWriter(w)
	for _, t := range sorted {
		r, g, b := t.RGB()
		fmt.Fprintf(bw, "newmtl %s\nKd %.4f %.4f %.4f\n", tintMaterialName(t), float64(r)/255, float64(g)/255, float64(b)/255)
		if atlasImage != "" {
			fmt.Fprintf(bw, "map_Kd %s\nmap_d %s\n", atlasImage, atlasImage)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}
