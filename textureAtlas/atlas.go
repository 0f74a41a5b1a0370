package textureAtlas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/maxsupermanhd/WebSchem/geometry"
	"github.com/maxsupermanhd/WebSchem/resource"
	"github.com/nfnt/resize"
	"golang.org/x/sync/singleflight"
)

const DefaultTileSize = 16

var (
	placeholderA = color.NRGBA{0xf8, 0x00, 0xf8, 0xff}
	placeholderB = color.NRGBA{0x00, 0x00, 0x00, 0xff}
)

// Region is a rectangle of the atlas in 0-1 texture coordinates.
type Region struct {
	U0 float64 `json:"u0"`
	V0 float64 `json:"v0"`
	U1 float64 `json:"u1"`
	V1 float64 `json:"v1"`
}

// Sub narrows the region to a face UV rectangle given in 0-16 texel space.
func (r Region) Sub(uv geometry.UV) Region {
	w, h := r.U1-r.U0, r.V1-r.V0
	return Region{
		U0: r.U0 + w*uv[0]/16,
		V0: r.V0 + h*uv[1]/16,
		U1: r.U0 + w*uv[2]/16,
		V1: r.V0 + h*uv[3]/16,
	}
}

// Sprite is one scaled texture waiting for a slot in the sheet.
type Sprite struct {
	Name     string
	Image    *image.NRGBA
	Animated bool
	Missing  bool
	refs     int
}

// Handle is what materials carry around: the sprite plus the face appearance.
type Handle struct {
	Sprite *Sprite
	Key    geometry.MaterialKey
}

type Atlas struct {
	logger   *log.Logger
	loader   resource.Loader
	tileSize int

	lock    sync.Mutex
	sprites map[string]*Sprite
	flight  singleflight.Group
}

func New(loader resource.Loader, logger *log.Logger, tileSize int) *Atlas {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &Atlas{
		logger:   logger,
		loader:   loader,
		tileSize: tileSize,
		sprites:  map[string]*Sprite{},
	}
}

func (a *Atlas) TileSize() int {
	return a.tileSize
}

// Sprite loads a texture, falling back to the placeholder when it is missing or undecodable.
func (a *Atlas) Sprite(ctx context.Context, name string) (*Sprite, error) {
	a.lock.Lock()
	s, ok := a.sprites[name]
	a.lock.Unlock()
	if ok {
		return s, nil
	}
	v, err, _ := a.flight.Do(name, func() (any, error) {
		img, animated, err := a.load(ctx, name)
		missing := false
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			a.logger.Printf("Texture %s unavailable, using placeholder: %v", name, err)
			img = Placeholder(a.tileSize)
			missing = true
		}
		a.lock.Lock()
		defer a.lock.Unlock()
		if s, ok := a.sprites[name]; ok {
			return s, nil
		}
		s := &Sprite{Name: name, Image: img, Animated: animated, Missing: missing}
		a.sprites[name] = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Sprite), nil
}

func (a *Atlas) load(ctx context.Context, name string) (*image.NRGBA, bool, error) {
	d, err := a.loader.GetBinary(ctx, resource.TexturePath(name))
	if err != nil {
		return nil, false, err
	}
	src, err := png.Decode(bytes.NewReader(d))
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", name, err)
	}
	b := src.Bounds()
	animated := false
	// animated textures are vertical strips of square frames
	if b.Dy() > b.Dx() {
		b.Max.Y = b.Min.Y + b.Dx()
		animated = true
	}
	frame := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(frame, frame.Bounds(), src, b.Min, draw.Src)
	if frame.Bounds().Dx() == a.tileSize && frame.Bounds().Dy() == a.tileSize {
		return frame, animated, nil
	}
	scaled := resize.Resize(uint(a.tileSize), uint(a.tileSize), frame, resize.NearestNeighbor)
	ret := image.NewNRGBA(image.Rect(0, 0, a.tileSize, a.tileSize))
	draw.Draw(ret, ret.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return ret, animated, nil
}

// Placeholder is the magenta and black checkerboard drawn for missing textures.
func Placeholder(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	if half == 0 {
		half = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/half+y/half)%2 == 0 {
				img.SetNRGBA(x, y, placeholderA)
			} else {
				img.SetNRGBA(x, y, placeholderB)
			}
		}
	}
	return img
}

// MaterialHandle attaches the sprite of the material's texture, counting its users.
func (a *Atlas) MaterialHandle(ctx context.Context, key geometry.MaterialKey) (any, error) {
	s, err := a.Sprite(ctx, key.Texture)
	if err != nil {
		return nil, err
	}
	a.lock.Lock()
	s.refs++
	a.lock.Unlock()
	return &Handle{Sprite: s, Key: key}, nil
}

// Release drops a sprite once no material uses it.
func (a *Atlas) Release(m *geometry.Material) {
	h, ok := m.Handle.(*Handle)
	if !ok || h == nil {
		return
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	h.Sprite.refs--
	if h.Sprite.refs <= 0 && a.sprites[h.Sprite.Name] == h.Sprite {
		delete(a.sprites, h.Sprite.Name)
	}
}

func (a *Atlas) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.sprites)
}

// Sheet is a packed atlas image with the region of every sprite in it.
type Sheet struct {
	Image   *image.NRGBA
	Size    int
	Regions map[string]Region
}

// Pack lays out every loaded sprite on a square power of two sheet, row by row
// in name order.
func (a *Atlas) Pack() *Sheet {
	a.lock.Lock()
	names := make([]string, 0, len(a.sprites))
	for n := range a.sprites {
		names = append(names, n)
	}
	sprites := make(map[string]*Sprite, len(a.sprites))
	for n, s := range a.sprites {
		sprites[n] = s
	}
	a.lock.Unlock()
	sort.Strings(names)

	size := a.tileSize
	for (size/a.tileSize)*(size/a.tileSize) < len(names) {
		size *= 2
	}
	sheet := &Sheet{
		Image:   image.NewNRGBA(image.Rect(0, 0, size, size)),
		Size:    size,
		Regions: make(map[string]Region, len(names)),
	}
	perRow := size / a.tileSize
	for i, n := range names {
		x, y := (i%perRow)*a.tileSize, (i/perRow)*a.tileSize
		r := image.Rect(x, y, x+a.tileSize, y+a.tileSize)
		draw.Draw(sheet.Image, r, sprites[n].Image, image.Point{}, draw.Src)
		sheet.Regions[n] = Region{
			U0: float64(r.Min.X) / float64(size),
			V0: float64(r.Min.Y) / float64(size),
			U1: float64(r.Max.X) / float64(size),
			V1: float64(r.Max.Y) / float64(size),
		}
	}
	return sheet
}

// Region is the rectangle of a material's face on the sheet.
func (s *Sheet) Region(m *geometry.Material) (Region, bool) {
	r, ok := s.Regions[m.Key.Texture]
	if !ok {
		return Region{}, false
	}
	return r.Sub(m.Key.UV), true
}

func (s *Sheet) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Image)
}

// Map moves a 0-1 coordinate within a sprite onto the sheet.
func (r Region) Map(u, v float64) (float64, float64) {
	return r.U0 + u*(r.U1-r.U0), r.V0 + v*(r.V1-r.V0)
}
