package renderSession

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/WebSchem/blockModel"
	"github.com/maxsupermanhd/WebSchem/geometry"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"golang.org/x/sync/errgroup"
)

// Grid is a finite box of blocks, the shape schematics decode into.
type Grid interface {
	Size() (width, height, length int)
	// BlockAt reports false outside the grid.
	BlockAt(x, y, z int) (primitives.Block, bool)
}

type gridOracle struct {
	grid    Grid
	x, y, z int
}

func (o gridOracle) IsOccludingNeighbor(dx, dy, dz int) bool {
	b, ok := o.grid.BlockAt(o.x+dx, o.y+dy, o.z+dz)
	if !ok {
		return false
	}
	return primitives.Occludes(b.ID)
}

// NeighbourOracle answers occlusion questions for the block at pos.
func NeighbourOracle(g Grid, pos primitives.BlockPos) geometry.OcclusionOracle {
	return gridOracle{grid: g, x: pos.X, y: pos.Y, z: pos.Z}
}

// Placement is one block instance: a shared geometry template moved to Offset.
type Placement struct {
	Pos      primitives.BlockPos
	Offset   mgl64.Vec3
	Geometry *Geometry
}

// World is the placement transform of the instance.
func (p Placement) World() mgl64.Mat4 {
	return mgl64.Translate3D(p.Offset[0], p.Offset[1], p.Offset[2])
}

// indexedPlacement keeps grid order for placements finished out of order.
type indexedPlacement struct {
	index int
	Placement
}

type Scene struct {
	Width, Height, Length int
	Placements            []Placement
	Skipped               int
	Failed                int
}

// PlacementOffset centres a width x height x length grid on the origin.
func PlacementOffset(width, height, length int, pos primitives.BlockPos) mgl64.Vec3 {
	return mgl64.Vec3{
		-float64(width)/2 + float64(pos.X) + 0.5,
		-float64(height)/2 + float64(pos.Y) + 0.5,
		-float64(length)/2 + float64(pos.Z) + 0.5,
	}
}

// Build produces placements for every visible block of the grid. Invisible and
// fully enclosed blocks are skipped. Per-block failures do not stop the build,
// they are returned together once it completes. Cancellation of ctx and
// destruction of the session do stop it.
func (s *Session) Build(ctx context.Context, grid Grid) (*Scene, error) {
	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}
	started := time.Now()
	w, h, l := grid.Size()
	scene := &Scene{Width: w, Height: h, Length: l}
	total := w * h * l
	var done atomic.Int64
	var resultsLock sync.Mutex
	var results []indexedPlacement
	var errs *multierror.Error

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.Workers)
blocks:
	for y := 0; y < h; y++ {
		for z := 0; z < l; z++ {
			for x := 0; x < w; x++ {
				idx := y*w*l + z*w + x
				pos := primitives.BlockPos{X: x, Y: y, Z: z}
				b, ok := grid.BlockAt(x, y, z)
				if !ok || primitives.IsInvisible(b.ID) {
					s.progress(&done, total)
					continue
				}
				oracle := NeighbourOracle(grid, pos)
				if geometry.MaskOf(oracle).Full() {
					s.progress(&done, total)
					continue
				}
				if egctx.Err() != nil {
					break blocks
				}
				eg.Go(func() error {
					defer s.progress(&done, total)
					g, err := s.BlockGeometry(egctx, b, oracle)
					if s.destroyed.Load() {
						return ErrDestroyed
					}
					if err != nil {
						if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
							return err
						}
						resultsLock.Lock()
						errs = multierror.Append(errs, err)
						resultsLock.Unlock()
						return nil
					}
					if g.Empty() {
						return nil
					}
					resultsLock.Lock()
					results = append(results, indexedPlacement{index: idx, Placement: Placement{Pos: pos, Offset: PlacementOffset(w, h, l, pos), Geometry: g}})
					resultsLock.Unlock()
					return nil
				})
			}
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	scene.Placements = make([]Placement, len(results))
	for i := range results {
		scene.Placements[i] = results[i].Placement
	}
	if errs != nil {
		scene.Failed = errs.Len()
	}
	scene.Skipped = total - len(scene.Placements) - scene.Failed
	s.metrics.Blocks.WithLabelValues("placed").Add(float64(len(scene.Placements)))
	s.metrics.Blocks.WithLabelValues("skipped").Add(float64(scene.Skipped))
	s.metrics.Blocks.WithLabelValues("failed").Add(float64(scene.Failed))
	s.metrics.BuildDuration.Observe(time.Since(started).Seconds())
	st := s.Stats()
	s.logger.Printf("Session %s built %s placements from %s blocks in %s (%s geometries, %s materials, %d failed)",
		s.ID, humanize.Comma(int64(len(scene.Placements))), humanize.Comma(int64(total)), time.Since(started).Round(time.Millisecond),
		humanize.Comma(int64(st.Geometries)), humanize.Comma(int64(st.Materials)), scene.Failed)
	return scene, errs.ErrorOrNil()
}

func (s *Session) progress(done *atomic.Int64, total int) {
	d := done.Add(1)
	if s.opts.Progress != nil {
		s.opts.Progress(int(d), total)
	}
}

// Resolve exposes the state resolution of a block, mostly for diagnostics.
func (s *Session) Resolve(ctx context.Context, b primitives.Block) (blockModel.Resolution, error) {
	return s.resolve(ctx, b)
}
