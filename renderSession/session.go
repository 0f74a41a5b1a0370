/*
	WebSchem, web server for block game schematics
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

package renderSession

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maxsupermanhd/WebSchem/blockModel"
	"github.com/maxsupermanhd/WebSchem/geometry"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/resource"
	"golang.org/x/sync/singleflight"
)

const DefaultWorkers = 25

var (
	ErrDestroyed = errors.New("session destroyed")
)

// HandleFactory attaches a backend resource (atlas region, GPU texture) to a new material.
type HandleFactory interface {
	MaterialHandle(ctx context.Context, key geometry.MaterialKey) (any, error)
}

// Releaser frees whatever HandleFactory attached once the session drops a material.
type Releaser interface {
	Release(m *geometry.Material)
}

type ReleaserFunc func(m *geometry.Material)

func (f ReleaserFunc) Release(m *geometry.Material) { f(m) }

type Options struct {
	Workers int
	// Seed makes weighted selections reproducible regardless of build
	// scheduling, 0 seeds Rand from the clock.
	Seed int64
	// Rand replaces the seeded draws when set.
	Rand           Random
	Logger         *log.Logger
	Handles        HandleFactory
	Releaser       Releaser
	Metrics        *Metrics
	MaxParentDepth int
	MaxTextureHops int
	// Progress is called from build workers as blocks complete.
	Progress func(done, total int)
}

// Geometry is the template built for one resolved selection. Placements share
// it and must not modify it.
type Geometry struct {
	Key       string
	Block     primitives.Block
	Selection []blockModel.ModelHolder
	Meshes    []geometry.Mesh
}

func (g *Geometry) Empty() bool {
	return len(g.Meshes) == 0
}

// Session owns every cache of one render. Create one per schematic and Destroy it when done.
type Session struct {
	ID      uuid.UUID
	opts    Options
	logger  *log.Logger
	metrics *Metrics
	states  *blockModel.StateResolver
	models  *blockModel.ModelResolver
	builder *geometry.Builder

	randLock sync.Mutex
	rand     Random
	// keyed sessions draw every selection from the seed and the resolution
	// key, so worker scheduling does not change the outcome
	keyed bool

	lock        sync.RWMutex
	materials   map[geometry.MaterialKey]*geometry.Material
	resolutions map[string]blockModel.Resolution
	selections  map[string][]int
	geometries  map[string]*Geometry
	flight      singleflight.Group
	destroyed   atomic.Bool
}

func New(loader resource.Loader, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	keyed := opts.Rand == nil && opts.Seed != 0
	if opts.Rand == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	s := &Session{
		ID:          uuid.New(),
		opts:        opts,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		states:      blockModel.NewStateResolver(loader, opts.Logger),
		models:      blockModel.NewModelResolver(loader, opts.Logger, opts.MaxParentDepth, opts.MaxTextureHops),
		builder:     geometry.NewBuilder(opts.Logger, opts.MaxTextureHops),
		rand:        opts.Rand,
		keyed:       keyed,
		materials:   map[geometry.MaterialKey]*geometry.Material{},
		resolutions: map[string]blockModel.Resolution{},
		selections:  map[string][]int{},
		geometries:  map[string]*Geometry{},
	}
	s.metrics.Sessions.Inc()
	return s
}

func (s *Session) Destroyed() bool {
	return s.destroyed.Load()
}

// Material implements geometry.MaterialSource over the session's material cache.
func (s *Session) Material(ctx context.Context, key geometry.MaterialKey) (*geometry.Material, error) {
	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}
	s.lock.RLock()
	m, ok := s.materials[key]
	s.lock.RUnlock()
	if ok {
		s.metrics.MaterialLookups.WithLabelValues("hit").Inc()
		return m, nil
	}
	v, err, _ := s.flight.Do("material:"+key.String(), func() (any, error) {
		m := &geometry.Material{Key: key}
		if s.opts.Handles != nil {
			h, err := s.opts.Handles.MaterialHandle(ctx, key)
			if err != nil {
				return nil, err
			}
			m.Handle = h
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		if s.destroyed.Load() {
			if m.Handle != nil && s.opts.Releaser != nil {
				s.opts.Releaser.Release(m)
			}
			return nil, ErrDestroyed
		}
		if prev, ok := s.materials[key]; ok {
			return prev, nil
		}
		s.materials[key] = m
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.MaterialLookups.WithLabelValues("miss").Inc()
	return v.(*geometry.Material), nil
}

func (s *Session) resolve(ctx context.Context, b primitives.Block) (blockModel.Resolution, error) {
	key := b.Key()
	s.lock.RLock()
	res, ok := s.resolutions[key]
	s.lock.RUnlock()
	if ok {
		return res, nil
	}
	res, err := s.states.Resolve(ctx, b)
	if err != nil {
		return res, err
	}
	s.lock.Lock()
	s.resolutions[key] = res
	s.lock.Unlock()
	return res, nil
}

// selection draws the weighted options of a resolution once and remembers the
// outcome, so every copy of a block looks the same.
func (s *Session) selection(res blockModel.Resolution) []int {
	s.lock.RLock()
	picks, ok := s.selections[res.Key]
	s.lock.RUnlock()
	if ok {
		return picks
	}
	var drawn []int
	if s.keyed {
		drawn = pickAll(res.Groups, keyedRand(s.opts.Seed, res.Key))
	} else {
		s.randLock.Lock()
		drawn = pickAll(res.Groups, s.rand)
		s.randLock.Unlock()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if picks, ok := s.selections[res.Key]; ok {
		return picks
	}
	s.selections[res.Key] = drawn
	return drawn
}

func keyedRand(seed int64, key string) Random {
	h := fnv.New64a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

func geometryKey(res blockModel.Resolution, picks []int, mask geometry.OcclusionMask) string {
	var sb strings.Builder
	sb.WriteString(res.Key)
	sb.WriteString("|pick=")
	for i, p := range picks {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(p))
	}
	sb.WriteString("|mask=")
	sb.WriteString(strconv.Itoa(int(mask)))
	return sb.String()
}

// BlockGeometry returns the geometry template of a block seen with the given
// neighbourhood. Concurrent first requests for the same template share one build.
func (s *Session) BlockGeometry(ctx context.Context, b primitives.Block, oracle geometry.OcclusionOracle) (*Geometry, error) {
	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}
	b.ID = primitives.StripNamespace(b.ID)
	if oracle == nil {
		oracle = geometry.Isolated
	}
	res, err := s.resolve(ctx, b)
	if err != nil {
		return nil, err
	}
	picks := s.selection(res)
	mask := geometry.MaskOf(oracle)
	key := geometryKey(res, picks, mask)

	s.lock.RLock()
	g, ok := s.geometries[key]
	s.lock.RUnlock()
	if ok {
		s.metrics.GeometryLookups.WithLabelValues("hit").Inc()
		return g, nil
	}
	v, err, shared := s.flight.Do("geometry:"+key, func() (any, error) {
		g, err := s.buildGeometry(ctx, key, b, res, picks, mask)
		if err != nil {
			return nil, err
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		if s.destroyed.Load() {
			return nil, ErrDestroyed
		}
		s.geometries[key] = g
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.metrics.GeometryLookups.WithLabelValues("shared").Inc()
	} else {
		s.metrics.GeometryLookups.WithLabelValues("build").Inc()
	}
	return v.(*Geometry), nil
}

func (s *Session) buildGeometry(ctx context.Context, key string, b primitives.Block, res blockModel.Resolution, picks []int, mask geometry.OcclusionMask) (*Geometry, error) {
	g := &Geometry{Key: key, Block: b}
	for i, group := range res.Groups {
		holder := group.Options()[picks[i]]
		g.Selection = append(g.Selection, holder)
		m, err := s.models.ResolveFor(ctx, b, holder.Model)
		if err != nil {
			return nil, fmt.Errorf("model %s of %s: %w", holder.Model, b.Key(), err)
		}
		meshes, err := s.builder.Build(ctx, m, holder, b, mask, s)
		if err != nil {
			return nil, fmt.Errorf("geometry of %s: %w", b.Key(), err)
		}
		g.Meshes = append(g.Meshes, meshes...)
	}
	return g, nil
}

type CacheStats struct {
	Materials   int `json:"materials"`
	Resolutions int `json:"resolutions"`
	Geometries  int `json:"geometries"`
}

func (s *Session) Stats() CacheStats {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return CacheStats{
		Materials:   len(s.materials),
		Resolutions: len(s.resolutions),
		Geometries:  len(s.geometries),
	}
}

// ClearCache releases every material through the Releaser and then drops all
// cached materials, resolutions, selections and geometry templates.
func (s *Session) ClearCache() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.opts.Releaser != nil {
		for _, m := range s.materials {
			s.opts.Releaser.Release(m)
		}
	}
	s.logger.Printf("Session %s dropping %d materials and %d geometries", s.ID, len(s.materials), len(s.geometries))
	s.materials = map[geometry.MaterialKey]*geometry.Material{}
	s.resolutions = map[string]blockModel.Resolution{}
	s.selections = map[string][]int{}
	s.geometries = map[string]*Geometry{}
}

// Destroy stops in-flight builds from publishing results and clears the caches.
func (s *Session) Destroy() {
	s.lock.Lock()
	already := s.destroyed.Swap(true)
	s.lock.Unlock()
	if already {
		return
	}
	s.ClearCache()
	s.metrics.Sessions.Dec()
}
