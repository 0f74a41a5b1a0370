package blockModel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/imdario/mergo"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/resource"
	"golang.org/x/sync/singleflight"
)

type modelEntry struct {
	model *Model
	err   error
}

// ModelResolver loads models and flattens their parent chains. Both raw and
// flattened models are kept for the lifetime of the resolver and must not be mutated.
type ModelResolver struct {
	loader         resource.Loader
	logger         *log.Logger
	maxParentDepth int
	maxTextureHops int
	lock           sync.RWMutex
	raw            map[string]modelEntry
	flat           map[string]modelEntry
	flight         singleflight.Group
}

func NewModelResolver(loader resource.Loader, logger *log.Logger, maxParentDepth, maxTextureHops int) *ModelResolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxParentDepth <= 0 {
		maxParentDepth = DefaultMaxParentDepth
	}
	if maxTextureHops <= 0 {
		maxTextureHops = DefaultMaxTextureHops
	}
	return &ModelResolver{
		loader:         loader,
		logger:         logger,
		maxParentDepth: maxParentDepth,
		maxTextureHops: maxTextureHops,
		raw:            map[string]modelEntry{},
		flat:           map[string]modelEntry{},
	}
}

func (r *ModelResolver) MaxTextureHops() int {
	return r.maxTextureHops
}

func normalizeRef(ref string) string {
	return primitives.StripNamespace(strings.TrimSpace(ref))
}

func (r *ModelResolver) cached(cache map[string]modelEntry, key string) (modelEntry, bool) {
	r.lock.RLock()
	e, ok := cache[key]
	r.lock.RUnlock()
	return e, ok
}

func (r *ModelResolver) remember(cache map[string]modelEntry, key string, m *Model, err error) {
	if err != nil && !errors.Is(err, resource.ErrNotFound) && !errors.Is(err, ErrMalformed) {
		return
	}
	r.lock.Lock()
	cache[key] = modelEntry{model: m, err: err}
	r.lock.Unlock()
}

// load fetches a single model without touching its parents.
func (r *ModelResolver) load(ctx context.Context, ref string) (*Model, error) {
	if e, ok := r.cached(r.raw, ref); ok {
		return e.model, e.err
	}
	v, err, _ := r.flight.Do("raw:"+ref, func() (any, error) {
		path := resource.ModelPath(ref)
		data, err := r.loader.GetBinary(ctx, path)
		var m *Model
		if err == nil {
			m, err = ParseModel(ref, data)
		}
		r.remember(r.raw, ref, m, err)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Resolve returns the model with its whole parent chain merged in. A missing
// model is logged and resolves to an empty one.
func (r *ModelResolver) Resolve(ctx context.Context, ref string) (*Model, error) {
	ref = normalizeRef(ref)
	if e, ok := r.cached(r.flat, ref); ok {
		return e.model, e.err
	}
	v, err, _ := r.flight.Do("flat:"+ref, func() (any, error) {
		m, err := r.flatten(ctx, ref)
		r.remember(r.flat, ref, m, err)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

func (r *ModelResolver) flatten(ctx context.Context, ref string) (*Model, error) {
	m, err := r.load(ctx, ref)
	if errors.Is(err, resource.ErrNotFound) {
		r.logger.Printf("Model %s not found, it will render empty: %v", ref, err)
		return &Model{Name: ref, Textures: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	merged := &Model{
		Name:             ref,
		Parent:           m.Parent,
		AmbientOcclusion: m.AmbientOcclusion,
		Textures:         make(map[string]string, len(m.Textures)),
		Elements:         m.Elements,
	}
	for k, v := range m.Textures {
		merged.Textures[k] = v
	}
	visited := map[string]struct{}{ref: {}}
	for depth := 1; merged.Parent != ""; depth++ {
		parentRef := normalizeRef(merged.Parent)
		merged.Parent = ""
		if strings.HasPrefix(parentRef, "builtin/") {
			break
		}
		if _, ok := visited[parentRef]; ok {
			return nil, FormatError{Resource: ref, Stage: "parent " + parentRef, E: ErrParentCycle}
		}
		if depth > r.maxParentDepth {
			return nil, FormatError{Resource: ref, Stage: fmt.Sprintf("parent %s", parentRef), E: ErrParentDepth}
		}
		visited[parentRef] = struct{}{}
		p, err := r.load(ctx, parentRef)
		if errors.Is(err, resource.ErrNotFound) {
			r.logger.Printf("Parent %s of model %s not found: %v", parentRef, ref, err)
			break
		}
		if err != nil {
			return nil, err
		}
		if len(merged.Elements) == 0 {
			merged.Elements = p.Elements
		}
		if merged.AmbientOcclusion == nil {
			merged.AmbientOcclusion = p.AmbientOcclusion
		}
		if err := mergo.Merge(&merged.Textures, p.Textures); err != nil {
			return nil, fmt.Errorf("merging textures of %s into %s: %w", parentRef, ref, err)
		}
		merged.Parent = p.Parent
	}
	return merged, nil
}

// ResolveFor resolves the model a holder points at in the context of the block
// using it. Fluids are not model driven, they render as cube_all with the
// particle texture on every side.
func (r *ModelResolver) ResolveFor(ctx context.Context, b primitives.Block, ref string) (*Model, error) {
	m, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	id := primitives.StripNamespace(b.ID)
	if id != "water" && id != "lava" {
		return m, nil
	}
	cube, err := r.Resolve(ctx, "block/cube_all")
	if err != nil {
		return nil, err
	}
	fluid := &Model{
		Name:     m.Name,
		Textures: map[string]string{},
		Elements: cube.Elements,
	}
	for k, v := range m.Textures {
		fluid.Textures[k] = v
	}
	if p, ok := fluid.Textures["particle"]; ok {
		fluid.Textures["all"] = p
	}
	if err := mergo.Merge(&fluid.Textures, cube.Textures); err != nil {
		return nil, err
	}
	return fluid, nil
}

// Texture resolves a texture reference of a flattened model with the configured hop limit.
func (r *ModelResolver) Texture(m *Model, ref string) (string, error) {
	return m.ResolveTexture(ref, r.maxTextureHops)
}
