package blockModel

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/maxsupermanhd/WebSchem/primitives"
	"github.com/maxsupermanhd/WebSchem/resource"
	"golang.org/x/sync/singleflight"
)

type ResolutionKind int

const (
	ResolvedNothing ResolutionKind = iota
	ResolvedVariant
	ResolvedMultipart
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedVariant:
		return "variant"
	case ResolvedMultipart:
		return "multipart"
	}
	return "nothing"
}

// Resolution is the outcome of reducing a block to model holders.
// Key identifies the selection before any weighted draw and is shared by every
// block that reduces to the same groups.
type Resolution struct {
	Block  primitives.Block
	Kind   ResolutionKind
	Key    string
	Groups []HolderSet
}

type stateEntry struct {
	def StateDefinition
	err error
}

// StateResolver loads blockstate definitions once and reduces blocks to model holder groups.
type StateResolver struct {
	loader resource.Loader
	logger *log.Logger
	lock   sync.RWMutex
	defs   map[string]stateEntry
	flight singleflight.Group
}

func NewStateResolver(loader resource.Loader, logger *log.Logger) *StateResolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &StateResolver{
		loader: loader,
		logger: logger,
		defs:   map[string]stateEntry{},
	}
}

// Definition returns the parsed definition of a block type. Missing definitions
// wrap resource.ErrNotFound, broken ones match ErrMalformed.
func (r *StateResolver) Definition(ctx context.Context, id string) (StateDefinition, error) {
	id = primitives.StripNamespace(id)
	r.lock.RLock()
	e, ok := r.defs[id]
	r.lock.RUnlock()
	if ok {
		return e.def, e.err
	}
	v, err, _ := r.flight.Do(id, func() (any, error) {
		path := resource.BlockstatePath(id)
		data, err := r.loader.GetBinary(ctx, path)
		var def StateDefinition
		if err == nil {
			def, err = ParseStateDefinition(path, data)
		}
		if err != nil && !errors.Is(err, resource.ErrNotFound) && !errors.Is(err, ErrMalformed) {
			// cancellation and I/O trouble are not remembered
			return nil, err
		}
		r.lock.Lock()
		r.defs[id] = stateEntry{def: def, err: err}
		r.lock.Unlock()
		return def, err
	})
	if err != nil {
		return nil, err
	}
	return v.(StateDefinition), nil
}

// Resolve reduces a block to ordered groups of weighted model holders.
// A missing definition or an unmatched variant is logged and yields no groups.
func (r *StateResolver) Resolve(ctx context.Context, b primitives.Block) (Resolution, error) {
	b.ID = primitives.StripNamespace(b.ID)
	ret := Resolution{Block: b, Kind: ResolvedNothing, Key: b.Key() + "#none"}
	def, err := r.Definition(ctx, b.ID)
	if errors.Is(err, resource.ErrNotFound) {
		r.logger.Printf("No blockstate definition for %s: %v", b.ID, err)
		return ret, nil
	}
	if err != nil {
		return ret, err
	}
	switch d := def.(type) {
	case *Variants:
		key := ""
		if _, ok := d.Entries[""]; !ok {
			key = primitives.CanonicalProperties(b.Properties, d.Schema())
		}
		hs, ok := d.Entries[key]
		if !ok {
			r.logger.Printf("No variant %q for %s, known variants:\n%s", key, b.Key(), spew.Sdump(d.Keys))
			return ret, nil
		}
		ret.Kind = ResolvedVariant
		ret.Key = b.ID + "#" + key
		ret.Groups = []HolderSet{hs}
	case Multipart:
		matched := []string{}
		for i, p := range d {
			if !p.When.Matches(b.Properties) {
				continue
			}
			matched = append(matched, strconv.Itoa(i))
			ret.Groups = append(ret.Groups, p.Apply)
		}
		ret.Kind = ResolvedMultipart
		ret.Key = b.ID + "#parts=" + strings.Join(matched, ",")
	}
	return ret, nil
}
