package blockModel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maxsupermanhd/WebSchem/primitives"
)

const (
	DefaultMaxParentDepth = 32
	DefaultMaxTextureHops = 16
)

type Model struct {
	Name             string            `json:"-"`
	Parent           string            `json:"parent,omitempty"`
	AmbientOcclusion *bool             `json:"ambientocclusion,omitempty"`
	Textures         map[string]string `json:"textures,omitempty"`
	Elements         []Element         `json:"elements,omitempty"`
}

type Element struct {
	From     [3]float64                   `json:"from"`
	To       [3]float64                   `json:"to"`
	Rotation *ElementRotation             `json:"rotation,omitempty"`
	Shade    *bool                        `json:"shade,omitempty"`
	Faces    map[primitives.Face]*FaceDef `json:"faces"`
}

type ElementRotation struct {
	Origin  [3]float64 `json:"origin"`
	Axis    string     `json:"axis"`
	Angle   float64    `json:"angle"`
	Rescale bool       `json:"rescale,omitempty"`
}

type FaceDef struct {
	Texture   string           `json:"texture"`
	UV        *[4]float64      `json:"uv,omitempty"`
	Rotation  int              `json:"rotation,omitempty"`
	TintIndex *int             `json:"tintindex,omitempty"`
	CullFace  *primitives.Face `json:"cullface,omitempty"`
}

// CullDirection is the neighbour that decides whether the face is hidden.
func (f *FaceDef) CullDirection(own primitives.Face) primitives.Face {
	if f.CullFace != nil {
		return *f.CullFace
	}
	return own
}

func ParseModel(name string, data []byte) (*Model, error) {
	m := &Model{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, FormatError{Resource: name, Stage: "decoding", E: err}
	}
	m.Name = name
	for i, e := range m.Elements {
		if e.Rotation == nil {
			continue
		}
		switch e.Rotation.Axis {
		case "x", "y", "z":
		default:
			return nil, FormatError{Resource: name, Stage: fmt.Sprintf("elements[%d].rotation", i), E: fmt.Errorf("unknown axis %q", e.Rotation.Axis)}
		}
	}
	return m, nil
}

// ResolveTexture follows #variable references through the model's texture map
// until it reaches a literal texture path.
func (m *Model) ResolveTexture(ref string, maxHops int) (string, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxTextureHops
	}
	seen := map[string]struct{}{}
	for hops := 0; strings.HasPrefix(ref, "#"); hops++ {
		if hops >= maxHops {
			return "", FormatError{Resource: m.Name, Stage: "texture " + ref, E: ErrTextureChain}
		}
		name := ref[1:]
		if _, ok := seen[name]; ok {
			return "", FormatError{Resource: m.Name, Stage: "texture #" + name, E: ErrTextureCycle}
		}
		seen[name] = struct{}{}
		next, ok := m.Textures[name]
		if !ok {
			return "", FormatError{Resource: m.Name, Stage: "texture #" + name, E: ErrTextureUnbound}
		}
		ref = next
	}
	return primitives.StripNamespace(ref), nil
}
