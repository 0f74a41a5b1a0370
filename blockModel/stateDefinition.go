package blockModel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ModelHolder points a block state at a model, optionally rotated in 90 degree steps.
type ModelHolder struct {
	Model  string `json:"model"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	UVLock bool   `json:"uvlock,omitempty"`
	Weight int    `json:"weight,omitempty"`
}

func (h ModelHolder) EffectiveWeight() int {
	if h.Weight <= 0 {
		return 1
	}
	return h.Weight
}

func (h ModelHolder) Rotated() bool {
	return h.X%360 != 0 || h.Y%360 != 0
}

// HolderSet is either a SingleHolder or WeightedHolders.
type HolderSet interface {
	Options() []ModelHolder
	isHolderSet()
}

type SingleHolder struct {
	ModelHolder
}

func (h SingleHolder) Options() []ModelHolder { return []ModelHolder{h.ModelHolder} }
func (SingleHolder) isHolderSet() {}

type WeightedHolders []ModelHolder

func (h WeightedHolders) Options() []ModelHolder { return h }
func (WeightedHolders) isHolderSet() {}

func (h WeightedHolders) TotalWeight() int {
	t := 0
	for _, o := range h {
		t += o.EffectiveWeight()
	}
	return t
}

// StateDefinition is either *Variants or Multipart.
type StateDefinition interface {
	isStateDefinition()
}

// Variants keeps keys in file order, the first key defines which properties take part in lookups.
type Variants struct {
	Keys    []string
	Entries map[string]HolderSet
}

func (*Variants) isStateDefinition() {}

// Schema is the set of property names mentioned by the first variant key.
func (v *Variants) Schema() map[string]struct{} {
	ret := map[string]struct{}{}
	if len(v.Keys) == 0 || v.Keys[0] == "" {
		return ret
	}
	for _, pair := range strings.Split(v.Keys[0], ",") {
		name, _, _ := strings.Cut(pair, "=")
		ret[name] = struct{}{}
	}
	return ret
}

type Part struct {
	When  *Condition
	Apply HolderSet
}

type Multipart []Part

func (Multipart) isStateDefinition() {}

type rawStateDefinition struct {
	Variants  json.RawMessage `json:"variants"`
	Multipart json.RawMessage `json:"multipart"`
}

type rawPart struct {
	When  json.RawMessage `json:"when"`
	Apply json.RawMessage `json:"apply"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// ParseStateDefinition decodes blockstates/<id>.json.
func ParseStateDefinition(name string, data []byte) (StateDefinition, error) {
	fail := func(stage string, err error) error {
		return FormatError{Resource: name, Stage: stage, E: err}
	}
	var raw rawStateDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fail("decoding", err)
	}
	hasVariants, hasMultipart := present(raw.Variants), present(raw.Multipart)
	switch {
	case hasVariants && hasMultipart:
		return nil, fail("form", ErrBothForms)
	case !hasVariants && !hasMultipart:
		return nil, fail("form", ErrNoForm)
	case hasVariants:
		v, err := decodeVariants(raw.Variants)
		if err != nil {
			return nil, fail("variants", err)
		}
		return v, nil
	}
	var parts []rawPart
	if err := json.Unmarshal(raw.Multipart, &parts); err != nil {
		return nil, fail("multipart", err)
	}
	ret := make(Multipart, 0, len(parts))
	for i, p := range parts {
		apply, err := decodeHolderSet(p.Apply)
		if err != nil {
			return nil, fail(fmt.Sprintf("multipart[%d].apply", i), err)
		}
		part := Part{Apply: apply}
		if present(p.When) {
			c, err := decodeCondition(p.When)
			if err != nil {
				return nil, fail(fmt.Sprintf("multipart[%d].when", i), err)
			}
			part.When = c
		}
		ret = append(ret, part)
	}
	return ret, nil
}

func decodeVariants(raw json.RawMessage) (*Variants, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("variants is not an object")
	}
	v := &Variants{Entries: map[string]HolderSet{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		hs, err := decodeHolderSet(val)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", key, err)
		}
		if _, dup := v.Entries[key]; !dup {
			v.Keys = append(v.Keys, key)
		}
		v.Entries[key] = hs
	}
	return v, nil
}

func decodeHolderSet(raw json.RawMessage) (HolderSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("missing model holder")
	}
	switch raw[0] {
	case '{':
		var h ModelHolder
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, err
		}
		if h.Model == "" {
			return nil, errors.New("model holder without model")
		}
		return SingleHolder{h}, nil
	case '[':
		var hs []ModelHolder
		if err := json.Unmarshal(raw, &hs); err != nil {
			return nil, err
		}
		if len(hs) == 0 {
			return nil, errors.New("empty weighted holder list")
		}
		for i := range hs {
			if hs[i].Model == "" {
				return nil, fmt.Errorf("weighted holder %d without model", i)
			}
		}
		return WeightedHolders(hs), nil
	}
	return nil, fmt.Errorf("model holder must be an object or a list, got %.16s", raw)
}
