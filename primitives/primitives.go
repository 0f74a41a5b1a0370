package primitives

import (
	"fmt"
	"sort"
	"strings"
)

// Block is a placed block type with its state properties.
// Treat it as immutable once constructed, Key depends on it.
type Block struct {
	ID         string
	Properties map[string]string
}

func (b Block) String() string {
	return b.Key()
}

// Key is the content identity of the block: id[k=v,...] with sorted names.
func (b Block) Key() string {
	if len(b.Properties) == 0 {
		return b.ID
	}
	return b.ID + "[" + CanonicalProperties(b.Properties, nil) + "]"
}

// Property returns the property value and whether the block has it at all.
func (b Block) Property(name string) (string, bool) {
	v, ok := b.Properties[name]
	return v, ok
}

// CanonicalProperties joins properties as name=value pairs sorted by name.
// When only is non-nil names missing from it are skipped.
func CanonicalProperties(props map[string]string, only map[string]struct{}) string {
	names := make([]string, 0, len(props))
	for k := range props {
		if only != nil {
			if _, ok := only[k]; !ok {
				continue
			}
		}
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make([]string, len(names))
	for i, n := range names {
		pairs[i] = n + "=" + props[n]
	}
	return strings.Join(pairs, ",")
}

// StripNamespace turns "minecraft:stone" into "stone".
func StripNamespace(ref string) string {
	if i := strings.IndexByte(ref, ':'); i != -1 {
		return ref[i+1:]
	}
	return ref
}

// ParseBlock parses palette style strings like minecraft:oak_stairs[facing=east,half=top]
func ParseBlock(s string) (Block, error) {
	b := Block{Properties: map[string]string{}}
	name := s
	if i := strings.IndexByte(s, '['); i != -1 {
		if !strings.HasSuffix(s, "]") {
			return b, fmt.Errorf("unterminated property list in %q", s)
		}
		name = s[:i]
		props := s[i+1 : len(s)-1]
		if props != "" {
			for _, p := range strings.Split(props, ",") {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 || kv[0] == "" {
					return b, fmt.Errorf("bad property %q in %q", p, s)
				}
				b.Properties[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
	}
	b.ID = StripNamespace(strings.TrimSpace(name))
	if b.ID == "" {
		return b, fmt.Errorf("empty block id in %q", s)
	}
	return b, nil
}

type BlockPos struct {
	X, Y, Z int
}

func (p BlockPos) Add(dx, dy, dz int) BlockPos {
	return BlockPos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%dx %dy %dz", p.X, p.Y, p.Z)
}
