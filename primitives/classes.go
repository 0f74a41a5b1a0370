package primitives

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed blockClasses.json
var blockClassesJSON []byte

type blockClasses struct {
	Invisible            []string `json:"invisible"`
	NonOccluding         []string `json:"nonOccluding"`
	NonOccludingSuffixes []string `json:"nonOccludingSuffixes"`
	NonOccludingPrefixes []string `json:"nonOccludingPrefixes"`
}

var (
	invisibleBlocks      = map[string]struct{}{}
	nonOccludingBlocks   = map[string]struct{}{}
	nonOccludingSuffixes []string
	nonOccludingPrefixes []string
)

func init() {
	var c blockClasses
	if err := json.Unmarshal(blockClassesJSON, &c); err != nil {
		panic("malformed embedded block classes: " + err.Error())
	}
	for _, id := range c.Invisible {
		invisibleBlocks[id] = struct{}{}
	}
	for _, id := range c.NonOccluding {
		nonOccludingBlocks[id] = struct{}{}
	}
	nonOccludingSuffixes = c.NonOccludingSuffixes
	nonOccludingPrefixes = c.NonOccludingPrefixes
}

// IsInvisible reports blocks that never produce geometry.
func IsInvisible(id string) bool {
	_, ok := invisibleBlocks[StripNamespace(id)]
	return ok
}

// IsNonOccluding reports blocks that do not fully cover the faces of their neighbours.
func IsNonOccluding(id string) bool {
	id = StripNamespace(id)
	if _, ok := nonOccludingBlocks[id]; ok {
		return true
	}
	for _, s := range nonOccludingSuffixes {
		if strings.HasSuffix(id, s) {
			return true
		}
	}
	for _, p := range nonOccludingPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// IsTransparent is true for anything a neighbour can be seen through.
func IsTransparent(id string) bool {
	return IsInvisible(id) || IsNonOccluding(id)
}

// Occludes is the inverse of IsTransparent, the question a neighbour lookup asks.
func Occludes(id string) bool {
	return !IsTransparent(id)
}
