package blockModel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Condition gates a multipart part. Every listed property must match, an OR list
// needs one matching branch and an AND list needs all of them.
// A property value of "a|b" accepts either alternative.
type Condition struct {
	Props map[string]string
	Or    []*Condition
	And   []*Condition
}

func (c *Condition) Matches(props map[string]string) bool {
	if c == nil {
		return true
	}
	for name, want := range c.Props {
		got, ok := props[name]
		if !ok || !valueMatches(want, got) {
			return false
		}
	}
	if c.Or != nil {
		matched := false
		for _, sub := range c.Or {
			if sub.Matches(props) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, sub := range c.And {
		if !sub.Matches(props) {
			return false
		}
	}
	return true
}

func valueMatches(want, got string) bool {
	if want == got {
		return true
	}
	if !strings.Contains(want, "|") {
		return false
	}
	for _, alt := range strings.Split(want, "|") {
		if alt == got {
			return true
		}
	}
	return false
}

func decodeCondition(raw json.RawMessage) (*Condition, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	c := &Condition{Props: map[string]string{}}
	for name, val := range fields {
		switch name {
		case "OR", "AND":
			var list []json.RawMessage
			if err := json.Unmarshal(val, &list); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			subs := make([]*Condition, 0, len(list))
			for i, r := range list {
				sub, err := decodeCondition(r)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
				}
				subs = append(subs, sub)
			}
			if name == "OR" {
				c.Or = subs
			} else {
				c.And = subs
			}
		default:
			s, err := conditionValue(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			c.Props[name] = s
		}
	}
	return c, nil
}

// conditionValue accepts strings as well as bare booleans and numbers, packs use both.
func conditionValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("empty value")
	}
	switch raw[0] {
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("value must be a scalar, got %.16s", raw)
	}
	if bytes.Equal(raw, []byte("null")) {
		return "", errors.New("null value")
	}
	return string(raw), nil
}
