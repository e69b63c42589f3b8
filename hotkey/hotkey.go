// Package hotkey turns a global key combination into push-to-talk gestures.
package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Modifier int

const (
	ModCtrl Modifier = iota
	ModShift
	ModAlt
	ModSuper
)

func (m Modifier) String() string {
	return [...]string{"ctrl", "shift", "alt", "super"}[m]
}

const DefaultCombo = "ctrl+shift+space"

// Combo is a parsed key combination such as ctrl+shift+space.
type Combo struct {
	Mods []Modifier
	Key  string
}

func (c Combo) String() string {
	parts := make([]string, 0, len(c.Mods)+1)
	for _, m := range c.Mods {
		parts = append(parts, m.String())
	}
	return strings.Join(append(parts, c.Key), "+")
}

func (c Combo) Has(m Modifier) bool { return slices.Contains(c.Mods, m) }

var modNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"win":     ModSuper,
}

// Parse reads a combination of modifiers and exactly one key joined by '+'.
// Modifiers are returned in canonical order.
func Parse(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key", s)
		}
		if m, ok := modNames[p]; ok {
			if !c.Has(m) {
				c.Mods = append(c.Mods, m)
			}
			continue
		}
		if c.Key != "" {
			return Combo{}, fmt.Errorf("hotkey %q: more than one key", s)
		}
		if !validKey(p) {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", s, p)
		}
		c.Key = p
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: no key", s)
	}
	if len(c.Mods) == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: at least one modifier is required", s)
	}
	slices.Sort(c.Mods)
	return c, nil
}

func validKey(k string) bool {
	if k == "space" {
		return true
	}
	if len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9') {
		return true
	}
	var n int
	if _, err := fmt.Sscanf(k, "f%d", &n); err == nil && n >= 1 && n <= 12 && k == fmt.Sprintf("f%d", n) {
		return true
	}
	return false
}
