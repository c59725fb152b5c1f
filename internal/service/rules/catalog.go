// Package rules holds the built-in rule selections a session can be created
// with.
package rules

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/service/game"
)

const (
	Standard   = "standard"
	Opening    = "opening"
	Swap       = "swap"
	OpeningSwp = "opening+swap"
	SpinRules  = "spin"
)

var ErrUnknownSelection = eris.New("unknown rule selection")

// Catalog resolves a selection name to its ordered hook chain. The empty name
// resolves to the default selection.
type Catalog struct {
	defaultName string
	selections  map[string][]game.RuleHook
}

func NewCatalog(defaultName string) (*Catalog, error) {
	c := &Catalog{
		selections: map[string][]game.RuleHook{
			Standard:   nil,
			Opening:    {OpeningZone{Radius: 2}},
			Swap:       {SwapOrder{}},
			OpeningSwp: {OpeningZone{Radius: 2}, SwapOrder{}},
			SpinRules:  {Spin{Every: 10}},
		},
	}
	if !c.Has(defaultName) {
		return nil, eris.Wrapf(ErrUnknownSelection, "default %q", defaultName)
	}
	c.defaultName = normalize(defaultName)
	return c, nil
}

func (c *Catalog) Resolve(selection string) ([]game.RuleHook, error) {
	name := normalize(selection)
	if name == "" {
		name = c.defaultName
	}
	hooks, ok := c.selections[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSelection, "%q", selection)
	}
	return slices.Clone(hooks), nil
}

// Has reports whether selection names a known rule set. The empty name is
// always accepted.
func (c *Catalog) Has(selection string) bool {
	name := normalize(selection)
	if name == "" {
		return true
	}
	_, ok := c.selections[name]
	return ok
}

// Canonical maps a client-supplied selection to the name sessions are created
// with, so tickets asking for the default by name or by omission match.
func (c *Catalog) Canonical(selection string) string {
	if name := normalize(selection); name != "" {
		return name
	}
	return c.defaultName
}

func (c *Catalog) Names() []string {
	names := lo.Keys(c.selections)
	slices.Sort(names)
	return names
}

func normalize(selection string) string {
	return strings.ToLower(strings.TrimSpace(selection))
}
