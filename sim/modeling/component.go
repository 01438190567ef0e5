// Package modeling defines what a simulated component is.
package modeling

import "github.com/sarchlab/tlm/sim/hooking"

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is an element that is being simulated.
type Component interface {
	Named
	hooking.Hookable
}

// ComponentBase provides the name and hook handling that every component
// needs.
type ComponentBase struct {
	hooking.HookableBase
	name string
}

// NewComponentBase creates a new ComponentBase.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{name: name}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
