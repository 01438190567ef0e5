// Package simulation groups the engine and the components of one run.
package simulation

import (
	"github.com/sarchlab/tlm/sim/modeling"
	"github.com/sarchlab/tlm/sim/timing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	engine        timing.Engine
	components    []modeling.Component
	compNameIndex map[string]int
}

// NewSimulation creates a new simulation that runs on the given engine.
func NewSimulation(engine timing.Engine) *Simulation {
	return &Simulation{
		engine:        engine,
		compNameIndex: make(map[string]int),
	}
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() timing.Engine {
	return s.engine
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c modeling.Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1
}

// Components returns all the registered components in registration order.
func (s *Simulation) Components() []modeling.Component {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil if no
// such component is registered.
func (s *Simulation) GetComponentByName(name string) modeling.Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}
