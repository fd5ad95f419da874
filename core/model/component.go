package model

// Component identifies one monitored subsystem of a vehicle.
type Component string

const (
	ComponentBattery Component = "battery"
	ComponentEngine  Component = "engine"
	ComponentOil     Component = "oil"
	ComponentBrakes  Component = "brakes"
	ComponentTires   Component = "tires"
)

// Components returns every monitored component in a stable order.
func Components() []Component {
	return []Component{
		ComponentBattery,
		ComponentEngine,
		ComponentOil,
		ComponentBrakes,
		ComponentTires,
	}
}

// Valid reports whether c names a known component.
func (c Component) Valid() bool {
	switch c {
	case ComponentBattery, ComponentEngine, ComponentOil, ComponentBrakes, ComponentTires:
		return true
	}
	return false
}

func (c Component) String() string { return string(c) }
