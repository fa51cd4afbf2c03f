// Package hardware models the movable and sensing components of a microscope.
//
// Every component is identified by its role ("filter", "spectrograph",
// "lens-switch", "ccd", ...). Actuators expose a set of axes, each either
// continuous (optionally bounded by a range) or discrete with a table of
// choices. Moves are asynchronous: MoveAbs returns a Future that resolves once
// the physical motion has finished or failed.
//
// # Key Types
//
//   - Component: anything with a role (detectors, actuators)
//   - Actuator: component with axes that can be moved
//   - Axis, Choices: per-axis capability description
//   - Future: completion handle of one move request
//   - Simulated: in-memory actuator used when no hardware is attached
//   - Inventory: role-indexed set of components loaded from YAML
//
// # Thread Safety
//
// Simulated, Inventory and Future are safe for concurrent use.
package hardware
