// Package physics provides dynamics providers for the engine.
//
// Each model implements [dynamo.Robot]; most also implement
// [dynamo.Hamiltonian] for energy tracking, [dynamo.Configurable] for
// parameter overrides and [constraint.Kinematics] so frames can be pinned
// or put in contact with the ground:
//
//   - [PointMass]: free particle in a vertical plane
//   - [PlanarBody]: rigid body in a vertical plane (x, y, theta)
//   - [Pendulum]: single pendulum with tip frame
//   - [SpringMass]: chain of masses joined by springs
//   - [Rotor]: planar rotor parametrised by a unit complex number
//
// [GroundContact] and [JointFriction] decorate any robot with penalty
// contact and joint friction forces. [LinearSpring] and [FrameSpring] are
// coupling forces between two robots.
package physics
