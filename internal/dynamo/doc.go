// Package dynamo provides the core types shared by every part of the
// multi-robot simulator.
//
// The package defines the value types and collaborator interfaces:
//
//   - [State]: flat vector of generalized coordinates or velocities
//   - [SystemState]: per-robot snapshot (q, v, a, forces)
//   - [Layout] and [AggregateState]: offset table and flat arena holding
//     every robot's (q, v) pair in registration order
//   - [Robot]: dynamics provider for one articulated system
//   - [Controller]: per-robot feedback law, held constant over a step
//   - [CouplingForce]: pairwise interaction between two robots
//   - [Observer] and [Recorder]: receivers of accepted steps
//
// # Thread Safety
//
// Values are not safe for concurrent mutation. [ParallelFor] is used by the
// engine to fan out work over disjoint index ranges only.
package dynamo
