// Package control provides per-robot feedback controllers.
//
// Controllers implement the [dynamo.Controller] interface and return the
// generalized forces applied to their robot. The engine holds the output
// constant over each integration step:
//
//   - [PID]: Proportional-Integral-Derivative on one coordinate
//   - [LQR]: full state feedback u = -K (x - target)
//   - [None]: zero forces
//   - [ManualController]: externally set forces
//   - [Func]: adapter for plain functions
//
// # Usage
//
//	pid := control.NewPID(1.0, 0.1, 0.01, 0.0)  // Kp, Ki, Kd, setpoint
//	eng.AddSystem("arm", physics.NewPendulum(), pid)
//
// Wrap a controller with [StopWhen] to end a simulation early. Controllers
// implementing [dynamo.Configurable] accept parameter overrides.
package control
