// Package metrics holds step observers that summarise a run and a
// Prometheus collector exposing stepper activity.
package metrics
