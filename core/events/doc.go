// Package events defines the events published on the event bus while
// simulations and control sessions run.
//
// Available event types:
//   - RunStarted: a simulation run was accepted
//   - RunCompleted: a simulation run finished with its energy report
//   - RunFailed: a simulation run stopped with an error
//   - ControlSample: one setpoint cycle of a live control session
package events
