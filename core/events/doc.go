// Package events defines the mission events emitted on the event bus.
//
// Available event types:
//   - MissionEvent: lifecycle transition of a mission
//   - DispatchEvent: a task frame was published to a vehicle
//   - TaskReportEvent: outcome of a processed task report
//   - DiscoveryEvent: a CDT response was received
//   - StateVectorEvent: a vehicle reported its state
package events
