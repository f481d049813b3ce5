// Package plan derives the per vehicle action queues from a mission plan.
package plan

import (
	"sort"

	"github.com/kilianp07/mtrr/core/model"
)

// hasParent reports whether a references another action. An action naming
// itself as parent is top level.
func hasParent(a model.Action) bool {
	return a.ParentID != 0 && a.ParentID != a.ID
}

// hasChildren marks every action id referenced as a parent anywhere in the
// mission, whatever vehicle the children are assigned to.
func hasChildren(actions []model.Action) map[int]bool {
	parents := make(map[int]bool)
	for _, a := range actions {
		if hasParent(a) {
			parents[a.ParentID] = true
		}
	}
	return parents
}

// keep applies the granularity rule. Vehicles with an onboard planner expand
// complex actions themselves and receive top level actions only. Other
// vehicles receive children and childless actions.
func keep(a model.Action, onboardPlanner bool, parents map[int]bool) bool {
	if onboardPlanner {
		return !hasParent(a)
	}
	return hasParent(a) || !parents[a.ID]
}

func byStartTime(actions []model.Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].StartTime < actions[j].StartTime
	})
}

// FilterVehiclePlan returns the actions a vehicle must execute, ordered by
// start time. Equal start times keep plan order.
func FilterVehiclePlan(v model.Vehicle, m *model.Mission) []model.Action {
	if m == nil {
		return nil
	}
	var assigned []model.Action
	for _, a := range m.Actions {
		if a.VehicleID == v.ID {
			assigned = append(assigned, a)
		}
	}
	parents := hasChildren(m.Actions)
	out := make([]model.Action, 0, len(assigned))
	for _, a := range assigned {
		if keep(a, v.HasPlanner, parents) {
			out = append(out, a)
		}
	}
	byStartTime(out)
	return out
}

// FilterGlobalPlan concatenates every vehicle's filtered plan and sorts the
// result by start time across vehicles.
func FilterGlobalPlan(m *model.Mission) []model.Action {
	if m == nil {
		return nil
	}
	var out []model.Action
	for _, v := range m.Vehicles {
		out = append(out, FilterVehiclePlan(v, m)...)
	}
	byStartTime(out)
	return out
}
