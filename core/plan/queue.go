package plan

import "github.com/kilianp07/mtrr/core/model"

// Queue is a FIFO of actions for one vehicle. It is not safe for concurrent
// use; the orchestrator guards it.
type Queue struct {
	items []model.Action
}

// NewQueue copies actions into a new queue.
func NewQueue(actions []model.Action) *Queue {
	q := &Queue{items: make([]model.Action, len(actions))}
	copy(q.items, actions)
	return q
}

// Pop removes and returns the head.
func (q *Queue) Pop() (model.Action, bool) {
	if q == nil || len(q.items) == 0 {
		return model.Action{}, false
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, true
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Clear drops every queued action.
func (q *Queue) Clear() {
	if q != nil {
		q.items = nil
	}
}

// Items returns a copy of the queued actions.
func (q *Queue) Items() []model.Action {
	if q == nil {
		return nil
	}
	out := make([]model.Action, len(q.items))
	copy(out, q.items)
	return out
}
