package stateful

import (
	"github.com/getmockd/statemock/pkg/condition"
)

// selectTrigger returns the first trigger eligible to fire from current, or
// nil. Eligible means same method, matching path, FromState equal to current
// and a condition that holds.
func selectTrigger(triggers []trigger, current string, req *request, eval *condition.Evaluator) *trigger {
	for i := range triggers {
		t := &triggers[i]
		if t.method != req.method || t.FromState != current {
			continue
		}
		if t.tmpl != nil {
			if _, ok := t.tmpl.Match(req.path); !ok {
				continue
			}
		}
		if !t.cond.IsEmpty() && !eval.Eval(t.cond, req.conditionContext()) {
			continue
		}
		return t
	}
	return nil
}

// advance runs the transition step for one resource under its lock and
// returns the state before and after. fired is the trigger applied, if any.
func advance(store *Store, scope, id, initial string, triggers []trigger, req *request, eval *condition.Evaluator) (previous, next string, fired *trigger) {
	previous, next = store.UpdateFrom(scope, id, initial, func(current string) string {
		fired = selectTrigger(triggers, current, req, eval)
		if fired == nil {
			return current
		}
		return fired.ToState
	})
	return previous, next, fired
}
