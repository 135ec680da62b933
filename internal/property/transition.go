package property

import (
	"errors"
	"fmt"
)

// ErrTransitionDenied is returned when a policy rejects a status change.
var ErrTransitionDenied = errors.New("status transition not allowed")

// TransitionPolicy decides whether a property may move between statuses.
type TransitionPolicy interface {
	Allow(from, to Status) error
}

// Permissive allows every transition. Reps correct mistaken taps by setting
// any status from any other.
type Permissive struct{}

// Allow always returns nil.
func (Permissive) Allow(from, to Status) error { return nil }

// TransitionTable allows only the listed targets for each source status.
// A source missing from the table may not change at all.
type TransitionTable map[Status][]Status

// Allow checks to against the allowed targets of from.
func (t TransitionTable) Allow(from, to Status) error {
	for _, s := range t[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransitionDenied, from, to)
}

// LockedTerminal is a stricter table: sold and do_not_contact can only be
// left for each other, everything else is open.
func LockedTerminal() TransitionTable {
	t := make(TransitionTable, len(Statuses))
	for _, from := range Statuses {
		switch from {
		case StatusSold:
			t[from] = []Status{StatusDoNotContact}
		case StatusDoNotContact:
			t[from] = []Status{StatusSold}
		default:
			t[from] = append([]Status(nil), Statuses...)
		}
	}
	return t
}
