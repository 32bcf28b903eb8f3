package restore

// State is the restore state machine position. Each Restore call walks
//
//	IDLE -> PREFLIGHT -> BACKING_UP -> REPLACING -> VERIFYING -> DONE
//	                 \-> ABORTED (preflight rejected)
//	     BACKING_UP/REPLACING/VERIFYING -> FAILED -> ROLLED_BACK
//
// Terminal states are Aborted, Done, RolledBack, and Inconsistent.
type State int

const (
	StateIdle State = iota
	StatePreflight
	StateBackingUp
	StateReplacing
	StateVerifying
	StateDone
	StateAborted
	StateFailed
	StateRolledBack
	// StateInconsistent means a rollback failed after a partial replace:
	// the live directory may hold a mix of old and new files. The live
	// backup is preserved untouched for manual recovery.
	StateInconsistent
)

var stateNames = map[State]string{
	StateIdle:         "IDLE",
	StatePreflight:    "PREFLIGHT",
	StateBackingUp:    "BACKING_UP",
	StateReplacing:    "REPLACING",
	StateVerifying:    "VERIFYING",
	StateDone:         "DONE",
	StateAborted:      "ABORTED",
	StateFailed:       "FAILED",
	StateRolledBack:   "ROLLED_BACK",
	StateInconsistent: "CRITICAL_INCONSISTENCY",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the state ends a restore attempt.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateAborted, StateRolledBack, StateInconsistent:
		return true
	}
	return false
}
