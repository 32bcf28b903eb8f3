// Package game answers "is the target game process running", used by the
// restore coordinator's preflight check.
package game

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// Liveness reports whether a named process is currently running. The
// check may be slow (process table scan); callers invoke it once per
// restore attempt, synchronously, during preflight only.
type Liveness interface {
	IsRunning(ctx context.Context, name string) (bool, error)
}

// ProcessTable is the default Liveness backed by the OS process table.
type ProcessTable struct{}

// NewProcessTable returns a process-table Liveness.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{}
}

// IsRunning scans the process table for a process whose name matches,
// case-insensitively and ignoring a trailing ".exe".
func (p *ProcessTable) IsRunning(ctx context.Context, name string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, errors.Wrap(err, "listing processes")
	}

	want := normalizeName(name)
	for _, proc := range procs {
		got, err := proc.NameWithContext(ctx)
		if err != nil {
			// Processes exit during the scan; skip them.
			continue
		}
		if normalizeName(got) == want {
			return true, nil
		}
	}
	return false, nil
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ".exe")
}

// Static is a fixed-answer Liveness for tests.
type Static bool

// IsRunning returns the fixed answer.
func (s Static) IsRunning(context.Context, string) (bool, error) {
	return bool(s), nil
}
