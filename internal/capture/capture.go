// Package capture invokes an external "capture current screen to file"
// command. Capture failure is non-fatal to snapshot creation; a snapshot
// without a screenshot is valid.
package capture

import (
	"context"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
)

// Capturer writes a screenshot of the current screen to path.
type Capturer interface {
	CaptureTo(ctx context.Context, path string) error
}

// Command runs a configured external capture tool, appending the output
// path as the final argument (e.g. "grim", "scrot -o", "screencapture -x").
type Command struct {
	argv []string
}

// NewCommand parses the configured capture command line. An empty
// command returns a disabled capturer.
func NewCommand(cmdline string) Capturer {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return Disabled{}
	}
	return &Command{argv: fields}
}

// CaptureTo runs the capture tool with path appended.
func (c *Command) CaptureTo(ctx context.Context, path string) error {
	args := append(append([]string(nil), c.argv[1:]...), path)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "capture command failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Disabled is a Capturer that always reports capture as unavailable.
type Disabled struct{}

// ErrDisabled indicates no capture command is configured.
var ErrDisabled = errors.New("screen capture disabled")

// CaptureTo always returns ErrDisabled.
func (Disabled) CaptureTo(context.Context, string) error {
	return ErrDisabled
}
