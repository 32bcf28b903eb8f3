// Package prompt provides interactive CLI prompts for user input.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

// Sentinel errors for snapshot selection.
var (
	ErrNoSnapshots        = errors.New("no snapshots to select from")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// Selector handles interactive snapshot selection prompts.
type Selector struct {
	reader io.Reader
	writer io.Writer
}

// NewSelector creates a new Selector using stdin and stdout.
func NewSelector() *Selector {
	return &Selector{
		reader: os.Stdin,
		writer: os.Stdout,
	}
}

// NewSelectorWithIO creates a Selector with custom reader and writer for testing.
func NewSelectorWithIO(r io.Reader, w io.Writer) *Selector {
	return &Selector{
		reader: r,
		writer: w,
	}
}

// SelectSnapshot prompts the user to choose from a list of snapshots,
// shown most recent first.
//
// Returns:
//   - ErrNoSnapshots if the list is empty
//   - The snapshot if only one exists (auto-selects without prompting)
//   - The selected snapshot based on user input
//   - ErrInvalidSelection if the selection is out of range
//   - ErrSelectionCancelled if input is EOF (e.g., Ctrl+D)
func (s *Selector) SelectSnapshot(snapshots []store.Snapshot) (*store.Snapshot, error) {
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	// Auto-select if only one snapshot
	if len(snapshots) == 1 {
		return &snapshots[0], nil
	}

	fmt.Fprintf(s.writer, "Snapshots for profile %d:\n", snapshots[0].Profile)
	for i, snap := range snapshots {
		fmt.Fprintf(s.writer, "  [%d] %s  %s  %s\n", i+1, snap.ID,
			snap.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			fileutil.FormatSize(snap.Size))
	}
	fmt.Fprintf(s.writer, "Select [1]: ")

	reader := bufio.NewReader(s.reader)
	input, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrSelectionCancelled
		}
		return nil, errors.Wrap(err, "reading selection")
	}

	input = strings.TrimSpace(input)

	// Default to the most recent snapshot
	if input == "" {
		return &snapshots[0], nil
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSelection, "%q is not a number", input)
	}

	if selection < 1 || selection > len(snapshots) {
		return nil, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", selection, len(snapshots))
	}

	return &snapshots[selection-1], nil
}

// Confirm asks a yes/no question and reports the answer. Empty input
// and EOF mean no.
func (s *Selector) Confirm(question string) bool {
	fmt.Fprintf(s.writer, "%s [y/N]: ", question)

	reader := bufio.NewReader(s.reader)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}
