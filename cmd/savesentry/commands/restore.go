package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/savesentry/savesentry/internal/cli/prompt"
	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/game"
	"github.com/savesentry/savesentry/internal/restore"
	"github.com/savesentry/savesentry/internal/store"
)

var restoreYes bool

// newLiveness builds the game process check; overridden in tests.
var newLiveness = func() game.Liveness {
	return game.NewProcessTable()
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false,
		"skip the confirmation prompt")
	rootCmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <profile> [snapshot-id]",
	Short: "Restore a snapshot over the live save files",
	Long: `Restore a snapshot, replacing the profile's live save files.

If no snapshot ID is given, a picker lists the profile's snapshots with
the most recent first. The restore is refused while the game process is
running.

Before anything is replaced, the current live saves are copied into a
single-slot backup. If the restore fails partway, the backup is copied
back; the live directory is never left half-replaced without the exit
code saying so.`,
	Example: `  # Restore the most recent snapshot of profile 1
  savesentry restore 1

  # Restore a specific snapshot without confirmation
  savesentry restore 1 20260830T120000 --yes

  See Also:
    savesentry list - List snapshots`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	return runRestoreWithIO(cmd, args, os.Stdin, os.Stdout)
}

func runRestoreWithIO(cmd *cobra.Command, args []string, in io.Reader, w io.Writer) error {
	id, err := parseProfileArg(args[0])
	if err != nil {
		return err
	}

	conf := loadedConfig()
	s, err := store.New(conf.SnapshotDir)
	if err != nil {
		return asExitError(err)
	}

	selector := prompt.NewSelectorWithIO(in, w)

	var snapshotID string
	if len(args) > 1 {
		snapshotID = args[1]
	} else {
		snaps, err := s.List(id)
		if err != nil {
			return asExitError(err)
		}
		snap, err := selector.SelectSnapshot(snaps)
		if err != nil {
			if errors.Is(err, prompt.ErrNoSnapshots) {
				return errors.NewUserError(
					errors.Newf("no snapshots for profile %d", id),
					"create one with: savesentry create")
			}
			return err
		}
		snapshotID = snap.ID
		fmt.Fprintf(w, "Using snapshot: %s\n", snapshotID)
	}

	if !restoreYes {
		q := fmt.Sprintf("Overwrite profile %d's live saves with snapshot %s?", id, snapshotID)
		if !selector.Confirm(q) {
			fmt.Fprintln(w, "Restore cancelled")
			return nil
		}
	}

	coord := restore.New(s, newLiveness(), conf.SaveDir, conf.ProcessName)
	res, err := coord.Restore(cmd.Context(), id, snapshotID)
	if err != nil {
		return restoreExitError(res, err)
	}

	fmt.Fprintf(w, "%s✓ Restored profile %d from snapshot %s%s\n",
		colorGreen, id, snapshotID, colorReset)
	fmt.Fprintf(w, "%sThe previous live saves are kept in the backup slot.%s\n",
		colorGray, colorReset)

	return nil
}

// restoreExitError maps a failed restore onto the documented exit codes.
func restoreExitError(res *restore.Result, err error) error {
	switch {
	case errors.Is(err, restore.ErrGameRunning):
		return errors.NewPreflightError(err, "close the game and retry")
	case errors.Is(err, restore.ErrCriticalInconsistency):
		e := errors.NewExitError(err, errors.ExitInconsistent)
		e.Suggestion = "the live saves may be mixed; recover them manually from the backup slot"
		return e
	case res != nil && res.State == restore.StateAborted:
		return errors.NewUserError(err, "")
	case res != nil && (res.State == restore.StateFailed || res.State == restore.StateRolledBack):
		return errors.NewStorageError(err)
	}
	return asExitError(err)
}
