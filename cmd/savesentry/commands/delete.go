package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/store"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <profile> <snapshot-id>...",
	Short: "Delete snapshots",
	Long: `Delete one or more snapshots of a profile.

Deletion is best-effort: each snapshot is removed independently, and a
failure on one does not stop the others. Snapshot IDs are never reused,
so a deleted ID stays gone.`,
	Example: `  # Delete one snapshot
  savesentry delete 1 20260830T120000

  # Delete several at once
  savesentry delete 1 20260830T120000 20260829T231500

  See Also:
    savesentry list - List snapshots`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDelete,
}

func runDelete(_ *cobra.Command, args []string) error {
	return runDeleteWithWriter(args, os.Stdout)
}

func runDeleteWithWriter(args []string, w io.Writer) error {
	id, err := parseProfileArg(args[0])
	if err != nil {
		return err
	}

	s, err := store.New(loadedConfig().SnapshotDir)
	if err != nil {
		return asExitError(err)
	}

	deleted, failed := s.Delete(id, args[1:])

	for _, snapID := range deleted {
		fmt.Fprintf(w, "%s✓ Deleted %s%s\n", colorGreen, snapID, colorReset)
	}
	for snapID, ferr := range failed {
		fmt.Fprintf(w, "%s✗ %s: %v%s\n", colorRed, snapID, ferr, colorReset)
	}

	if len(failed) > 0 {
		err := errors.Newf("%d of %d snapshots not deleted", len(failed), len(args)-1)
		for _, ferr := range failed {
			if !errors.Is(ferr, store.ErrSnapshotNotFound) {
				return errors.NewStorageError(err)
			}
		}
		return errors.NewUserError(err, "run 'savesentry list' to see valid snapshot IDs")
	}
	return nil
}
