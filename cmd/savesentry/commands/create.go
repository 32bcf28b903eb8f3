package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/savesentry/savesentry/internal/capture"
	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

var createScreenshot bool

func init() {
	createCmd.Flags().BoolVar(&createScreenshot, "screenshot", false,
		"capture a screenshot with the configured capture command")
	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <profile>",
	Short: "Create a snapshot now",
	Long: `Create a snapshot of a profile's current save files.

This bypasses the debounce logic entirely: a manual create always
starts a new snapshot generation, never amends an existing one.`,
	Example: `  # Snapshot profile 1
  savesentry create 1

  # Snapshot with a screenshot
  savesentry create 1 --screenshot

  See Also:
    savesentry list    - List snapshots
    savesentry restore - Restore a snapshot`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	return runCreateWithWriter(cmd, args, os.Stdout)
}

func runCreateWithWriter(cmd *cobra.Command, args []string, w io.Writer) error {
	id, err := parseProfileArg(args[0])
	if err != nil {
		return err
	}

	conf := loadedConfig()
	files, err := profile.FindSaveSet(conf.SaveDir, id)
	if err != nil {
		return asExitError(err)
	}
	if len(files) == 0 {
		return errors.NewUserError(
			errors.Newf("no save files for profile %d in %s", id, conf.SaveDir),
			"check save_dir in the configuration")
	}

	s, err := store.New(conf.SnapshotDir)
	if err != nil {
		return asExitError(err)
	}

	snap, err := s.Create(id, files)
	if err != nil {
		return asExitError(errors.Wrapf(err, "snapshotting profile %d", id))
	}

	fmt.Fprintf(w, "%s✓ Created snapshot %s for profile %d (%d files, %s)%s\n",
		colorGreen, snap.ID, id, len(snap.Files), fileutil.FormatSize(snap.Size), colorReset)

	if createScreenshot {
		dest := filepath.Join(snap.Path, store.ScreenshotName)
		err := capture.NewCommand(conf.CaptureCommand).CaptureTo(cmd.Context(), dest)
		switch {
		case errors.Is(err, capture.ErrDisabled):
			return errors.NewUserError(err, "set capture_command in the configuration")
		case err != nil:
			fmt.Fprintf(w, "%s! Screenshot capture failed: %v%s\n", colorYellow, err, colorReset)
		default:
			if err := s.AttachScreenshot(id, snap.ID, store.ScreenshotName); err != nil {
				return asExitError(err)
			}
			fmt.Fprintf(w, "%s✓ Screenshot attached%s\n", colorGreen, colorReset)
		}
	}

	return nil
}
