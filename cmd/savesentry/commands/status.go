package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and snapshot overview",
	Long: `Show the effective configuration, whether the save directory and game
process are present, and a per-profile summary of the snapshot store.`,
	Example: `  # Check system status
  savesentry status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return runStatusWithWriter(cmd, os.Stdout)
}

func runStatusWithWriter(cmd *cobra.Command, w io.Writer) error {
	conf := loadedConfig()

	fmt.Fprintf(w, "%sConfiguration%s\n", colorCyan+colorBold, colorReset)
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = fmt.Sprintf("%s(defaults)%s", colorGray, colorReset)
	}
	fmt.Fprintf(w, "  Config file:    %s\n", configFile)
	fmt.Fprintf(w, "  Save dir:       %s%s\n", conf.SaveDir, dirNote(conf.SaveDir))
	fmt.Fprintf(w, "  Snapshot dir:   %s\n", conf.SnapshotDir)
	fmt.Fprintf(w, "  Debounce:       %s\n", conf.DebounceThreshold)
	fmt.Fprintf(w, "  Process name:   %s\n", conf.ProcessName)
	if conf.CaptureCommand == "" {
		fmt.Fprintf(w, "  Screenshots:    %sdisabled%s\n", colorGray, colorReset)
	} else {
		fmt.Fprintf(w, "  Screenshots:    %s\n", conf.CaptureCommand)
	}

	fmt.Fprintf(w, "\n%sGame%s\n", colorCyan+colorBold, colorReset)
	running, err := newLiveness().IsRunning(cmd.Context(), conf.ProcessName)
	switch {
	case err != nil:
		fmt.Fprintf(w, "  Process check:  %sunavailable (%v)%s\n", colorYellow, err, colorReset)
	case running:
		fmt.Fprintf(w, "  Process:        %srunning (restores refused)%s\n", colorYellow, colorReset)
	default:
		fmt.Fprintf(w, "  Process:        not running\n")
	}

	fmt.Fprintf(w, "\n%sSnapshots%s\n", colorCyan+colorBold, colorReset)
	s, err := store.New(conf.SnapshotDir)
	if err != nil {
		return asExitError(err)
	}
	for _, id := range profile.All() {
		snaps, err := s.List(id)
		if err != nil {
			return asExitError(err)
		}
		var total int64
		for _, snap := range snaps {
			total += snap.Size
		}
		line := fmt.Sprintf("  Profile %d:      %d snapshots, %s", id, len(snaps), fileutil.FormatSize(total))
		if _, err := os.Stat(store.LiveBackupDir(s.Root(), id)); err == nil {
			line += fmt.Sprintf("  %s(backup slot in use)%s", colorGray, colorReset)
		}
		fmt.Fprintln(w, line)
	}

	return nil
}

// dirNote flags a save directory that does not exist.
func dirNote(dir string) string {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Sprintf("  %s(missing)%s", colorYellow, colorReset)
	}
	return ""
}
