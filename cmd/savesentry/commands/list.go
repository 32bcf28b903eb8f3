package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/pkg/fileutil"
)

var (
	listProfile int
	listJSON    bool
)

func init() {
	listCmd.Flags().IntVar(&listProfile, "profile", 0, "limit to one profile (1-4)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	Long: `List snapshots grouped by profile, most recent first.

By default all four profiles are shown. Use --profile to limit the
output to a single profile.`,
	Example: `  # List all snapshots
  savesentry list

  # List snapshots for profile 2
  savesentry list --profile 2

  # Output as JSON
  savesentry list --json

  See Also:
    savesentry restore - Restore a snapshot
    savesentry delete  - Delete snapshots`,
	RunE: runList,
}

// listOutput represents the JSON output for one profile.
type listOutput struct {
	Profile   int              `json:"profile"`
	Snapshots []snapshotOutput `json:"snapshots"`
}

// snapshotOutput represents a single snapshot in JSON output.
type snapshotOutput struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	LastAmendedAt time.Time `json:"last_amended_at"`
	FileCount     int       `json:"file_count"`
	Size          int64     `json:"size"`
	Screenshot    bool      `json:"screenshot"`
	RoomLabel     string    `json:"room_label,omitempty"`
}

func runList(_ *cobra.Command, _ []string) error {
	return runListWithWriter(os.Stdout)
}

func runListWithWriter(w io.Writer) error {
	s, err := store.New(loadedConfig().SnapshotDir)
	if err != nil {
		return asExitError(err)
	}

	profiles := profile.All()
	if listProfile != 0 {
		id, err := parseProfileArg(fmt.Sprint(listProfile))
		if err != nil {
			return err
		}
		profiles = []profile.ID{id}
	}

	if listJSON {
		return outputListJSON(w, s, profiles)
	}
	return outputListTabular(w, s, profiles)
}

func outputListJSON(w io.Writer, s *store.Store, profiles []profile.ID) error {
	output := make([]listOutput, 0, len(profiles))

	for _, id := range profiles {
		snaps, err := s.List(id)
		if err != nil {
			return asExitError(errors.Wrapf(err, "listing profile %d", id))
		}

		entries := make([]snapshotOutput, len(snaps))
		for i, snap := range snaps {
			entries[i] = snapshotOutput{
				ID:            snap.ID,
				CreatedAt:     snap.CreatedAt,
				LastAmendedAt: snap.LastAmendedAt,
				FileCount:     len(snap.Files),
				Size:          snap.Size,
				Screenshot:    snap.Screenshot != "",
				RoomLabel:     snap.RoomLabel,
			}
		}

		output = append(output, listOutput{Profile: int(id), Snapshots: entries})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputListTabular(w io.Writer, s *store.Store, profiles []profile.ID) error {
	hasSnapshots := false

	for i, id := range profiles {
		snaps, err := s.List(id)
		if err != nil {
			return asExitError(errors.Wrapf(err, "listing profile %d", id))
		}

		if len(snaps) > 0 {
			hasSnapshots = true
		}

		// Blank line between profiles (but not before first)
		if i > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "%sProfile %d%s\n", colorCyan+colorBold, id, colorReset)

		if len(snaps) == 0 {
			fmt.Fprintf(w, "  %s(no snapshots)%s\n", colorGray, colorReset)
			continue
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  %sID%s\t%sCREATED%s\t%sAMENDED%s\t%sFILES%s\t%sSIZE%s\t%sSHOT%s\n",
			colorBold, colorReset,
			colorBold, colorReset,
			colorBold, colorReset,
			colorBold, colorReset,
			colorBold, colorReset,
			colorBold, colorReset)

		for _, snap := range snaps {
			shot := ""
			if snap.Screenshot != "" {
				shot = "✓"
			}
			fmt.Fprintf(tw, "  %s%s%s\t%s\t%s\t%d\t%s\t%s\n",
				colorGreen, snap.ID, colorReset,
				snap.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				timeAgo(snap.LastAmendedAt),
				len(snap.Files),
				fileutil.FormatSize(snap.Size),
				shot)
		}
		tw.Flush()
	}

	if !hasSnapshots {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No snapshots yet")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Snapshots are created automatically while 'savesentry watch' runs.")
		fmt.Fprintln(w, "You can also create one manually with: savesentry create <profile>")
	}

	return nil
}
