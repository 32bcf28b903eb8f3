package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/savesentry/savesentry/internal/errors"
	"github.com/savesentry/savesentry/internal/profile"
	"github.com/savesentry/savesentry/internal/store"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// parseProfileArg parses a profile number argument.
func parseProfileArg(arg string) (profile.ID, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, errors.NewUserError(
			errors.Newf("%q is not a profile number", arg),
			"profiles are numbered 1 through 4")
	}
	id := profile.ID(n)
	if !id.Valid() {
		return 0, errors.NewUserError(
			errors.Newf("profile %d out of range", n),
			"profiles are numbered 1 through 4")
	}
	return id, nil
}

// asExitError classifies a snapshot engine error into an exit code. The
// storage sentinels map to the storage exit code; everything else is a
// user error.
func asExitError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrInsufficientSpace),
		errors.Is(err, store.ErrPermissionDenied),
		errors.Is(err, store.ErrSourceUnreadable):
		return errors.NewStorageError(err)
	}
	return err
}

// timeAgo renders a timestamp as a short relative age, "2h ago".
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}
